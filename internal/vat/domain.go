// Package vat categorizes tax records and produces compliance reporting,
// including the fixed-schema FTA XML return.
package vat

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RecordType splits tax records into sales (output) and purchases (input).
type RecordType string

const (
	RecordOutput RecordType = "OUTPUT"
	RecordInput  RecordType = "INPUT"
)

// RecordStatus marks whether a record participates in reporting.
type RecordStatus string

const (
	RecordActive RecordStatus = "ACTIVE"
	RecordVoid   RecordStatus = "VOID"
)

// Record is a ledger-adjacent tax record produced by sales and purchase
// posting. The engine consumes them read-only.
type Record struct {
	ID          int64           `json:"id"`
	Type        RecordType      `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	VATAmount   decimal.Decimal `json:"vatAmount"`
	VATRate     decimal.Decimal `json:"vatRate"`
	Period      string          `json:"period"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Status      RecordStatus    `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Bucket identifies the compliance category of a record.
type Bucket string

const (
	BucketStandardRatedSales     Bucket = "standard_rated_sales"
	BucketZeroRatedSales         Bucket = "zero_rated_sales"
	BucketExemptSales            Bucket = "exempt_sales"
	BucketStandardRatedPurchases Bucket = "standard_rated_purchases"
	BucketReverseChargePurchases Bucket = "reverse_charge_purchases"
	BucketImportPurchases        Bucket = "import_purchases"
)

// BucketTotals accumulates taxable base and tax per bucket.
type BucketTotals struct {
	Amount    decimal.Decimal `json:"amount"`
	VATAmount decimal.Decimal `json:"vatAmount"`
	Count     int             `json:"count"`
}

// MonthTotals is one row of the month-by-month breakdown.
type MonthTotals struct {
	Period           string          `json:"period"`
	OutputVAT        decimal.Decimal `json:"outputVAT"`
	InputVAT         decimal.Decimal `json:"inputVAT"`
	ReverseChargeVAT decimal.Decimal `json:"reverseChargeVAT"`
	NetVATDue        decimal.Decimal `json:"netVATDue"`
}

// Summary aggregates a reporting window.
type Summary struct {
	StartDate time.Time               `json:"startDate"`
	EndDate   time.Time               `json:"endDate"`
	Buckets   map[Bucket]BucketTotals `json:"buckets"`
	// OutputVAT is tax charged on all sales. InputVAT is recoverable tax on
	// standard and import purchases. ReverseChargeVAT is self-assessed on
	// imported services and adds to the liability side.
	OutputVAT        decimal.Decimal `json:"outputVAT"`
	InputVAT         decimal.Decimal `json:"inputVAT"`
	ReverseChargeVAT decimal.Decimal `json:"reverseChargeVAT"`
	NetVATDue        decimal.Decimal `json:"netVATDue"`
	Monthly          []MonthTotals   `json:"monthly"`
}

// ComplianceFormatError reports a compliance export that failed
// re-validation. The export is not delivered when this is returned.
type ComplianceFormatError struct {
	Element string
	Reason  string
}

func (e *ComplianceFormatError) Error() string {
	return fmt.Sprintf("vat: compliance export invalid: %s %s", e.Element, e.Reason)
}
