package vat

import (
	"encoding/xml"
	"time"
)

// FTANamespace is the fixed schema namespace of the compliance export.
const FTANamespace = "urn:ae:fta:vat:return:1.0"

// FilerConfig identifies the taxable entity on compliance exports.
type FilerConfig struct {
	TRN           string
	BusinessName  string
	DeclarantName string
	Currency      string
}

// FTAReturn is the fixed-schema XML document submitted to the tax
// authority. Monetary fields are pre-formatted strings so the wire format
// stays bit-exact regardless of internal decimal representation.
type FTAReturn struct {
	XMLName     xml.Name       `xml:"VATReturn"`
	Namespace   string         `xml:"xmlns,attr"`
	Header      FTAHeader      `xml:"Header"`
	Body        FTABody        `xml:"Body"`
	Declaration FTADeclaration `xml:"Declaration"`
}

// FTAHeader identifies the filer and the reporting window.
type FTAHeader struct {
	TRN            string `xml:"TRN"`
	BusinessName   string `xml:"BusinessName"`
	PeriodStart    string `xml:"TaxPeriodStart"`
	PeriodEnd      string `xml:"TaxPeriodEnd"`
	Currency       string `xml:"Currency"`
	SubmissionDate string `xml:"SubmissionDate"`
}

// FTALine is one supply or purchase total.
type FTALine struct {
	Amount    string `xml:"Amount"`
	VATAmount string `xml:"VATAmount"`
}

// FTABody carries the categorized totals and the net position.
type FTABody struct {
	StandardRatedSupplies  FTALine `xml:"StandardRatedSupplies"`
	ZeroRatedSupplies      FTALine `xml:"ZeroRatedSupplies"`
	ExemptSupplies         FTALine `xml:"ExemptSupplies"`
	StandardRatedPurchases FTALine `xml:"StandardRatedPurchases"`
	ReverseChargePurchases FTALine `xml:"ReverseChargePurchases"`
	NetVATDue              string  `xml:"NetVATDue"`
}

// FTADeclaration is the signed statement block.
type FTADeclaration struct {
	DeclarantName   string `xml:"DeclarantName"`
	DeclarationDate string `xml:"DeclarationDate"`
	Statement       string `xml:"Statement"`
}

const declarationStatement = "I declare that the information provided in this return is true, accurate and complete."

// BuildFTAReturn assembles the export document from a period summary.
// Import purchases carry VAT through the reverse-charge mechanism but are
// folded into the standard-rated purchases block of the return.
func BuildFTAReturn(summary Summary, filer FilerConfig, submittedAt time.Time) FTAReturn {
	standardSales := summary.bucketTotalsOrZero(BucketStandardRatedSales)
	zeroSales := summary.bucketTotalsOrZero(BucketZeroRatedSales)
	exemptSales := summary.bucketTotalsOrZero(BucketExemptSales)
	standardPurchases := summary.bucketTotalsOrZero(BucketStandardRatedPurchases)
	reverseCharge := summary.bucketTotalsOrZero(BucketReverseChargePurchases)
	imports := summary.bucketTotalsOrZero(BucketImportPurchases)

	return FTAReturn{
		Namespace: FTANamespace,
		Header: FTAHeader{
			TRN:            filer.TRN,
			BusinessName:   filer.BusinessName,
			PeriodStart:    summary.StartDate.Format("2006-01-02"),
			PeriodEnd:      summary.EndDate.Format("2006-01-02"),
			Currency:       filer.Currency,
			SubmissionDate: submittedAt.Format("2006-01-02"),
		},
		Body: FTABody{
			StandardRatedSupplies: FTALine{
				Amount:    standardSales.Amount.StringFixed(2),
				VATAmount: standardSales.VATAmount.StringFixed(2),
			},
			ZeroRatedSupplies: FTALine{
				Amount:    zeroSales.Amount.StringFixed(2),
				VATAmount: zeroSales.VATAmount.StringFixed(2),
			},
			ExemptSupplies: FTALine{
				Amount:    exemptSales.Amount.StringFixed(2),
				VATAmount: exemptSales.VATAmount.StringFixed(2),
			},
			StandardRatedPurchases: FTALine{
				Amount:    standardPurchases.Amount.Add(imports.Amount).StringFixed(2),
				VATAmount: standardPurchases.VATAmount.Add(imports.VATAmount).StringFixed(2),
			},
			ReverseChargePurchases: FTALine{
				Amount:    reverseCharge.Amount.StringFixed(2),
				VATAmount: reverseCharge.VATAmount.StringFixed(2),
			},
			NetVATDue: summary.NetVATDue.StringFixed(2),
		},
		Declaration: FTADeclaration{
			DeclarantName:   filer.DeclarantName,
			DeclarationDate: submittedAt.Format("2006-01-02"),
			Statement:       declarationStatement,
		},
	}
}

// MarshalFTAReturn renders the document with the XML prolog. encoding/xml
// escapes special characters in element content.
func MarshalFTAReturn(doc FTAReturn) ([]byte, error) {
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(xml.Header)+len(body)+1)
	out = append(out, xml.Header...)
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}
