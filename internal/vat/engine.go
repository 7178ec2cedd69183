package vat

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Categorize assigns one record to its compliance bucket. Zero-rated and
// exempt sales are told apart by the record description, as are
// reverse-charge and import purchases.
func Categorize(rec Record) Bucket {
	desc := strings.ToLower(rec.Description)
	if rec.Type == RecordOutput {
		if rec.VATRate.Sign() > 0 {
			return BucketStandardRatedSales
		}
		if strings.Contains(desc, "exempt") {
			return BucketExemptSales
		}
		return BucketZeroRatedSales
	}
	if strings.Contains(desc, "reverse charge") {
		return BucketReverseChargePurchases
	}
	if strings.Contains(desc, "import") {
		return BucketImportPurchases
	}
	return BucketStandardRatedPurchases
}

// Summarize partitions active records into buckets and computes the net tax
// due for the window. Reverse-charge VAT adds to the liability side; whether
// a recoverable input offset applies is jurisdiction specific and is not
// applied here.
func Summarize(start, end time.Time, records []Record) Summary {
	summary := Summary{
		StartDate: start,
		EndDate:   end,
		Buckets:   make(map[Bucket]BucketTotals),
	}
	months := make(map[string]MonthTotals)

	for _, rec := range records {
		if rec.Status == RecordVoid {
			continue
		}
		bucket := Categorize(rec)
		totals := summary.Buckets[bucket]
		totals.Amount = totals.Amount.Add(rec.Amount)
		totals.VATAmount = totals.VATAmount.Add(rec.VATAmount)
		totals.Count++
		summary.Buckets[bucket] = totals

		month := months[rec.Period]
		month.Period = rec.Period
		switch bucket {
		case BucketStandardRatedSales, BucketZeroRatedSales, BucketExemptSales:
			summary.OutputVAT = summary.OutputVAT.Add(rec.VATAmount)
			month.OutputVAT = month.OutputVAT.Add(rec.VATAmount)
		case BucketReverseChargePurchases:
			summary.ReverseChargeVAT = summary.ReverseChargeVAT.Add(rec.VATAmount)
			month.ReverseChargeVAT = month.ReverseChargeVAT.Add(rec.VATAmount)
		default:
			summary.InputVAT = summary.InputVAT.Add(rec.VATAmount)
			month.InputVAT = month.InputVAT.Add(rec.VATAmount)
		}
		months[rec.Period] = month
	}

	summary.NetVATDue = summary.OutputVAT.Sub(summary.InputVAT).Add(summary.ReverseChargeVAT)

	summary.Monthly = make([]MonthTotals, 0, len(months))
	for _, month := range months {
		month.NetVATDue = month.OutputVAT.Sub(month.InputVAT).Add(month.ReverseChargeVAT)
		summary.Monthly = append(summary.Monthly, month)
	}
	sort.Slice(summary.Monthly, func(i, j int) bool {
		return summary.Monthly[i].Period < summary.Monthly[j].Period
	})
	return summary
}

// bucketTotalsOrZero avoids nil map lookups in presentation code.
func (s Summary) bucketTotalsOrZero(b Bucket) BucketTotals {
	if totals, ok := s.Buckets[b]; ok {
		return totals
	}
	return BucketTotals{Amount: decimal.Zero, VATAmount: decimal.Zero}
}
