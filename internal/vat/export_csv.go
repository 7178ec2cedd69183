package vat

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

var recordCSVHeader = []string{
	"Date", "Type", "Bucket", "Description", "Amount", "VAT Rate", "VAT Amount", "Period",
}

// WriteDetailedCSV serialises the detailed report: one row per record plus
// a trailing totals block.
func WriteDetailedCSV(w io.Writer, report DetailedReport) error {
	writer := csv.NewWriter(w)
	writer.UseCRLF = true

	if err := writer.Write(recordCSVHeader); err != nil {
		return err
	}
	for _, rec := range report.Records {
		if err := writer.Write([]string{
			rec.Date.Format("2006-01-02"),
			string(rec.Type),
			string(Categorize(rec)),
			rec.Description,
			rec.Amount.StringFixed(2),
			rec.VATRate.StringFixed(2),
			rec.VATAmount.StringFixed(2),
			rec.Period,
		}); err != nil {
			return err
		}
	}

	if err := writer.Write([]string{"--- SUMMARY ---"}); err != nil {
		return err
	}
	summary := report.Summary
	for _, bucket := range []Bucket{
		BucketStandardRatedSales, BucketZeroRatedSales, BucketExemptSales,
		BucketStandardRatedPurchases, BucketReverseChargePurchases, BucketImportPurchases,
	} {
		totals, ok := summary.Buckets[bucket]
		if !ok {
			continue
		}
		if err := writer.Write([]string{
			string(bucket),
			totals.Amount.StringFixed(2),
			totals.VATAmount.StringFixed(2),
			strconv.Itoa(totals.Count),
		}); err != nil {
			return err
		}
	}
	for _, row := range [][]string{
		{"Output VAT", summary.OutputVAT.StringFixed(2)},
		{"Input VAT", summary.InputVAT.StringFixed(2)},
		{"Reverse Charge VAT", summary.ReverseChargeVAT.StringFixed(2)},
		{"Net VAT Due", summary.NetVATDue.StringFixed(2)},
	} {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("vat: write csv: %w", err)
	}
	return nil
}
