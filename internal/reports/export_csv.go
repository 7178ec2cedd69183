package reports

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/atlas-erp/atlas-erp/internal/ledger"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeComment(line string) error {
	if !strings.HasSuffix(line, "\r\n") {
		line = strings.TrimSuffix(line, "\n")
		line += "\r\n"
	}
	_, err := s.buf.WriteString(line)
	return err
}

func (s *csvStreamer) writeRow(row []string) error {
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.flush()
	}
	return nil
}

func (s *csvStreamer) flush() error {
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

// trialBalanceCSVHeader is the fixed column order of the export.
var trialBalanceCSVHeader = []string{
	"Account Code", "Account Name", "Account Type",
	"Opening Balance", "Debit Movements", "Credit Movements",
	"Closing Balance", "Debit Balance", "Credit Balance",
}

// WriteTrialBalanceCSV serialises the report with a trailing summary block.
func WriteTrialBalanceCSV(w io.Writer, report TrialBalance) error {
	streamer := newCSVStreamer(w)
	if err := streamer.writeComment(fmt.Sprintf("# Trial Balance | Currency: %s | As Of: %s | Period Start: %s",
		report.Currency, report.AsOfDate.Format("2006-01-02"), report.PeriodStart.Format("2006-01-02"))); err != nil {
		return err
	}
	if err := streamer.writeRow(trialBalanceCSVHeader); err != nil {
		return err
	}
	for _, row := range report.Rows {
		if err := streamer.writeRow([]string{
			row.AccountCode,
			row.AccountName,
			string(row.AccountType),
			formatAmount(row.OpeningBalance),
			formatAmount(row.DebitMovements),
			formatAmount(row.CreditMovements),
			formatAmount(row.ClosingBalance),
			formatAmount(row.DebitBalance),
			formatAmount(row.CreditBalance),
		}); err != nil {
			return err
		}
	}

	if err := streamer.writeRow([]string{"--- SUMMARY ---"}); err != nil {
		return err
	}
	summaryRows := [][]string{
		{"Total Debits", formatAmount(report.Summary.TotalDebits)},
		{"Total Credits", formatAmount(report.Summary.TotalCredits)},
		{"Difference", formatAmount(report.Summary.Difference)},
		{"Is Balanced", strconv.FormatBool(report.Summary.IsBalanced)},
	}
	for _, row := range summaryRows {
		if err := streamer.writeRow(row); err != nil {
			return err
		}
	}
	for _, accountType := range []ledger.AccountType{
		ledger.AccountTypeAsset, ledger.AccountTypeLiability, ledger.AccountTypeEquity,
		ledger.AccountTypeRevenue, ledger.AccountTypeExpense,
	} {
		totals, ok := report.Summary.TotalsByType[accountType]
		if !ok {
			continue
		}
		if err := streamer.writeRow([]string{
			"Total " + string(accountType),
			formatAmount(totals.DebitBalance),
			formatAmount(totals.CreditBalance),
			formatAmount(totals.Closing),
		}); err != nil {
			return err
		}
	}
	return streamer.flush()
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
