package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-erp/atlas-erp/internal/ledger"
)

// closureTolerance bounds the accepted difference between total debit and
// credit balances.
var closureTolerance = decimal.New(1, -2)

// BuildTrialBalance converts raw account balances into the report. The
// balance assertion holds for any ledger written exclusively through the
// ledger writer; a false IsBalanced is surfaced by the caller, never fixed.
func BuildTrialBalance(query BalanceQuery, balances []AccountBalance, generatedAt time.Time) TrialBalance {
	report := TrialBalance{
		AsOfDate:    query.AsOfDate,
		PeriodStart: query.PeriodStart(),
		Currency:    query.Currency,
		GeneratedAt: generatedAt,
		Summary: Summary{
			TotalsByType: make(map[ledger.AccountType]TypeTotals),
		},
	}

	for _, b := range balances {
		if query.AccountType != "" && b.Type != query.AccountType {
			continue
		}
		closing := b.Closing()
		hasMovement := b.DebitMovements.Sign() != 0 || b.CreditMovements.Sign() != 0
		if !query.IncludeZeroBalances && closing.IsZero() && !hasMovement {
			continue
		}
		row := TrialBalanceRow{
			AccountCode:     b.Code,
			AccountName:     b.Name,
			AccountType:     b.Type,
			OpeningBalance:  b.Opening(),
			DebitMovements:  b.DebitMovements,
			CreditMovements: b.CreditMovements,
			ClosingBalance:  closing,
			DebitBalance:    b.DebitBalance(),
			CreditBalance:   b.CreditBalance(),
		}
		report.Rows = append(report.Rows, row)

		report.Summary.TotalDebits = report.Summary.TotalDebits.Add(row.DebitBalance)
		report.Summary.TotalCredits = report.Summary.TotalCredits.Add(row.CreditBalance)
		totals := report.Summary.TotalsByType[b.Type]
		totals.DebitBalance = totals.DebitBalance.Add(row.DebitBalance)
		totals.CreditBalance = totals.CreditBalance.Add(row.CreditBalance)
		totals.Closing = totals.Closing.Add(closing)
		report.Summary.TotalsByType[b.Type] = totals
	}

	sort.Slice(report.Rows, func(i, j int) bool {
		return report.Rows[i].AccountCode < report.Rows[j].AccountCode
	})

	report.Summary.Difference = report.Summary.TotalDebits.Sub(report.Summary.TotalCredits)
	report.Summary.IsBalanced = report.Summary.Difference.Abs().Cmp(closureTolerance) < 0
	return report
}

// ToSnapshot freezes a report into its persisted form.
func ToSnapshot(report TrialBalance, name string) Snapshot {
	snapshot := Snapshot{
		Name:         name,
		Period:       report.AsOfDate.Format("2006-01"),
		AsOfDate:     report.AsOfDate,
		Currency:     report.Currency,
		TotalDebits:  report.Summary.TotalDebits,
		TotalCredits: report.Summary.TotalCredits,
		IsBalanced:   report.Summary.IsBalanced,
		Items:        make([]SnapshotItem, 0, len(report.Rows)),
	}
	for _, row := range report.Rows {
		snapshot.Items = append(snapshot.Items, SnapshotItem{
			AccountCode:     row.AccountCode,
			AccountName:     row.AccountName,
			AccountType:     row.AccountType,
			OpeningBalance:  row.OpeningBalance,
			DebitMovements:  row.DebitMovements,
			CreditMovements: row.CreditMovements,
			ClosingBalance:  row.ClosingBalance,
		})
	}
	return snapshot
}
