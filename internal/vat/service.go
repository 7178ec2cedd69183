package vat

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Service produces the three report shapes served by the VAT endpoint.
type Service struct {
	repo   Repository
	filer  FilerConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, filer FilerConfig, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		filer:  filer,
		logger: logger,
		now:    time.Now,
	}
}

// Summary aggregates the window into buckets, totals and the monthly
// breakdown.
func (s *Service) Summary(ctx context.Context, from, to time.Time) (Summary, error) {
	records, err := s.repo.ListRecords(ctx, from, to)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(from, to, records), nil
}

// DetailedReport is the summary plus the individual records behind it.
type DetailedReport struct {
	Summary Summary  `json:"summary"`
	Records []Record `json:"records"`
}

// Detailed returns the summary together with every contributing record.
func (s *Service) Detailed(ctx context.Context, from, to time.Time) (DetailedReport, error) {
	records, err := s.repo.ListRecords(ctx, from, to)
	if err != nil {
		return DetailedReport{}, err
	}
	return DetailedReport{
		Summary: Summarize(from, to, records),
		Records: records,
	}, nil
}

// FTAExport renders the compliance XML for the window and re-validates the
// exact bytes before returning them. A validation failure is surfaced as a
// *ComplianceFormatError and nothing is delivered.
func (s *Service) FTAExport(ctx context.Context, from, to time.Time) ([]byte, error) {
	summary, err := s.Summary(ctx, from, to)
	if err != nil {
		return nil, err
	}
	doc := BuildFTAReturn(summary, s.filer, s.now())
	data, err := MarshalFTAReturn(doc)
	if err != nil {
		return nil, fmt.Errorf("vat: marshal fta return: %w", err)
	}
	if err := ValidateFTAReturn(data); err != nil {
		s.logger.Error("fta export failed validation",
			slog.String("period_start", from.Format("2006-01-02")),
			slog.String("period_end", to.Format("2006-01-02")),
			slog.Any("error", err),
		)
		return nil, err
	}
	return data, nil
}
