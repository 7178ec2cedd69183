package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// ConsistencyObserver surfaces trial balance closure failures to metrics.
type ConsistencyObserver interface {
	SetLedgerOutOfBalance(unbalanced bool)
}

// Service is the trial balance generator.
type Service struct {
	repo     Repository
	cache    *Cache
	observer ConsistencyObserver
	logger   *slog.Logger
	group    singleflight.Group
	now      func() time.Time
}

// NewService constructs the report service.
func NewService(repo Repository, cache *Cache, observer ConsistencyObserver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, observer: observer, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used in tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Generate builds the trial balance for the query. Results are cached per
// ledger version and concurrent identical requests share one build. An
// unbalanced result is still returned alongside a ConsistencyError so the
// caller can inspect the figures; it is never silently corrected.
func (s *Service) Generate(ctx context.Context, query BalanceQuery) (TrialBalance, error) {
	key, err := s.cache.BuildKey(ctx, "reports", "tb", query.Currency,
		query.AsOfDate.Format("2006-01-02"), string(query.AccountType), fmt.Sprintf("%t", query.IncludeZeroBalances))
	if err != nil {
		s.logger.Warn("report cache key", slog.Any("error", err))
		key = ""
	}

	var report TrialBalance
	build := func(ctx context.Context) (any, error) {
		balances, err := s.repo.FetchAccountBalances(ctx, query)
		if err != nil {
			return nil, err
		}
		return BuildTrialBalance(query, balances, s.now().UTC()), nil
	}

	if key == "" {
		value, err := build(ctx)
		if err != nil {
			return TrialBalance{}, err
		}
		report = value.(TrialBalance)
	} else {
		result := s.group.DoChan(key, func() (any, error) {
			var cached TrialBalance
			if err := s.cache.FetchJSON(ctx, key, &cached, build); err != nil {
				return nil, err
			}
			return cached, nil
		})
		select {
		case <-ctx.Done():
			return TrialBalance{}, ctx.Err()
		case res := <-result:
			if res.Err != nil {
				return TrialBalance{}, res.Err
			}
			report = res.Val.(TrialBalance)
		}
	}

	if !report.Summary.IsBalanced {
		cerr := &ConsistencyError{
			AsOfDate:   query.AsOfDate,
			Currency:   query.Currency,
			Difference: report.Summary.Difference,
		}
		s.logger.Error("trial balance closure failed",
			slog.String("as_of", query.AsOfDate.Format("2006-01-02")),
			slog.String("currency", query.Currency),
			slog.String("difference", report.Summary.Difference.String()))
		if s.observer != nil {
			s.observer.SetLedgerOutOfBalance(true)
		}
		return report, cerr
	}
	if s.observer != nil {
		s.observer.SetLedgerOutOfBalance(false)
	}
	return report, nil
}

// PersistSnapshot generates the report and archives it as an append-only
// snapshot. The snapshot is written even when the report is unbalanced, so
// the audit trail captures the broken state; the error still propagates.
func (s *Service) PersistSnapshot(ctx context.Context, query BalanceQuery, name string) (Snapshot, error) {
	report, genErr := s.Generate(ctx, query)
	if genErr != nil {
		var cerr *ConsistencyError
		if !errors.As(genErr, &cerr) {
			return Snapshot{}, genErr
		}
	}
	if name == "" {
		name = "Trial Balance " + query.AsOfDate.Format("2006-01-02")
	}
	snapshot, err := s.repo.SaveSnapshot(ctx, ToSnapshot(report, name))
	if err != nil {
		return Snapshot{}, err
	}
	return snapshot, genErr
}

// GetSnapshot fetches a persisted snapshot by id.
func (s *Service) GetSnapshot(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	return s.repo.GetSnapshot(ctx, id)
}
