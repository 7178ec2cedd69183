package reports

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	balances  []AccountBalance
	fetchErr  error
	saved     []Snapshot
	snapshots map[uuid.UUID]Snapshot
}

func (s *stubRepo) FetchAccountBalances(context.Context, BalanceQuery) ([]AccountBalance, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.balances, nil
}

func (s *stubRepo) SaveSnapshot(_ context.Context, snapshot Snapshot) (Snapshot, error) {
	snapshot.ID = uuid.New()
	snapshot.CreatedAt = time.Now()
	s.saved = append(s.saved, snapshot)
	if s.snapshots == nil {
		s.snapshots = make(map[uuid.UUID]Snapshot)
	}
	s.snapshots[snapshot.ID] = snapshot
	return snapshot, nil
}

func (s *stubRepo) GetSnapshot(_ context.Context, id uuid.UUID) (Snapshot, error) {
	snapshot, ok := s.snapshots[id]
	if !ok {
		return Snapshot{}, ErrSnapshotNotFound
	}
	return snapshot, nil
}

type gaugeObserver struct {
	set  bool
	last bool
}

func (g *gaugeObserver) SetLedgerOutOfBalance(unbalanced bool) {
	g.set = true
	g.last = unbalanced
}

func TestServiceGenerate(t *testing.T) {
	repo := &stubRepo{balances: balancedFixture()}
	observer := &gaugeObserver{}
	svc := NewService(repo, NewCache(nil, 0), observer, slog.Default())

	report, err := svc.Generate(context.Background(), testQuery())
	require.NoError(t, err)
	assert.True(t, report.Summary.IsBalanced)
	assert.True(t, observer.set)
	assert.False(t, observer.last)
}

func TestServiceGenerateUnbalanced(t *testing.T) {
	balances := balancedFixture()
	balances[1].CreditMovements = dec("999")
	repo := &stubRepo{balances: balances}
	observer := &gaugeObserver{}
	svc := NewService(repo, NewCache(nil, 0), observer, slog.Default())

	report, err := svc.Generate(context.Background(), testQuery())
	var cerr *ConsistencyError
	require.True(t, errors.As(err, &cerr))
	assert.True(t, cerr.Difference.Equal(dec("1")))
	assert.True(t, observer.last, "gauge must flag the broken closure")
	assert.Len(t, report.Rows, 2, "figures are still returned for inspection")
}

func TestServicePersistSnapshot(t *testing.T) {
	repo := &stubRepo{balances: balancedFixture()}
	svc := NewService(repo, NewCache(nil, 0), nil, slog.Default())

	snapshot, err := svc.PersistSnapshot(context.Background(), testQuery(), "June close")
	require.NoError(t, err)
	assert.Equal(t, "June close", snapshot.Name)
	require.Len(t, repo.saved, 1)

	got, err := svc.GetSnapshot(context.Background(), snapshot.ID)
	require.NoError(t, err)
	assert.Equal(t, snapshot.ID, got.ID)
}

func TestServicePersistSnapshotUnbalanced(t *testing.T) {
	balances := balancedFixture()
	balances[1].CreditMovements = dec("999")
	repo := &stubRepo{balances: balances}
	svc := NewService(repo, NewCache(nil, 0), nil, slog.Default())

	snapshot, err := svc.PersistSnapshot(context.Background(), testQuery(), "")
	var cerr *ConsistencyError
	require.True(t, errors.As(err, &cerr))
	require.Len(t, repo.saved, 1, "the broken state is archived for the audit trail")
	assert.False(t, snapshot.IsBalanced)
}

func TestServiceGetSnapshotMissing(t *testing.T) {
	svc := NewService(&stubRepo{}, NewCache(nil, 0), nil, slog.Default())
	_, err := svc.GetSnapshot(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrSnapshotNotFound)
}
