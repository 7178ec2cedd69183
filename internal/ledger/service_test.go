package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-erp/atlas-erp/internal/shared"
)

// fakeRepo keeps the whole ledger in memory and simulates transactional
// rollback by discarding staged writes when the posting callback fails.
// The mutex serializes WithTx the way the sequence row lock serializes
// concurrent posting transactions.
type fakeRepo struct {
	mu           *sync.Mutex
	accounts     map[int64]Account
	entries      map[int64]JournalEntry
	transactions []Transaction
	sequences    map[string]int64
	sourceLinks  map[string]int64
	nextEntryID  int64
	nextLineID   int64
}

func newFakeRepo(accounts ...Account) *fakeRepo {
	repo := &fakeRepo{
		mu:          &sync.Mutex{},
		accounts:    make(map[int64]Account),
		entries:     make(map[int64]JournalEntry),
		sequences:   make(map[string]int64),
		sourceLinks: make(map[string]int64),
	}
	for _, a := range accounts {
		repo.accounts[a.ID] = a
	}
	return repo
}

func (r *fakeRepo) snapshot() fakeRepo {
	copied := *r
	copied.entries = make(map[int64]JournalEntry, len(r.entries))
	for k, v := range r.entries {
		copied.entries[k] = v
	}
	copied.transactions = append([]Transaction(nil), r.transactions...)
	copied.sequences = make(map[string]int64, len(r.sequences))
	for k, v := range r.sequences {
		copied.sequences[k] = v
	}
	copied.sourceLinks = make(map[string]int64, len(r.sourceLinks))
	for k, v := range r.sourceLinks {
		copied.sourceLinks[k] = v
	}
	return copied
}

func (r *fakeRepo) ListEntries(_ context.Context, _, _ int) ([]JournalEntry, error) {
	out := make([]JournalEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out, nil
}

func (r *fakeRepo) GetEntry(_ context.Context, id int64) (JournalEntry, error) {
	entry, ok := r.entries[id]
	if !ok {
		return JournalEntry{}, ErrEntryNotFound
	}
	return entry, nil
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	before := r.snapshot()
	if err := fn(ctx, (*fakeTx)(r)); err != nil {
		*r = before
		return err
	}
	return nil
}

type fakeTx fakeRepo

func (t *fakeTx) GetPostingAccounts(_ context.Context, ids []int64) (map[int64]Account, error) {
	out := make(map[int64]Account, len(ids))
	for _, id := range ids {
		if a, ok := t.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (t *fakeTx) NextSequence(_ context.Context, kind string, fiscalYear int) (int64, error) {
	key := fmt.Sprintf("%s-%d", kind, fiscalYear)
	t.sequences[key]++
	return t.sequences[key], nil
}

func (t *fakeTx) InsertEntry(_ context.Context, entry JournalEntry) (JournalEntry, error) {
	t.nextEntryID++
	entry.ID = t.nextEntryID
	t.entries[entry.ID] = entry
	return entry, nil
}

func (t *fakeTx) InsertLines(_ context.Context, entryID int64, lines []JournalEntryLine) ([]JournalEntryLine, error) {
	out := make([]JournalEntryLine, len(lines))
	for i, line := range lines {
		t.nextLineID++
		line.ID = t.nextLineID
		line.EntryID = entryID
		out[i] = line
	}
	entry := t.entries[entryID]
	entry.Lines = out
	t.entries[entryID] = entry
	return out, nil
}

func (t *fakeTx) InsertTransaction(_ context.Context, txn Transaction) (Transaction, error) {
	txn.ID = int64(len(t.transactions) + 1)
	t.transactions = append(t.transactions, txn)
	return txn, nil
}

func (t *fakeTx) LinkSource(_ context.Context, source EntrySource, sourceID uuid.UUID, entryID int64) error {
	key := string(source) + ":" + sourceID.String()
	if _, ok := t.sourceLinks[key]; ok {
		return ErrSourceAlreadyLinked
	}
	t.sourceLinks[key] = entryID
	return nil
}

func (t *fakeTx) GetEntryWithLines(_ context.Context, id int64) (JournalEntry, error) {
	entry, ok := t.entries[id]
	if !ok {
		return JournalEntry{}, ErrEntryNotFound
	}
	return entry, nil
}

func (t *fakeTx) UpdateEntryStatus(_ context.Context, id int64, status EntryStatus) error {
	entry, ok := t.entries[id]
	if !ok {
		return ErrEntryNotFound
	}
	entry.Status = status
	t.entries[id] = entry
	return nil
}

func (t *fakeTx) CompleteEntryTransactions(_ context.Context, entryID int64) error {
	for i, txn := range t.transactions {
		if txn.ReferenceType == "journal_entry" && txn.ReferenceID == entryID {
			t.transactions[i].Status = TransactionCompleted
		}
	}
	return nil
}

type recordingAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

type countingBump struct {
	mu    sync.Mutex
	bumps int
}

func (b *countingBump) Bump(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bumps++
	return nil
}

func testAccounts() []Account {
	return []Account{
		{ID: 1, Code: "1000", Name: "Cash", Type: AccountTypeAsset, IsActive: true, AllowPosting: true},
		{ID: 2, Code: "4000", Name: "Revenue", Type: AccountTypeRevenue, IsActive: true, AllowPosting: true},
		{ID: 3, Code: "1100", Name: "Receivables", Type: AccountTypeAsset, IsActive: false, AllowPosting: true},
		{ID: 4, Code: "1N00", Name: "Assets Header", Type: AccountTypeAsset, IsActive: true, AllowPosting: false},
	}
}

func newTestService(repo *fakeRepo) (*Service, *recordingAudit, *countingBump) {
	audit := &recordingAudit{}
	bump := &countingBump{}
	svc := NewService(repo, audit, bump, nil, slog.Default())
	return svc, audit, bump
}

func postingFixture() PostingInput {
	return PostingInput{
		Description:  "Cash sale",
		Date:         time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		Currency:     "AED",
		ExchangeRate: decimal.NewFromInt(1),
		Source:       SourceManual,
		CreatedBy:    1,
		Lines: []PostingLineInput{
			{AccountID: 1, Debit: decimal.NewFromInt(105)},
			{AccountID: 2, Credit: decimal.NewFromInt(105)},
		},
	}
}

func TestServicePostAssignsSequentialNumbers(t *testing.T) {
	repo := newFakeRepo(testAccounts()...)
	svc, audit, bump := newTestService(repo)

	first, err := svc.Post(context.Background(), postingFixture())
	require.NoError(t, err)
	second, err := svc.Post(context.Background(), postingFixture())
	require.NoError(t, err)

	assert.Equal(t, "JE-2025-000001", first.JournalNo)
	assert.Equal(t, "JE-2025-000002", second.JournalNo)
	assert.Equal(t, EntryStatusDraft, first.Status)
	require.Len(t, repo.transactions, 4)
	assert.Equal(t, "TXN-2025-000001", repo.transactions[0].TransactionNo)
	assert.Equal(t, "TXN-2025-000004", repo.transactions[3].TransactionNo)
	for _, txn := range repo.transactions {
		assert.Equal(t, TransactionPending, txn.Status)
	}
	assert.Len(t, audit.logs, 2)
	assert.Equal(t, 2, bump.bumps)
}

func TestServicePostConcurrentNumbersUnique(t *testing.T) {
	repo := newFakeRepo(testAccounts()...)
	svc, _, _ := newTestService(repo)

	const posters = 16
	numbers := make(chan string, posters)
	var wg sync.WaitGroup
	for i := 0; i < posters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, err := svc.Post(context.Background(), postingFixture())
			if err != nil {
				t.Error(err)
				return
			}
			numbers <- entry.JournalNo
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[string]bool, posters)
	for no := range numbers {
		assert.False(t, seen[no], "journal number %s assigned twice", no)
		seen[no] = true
	}
	require.Len(t, seen, posters)
	assert.Equal(t, int64(posters), repo.sequences["JE-2025"])
	assert.Equal(t, int64(2*posters), repo.sequences["TXN-2025"])

	txnNos := make(map[string]bool, len(repo.transactions))
	for _, txn := range repo.transactions {
		assert.False(t, txnNos[txn.TransactionNo], "transaction number %s assigned twice", txn.TransactionNo)
		txnNos[txn.TransactionNo] = true
	}
}

func TestServicePostRejectsUnbalancedWithoutWrites(t *testing.T) {
	repo := newFakeRepo(testAccounts()...)
	svc, _, bump := newTestService(repo)

	input := postingFixture()
	input.Lines[0].Debit = decimal.NewFromInt(100)
	input.Lines[1].Credit = decimal.NewFromInt(90)

	_, err := svc.Post(context.Background(), input)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Empty(t, repo.entries)
	assert.Empty(t, repo.transactions)
	assert.Zero(t, bump.bumps)
}

func TestServicePostRejectsBadAccounts(t *testing.T) {
	repo := newFakeRepo(testAccounts()...)
	svc, _, _ := newTestService(repo)

	for _, accountID := range []int64{3, 4, 99} {
		input := postingFixture()
		input.Lines[0].AccountID = accountID

		_, err := svc.Post(context.Background(), input)
		var rerr *ReferenceError
		require.True(t, errors.As(err, &rerr), "account %d", accountID)
		assert.Equal(t, accountID, rerr.AccountID)
	}
	assert.Empty(t, repo.entries, "rejected posts must leave no rows")
	assert.Empty(t, repo.sequences, "rejected posts must not consume sequences")
}

func TestServicePostConvertsToBaseCurrency(t *testing.T) {
	repo := newFakeRepo(testAccounts()...)
	svc, _, _ := newTestService(repo)

	input := postingFixture()
	input.Currency = "USD"
	input.ExchangeRate = decimal.RequireFromString("3.6725")

	entry, err := svc.Post(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, entry.Lines, 2)
	assert.Equal(t, "385.61", entry.Lines[0].BaseDebit.StringFixed(2))
	assert.Equal(t, "385.61", entry.Lines[1].BaseCredit.StringFixed(2))
}

func TestServicePostLinksSourceOnce(t *testing.T) {
	repo := newFakeRepo(testAccounts()...)
	svc, _, _ := newTestService(repo)

	input := postingFixture()
	input.Source = SourceRecurring
	input.SourceID = uuid.New()

	_, err := svc.Post(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), input)
	require.ErrorIs(t, err, ErrSourceAlreadyLinked)
	assert.Len(t, repo.entries, 1, "duplicate source post must roll back")
}

func TestServiceApproveCompletesTransactions(t *testing.T) {
	repo := newFakeRepo(testAccounts()...)
	svc, _, _ := newTestService(repo)

	entry, err := svc.Post(context.Background(), postingFixture())
	require.NoError(t, err)

	approved, err := svc.Approve(context.Background(), entry.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, EntryStatusPosted, approved.Status)
	for _, txn := range repo.transactions {
		assert.Equal(t, TransactionCompleted, txn.Status)
	}

	_, err = svc.Approve(context.Background(), entry.ID, 9)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestServiceReverseSwapsSides(t *testing.T) {
	repo := newFakeRepo(testAccounts()...)
	svc, _, _ := newTestService(repo)

	entry, err := svc.Post(context.Background(), postingFixture())
	require.NoError(t, err)
	_, err = svc.Reverse(context.Background(), ReverseInput{EntryID: entry.ID, ActorID: 9})
	require.ErrorIs(t, err, ErrInvalidStatus, "draft entries cannot be reversed")

	_, err = svc.Approve(context.Background(), entry.ID, 9)
	require.NoError(t, err)

	reversal, err := svc.Reverse(context.Background(), ReverseInput{EntryID: entry.ID, ActorID: 9})
	require.NoError(t, err)
	assert.Equal(t, EntryStatusPosted, reversal.Status)
	assert.Equal(t, entry.JournalNo, reversal.Reference)
	require.Len(t, reversal.Lines, 2)
	assert.True(t, reversal.Lines[0].Credit.Equal(decimal.NewFromInt(105)))
	assert.True(t, reversal.Lines[1].Debit.Equal(decimal.NewFromInt(105)))

	// The original is untouched; the offset is immediately effective.
	original, err := svc.Get(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, EntryStatusPosted, original.Status)
	completed := 0
	for _, txn := range repo.transactions {
		if txn.Status == TransactionCompleted {
			completed++
		}
	}
	assert.Equal(t, 4, completed)
}
