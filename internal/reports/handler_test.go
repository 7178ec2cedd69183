package reports

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(repo *stubRepo) http.Handler {
	svc := NewService(repo, NewCache(nil, 0), nil, slog.Default())
	handler := NewHandler(slog.Default(), svc, "AED")
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerTrialBalance(t *testing.T) {
	router := newTestRouter(&stubRepo{balances: balancedFixture()})

	rec := get(t, router, "/trial-balance?asOfDate=2025-06-30")
	require.Equal(t, http.StatusOK, rec.Code)

	var report TrialBalance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "AED", report.Currency, "base currency is the default")
	assert.Len(t, report.Rows, 2)
	assert.True(t, report.Summary.IsBalanced)
}

func TestHandlerTrialBalanceCSV(t *testing.T) {
	router := newTestRouter(&stubRepo{balances: balancedFixture()})

	rec := get(t, router, "/trial-balance?asOfDate=2025-06-30&format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "trial_balance_2025-06-30.csv")

	out := rec.Body.String()
	assert.True(t, strings.HasPrefix(out, "# Trial Balance | Currency: AED"))
	assert.Contains(t, out, "--- SUMMARY ---")
	assert.Contains(t, out, "Is Balanced,true")
}

func TestHandlerTrialBalanceBadQuery(t *testing.T) {
	router := newTestRouter(&stubRepo{})

	rec := get(t, router, "/trial-balance?asOfDate=June")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, router, "/trial-balance?accountType=PAYABLE")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerTrialBalanceUnbalanced(t *testing.T) {
	balances := balancedFixture()
	balances[1].CreditMovements = dec("999")
	router := newTestRouter(&stubRepo{balances: balances})

	rec := get(t, router, "/trial-balance?asOfDate=2025-06-30")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var problem struct {
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "Ledger Out Of Balance", problem.Title)
}

func TestHandlerCreateAndGetSnapshot(t *testing.T) {
	repo := &stubRepo{balances: balancedFixture()}
	router := newTestRouter(repo)

	req := httptest.NewRequest(http.MethodPost, "/trial-balance/snapshots?asOfDate=2025-06-30",
		strings.NewReader(`{"name": "June close"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		ID         uuid.UUID `json:"id"`
		Name       string    `json:"name"`
		IsBalanced bool      `json:"isBalanced"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "June close", created.Name)
	assert.True(t, created.IsBalanced)

	rec = get(t, router, "/trial-balance/snapshots/"+created.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, created.ID, snapshot.ID)
}

func TestHandlerGetSnapshotNotFound(t *testing.T) {
	router := newTestRouter(&stubRepo{})

	rec := get(t, router, "/trial-balance/snapshots/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, router, "/trial-balance/snapshots/close-2025")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
