package ledger

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(repo *fakeRepo) http.Handler {
	svc := NewService(repo, nil, nil, nil, slog.Default())
	handler := NewHandler(slog.Default(), svc)
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func postJSON(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", "7")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const balancedBody = `{
	"description": "Cash sale",
	"transactionDate": "2025-06-15",
	"currency": "AED",
	"lineItems": [
		{"accountId": 1, "debitAmount": "105"},
		{"accountId": 2, "creditAmount": "105"}
	]
}`

func TestHandlerPostEntry(t *testing.T) {
	router := newTestRouter(newFakeRepo(testAccounts()...))

	rec := postJSON(t, router, "/journal-entries", balancedBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		JournalNo string `json:"journalNo"`
		Status    string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "JE-2025-000001", resp.JournalNo)
	assert.Equal(t, "DRAFT", resp.Status)
}

func TestHandlerPostEntryUnbalanced(t *testing.T) {
	router := newTestRouter(newFakeRepo(testAccounts()...))

	body := strings.Replace(balancedBody, `"creditAmount": "105"`, `"creditAmount": "90"`, 1)
	rec := postJSON(t, router, "/journal-entries", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var problem struct {
		Title  string      `json:"title"`
		Errors []LineError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "Validation Failed", problem.Title)
	assert.NotEmpty(t, problem.Errors)
}

func TestHandlerPostEntryUnknownAccount(t *testing.T) {
	router := newTestRouter(newFakeRepo(testAccounts()...))

	body := strings.Replace(balancedBody, `"accountId": 2`, `"accountId": 99`, 1)
	rec := postJSON(t, router, "/journal-entries", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandlerPostEntryMalformedJSON(t *testing.T) {
	router := newTestRouter(newFakeRepo(testAccounts()...))
	rec := postJSON(t, router, "/journal-entries", `{"description": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerApproveAndReverse(t *testing.T) {
	repo := newFakeRepo(testAccounts()...)
	router := newTestRouter(repo)

	rec := postJSON(t, router, "/journal-entries", balancedBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, router, "/journal-entries/1/approve", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, router, "/journal-entries/1/approve", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "second approve must be rejected")

	rec = postJSON(t, router, "/journal-entries/1/reverse", `{"description": "duplicate invoice"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var reversal JournalEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reversal))
	assert.Equal(t, EntryStatusPosted, reversal.Status)
}

func TestHandlerGetEntryNotFound(t *testing.T) {
	router := newTestRouter(newFakeRepo(testAccounts()...))
	req := httptest.NewRequest(http.MethodGet, "/journal-entries/42", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
