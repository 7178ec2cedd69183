package vat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	records []Record
	err     error
}

func (s *stubRepo) ListRecords(context.Context, time.Time, time.Time) ([]Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func quarterRecords() []Record {
	return []Record{
		record(RecordOutput, "10000", "0.05", "500", "Quarterly sales", "2025-01"),
		record(RecordInput, "4000", "0.05", "200", "Supplies", "2025-02"),
		record(RecordInput, "800", "0.05", "40", "Reverse charge hosting", "2025-03"),
	}
}

func newTestRouter(repo *stubRepo, filer FilerConfig) http.Handler {
	handler := NewHandler(slog.Default(), NewService(repo, filer, slog.Default()))
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func getReport(t *testing.T, router http.Handler, query string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/report?startDate=2025-01-01&endDate=2025-03-31"+query, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerReportSummary(t *testing.T) {
	router := newTestRouter(&stubRepo{records: quarterRecords()}, testFiler())

	rec := getReport(t, router, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.True(t, summary.OutputVAT.Equal(decimal.NewFromInt(500)))
	assert.True(t, summary.NetVATDue.Equal(decimal.NewFromInt(340)))
	assert.Len(t, summary.Monthly, 3)
}

func TestHandlerReportWindowValidation(t *testing.T) {
	router := newTestRouter(&stubRepo{}, testFiler())

	req := httptest.NewRequest(http.MethodGet, "/report", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing window must be rejected")

	req = httptest.NewRequest(http.MethodGet, "/report?startDate=2025-03-31&endDate=2025-01-01", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "inverted window must be rejected")
}

func TestHandlerReportDetailedCSV(t *testing.T) {
	router := newTestRouter(&stubRepo{records: quarterRecords()}, testFiler())

	rec := getReport(t, router, "&type=detailed&format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "vat_report_2025-01.csv")

	out := rec.Body.String()
	assert.Contains(t, out, "Quarterly sales")
	assert.Contains(t, out, "--- SUMMARY ---")
	assert.Contains(t, out, "Net VAT Due,340.00")
}

func TestHandlerReportFTA(t *testing.T) {
	router := newTestRouter(&stubRepo{records: quarterRecords()}, testFiler())

	rec := getReport(t, router, "&type=fta_format")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))

	out := rec.Body.String()
	assert.True(t, strings.HasPrefix(out, "<?xml"))
	assert.Contains(t, out, "<TRN>100123456700003</TRN>")
	assert.Contains(t, out, "<NetVATDue>340.00</NetVATDue>")
	require.NoError(t, ValidateFTAReturn(rec.Body.Bytes()))
}

func TestHandlerReportFTARejectsBadFiler(t *testing.T) {
	filer := testFiler()
	filer.TRN = "12345678901234" // 14 digits
	router := newTestRouter(&stubRepo{records: quarterRecords()}, filer)

	rec := getReport(t, router, "&type=fta_format")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "invalid export must not be delivered")
}

func TestHandlerReportRejectsUnknownType(t *testing.T) {
	router := newTestRouter(&stubRepo{}, testFiler())
	rec := getReport(t, router, "&type=quarterly")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerReportRejectsUnsupportedFormat(t *testing.T) {
	router := newTestRouter(&stubRepo{records: quarterRecords()}, testFiler())

	for _, query := range []string{
		"&format=csv",
		"&format=xml",
		"&type=detailed&format=xml",
		"&type=fta_format&format=json",
	} {
		rec := getReport(t, router, query)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "query %q", query)
	}

	rec := getReport(t, router, "&format=json")
	assert.Equal(t, http.StatusOK, rec.Code, "explicit json stays supported for summary")
}
