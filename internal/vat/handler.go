package vat

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atlas-erp/atlas-erp/internal/platform/httpx"
)

// Handler exposes the VAT reporting API.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger}
}

// MountRoutes attaches VAT routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/report", h.Report)
}

type reportWindow struct {
	from time.Time
	to   time.Time
}

func (h *Handler) parseWindow(r *http.Request) (reportWindow, error) {
	q := r.URL.Query()
	from, err := time.Parse("2006-01-02", q.Get("startDate"))
	if err != nil {
		return reportWindow{}, errors.New("startDate must be YYYY-MM-DD")
	}
	to, err := time.Parse("2006-01-02", q.Get("endDate"))
	if err != nil {
		return reportWindow{}, errors.New("endDate must be YYYY-MM-DD")
	}
	if to.Before(from) {
		return reportWindow{}, errors.New("endDate must not precede startDate")
	}
	return reportWindow{from: from, to: to}, nil
}

// reportFormats lists the output formats each report type supports. The
// zero-value format defaults per type below.
var reportFormats = map[string]map[string]bool{
	"summary":    {"json": true},
	"detailed":   {"json": true, "csv": true},
	"fta_format": {"xml": true},
}

// Report serves summary, detailed and fta_format report types. Detailed
// reports additionally support format=csv; fta_format is always XML.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	window, err := h.parseWindow(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	reportType := r.URL.Query().Get("type")
	if reportType == "" {
		reportType = "summary"
	}
	allowed, ok := reportFormats[reportType]
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "type must be one of summary, detailed, fta_format")
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		if reportType == "fta_format" {
			format = "xml"
		} else {
			format = "json"
		}
	}
	if !allowed[format] {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "format "+format+" is not supported for type "+reportType)
		return
	}

	switch reportType {
	case "summary":
		summary, err := h.service.Summary(r.Context(), window.from, window.to)
		if err != nil {
			h.respondError(w, "generate vat summary", err)
			return
		}
		httpx.JSON(w, http.StatusOK, summary)
	case "detailed":
		report, err := h.service.Detailed(r.Context(), window.from, window.to)
		if err != nil {
			h.respondError(w, "generate detailed vat report", err)
			return
		}
		if format == "csv" {
			w.Header().Set("Content-Type", "text/csv")
			w.Header().Set("Content-Disposition", `attachment; filename="vat_report_`+window.from.Format("2006-01")+`.csv"`)
			if err := WriteDetailedCSV(w, report); err != nil {
				h.logger.Error("stream vat csv", slog.Any("error", err))
			}
			return
		}
		httpx.JSON(w, http.StatusOK, report)
	case "fta_format":
		data, err := h.service.FTAExport(r.Context(), window.from, window.to)
		if err != nil {
			h.respondError(w, "generate fta export", err)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.Header().Set("Content-Disposition", `attachment; filename="vat_return_`+window.from.Format("2006-01")+`.xml"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, action string, err error) {
	var cerr *ComplianceFormatError
	if errors.As(err, &cerr) {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Compliance Export Invalid", cerr.Error())
		return
	}
	h.logger.Error(action, slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
