package reports

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atlas-erp/atlas-erp/internal/ledger"
	"github.com/atlas-erp/atlas-erp/internal/platform/httpx"
)

// Handler exposes the trial balance API.
type Handler struct {
	service      *Service
	logger       *slog.Logger
	baseCurrency string
}

// NewHandler constructs the reports HTTP handler.
func NewHandler(logger *slog.Logger, service *Service, baseCurrency string) *Handler {
	return &Handler{service: service, logger: logger, baseCurrency: baseCurrency}
}

// MountRoutes attaches report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/trial-balance", h.TrialBalance)
	r.Post("/trial-balance/snapshots", h.CreateSnapshot)
	r.Get("/trial-balance/snapshots/{id}", h.GetSnapshot)
}

func (h *Handler) parseQuery(r *http.Request) (BalanceQuery, error) {
	q := r.URL.Query()
	asOf := time.Now().UTC()
	if raw := q.Get("asOfDate"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return BalanceQuery{}, errors.New("asOfDate must be YYYY-MM-DD")
		}
		asOf = parsed
	}
	currency := q.Get("currency")
	if currency == "" {
		currency = h.baseCurrency
	}
	accountType := ledger.AccountType(q.Get("accountType"))
	if accountType != "" && !accountType.Valid() {
		return BalanceQuery{}, errors.New("accountType must be one of ASSET, LIABILITY, EQUITY, REVENUE, EXPENSE")
	}
	return BalanceQuery{
		AsOfDate:            asOf,
		Currency:            currency,
		IncludeZeroBalances: q.Get("includeZeroBalances") == "true",
		AccountType:         accountType,
	}, nil
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	query, err := h.parseQuery(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	report, err := h.service.Generate(r.Context(), query)
	if err != nil {
		var cerr *ConsistencyError
		if errors.As(err, &cerr) {
			httpx.Problem(w, http.StatusInternalServerError, "Ledger Out Of Balance", cerr.Error())
			return
		}
		h.logger.Error("generate trial balance", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="trial_balance_`+query.AsOfDate.Format("2006-01-02")+`.csv"`)
		if err := WriteTrialBalanceCSV(w, report); err != nil {
			h.logger.Error("stream trial balance csv", slog.Any("error", err))
		}
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	query, err := h.parseQuery(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	_ = httpx.DecodeJSON(r, &body)
	snapshot, err := h.service.PersistSnapshot(r.Context(), query, body.Name)
	if err != nil {
		var cerr *ConsistencyError
		if errors.As(err, &cerr) {
			// Snapshot persisted; the broken closure is reported loudly.
			httpx.Problem(w, http.StatusInternalServerError, "Ledger Out Of Balance", cerr.Error())
			return
		}
		h.logger.Error("persist trial balance snapshot", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":         snapshot.ID,
		"name":       snapshot.Name,
		"period":     snapshot.Period,
		"isBalanced": snapshot.IsBalanced,
	})
}

func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "id must be a UUID")
		return
	}
	snapshot, err := h.service.GetSnapshot(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrSnapshotNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get snapshot", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, snapshot)
}
