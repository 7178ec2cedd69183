package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atlas-erp/atlas-erp/internal/platform/httpx"
)

// Handler exposes the ledger write API.
type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs the ledger HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		service:  service,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes attaches ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/journal-entries", h.PostEntry)
	r.Get("/journal-entries", h.ListEntries)
	r.Get("/journal-entries/{id}", h.GetEntry)
	r.Post("/journal-entries/{id}/approve", h.ApproveEntry)
	r.Post("/journal-entries/{id}/reverse", h.ReverseEntry)
}

func (h *Handler) PostEntry(w http.ResponseWriter, r *http.Request) {
	var req postEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input, err := req.toPostingInput()
	if err != nil {
		h.respondError(w, err)
		return
	}
	input.CreatedBy = actorID(r)
	entry, err := h.service.Post(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, postEntryResponse{
		JournalNo:   entry.JournalNo,
		TotalDebit:  entry.TotalDebit,
		TotalCredit: entry.TotalCredit,
		Status:      entry.Status,
	})
}

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	entries, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"journalEntries": entries})
}

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "id must be an integer")
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) ApproveEntry(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "id must be an integer")
		return
	}
	entry, err := h.service.Approve(r.Context(), id, actorID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) ReverseEntry(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "id must be an integer")
		return
	}
	var body struct {
		Description string `json:"description"`
	}
	_ = httpx.DecodeJSON(r, &body)
	entry, err := h.service.Reverse(r.Context(), ReverseInput{EntryID: id, ActorID: actorID(r), Description: body.Description})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	var rerr *ReferenceError
	switch {
	case errors.As(err, &verr):
		httpx.ProblemWithErrors(w, http.StatusBadRequest, "Validation Failed", "journal entry rejected, nothing was written", verr.Reasons)
	case errors.As(err, &rerr):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Account Reference", rerr.Error())
	case errors.Is(err, ErrSourceAlreadyLinked):
		httpx.Problem(w, http.StatusConflict, "Duplicate Source", err.Error())
	case errors.Is(err, ErrEntryNotFound), errors.Is(err, ErrAccountNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusConflict, "Invalid Status", err.Error())
	case IsTransient(err):
		httpx.Problem(w, http.StatusServiceUnavailable, "Storage Unavailable", "transient storage failure, retry with backoff")
	default:
		h.logger.Error("ledger request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func entryID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// actorID reads the acting user from the X-Actor-ID header. Authentication
// and tenant resolution happen upstream of this service.
func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}
