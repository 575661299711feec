package margin

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sellerpulse/sellerpulse/internal/platform/httpx"
)

// Handler exposes the margin rollup endpoints. The enqueue function is
// injected so the transport layer never depends on the worker wiring.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	enqueue   func(r *http.Request, clientID int64) (string, error)
}

// NewHandler constructs the HTTP handler. enqueue may be nil when no
// worker is attached; the rollup endpoint then responds 503.
func NewHandler(logger *slog.Logger, service *Service, enqueue func(r *http.Request, clientID int64) (string, error)) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
		enqueue:   enqueue,
	}
}

// MountRoutes registers margin routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/daily", h.dailyMetrics)
	r.Get("/summary", h.rangeSummary)
	r.Post("/rollup", h.triggerRollup)
}

type rangeQuery struct {
	ClientID int64  `validate:"required,gt=0"`
	From     string `validate:"required,datetime=2006-01-02"`
	To       string `validate:"required,datetime=2006-01-02"`
}

func (h *Handler) parseRange(r *http.Request) (int64, time.Time, time.Time, error) {
	q := r.URL.Query()
	clientID, _ := strconv.ParseInt(q.Get("client_id"), 10, 64)
	form := rangeQuery{ClientID: clientID, From: q.Get("from"), To: q.Get("to")}

	if err := h.validator.Struct(form); err != nil {
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok || len(fieldErrs) == 0 {
			return 0, time.Time{}, time.Time{}, err
		}
		return 0, time.Time{}, time.Time{}, fmt.Errorf("invalid query parameter %q", fieldErrs[0].Field())
	}

	from, _ := time.Parse("2006-01-02", form.From)
	to, _ := time.Parse("2006-01-02", form.To)
	return form.ClientID, from, to, nil
}

func (h *Handler) dailyMetrics(w http.ResponseWriter, r *http.Request) {
	clientID, from, to, err := h.parseRange(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	metrics, err := h.service.MetricsRange(r.Context(), clientID, from, to)
	if err != nil {
		h.logger.Error("metrics range query failed", slog.Int64("client_id", clientID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": metrics, "count": len(metrics)})
}

func (h *Handler) rangeSummary(w http.ResponseWriter, r *http.Request) {
	clientID, from, to, err := h.parseRange(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	metrics, err := h.service.MetricsRange(r.Context(), clientID, from, to)
	if err != nil {
		h.logger.Error("summary query failed", slog.Int64("client_id", clientID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, Summarize(clientID, from, to, metrics))
}

func (h *Handler) triggerRollup(w http.ResponseWriter, r *http.Request) {
	clientID, err := strconv.ParseInt(r.URL.Query().Get("client_id"), 10, 64)
	if err != nil || clientID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "client_id must be a positive integer")
		return
	}
	if h.enqueue == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Worker Unavailable", "no rollup worker is attached")
		return
	}

	taskID, err := h.enqueue(r, clientID)
	if err != nil {
		h.logger.Error("rollup enqueue failed", slog.Int64("client_id", clientID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Enqueue Failed", "could not schedule rollup")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"task_id": taskID, "client_id": clientID})
}
