package marketplace

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sellerpulse/sellerpulse/internal/platform/httpx"
)

// RunLister reads recent sync runs for diagnostics.
type RunLister interface {
	Recent(ctx context.Context, clientID int64, limit int) ([]SyncRun, error)
}

// Handler exposes sync endpoints: a manual trigger and run history.
type Handler struct {
	logger  *slog.Logger
	runs    RunLister
	enqueue func(r *http.Request, clientID int64) (string, error)
}

// NewHandler constructs the HTTP handler. enqueue may be nil when no
// worker is attached.
func NewHandler(logger *slog.Logger, runs RunLister, enqueue func(r *http.Request, clientID int64) (string, error)) *Handler {
	return &Handler{logger: logger, runs: runs, enqueue: enqueue}
}

// MountRoutes registers sync routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/trigger", h.trigger)
	r.Get("/runs", h.listRuns)
}

func (h *Handler) trigger(w http.ResponseWriter, r *http.Request) {
	clientID, err := strconv.ParseInt(r.URL.Query().Get("client_id"), 10, 64)
	if err != nil || clientID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "client_id must be a positive integer")
		return
	}
	if h.enqueue == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Worker Unavailable", "no sync worker is attached")
		return
	}

	taskID, err := h.enqueue(r, clientID)
	if err != nil {
		h.logger.Error("sync enqueue failed", slog.Int64("client_id", clientID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Enqueue Failed", "could not schedule sync")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"task_id": taskID, "client_id": clientID})
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	clientID, err := strconv.ParseInt(r.URL.Query().Get("client_id"), 10, 64)
	if err != nil || clientID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "client_id must be a positive integer")
		return
	}

	runs, err := h.runs.Recent(r.Context(), clientID, 50)
	if err != nil {
		h.logger.Error("list sync runs", slog.Int64("client_id", clientID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	type row struct {
		ID           string `json:"id"`
		Source       string `json:"source"`
		Status       string `json:"status"`
		Products     int64  `json:"products"`
		OrderLines   int64  `json:"order_lines"`
		Transactions int64  `json:"transactions"`
		Error        string `json:"error,omitempty"`
		StartedAt    string `json:"started_at"`
		FinishedAt   string `json:"finished_at,omitempty"`
	}
	out := make([]row, 0, len(runs))
	for _, run := range runs {
		item := row{
			ID:           run.ID.String(),
			Source:       run.Source,
			Status:       run.Status,
			Products:     run.Products,
			OrderLines:   run.OrderLines,
			Transactions: run.Transactions,
			Error:        run.Error,
			StartedAt:    run.StartedAt.Format(timeFormat),
		}
		if run.FinishedAt != nil {
			item.FinishedAt = run.FinishedAt.Format(timeFormat)
		}
		out = append(out, item)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out, "count": len(out)})
}

const timeFormat = "2006-01-02T15:04:05Z07:00"
