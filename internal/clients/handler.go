package clients

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sellerpulse/sellerpulse/internal/platform/httpx"
)

// Store is the persistence surface the handler needs.
type Store interface {
	Create(ctx context.Context, c *Client) error
	UpdateCredentials(ctx context.Context, c *Client) error
	Get(ctx context.Context, id int64) (*Client, error)
	ListActive(ctx context.Context) ([]Client, error)
}

// Handler manages seller accounts over HTTP. API keys are accepted on
// write and never echoed back; responses only say which marketplaces
// are configured.
type Handler struct {
	logger   *slog.Logger
	store    Store
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, store Store) *Handler {
	return &Handler{logger: logger, store: store, validate: validator.New()}
}

// MountRoutes registers client account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Put("/{clientID}", h.updateCredentials)
}

type clientRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=200"`
	OzonClientID string `json:"ozon_client_id"`
	OzonAPIKey   string `json:"ozon_api_key"`
	WBAPIKey     string `json:"wb_api_key"`
	Active       *bool  `json:"active"`
}

type clientResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Ozon    bool   `json:"ozon_configured"`
	WB      bool   `json:"wb_configured"`
	Active  bool   `json:"active"`
	Created string `json:"created_at"`
	Updated string `json:"updated_at"`
}

func toResponse(c Client) clientResponse {
	return clientResponse{
		ID:      c.ID,
		Name:    c.Name,
		Ozon:    c.HasOzon(),
		WB:      c.HasWildberries(),
		Active:  c.Active,
		Created: c.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		Updated: c.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	c := Client{
		Name:         req.Name,
		OzonClientID: req.OzonClientID,
		OzonAPIKey:   req.OzonAPIKey,
		WBAPIKey:     req.WBAPIKey,
		Active:       true,
	}
	if req.Active != nil {
		c.Active = *req.Active
	}
	if err := h.store.Create(r.Context(), &c); err != nil {
		if errors.Is(err, ErrDuplicateName) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
			return
		}
		h.logger.Error("create client", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(c))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.store.ListActive(r.Context())
	if err != nil {
		h.logger.Error("list clients", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]clientResponse, 0, len(accounts))
	for _, c := range accounts {
		out = append(out, toResponse(c))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out, "count": len(out)})
}

func (h *Handler) updateCredentials(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "clientID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "clientID must be a positive integer")
		return
	}

	var req clientRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	current, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("load client", slog.Int64("client_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	current.OzonClientID = req.OzonClientID
	current.OzonAPIKey = req.OzonAPIKey
	current.WBAPIKey = req.WBAPIKey
	if req.Active != nil {
		current.Active = *req.Active
	}
	if err := h.store.UpdateCredentials(r.Context(), current); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("update client", slog.Int64("client_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(*current))
}
