package catalog

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sellerpulse/sellerpulse/internal/platform/httpx"
)

// Handler exposes catalogue endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches catalogue routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/costs/upload", h.uploadCosts)
	r.Get("/products/uncosted", h.listUncosted)
	r.Get("/replenishment", h.replenishment)
}

const maxCostSheetBytes = 16 << 20

func (h *Handler) uploadCosts(w http.ResponseWriter, r *http.Request) {
	clientID, err := clientIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	if err := r.ParseMultipartForm(maxCostSheetBytes); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "expected multipart form with a file field")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	report, err := h.service.ImportCosts(r.Context(), clientID, file)
	if err != nil {
		h.logger.Error("cost upload failed", slog.Int64("client_id", clientID), slog.Any("error", err))
		httpx.Problem(w, http.StatusUnprocessableEntity, "Import Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) listUncosted(w http.ResponseWriter, r *http.Request) {
	clientID, err := clientIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	products, err := h.service.ListUncosted(r.Context(), clientID)
	if err != nil {
		h.logger.Error("list uncosted", slog.Int64("client_id", clientID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	type row struct {
		Article string `json:"article"`
		Barcode string `json:"barcode"`
		Name    string `json:"name"`
	}
	out := make([]row, 0, len(products))
	for _, p := range products {
		out = append(out, row{Article: p.Article, Barcode: p.Barcode, Name: p.Name})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out, "count": len(out)})
}

func (h *Handler) replenishment(w http.ResponseWriter, r *http.Request) {
	clientID, err := clientIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	advice, err := h.service.Replenishment(r.Context(), clientID)
	if err != nil {
		h.logger.Error("replenishment advice", slog.Int64("client_id", clientID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": advice})
}

func clientIDParam(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("client_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidClientID
	}
	return id, nil
}

var errInvalidClientID = fmt.Errorf("%w: client_id must be a positive integer", httpx.ErrValidation)
