package marketplace

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunLister struct {
	runs []SyncRun
	err  error
}

func (f *fakeRunLister) Recent(_ context.Context, _ int64, _ int) ([]SyncRun, error) {
	return f.runs, f.err
}

func newHandlerRouter(lister RunLister, enqueue func(*http.Request, int64) (string, error)) http.Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), lister, enqueue)
	r := chi.NewRouter()
	r.Route("/sync", func(r chi.Router) {
		h.MountRoutes(r)
	})
	return r
}

func TestTriggerEnqueuesSync(t *testing.T) {
	var gotClient int64
	router := newHandlerRouter(&fakeRunLister{}, func(_ *http.Request, clientID int64) (string, error) {
		gotClient = clientID
		return "task-7", nil
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync/trigger?client_id=42", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, int64(42), gotClient)
	assert.Contains(t, rec.Body.String(), "task-7")
}

func TestTriggerRejectsBadClientID(t *testing.T) {
	router := newHandlerRouter(&fakeRunLister{}, nil)

	for _, raw := range []string{"", "0", "-3", "abc"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync/trigger?client_id="+raw, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "client_id=%q", raw)
	}
}

func TestTriggerWithoutWorker(t *testing.T) {
	router := newHandlerRouter(&fakeRunLister{}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync/trigger?client_id=1", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListRunsRendersHistory(t *testing.T) {
	finished := time.Date(2026, 3, 5, 4, 12, 0, 0, time.UTC)
	lister := &fakeRunLister{runs: []SyncRun{
		{
			ID:           uuid.New(),
			ClientID:     1,
			Source:       SourceOzon,
			Status:       RunSuccess,
			Products:     12,
			OrderLines:   40,
			Transactions: 90,
			StartedAt:    finished.Add(-2 * time.Minute),
			FinishedAt:   &finished,
		},
		{
			ID:        uuid.New(),
			ClientID:  1,
			Source:    SourceWildberries,
			Status:    RunFailed,
			Error:     "statistics api: status 429",
			StartedAt: finished.Add(-time.Minute),
		},
	}}
	router := newHandlerRouter(lister, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sync/runs?client_id=1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"count":2`)
	assert.Contains(t, body, SourceWildberries)
	assert.Contains(t, body, "status 429")
}

func TestListRunsPropagatesRepositoryError(t *testing.T) {
	router := newHandlerRouter(&fakeRunLister{err: errors.New("pool closed")}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sync/runs?client_id=1", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
