package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	info *asynq.TaskInfo
	err  error

	calls int
}

func (f *fakeEnqueuer) EnqueueStockIntegrity(ctx context.Context) (*asynq.TaskInfo, error) {
	f.calls++
	return f.info, f.err
}

func jobsRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/jobs", h.MountRoutes)
	return r
}

func TestEnqueueStockIntegrityAccepted(t *testing.T) {
	enqueuer := &fakeEnqueuer{info: &asynq.TaskInfo{ID: "task-123", Queue: QueueDefault}}
	router := jobsRouter(NewHandler(nil, enqueuer, discardLogger()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/stock-integrity", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 1, enqueuer.calls)
	require.JSONEq(t, `{"task_id":"task-123","queue":"default"}`, rec.Body.String())
}

func TestEnqueueStockIntegrityUnavailable(t *testing.T) {
	enqueuer := &fakeEnqueuer{err: errors.New("redis down")}
	router := jobsRouter(NewHandler(nil, enqueuer, discardLogger()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/stock-integrity", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEnqueueStockIntegrityWithoutClient(t *testing.T) {
	router := jobsRouter(NewHandler(nil, nil, discardLogger()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/stock-integrity", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestJobsHealthWithoutInspector(t *testing.T) {
	router := jobsRouter(NewHandler(nil, nil, discardLogger()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"queue":"default","pending":0}`, rec.Body.String())
}
