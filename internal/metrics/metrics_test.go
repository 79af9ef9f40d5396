package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorial-service/internal/entity"
	"tutorial-service/internal/metrics"
)

type staticCounts map[entity.Status]int

func (s staticCounts) CountByStatus() map[entity.Status]int { return s }

func TestTrackTasks_ReportsEveryStatus(t *testing.T) {
	m := metrics.New()
	m.TrackTasks(staticCounts{entity.StatusRunning: 2, entity.StatusCompleted: 5})

	expected := `
# HELP tutorial_tasks Tasks currently held by the registry.
# TYPE tutorial_tasks gauge
tutorial_tasks{status="completed"} 5
tutorial_tasks{status="error"} 0
tutorial_tasks{status="failed"} 0
tutorial_tasks{status="pending"} 0
tutorial_tasks{status="running"} 2
`
	err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "tutorial_tasks")
	require.NoError(t, err)
}

func TestObserveTransitionAndJob(t *testing.T) {
	m := metrics.New()

	m.ObserveTransition("", entity.Task{Type: "scene", Status: entity.StatusPending})
	m.ObserveTransition(entity.StatusPending, entity.Task{Type: "scene", Status: entity.StatusRunning})
	m.ObserveTransition(entity.StatusPending, entity.Task{Type: "scene", Status: entity.StatusRunning})
	m.ObserveJob("scene", entity.StatusCompleted, 2*time.Second)

	n, err := testutil.GatherAndCount(m.Registry(), "tutorial_task_transitions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = testutil.GatherAndCount(m.Registry(), "tutorial_job_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	m := metrics.New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/status/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	for _, id := range []string{"a", "b", "c"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/status/"+id, nil))
		require.Equal(t, http.StatusNotFound, rr.Code)
	}

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(),
		`tutorial_http_requests_total{code="404",method="GET",route="/api/status/{id}"} 3`)
}
