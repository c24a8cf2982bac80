package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/sessions/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/sessions/{sessionID}", "418"))

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/"+id, nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	}

	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/sessions/{sessionID}", "418"))
	assert.Equal(t, 2.0, after-before)
}

func TestPipelineCounters(t *testing.T) {
	before := testutil.ToFloat64(stageResults.WithLabelValues("transcribe", "error"))
	ObserveStage("transcribe", "error", 10*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(stageResults.WithLabelValues("transcribe", "error"))-before)

	SetQueueDepth(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(queueDepth))

	swept := testutil.ToFloat64(sweptRecords.WithLabelValues("responses"))
	Swept("responses", 0)
	Swept("responses", 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(sweptRecords.WithLabelValues("responses"))-swept)
}

func TestHandlerExposesMetrics(t *testing.T) {
	SessionFinished("completed")

	server := httptest.NewServer(Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "hirevoice_sessions_finished_total")
}
