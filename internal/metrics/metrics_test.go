package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecordsServiceEvents(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.AssignmentServed(true)
	c.AssignmentServed(false)
	c.AssignmentServed(false)
	c.SubmissionScored(3, 4, 1)
	c.SubmissionRejected("unknown_question")

	require.Equal(t, 1.0, testutil.ToFloat64(c.assignments.WithLabelValues("minted")))
	require.Equal(t, 2.0, testutil.ToFloat64(c.assignments.WithLabelValues("reserved")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.submissions.WithLabelValues("accepted")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.submissions.WithLabelValues("unknown_question")))
	require.Equal(t, 3.0, testutil.ToFloat64(c.pointsAwarded))
	require.Equal(t, 1.0, testutil.ToFloat64(c.answersIgnored))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	c := New(nil)
	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/api/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", c.Handler())

	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/items/42")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusTeapot, resp.StatusCode)

	require.Equal(t, 1.0, testutil.ToFloat64(c.requestCounter.WithLabelValues("GET", "/api/items/{id}", "418")))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `http_requests_total{endpoint="/api/items/{id}",method="GET",status="418"} 1`)
}
