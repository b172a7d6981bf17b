package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the service's Prometheus instruments. It satisfies
// app.Recorder and provides the HTTP middleware and /metrics handler.
type Collector struct {
	registry *prometheus.Registry

	assignments     *prometheus.CounterVec
	submissions     *prometheus.CounterVec
	pointsAwarded   prometheus.Counter
	answersIgnored  prometheus.Counter
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers all instruments on registry. A nil registry gets a fresh one.
func New(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	c := &Collector{
		registry: registry,
		assignments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_assignments_total",
				Help: "Assignments served, by whether a new set was minted",
			},
			[]string{"kind"},
		),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_submissions_total",
				Help: "Submissions by outcome",
			},
			[]string{"outcome"},
		),
		pointsAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_points_awarded_total",
			Help: "Points added to cumulative scores",
		}),
		answersIgnored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_answers_ignored_total",
			Help: "Answers ignored because the question was already answered",
		}),
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
	}
	registry.MustRegister(
		c.assignments,
		c.submissions,
		c.pointsAwarded,
		c.answersIgnored,
		c.requestCounter,
		c.requestDuration,
	)
	return c
}

func (c *Collector) AssignmentServed(minted bool) {
	kind := "reserved"
	if minted {
		kind = "minted"
	}
	c.assignments.WithLabelValues(kind).Inc()
}

func (c *Collector) SubmissionScored(delta, scored, ignored int) {
	c.submissions.WithLabelValues("accepted").Inc()
	c.pointsAwarded.Add(float64(delta))
	c.answersIgnored.Add(float64(ignored))
}

func (c *Collector) SubmissionRejected(reason string) {
	c.submissions.WithLabelValues(reason).Inc()
}

// Middleware records request count and latency per chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.requestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
		c.requestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
