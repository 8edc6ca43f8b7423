package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"a11y/internal/transform"
)

const namespace = "a11y"

// Collector owns a private registry so tests and multiple servers in one
// process never collide on the default one.
type Collector struct {
	registry *prometheus.Registry

	transformsTotal    *prometheus.CounterVec
	transformDuration  *prometheus.HistogramVec
	artifactBytes      *prometheus.CounterVec
	httpRequestsTotal  *prometheus.CounterVec
	httpRequestSeconds *prometheus.HistogramVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		transformsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transforms_total",
				Help:      "Transform executions by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		transformDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transform_duration_seconds",
				Help:      "Transform execution time including the remote call",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"kind"},
		),
		artifactBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "artifact_bytes_total",
				Help:      "Bytes written to the output store",
			},
			[]string{"kind"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestSeconds.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// Instrument wraps exec so every execution is counted and timed.
func (c *Collector) Instrument(exec transform.Executor) transform.Executor {
	return &instrumented{next: exec, collector: c}
}

type instrumented struct {
	next      transform.Executor
	collector *Collector
}

func (i *instrumented) Execute(ctx context.Context, req transform.Request) (*transform.Result, error) {
	start := time.Now()
	res, err := i.next.Execute(ctx, req)

	kind := string(req.Kind)
	i.collector.transformDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	i.collector.transformsTotal.WithLabelValues(kind, Outcome(err)).Inc()
	if err == nil && res != nil && res.Artifact != nil {
		i.collector.artifactBytes.WithLabelValues(kind).Add(float64(res.Artifact.Size))
	}

	return res, err
}

// Outcome maps an execution error to a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, transform.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, transform.ErrUnknownTransform):
		return "unknown_transform"
	case errors.Is(err, transform.ErrUnsupportedMedia), errors.Is(err, transform.ErrCodec):
		return "codec"
	case errors.Is(err, transform.ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, transform.ErrRemoteUnavailable):
		return "remote_unavailable"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
