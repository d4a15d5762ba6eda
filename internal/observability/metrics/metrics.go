package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	RenderReasonCreated   = "created"
	RenderReasonMissing   = "missing"
	RenderReasonCorrupt   = "corrupt"
	RenderReasonRequested = "requested"
)

// HTTPMetrics holds request level instruments.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// ReportMetrics tracks survey creation and report rendering.
type ReportMetrics struct {
	surveysCreated prometheus.Counter
	rendered       *prometheus.CounterVec
	renderFailures prometheus.Counter
	renderDuration prometheus.Histogram
}

func NewHTTPMetrics(registerer prometheus.Registerer) (*HTTPMetrics, error) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relevamientos_http_requests_total",
		Help: "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relevamientos_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	if err := register(registerer, requests, duration); err != nil {
		return nil, err
	}
	return &HTTPMetrics{requests: requests, duration: duration}, nil
}

func NewReportMetrics(registerer prometheus.Registerer) (*ReportMetrics, error) {
	surveysCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relevamientos_surveys_created_total",
		Help: "Surveys persisted through the form.",
	})
	rendered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relevamientos_reports_rendered_total",
		Help: "Reports written to disk by reason.",
	}, []string{"reason"})
	renderFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relevamientos_report_render_failures_total",
		Help: "Report renders that failed before the file was in place.",
	})
	renderDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "relevamientos_report_render_duration_seconds",
		Help:    "Time spent laying out and writing one report.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	if err := register(registerer, surveysCreated, rendered, renderFailures, renderDuration); err != nil {
		return nil, err
	}
	return &ReportMetrics{
		surveysCreated: surveysCreated,
		rendered:       rendered,
		renderFailures: renderFailures,
		renderDuration: renderDuration,
	}, nil
}

func (m *ReportMetrics) IncSurveyCreated() {
	if m == nil {
		return
	}
	m.surveysCreated.Inc()
}

func (m *ReportMetrics) ObserveRender(reason string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.renderDuration.Observe(duration.Seconds())
	if err != nil {
		m.renderFailures.Inc()
		return
	}
	m.rendered.WithLabelValues(strings.TrimSpace(reason)).Inc()
}

// GinMiddleware records request counts and latency per matched route.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

func register(registerer prometheus.Registerer, collectors ...prometheus.Collector) error {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	for _, collector := range collectors {
		if err := registerer.Register(collector); err != nil {
			return err
		}
	}
	return nil
}
