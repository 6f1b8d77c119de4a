package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	asksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlqa_asks_total",
			Help: "Total number of questions handled, by outcome code",
		},
		[]string{"outcome"},
	)

	askDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlqa_ask_duration_seconds",
			Help:    "Question handling duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"outcome"},
	)

	agentSteps = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlqa_agent_steps",
			Help:    "Number of trace steps produced per question",
			Buckets: []float64{1, 2, 4, 6, 8, 12, 16, 24, 32},
		},
	)

	chartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlqa_charts_total",
			Help: "Visualization requests by extracted chart kind (none when nothing matched)",
		},
		[]string{"kind"},
	)

	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlqa_llm_calls_total",
			Help: "Total number of LLM calls",
		},
		[]string{"model", "status"},
	)

	toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlqa_tool_calls_total",
			Help: "Total number of SQL tool invocations",
		},
		[]string{"tool", "status"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlqa_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlqa_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// RecordAsk records the outcome of a question. outcome is "ok" or an error code.
func RecordAsk(outcome string, d time.Duration) {
	asksTotal.WithLabelValues(outcome).Inc()
	askDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func ObserveSteps(n int) {
	agentSteps.Observe(float64(n))
}

// RecordChart counts a visualization request; kind is empty when no chart was found.
func RecordChart(kind string) {
	if kind == "" {
		kind = "none"
	}
	chartsTotal.WithLabelValues(kind).Inc()
}

func RecordLLMCall(model string, err error) {
	llmCallsTotal.WithLabelValues(model, callStatus(err)).Inc()
}

func RecordToolCall(tool string, err error) {
	toolCallsTotal.WithLabelValues(tool, callStatus(err)).Inc()
}

func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler exposes the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

func callStatus(err error) string {
	if err == nil {
		return "ok"
	}
	var sc httpStatusCoder
	if errors.As(err, &sc) {
		return strconv.Itoa(sc.HTTPStatusCode())
	}
	return "error"
}
