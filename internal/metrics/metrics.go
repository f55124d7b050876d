package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcf77_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dcf77_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	decodesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcf77_decodes_total",
			Help: "Telegram decode attempts by outcome (ok, bad_request, invalid_length, framing, parity, range).",
		},
		[]string{"outcome"},
	)

	receivers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dcf77_receivers",
		Help: "Number of receivers with an accepted telegram.",
	})

	lastDecodeAge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dcf77_last_decode_age_seconds",
		Help: "Seconds since the newest accepted telegram of any receiver.",
	})

	streamConnections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcf77_stream_connections_total",
			Help: "SSE stream connection events.",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dcf77_streams_active",
		Help: "Currently open SSE streams.",
	})

	streamMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dcf77_stream_messages_total",
		Help: "SSE data messages sent.",
	})

	streamBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dcf77_stream_bytes_total",
		Help: "Bytes written to SSE streams.",
	})

	streamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcf77_stream_errors_total",
			Help: "SSE stream errors by reason.",
		},
		[]string{"reason"},
	)

	snapshotWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcf77_snapshot_writes_total",
			Help: "Result store snapshot writes by result.",
		},
		[]string{"result"},
	)

	mqttPublishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcf77_mqtt_publishes_total",
			Help: "MQTT publishes of accepted telegrams by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		decodesTotal,
		receivers,
		lastDecodeAge,
		streamConnections,
		streamsActive,
		streamMessages,
		streamBytes,
		streamErrors,
		snapshotWrites,
		mqttPublishes,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncDecodes counts one decode attempt. outcome is "ok" or a rejection kind.
func IncDecodes(outcome string) {
	decodesTotal.WithLabelValues(outcome).Inc()
}

// SetReceivers sets the number of known receivers.
func SetReceivers(n int) {
	receivers.Set(float64(n))
}

// SetLastDecodeAge sets the age of the newest accepted telegram.
func SetLastDecodeAge(seconds float64) {
	lastDecodeAge.Set(seconds)
}

func IncStreamConnections(event string) {
	streamConnections.WithLabelValues(event).Inc()
}

func IncStreamsActive() {
	streamsActive.Inc()
}

func DecStreamsActive() {
	streamsActive.Dec()
}

func IncStreamMessages() {
	streamMessages.Inc()
}

func AddStreamBytes(n int64) {
	streamBytes.Add(float64(n))
}

func IncStreamErrors(reason string) {
	streamErrors.WithLabelValues(reason).Inc()
}

func IncSnapshotWrites(result string) {
	snapshotWrites.WithLabelValues(result).Inc()
}

func IncMQTTPublishes(result string) {
	mqttPublishes.WithLabelValues(result).Inc()
}

// knownRoutes are exact paths reported under their own label.
var knownRoutes = map[string]bool{
	"/healthz":               true,
	"/readyz":                true,
	"/metrics":               true,
	"/api/v1/decode":         true,
	"/api/v1/receivers":      true,
	"/api/v1/stream/results": true,
}

// normalizeRoute maps a request path to a bounded label set: receiver IDs
// collapse into one label and unknown paths into "other".
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/receivers/"); ok {
		if id, tail, found := strings.Cut(rest, "/"); found && id != "" && tail == "last" {
			return "/api/v1/receivers/{id}/last"
		}
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE working through the middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
