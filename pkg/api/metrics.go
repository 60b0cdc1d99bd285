package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ssargent/hermesportal/pkg/codec"
	"github.com/ssargent/hermesportal/pkg/market"
	"github.com/ssargent/hermesportal/pkg/parser"
)

// Metrics holds the Prometheus collectors for one running pipeline. Each
// instance owns its registry so several can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	// Decode pipeline
	packetsTotal     *prometheus.CounterVec
	packetDuration   *prometheus.HistogramVec
	recordsTotal     *prometheus.CounterVec
	failuresTotal    *prometheus.CounterVec
	checksumMismatch *prometheus.CounterVec

	// HTTP request metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		packetsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hermes_packets_total",
				Help: "Total number of packets handed to the parser",
			},
			[]string{"feed"},
		),

		packetDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hermes_packet_decode_seconds",
				Help:    "Time spent decoding one packet",
				Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
			},
			[]string{"feed"},
		),

		recordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hermes_records_emitted_total",
				Help: "Total number of decoded lines emitted",
			},
			[]string{"code"},
		),

		failuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hermes_decode_failures_total",
				Help: "Total number of dropped packets, chunks or records",
			},
			[]string{"stage"},
		),

		checksumMismatch: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hermes_checksum_mismatch_total",
				Help: "Total number of CM records whose checksum or end marker did not match",
			},
			[]string{"feed"},
		),

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hermes_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hermes_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
	}
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// PacketDecoded implements parser.Observer.
func (m *Metrics) PacketDecoded(feed market.Feed, elapsed time.Duration) {
	m.packetsTotal.WithLabelValues(feed.String()).Inc()
	m.packetDuration.WithLabelValues(feed.String()).Observe(elapsed.Seconds())
}

// RecordsEmitted implements parser.Observer.
func (m *Metrics) RecordsEmitted(code uint16, n int) {
	m.recordsTotal.WithLabelValues(market.CodeString(code)).Add(float64(n))
}

// DecodeFailed implements parser.Observer.
func (m *Metrics) DecodeFailed(_ market.Feed, stage parser.Stage) {
	m.failuresTotal.WithLabelValues(string(stage)).Inc()
}

// ChecksumMismatch implements parser.Observer.
func (m *Metrics) ChecksumMismatch(feed market.Feed) {
	m.checksumMismatch.WithLabelValues(feed.String()).Inc()
}

// WatchCodec exposes the codec's own counters as
// hermes_codec_lookups_total{result} and hermes_codec_attempts_total.
func (m *Metrics) WatchCodec(c *codec.Codec) {
	factory := promauto.With(m.registry)
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name:        "hermes_codec_lookups_total",
		Help:        "Codec calls resolved from the cached locus",
		ConstLabels: prometheus.Labels{"result": "hit"},
	}, func() float64 { return float64(c.Stats().CacheHits) })
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name:        "hermes_codec_lookups_total",
		Help:        "Codec calls resolved from the cached locus",
		ConstLabels: prometheus.Labels{"result": "miss"},
	}, func() float64 { return float64(c.Stats().CacheMisses) })
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "hermes_codec_attempts_total",
		Help: "Individual decompression attempts",
	}, func() float64 { return float64(c.Stats().Attempts) })
}

// WatchDropped exposes a drop counter such as the diagnostics recorder's.
func (m *Metrics) WatchDropped(name string, fn func() uint64) {
	promauto.With(m.registry).NewCounterFunc(prometheus.CounterOpts{
		Name:        "hermes_dropped_total",
		Help:        "Items dropped by bounded queues",
		ConstLabels: prometheus.Labels{"queue": name},
	}, func() float64 { return float64(fn()) })
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(rw, r)
		m.RecordHTTPRequest(method, endpoint, rw.statusCode, time.Since(start))
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
