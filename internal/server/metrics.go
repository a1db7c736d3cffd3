package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docufuse_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docufuse_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Recognition metrics
	recognitionRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docufuse_recognition_requests_total",
			Help: "Total number of recognition requests",
		},
		[]string{"transport", "status"}, // transport: http, websocket
	)

	recognitionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docufuse_recognition_duration_seconds",
			Help:    "Recognition processing duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50, 100},
		},
		[]string{"method"}, // fusion method of the result
	)

	recognitionConfidence = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docufuse_recognition_confidence",
			Help:    "Overall confidence of recognition results",
			Buckets: []float64{0, 0.1, 0.25, 0.5, 0.7, 0.8, 0.9, 0.95, 1},
		},
		[]string{"method"},
	)

	recognitionTextLength = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docufuse_recognition_text_length",
			Help:    "Length of extracted text",
			Buckets: []float64{0, 10, 50, 100, 500, 1000, 5000, 10000, 50000},
		},
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docufuse_upload_size_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docufuse_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docufuse_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)

// observeResult records per-result metrics shared by HTTP and WebSocket
// transports.
func observeResult(transport, method string, confidence float64, textLen int, seconds float64) {
	recognitionRequestsTotal.WithLabelValues(transport, "success").Inc()
	recognitionDuration.WithLabelValues(method).Observe(seconds)
	recognitionConfidence.WithLabelValues(method).Observe(confidence)
	recognitionTextLength.Observe(float64(textLen))
}
