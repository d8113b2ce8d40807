package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	messagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socrates_bot_messages_received_total",
		Help: "Total number of messages received",
	}, []string{"modality"})

	messagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socrates_bot_messages_processed_total",
		Help: "Total number of messages processed",
	}, []string{"status"})

	commandsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socrates_bot_commands_executed_total",
		Help: "Total number of commands executed",
	}, []string{"command"})

	aiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "socrates_bot_ai_request_duration_seconds",
		Help:    "Duration of AI requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})

	rateLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socrates_bot_rate_limit_rejections_total",
		Help: "Total number of requests rejected by the cooldown gate",
	})

	broadcastDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socrates_bot_broadcast_deliveries_total",
		Help: "Total number of broadcast deliveries",
	}, []string{"status"})

	ratingsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socrates_bot_ratings_recorded_total",
		Help: "Total number of answer ratings recorded",
	}, []string{"value"})

	storageOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socrates_bot_storage_operations_total",
		Help: "Total number of storage operations",
	}, []string{"operation", "status"})
)

// Metrics records bot-level metrics.
type Metrics struct{}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordMessageReceived(modality string) {
	messagesReceived.WithLabelValues(modality).Inc()
}

func (m *Metrics) RecordMessageProcessed(status string) {
	messagesProcessed.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordCommandExecuted(command string) {
	commandsExecuted.WithLabelValues(command).Inc()
}

func (m *Metrics) RecordAIRequest(operation, status string, duration time.Duration) {
	aiRequestDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

func (m *Metrics) RecordRateLimitRejection() {
	rateLimitRejections.Inc()
}

func (m *Metrics) RecordBroadcastResult(sent, failed int) {
	broadcastDeliveries.WithLabelValues("sent").Add(float64(sent))
	broadcastDeliveries.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) RecordRating(value string) {
	ratingsRecorded.WithLabelValues(value).Inc()
}

func (m *Metrics) RecordStorageOperation(operation, status string) {
	storageOperations.WithLabelValues(operation, status).Inc()
}

// StartMetricsServer serves /metrics and /health.
func StartMetricsServer(port int, path string) error {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}
