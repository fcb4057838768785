package metrics

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "collector_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	decodedPoints *prometheus.CounterVec
	decodeErrors  prometheus.Counter

	mqttConnected prometheus.Gauge
	mqttMessages  *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	consumerLag *prometheus.HistogramVec

	outboxPending  prometheus.Gauge
	storedMessages prometheus.Gauge
)

// Init registers collector metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total ingest requests by source and result",
			},
			[]string{"source", "result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source", "result"},
		)

		decodedPoints = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "decoded_points_total",
				Help: "Total decoded data points by value type",
			},
			[]string{"value_type"},
		)
		decodeErrors = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "decode_errors_total",
				Help: "Total payloads that failed to decode",
			},
		)

		mqttConnected = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "mqtt_connected",
				Help: "Whether the mqtt source is connected (1) or not (0)",
			},
		)
		mqttMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "mqtt_messages_total",
				Help: "Total mqtt messages by result",
			},
			[]string{"result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total point export operations by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Point export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		consumerLag = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "consumer_lag_seconds",
				Help:    "Delay between event occurrence and consumer handling",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
			},
			[]string{"consumer"},
		)

		outboxPending = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "outbox_pending",
				Help: "Pending outbox events",
			},
		)
		storedMessages = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "stored_messages",
				Help: "Stored message envelopes",
			},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			decodedPoints,
			decodeErrors,
			mqttConnected,
			mqttMessages,
			exportTotal,
			exportLatency,
			consumerLag,
			outboxPending,
			storedMessages,
		)

		if db != nil {
			go pollDBGauges(db, logger)
		}
	})
}

// ObserveIngest records ingest request duration and result for a source.
func ObserveIngest(source, result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(source, result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(source, result).Observe(duration.Seconds())
	}
}

// IncIngestError increments the ingest error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// AddDecodedPoints adds decoded points by value type.
func AddDecodedPoints(valueType string, count int) {
	if count <= 0 {
		return
	}
	if decodedPoints != nil {
		decodedPoints.WithLabelValues(valueType).Add(float64(count))
	}
}

// IncDecodeError increments the decode failure counter.
func IncDecodeError() {
	if decodeErrors != nil {
		decodeErrors.Inc()
	}
}

// SetMQTTConnected records mqtt source connectivity.
func SetMQTTConnected(connected bool) {
	if mqttConnected == nil {
		return
	}
	if connected {
		mqttConnected.Set(1)
	} else {
		mqttConnected.Set(0)
	}
}

// IncMQTTMessage increments the mqtt message counter.
func IncMQTTMessage(result string) {
	if result == "" {
		result = resultSuccess
	}
	if mqttMessages != nil {
		mqttMessages.WithLabelValues(result).Inc()
	}
}

// ObserveConsumerLag records how far behind a consumer handled an event.
func ObserveConsumerLag(consumer string, lag time.Duration) {
	if consumer == "" || lag < 0 {
		return
	}
	if consumerLag != nil {
		consumerLag.WithLabelValues(consumer).Observe(lag.Seconds())
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// pollDBGauges refreshes DB-backed gauges every 30 seconds.
func pollDBGauges(db *sql.DB, logger *log.Logger) {
	if logger == nil {
		logger = log.Default()
	}
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		var pending int64
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM event_outbox WHERE status = 'pending'`).Scan(&pending); err != nil {
			logger.Printf("metrics: outbox gauge: %v", err)
		} else if outboxPending != nil {
			outboxPending.Set(float64(pending))
		}
		var messages int64
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM iot_messages`).Scan(&messages); err != nil {
			logger.Printf("metrics: message gauge: %v", err)
		} else if storedMessages != nil {
			storedMessages.Set(float64(messages))
		}
		cancel()
	}
}
