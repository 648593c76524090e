package kafka

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// producerMetrics and consumerMetrics are nil when no registerer was configured.
type producerMetrics struct {
	messages *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newProducerMetrics(reg prometheus.Registerer) *producerMetrics {
	if reg == nil {
		return nil
	}
	f := promauto.With(reg)
	return &producerMetrics{
		messages: f.NewCounterVec(
			prometheus.CounterOpts{Name: "pulse_kafka_producer_messages_total", Help: "Messages published to Kafka"},
			[]string{"topic", "result"},
		),
		bytes: f.NewCounterVec(
			prometheus.CounterOpts{Name: "pulse_kafka_producer_bytes_total", Help: "Payload bytes published"},
			[]string{"topic", "compression"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{Name: "pulse_kafka_producer_publish_seconds", Help: "Publish latency", Buckets: prometheus.DefBuckets},
			[]string{"topic"},
		),
	}
}

func (m *producerMetrics) observe(topic, comp string, bytes int64, count int, dur time.Duration, err error) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(topic, resultLabel(err)).Add(float64(count))
	m.bytes.WithLabelValues(topic, comp).Add(float64(bytes))
	m.latency.WithLabelValues(topic).Observe(dur.Seconds())
}

type consumerMetrics struct {
	queueDepth *prometheus.GaugeVec
	handled    *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

func newConsumerMetrics(reg prometheus.Registerer) *consumerMetrics {
	if reg == nil {
		return nil
	}
	f := promauto.With(reg)
	return &consumerMetrics{
		queueDepth: f.NewGaugeVec(
			prometheus.GaugeOpts{Name: "pulse_kafka_consumer_queue_depth", Help: "Messages waiting in the consumer queue"},
			[]string{"topic"},
		),
		handled: f.NewCounterVec(
			prometheus.CounterOpts{Name: "pulse_kafka_consumer_messages_total", Help: "Messages handled by outcome"},
			[]string{"topic", "result"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{Name: "pulse_kafka_consumer_handle_seconds", Help: "Handling time per message", Buckets: prometheus.DefBuckets},
			[]string{"topic"},
		),
	}
}

func (m *consumerMetrics) depth(topic string, n int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(topic).Set(float64(n))
}

func (m *consumerMetrics) observe(topic, result string, dur time.Duration) {
	if m == nil {
		return
	}
	m.handled.WithLabelValues(topic, result).Inc()
	m.latency.WithLabelValues(topic).Observe(dur.Seconds())
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
