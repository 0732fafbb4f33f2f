// Package kafka publishes JSON events with segmentio/kafka-go.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes keyed messages to any topic through one shared writer.
type Producer struct {
	writer messageWriter
	codec  string
	now    func() time.Time
}

// NewProducer builds a writer hashing by key, so events of one key stay ordered.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            parseCompression(cfg.Compression),
		MaxAttempts:            cfg.MaxAttempts,
		WriteTimeout:           cfg.WriteTimeout,
		BatchTimeout:           cfg.BatchTimeout,
		Async:                  cfg.Async,
		AllowAutoTopicCreation: true,
	}
	return newProducer(w, cfg.Compression), nil
}

func newProducer(w messageWriter, codec string) *Producer {
	initProducerMetrics()
	return &Producer{writer: w, codec: codec, now: time.Now}
}

// Publish sends value to topic. Byte slices and strings are sent as is,
// anything else is JSON encoded.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	start := time.Now()
	v, err := encode(value)
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: v,
		Time:  p.now(),
	})
	observe(topic, p.codec, len(v), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func encode(value interface{}) ([]byte, error) {
	switch val := value.(type) {
	case []byte:
		return val, nil
	case string:
		return []byte(val), nil
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal value: %w", err)
		}
		return b, nil
	}
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "gzip":
		return kafka.Gzip
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	case "none", "":
		return 0
	default:
		return kafka.Snappy
	}
}

var (
	metricsOnce     sync.Once
	producedTotal   *prometheus.CounterVec
	producedBytes   *prometheus.CounterVec
	publishDuration *prometheus.HistogramVec
)

func initProducerMetrics() {
	metricsOnce.Do(func() {
		producedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "riskapprove_kafka_messages_total",
			Help: "Messages published to Kafka by result",
		}, []string{"topic", "compression", "result"})
		producedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "riskapprove_kafka_bytes_total",
			Help: "Payload bytes published to Kafka",
		}, []string{"topic"})
		publishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "riskapprove_kafka_publish_seconds",
			Help:    "Kafka publish latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"})
	})
}

func observe(topic, codec string, n int, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	producedTotal.WithLabelValues(topic, codec, result).Inc()
	producedBytes.WithLabelValues(topic).Add(float64(n))
	publishDuration.WithLabelValues(topic).Observe(d.Seconds())
}
