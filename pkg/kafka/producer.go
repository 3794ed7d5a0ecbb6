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

// Message is one record to publish. Value may be []byte, string, or any
// JSON-marshalable type.
type Message struct {
	Key   []byte
	Value interface{}
}

// Producer wraps a kafka-go writer for the quote stream.
type Producer struct {
	writer *kafka.Writer
	comp   string
}

// NewProducer creates a producer. At least one broker is required.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := &ProducerConfig{
		RequiredAcks: -1,
		Compression:  "gzip",
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		BatchSize:    100,
		BatchBytes:   1 << 20,
		BatchTimeout: time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	var bal kafka.Balancer = &kafka.LeastBytes{}
	if cfg.HashByKey {
		bal = &kafka.Hash{}
	}

	producerMetricsOnce.Do(registerProducerMetrics)

	return &Producer{
		comp: cfg.Compression,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     bal,
			RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
			Compression:  compressionCodec(cfg.Compression),
			MaxAttempts:  cfg.MaxAttempts,
			WriteTimeout: cfg.WriteTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			BatchSize:    cfg.BatchSize,
			BatchBytes:   int64(cfg.BatchBytes),
			BatchTimeout: cfg.BatchTimeout,
			Async:        cfg.Async,
		},
	}, nil
}

// Publish sends one message to the topic.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	payload, err := encodeValue(value)
	if err != nil {
		return err
	}

	start := time.Now()
	werr := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: payload,
		Time:  start,
	})
	p.observe(topic, int64(len(payload)), 1, time.Since(start), werr)
	return werr
}

// PublishBatch sends multiple messages to the topic in one write.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	now := time.Now()
	msgs := make([]kafka.Message, 0, len(messages))
	var totalBytes int64
	for _, m := range messages {
		payload, err := encodeValue(m.Value)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Topic: topic,
			Key:   m.Key,
			Value: payload,
			Time:  now,
		})
		totalBytes += int64(len(payload))
	}

	werr := p.writer.WriteMessages(ctx, msgs...)
	p.observe(topic, totalBytes, len(msgs), time.Since(now), werr)
	return werr
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal value: %w", err)
		}
		return b, nil
	}
}

func compressionCodec(name string) kafka.Compression {
	switch name {
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Gzip
	}
}

var (
	producerMetricsOnce sync.Once
	producerPublished   *prometheus.CounterVec
	producerErrors      *prometheus.CounterVec
	producerBytes       *prometheus.CounterVec
	producerLatency     *prometheus.HistogramVec
)

func registerProducerMetrics() {
	producerPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quantshield_kafka_producer_messages_total",
		Help: "Messages published to Kafka",
	}, []string{"topic", "compression", "result"})
	producerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quantshield_kafka_producer_errors_total",
		Help: "Producer write errors",
	}, []string{"topic"})
	producerBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quantshield_kafka_producer_bytes_total",
		Help: "Payload bytes published",
	}, []string{"topic", "compression"})
	producerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quantshield_kafka_producer_publish_seconds",
		Help:    "Publish latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})
}

func (p *Producer) observe(topic string, bytes int64, count int, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		producerErrors.WithLabelValues(topic).Inc()
	}
	producerPublished.WithLabelValues(topic, p.comp, result).Add(float64(count))
	producerBytes.WithLabelValues(topic, p.comp).Add(float64(bytes))
	producerLatency.WithLabelValues(topic).Observe(dur.Seconds())
}
