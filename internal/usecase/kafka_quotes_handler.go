package usecase

import (
	"context"
	"encoding/json"
	"time"

	"QuantShield/internal/domain/models"
	domrepo "QuantShield/internal/domain/repository"
	pkgkafka "QuantShield/pkg/kafka"
)

// KafkaQuotesHandler consumes quote messages and writes them to storage.
type KafkaQuotesHandler struct {
	topic   string
	storage domrepo.Storage
	metrics domrepo.Metrics
}

func NewKafkaQuotesHandler(topic string, storage domrepo.Storage, metrics domrepo.Metrics) *KafkaQuotesHandler {
	return &KafkaQuotesHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaQuotesHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, t, c, v}
func (h *KafkaQuotesHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol string  `json:"symbol"`
		T      int64   `json:"t"`
		C      float64 `json:"c"`
		V      float64 `json:"v"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	// E2E latency from event time to now (approx)
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.Unix(m.T, 0)).Seconds())

	start := time.Now()
	err := h.storage.Store(ctx, &models.Quote{
		Symbol:    m.Symbol,
		Timestamp: m.T,
		Price:     m.C,
		Volume:    m.V,
	})
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordMessageSent("clickhouse", m.Symbol)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaQuotesHandler)(nil)
