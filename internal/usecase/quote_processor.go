package usecase

import (
	"context"
	"fmt"
	"time"

	"QuantShield/internal/domain/models"
	drepo "QuantShield/internal/domain/repository"
)

// QuoteProcessor routes incoming quotes to the configured backend.
type QuoteProcessor struct {
	pub     drepo.Publisher
	store   drepo.Storage
	metrics drepo.Metrics
	backend string
	batchSz int
	batchTO time.Duration
}

// NewQuoteProcessor creates a new QuoteProcessor instance.
func NewQuoteProcessor(
	pub drepo.Publisher,
	store drepo.Storage,
	metrics drepo.Metrics,
	backend string,
	batchSz int,
	batchTO time.Duration,
) *QuoteProcessor {
	return &QuoteProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
		batchSz: batchSz,
		batchTO: batchTO,
	}
}

// Process routes a single quote to the configured backend.
func (p *QuoteProcessor) Process(ctx context.Context, q *models.Quote) error {
	if q == nil {
		return fmt.Errorf("quote is nil")
	}

	start := time.Now()
	var err error

	switch p.backend {
	case "kafka":
		err = p.pub.Publish(ctx, q)
	case "clickhouse":
		err = p.store.Store(ctx, q)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process quote: %w", err)
	}

	p.metrics.RecordMessageSent(p.backend, q.Symbol)
	p.metrics.RecordLatency("process", time.Since(start).Seconds())

	return nil
}

// ProcessBatch routes multiple quotes in a batch.
func (p *QuoteProcessor) ProcessBatch(ctx context.Context, quotes []*models.Quote) error {
	if len(quotes) == 0 {
		return nil
	}

	start := time.Now()
	var err error

	switch p.backend {
	case "kafka":
		err = p.pub.PublishBatch(ctx, quotes)
	case "clickhouse":
		err = p.store.StoreBatch(ctx, quotes)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	for _, q := range quotes {
		p.metrics.RecordMessageSent(p.backend, q.Symbol)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())

	return nil
}

// Close closes underlying resources if available.
func (p *QuoteProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
