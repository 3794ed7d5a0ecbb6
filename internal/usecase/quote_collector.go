package usecase

import (
	"context"

	"QuantShield/internal/domain/models"
	drepo "QuantShield/internal/domain/repository"
	mid "QuantShield/internal/middleware"
)

// QuoteCollector pulls quotes off the market stream and pushes them through
// the pipeline into the processor.
type QuoteCollector struct {
	stream  drepo.MarketStream
	proc    *QuoteProcessor
	metrics drepo.Metrics
	pipe    *mid.QuotePipeline
}

// NewQuoteCollector creates a new QuoteCollector instance.
func NewQuoteCollector(stream drepo.MarketStream, proc *QuoteProcessor, metrics drepo.Metrics, pipe *mid.QuotePipeline) *QuoteCollector {
	return &QuoteCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the market stream is connected.
func (c *QuoteCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *QuoteCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	qCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, qCh, errCh)
	return nil
}

func (c *QuoteCollector) consume(ctx context.Context, qCh <-chan *models.Quote, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok || err != nil {
				// The read loop is gone; reconnect and pick up fresh channels.
				c.metrics.RecordError("stream")
				if rerr := c.stream.Reconnect(ctx); rerr != nil {
					if ctx.Err() != nil {
						return
					}
					continue
				}
				qCh, errCh = c.stream.Read(ctx)
			}
		case q, ok := <-qCh:
			if !ok {
				qCh = nil // wait for the error branch to reconnect
				continue
			}
			if q == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, q)
			} else {
				_ = c.proc.Process(ctx, q)
			}
			c.metrics.RecordLastPrice(q.Symbol, q.Price)
		}
	}
}

func (c *QuoteCollector) Stop() error { return c.stream.Close() }

// Processor returns the underlying QuoteProcessor for lifecycle management.
func (c *QuoteCollector) Processor() *QuoteProcessor { return c.proc }

// Shutdown stops the pipeline and closes the stream.
func (c *QuoteCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
