package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"QuantShield/internal/domain/models"
	domrepo "QuantShield/internal/domain/repository"
)

// Proc is the minimal downstream interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, q *models.Quote) error
}

// QuotePipeline sits between the market feed and the broker. It validates
// quotes, throttles per symbol and buffers when downstream is unavailable.
type QuotePipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.Quote
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-symbol last accepted time

	transform func(*models.Quote) *models.Quote
}

type PipelineOption func(*QuotePipeline)

// WithMaxRPS sets the max quotes per second per symbol.
func WithMaxRPS(n int) PipelineOption {
	return func(p *QuotePipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size used when downstream fails.
func WithBufferSize(n int) PipelineOption {
	return func(p *QuotePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithTransform sets a hook to normalize quote format before validation.
func WithTransform(fn func(*models.Quote) *models.Quote) PipelineOption {
	return func(p *QuotePipeline) { p.transform = fn }
}

// NewQuotePipeline creates a new pipeline.
func NewQuotePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *QuotePipeline {
	p := &QuotePipeline{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   20,
		bufSize:  1000,
		bufCh:    make(chan *models.Quote, 1000),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.Quote, p.bufSize)
	}
	return p
}

// Start launches background flushing of buffered quotes.
func (p *QuotePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case q := <-p.bufCh:
				if q == nil {
					continue
				}
				if err := p.proc.Process(ctx, q); err != nil {
					// exponential backoff with cap
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- q:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *QuotePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles and forwards a quote downstream, buffering
// on downstream errors.
func (p *QuotePipeline) Process(ctx context.Context, q *models.Quote) error {
	start := time.Now()
	if err := validateQuote(q); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		q = p.transform(q)
		if err := validateQuote(q); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	if !p.allow(q.Symbol, start) {
		// throttled; record and drop silently
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, q); err != nil {
		p.metrics.RecordError("pipeline_process")
		// buffer non-blocking
		select {
		case p.bufCh <- q:
			p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateQuote(q *models.Quote) error {
	if q == nil {
		return fmt.Errorf("quote nil")
	}
	if q.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if q.Timestamp <= 0 {
		return fmt.Errorf("timestamp invalid")
	}
	if q.Price < 0 || q.Volume < 0 {
		return fmt.Errorf("negative price/volume")
	}
	return nil
}

func (p *QuotePipeline) allow(symbol string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	last := p.lastSeen[symbol]
	if last.IsZero() {
		p.lastSeen[symbol] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[symbol] = now
	return true
}
