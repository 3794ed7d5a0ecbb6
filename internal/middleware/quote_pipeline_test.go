package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"QuantShield/internal/domain/models"
)

type recordingProc struct {
	mu     sync.Mutex
	quotes []*models.Quote
	err    error
}

func (r *recordingProc) Process(_ context.Context, q *models.Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.quotes = append(r.quotes, q)
	return nil
}

func (r *recordingProc) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.quotes)
}

type countingMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{errors: map[string]int{}}
}

func (m *countingMetrics) RecordMessageSent(string, string) {}
func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}
func (m *countingMetrics) RecordLastPrice(string, float64) {}
func (m *countingMetrics) RecordLatency(string, float64)   {}
func (m *countingMetrics) RecordPrediction(string)         {}
func (m *countingMetrics) RecordPanelRows(int)             {}

func (m *countingMetrics) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func validTestQuote() *models.Quote {
	return &models.Quote{Symbol: "AAPL", Timestamp: time.Now().Unix(), Price: 187.5, Volume: 10}
}

func TestPipelineForwardsValidQuote(t *testing.T) {
	proc := &recordingProc{}
	p := NewQuotePipeline(proc, newCountingMetrics())

	require.NoError(t, p.Process(context.Background(), validTestQuote()))
	require.Equal(t, 1, proc.count())
}

func TestPipelineRejectsInvalidQuotes(t *testing.T) {
	proc := &recordingProc{}
	m := newCountingMetrics()
	p := NewQuotePipeline(proc, m)

	require.Error(t, p.Process(context.Background(), nil))
	require.Error(t, p.Process(context.Background(), &models.Quote{Timestamp: 1, Price: 1}))
	require.Error(t, p.Process(context.Background(), &models.Quote{Symbol: "AAPL", Price: 1}))
	require.Error(t, p.Process(context.Background(), &models.Quote{Symbol: "AAPL", Timestamp: 1, Price: -1}))

	require.Equal(t, 0, proc.count())
	require.Equal(t, 4, m.count("pipeline_validate"))
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	proc := &recordingProc{}
	m := newCountingMetrics()
	p := NewQuotePipeline(proc, m, WithMaxRPS(1))

	// second quote for the same symbol inside the interval is dropped
	require.NoError(t, p.Process(context.Background(), validTestQuote()))
	require.NoError(t, p.Process(context.Background(), validTestQuote()))
	require.Equal(t, 1, proc.count())
	require.Equal(t, 1, m.count("pipeline_throttle"))

	// a different symbol passes
	other := validTestQuote()
	other.Symbol = "MSFT"
	require.NoError(t, p.Process(context.Background(), other))
	require.Equal(t, 2, proc.count())
}

func TestPipelineTransformHook(t *testing.T) {
	proc := &recordingProc{}
	p := NewQuotePipeline(proc, newCountingMetrics(), WithTransform(func(q *models.Quote) *models.Quote {
		q.Symbol = "BINANCE:" + q.Symbol
		return q
	}))

	require.NoError(t, p.Process(context.Background(), validTestQuote()))
	require.Equal(t, 1, proc.count())
	require.Equal(t, "BINANCE:AAPL", proc.quotes[0].Symbol)
}

func TestPipelineBuffersOnDownstreamError(t *testing.T) {
	proc := &recordingProc{err: errors.New("broker down")}
	m := newCountingMetrics()
	p := NewQuotePipeline(proc, m, WithBufferSize(4))

	require.Error(t, p.Process(context.Background(), validTestQuote()))
	require.Equal(t, 1, m.count("pipeline_process"))
	require.Len(t, p.bufCh, 1)
}

func TestPipelineFlushesBufferOnRecovery(t *testing.T) {
	proc := &recordingProc{err: errors.New("broker down")}
	p := NewQuotePipeline(proc, newCountingMetrics(), WithBufferSize(4))

	require.Error(t, p.Process(context.Background(), validTestQuote()))

	// downstream recovers; background flush drains the buffer
	proc.mu.Lock()
	proc.err = nil
	proc.mu.Unlock()

	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, func() bool { return proc.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}
