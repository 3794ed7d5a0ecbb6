package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"QuantShield/internal/domain/models"
)

type fakePublisher struct {
	published []*models.Quote
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, q *models.Quote) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, q)
	return nil
}

func (f *fakePublisher) PublishBatch(_ context.Context, quotes []*models.Quote) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, quotes...)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type fakeStorage struct {
	stored []*models.Quote
	err    error
}

func (f *fakeStorage) Init(context.Context) error { return nil }

func (f *fakeStorage) Store(_ context.Context, q *models.Quote) error {
	if f.err != nil {
		return f.err
	}
	f.stored = append(f.stored, q)
	return nil
}

func (f *fakeStorage) StoreBatch(_ context.Context, quotes []*models.Quote) error {
	if f.err != nil {
		return f.err
	}
	f.stored = append(f.stored, quotes...)
	return nil
}

func (f *fakeStorage) Query(context.Context, string, time.Time, time.Time, int) ([]*models.Quote, error) {
	return nil, nil
}

func (f *fakeStorage) Health(context.Context) error { return nil }
func (f *fakeStorage) Close() error                 { return nil }

func quote(symbol string) *models.Quote {
	return &models.Quote{Symbol: symbol, Timestamp: time.Now().Unix(), Price: 100, Volume: 10}
}

func TestQuoteProcessorKafkaBackend(t *testing.T) {
	pub := &fakePublisher{}
	store := &fakeStorage{}
	m := newFakeMetrics()
	p := NewQuoteProcessor(pub, store, m, "kafka", 100, time.Second)

	require.NoError(t, p.Process(context.Background(), quote("AAPL")))
	require.Len(t, pub.published, 1)
	require.Empty(t, store.stored)
}

func TestQuoteProcessorClickHouseBackend(t *testing.T) {
	pub := &fakePublisher{}
	store := &fakeStorage{}
	p := NewQuoteProcessor(pub, store, newFakeMetrics(), "clickhouse", 100, time.Second)

	require.NoError(t, p.Process(context.Background(), quote("AAPL")))
	require.Len(t, store.stored, 1)
	require.Empty(t, pub.published)
}

func TestQuoteProcessorUnknownBackend(t *testing.T) {
	m := newFakeMetrics()
	p := NewQuoteProcessor(&fakePublisher{}, &fakeStorage{}, m, "postgres", 100, time.Second)

	err := p.Process(context.Background(), quote("AAPL"))
	require.Error(t, err)
	require.Equal(t, 1, m.errors["process"])
}

func TestQuoteProcessorNilQuote(t *testing.T) {
	p := NewQuoteProcessor(&fakePublisher{}, &fakeStorage{}, newFakeMetrics(), "kafka", 100, time.Second)
	require.Error(t, p.Process(context.Background(), nil))
}

func TestQuoteProcessorBatch(t *testing.T) {
	pub := &fakePublisher{}
	p := NewQuoteProcessor(pub, &fakeStorage{}, newFakeMetrics(), "kafka", 100, time.Second)

	quotes := []*models.Quote{quote("AAPL"), quote("MSFT")}
	require.NoError(t, p.ProcessBatch(context.Background(), quotes))
	require.Len(t, pub.published, 2)

	require.NoError(t, p.ProcessBatch(context.Background(), nil))
}

func TestKafkaQuotesHandler(t *testing.T) {
	store := &fakeStorage{}
	m := newFakeMetrics()
	h := NewKafkaQuotesHandler("quotes.raw", store, m)

	require.Equal(t, "quotes.raw", h.Topic())

	msg, err := json.Marshal(map[string]interface{}{
		"symbol": "AAPL",
		"t":      int64(1710000000000), // milliseconds
		"c":      187.5,
		"v":      12.0,
	})
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), msg))
	require.Len(t, store.stored, 1)
	require.Equal(t, int64(1710000000), store.stored[0].Timestamp)
	require.Equal(t, 187.5, store.stored[0].Price)
}

func TestKafkaQuotesHandlerBadPayload(t *testing.T) {
	m := newFakeMetrics()
	h := NewKafkaQuotesHandler("quotes.raw", &fakeStorage{}, m)

	require.Error(t, h.Handle(context.Background(), []byte("{not json")))
	require.Equal(t, 1, m.errors["consumer_unmarshal"])
}

func TestKafkaQuotesHandlerStoreError(t *testing.T) {
	m := newFakeMetrics()
	h := NewKafkaQuotesHandler("quotes.raw", &fakeStorage{err: errors.New("insert failed")}, m)

	msg := []byte(`{"symbol":"AAPL","t":1710000000,"c":187.5,"v":12}`)
	require.Error(t, h.Handle(context.Background(), msg))
	require.Equal(t, 1, m.errors["consumer_store"])
}
