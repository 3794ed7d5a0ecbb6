package repository

import (
	"context"
	"time"

	"QuantShield/internal/domain/models"
)

// MarketStream is a live quote feed, typically a WebSocket subscription.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Quote, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher forwards quotes to the streaming backend.
type Publisher interface {
	Publish(ctx context.Context, q *models.Quote) error
	PublishBatch(ctx context.Context, quotes []*models.Quote) error
	Close() error
}

// Storage persists quotes and serves range queries over them.
type Storage interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, q *models.Quote) error
	StoreBatch(ctx context.Context, quotes []*models.Quote) error
	Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.Quote, error)
	Health(ctx context.Context) error
	Close() error
}

// Metrics records operational counters for the feed and the risk API.
type Metrics interface {
	RecordMessageSent(backend, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordPrediction(riskClass string)
	RecordPanelRows(n int)
}
