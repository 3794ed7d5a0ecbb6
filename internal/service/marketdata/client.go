package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"QuantShield/internal/domain/models"
	drepo "QuantShield/internal/domain/repository"
	"QuantShield/pkg/logger"
)

// Client implements a MarketStream backed by the upstream quote feed's
// WebSocket API.
type Client struct {
	apiKey         string
	websocketURL   string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	log *logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

// New creates a MarketStream for the given feed credentials and symbols.
func New(apiKey, websocketURL string, symbols []string, reconnectDelay, pingInterval time.Duration, log *logger.Logger) drepo.MarketStream {
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            log,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.log.Info("feed: connected", logger.String("url", c.websocketURL))
	return nil
}

// Subscribe subscribes to the configured symbols.
func (c *Client) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	conn, ok := c.conn, c.connected
	c.mu.Unlock()
	if conn == nil || !ok {
		return fmt.Errorf("feed not connected")
	}
	for _, s := range c.symbols {
		msg := map[string]string{"type": "subscribe", "symbol": s}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
		c.log.Debug("feed: subscribed", logger.String("symbol", s))
	}
	return nil
}

type feedQuote struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type feedMessage struct {
	Type string      `json:"type"`
	Data []feedQuote `json:"data"`
}

// Read streams Quote events and errors until ctx is done or the
// connection drops. Quotes are dropped on backpressure rather than
// blocking the read loop.
func (c *Client) Read(ctx context.Context) (<-chan *models.Quote, <-chan error) {
	quotes := make(chan *models.Quote, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.mu.Lock()
				conn := c.conn
				c.mu.Unlock()
				if conn != nil {
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(quotes)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				c.mu.Lock()
				conn := c.conn
				c.mu.Unlock()
				if conn == nil {
					errs <- fmt.Errorf("feed conn nil")
					return
				}
				_, b, err := conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("feed read: %w", err)
					return
				}
				var m feedMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-quote frames
					continue
				}
				if m.Type != "trade" {
					continue
				}
				for _, d := range m.Data {
					q := &models.Quote{Symbol: d.S, Timestamp: d.T / 1000, Price: d.P, Volume: d.V}
					select {
					case quotes <- q:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return quotes, errs
}

// Reconnect closes, waits the configured delay and re-establishes the
// connection plus subscriptions.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-time.After(c.reconnectDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
