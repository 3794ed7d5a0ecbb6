package logger

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Publisher ships aggregated log batches somewhere durable, typically a
// Kafka topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

// CollectionConfig tunes error-log aggregation.
type CollectionConfig struct {
	TimeInterval   time.Duration // flush cadence
	CountThreshold int           // flush early once this many unique entries accumulate
	Topic          string
	Publisher      Publisher
}

// AggregatedLogEntry is one deduplicated error with its occurrence count.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector dedupes error logs by (level, message, fields, caller) and
// flushes batches on a timer or when the unique-entry threshold is hit. A
// feed outage that logs the same error thousands of times per minute
// leaves the topic with one entry and a count.
type LogCollector struct {
	cfg     *CollectionConfig
	mu      sync.Mutex
	entries map[string]*AggregatedLogEntry
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewLogCollector(cfg *CollectionConfig) *LogCollector {
	ctx, cancel := context.WithCancel(context.Background())
	c := &LogCollector{
		cfg:     cfg,
		entries: make(map[string]*AggregatedLogEntry),
		ctx:     ctx,
		cancel:  cancel,
	}
	c.wg.Add(1)
	go c.flushLoop()
	return c
}

func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := dedupeKey(level, message, fields, caller)

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		entry.Count++
		entry.LastSeen = now
	} else {
		c.entries[key] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}

	if len(c.entries) >= c.cfg.CountThreshold {
		c.flushLocked()
	}
}

func dedupeKey(level, message string, fields map[string]interface{}, caller string) string {
	raw, _ := json.Marshal(struct {
		Level   string                 `json:"level"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
		Caller  string                 `json:"caller"`
	}{level, message, fields, caller})
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%x", sum)
}

func (c *LogCollector) flushLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.flushLocked()
			c.mu.Unlock()
		case <-c.ctx.Done():
			c.mu.Lock()
			c.flushLocked()
			c.mu.Unlock()
			return
		}
	}
}

// flushLocked snapshots and resets the entry map, then publishes the
// batch off the lock. Caller must hold mu.
func (c *LogCollector) flushLocked() {
	if len(c.entries) == 0 {
		return
	}

	batch := make([]AggregatedLogEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		batch = append(batch, *entry)
	}
	c.entries = make(map[string]*AggregatedLogEntry)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch); err != nil {
			fmt.Printf("log collector: publish failed: %v\n", err)
		}
	}()
}

func (c *LogCollector) Close() {
	c.cancel()
	c.wg.Wait()
}
