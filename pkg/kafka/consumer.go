package kafka

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler consumes raw payloads from one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Consumer reads registered topics through a bounded worker pool.
// Handler failures are retried with jittered backoff; messages that keep
// failing go to the dead-letter topic so the partition can advance.
type Consumer struct {
	cfg      *ConsumerConfig
	readers  map[string]*kafka.Reader
	handlers map[string]MessageHandler
	queue    chan inflight
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	dlq      *kafka.Writer
	hook     ConsumerHook

	partMu    sync.Mutex
	partLocks map[partitionKey]*sync.Mutex
}

type inflight struct {
	topic string
	raw   kafka.Message
}

type partitionKey struct {
	topic     string
	partition int
}

// NewConsumer creates a consumer. At least one broker is required.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "quantshield",
		WorkerCount: 1,
		BufferSize:  10,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    10e3,
		MaxBytes:    10e6,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	c := &Consumer{
		cfg:       cfg,
		readers:   make(map[string]*kafka.Reader),
		handlers:  make(map[string]MessageHandler),
		queue:     make(chan inflight, cfg.BufferSize),
		done:      make(chan struct{}),
		partLocks: make(map[partitionKey]*sync.Mutex),
		hook:      NoopHook{},
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}

	consumerMetricsOnce.Do(registerConsumerMetrics)
	return c, nil
}

// RegisterHandler binds a handler to its topic. Call before Start.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	topic := h.Topic()
	if _, dup := c.handlers[topic]; dup {
		log.Printf("kafka consumer: duplicate handler for topic %s ignored", topic)
		return
	}
	c.handlers[topic] = h
}

// WithConsumerHook installs a lifecycle hook around message handling.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start spins up one reader per registered topic plus the worker pool.
func (c *Consumer) Start() error {
	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			Topic:    topic,
			GroupID:  c.cfg.GroupID,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
	}

	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.wg.Add(1)
		go c.work()
	}
	for topic, reader := range c.readers {
		c.wg.Add(1)
		go c.fetch(topic, reader)
	}

	log.Printf("kafka consumer: started topics=%d workers=%d", len(c.readers), c.cfg.WorkerCount)
	return nil
}

// Stop drains workers and closes readers. Safe to call more than once.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		close(c.done)
		close(c.queue)

		finished := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(finished)
		}()
		select {
		case <-ctx.Done():
			stopErr = fmt.Errorf("consumer stop: %w", ctx.Err())
		case <-finished:
		}

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				log.Printf("kafka consumer: close reader %s: %v", topic, err)
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				log.Printf("kafka consumer: close dlq writer: %v", err)
			}
		}
	})
	return stopErr
}

// fetch polls one reader and feeds the worker queue with backpressure.
func (c *Consumer) fetch(topic string, reader *kafka.Reader) {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		msg, err := reader.ReadMessage(ctx)
		cancel()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				log.Printf("kafka consumer: read %s: %v", topic, err)
			}
			continue
		}

		if !c.enqueue(topic, msg) {
			return
		}
	}
}

// enqueue blocks until the queue accepts the message or shutdown begins.
// Returns false on shutdown.
func (c *Consumer) enqueue(topic string, msg kafka.Message) bool {
	for {
		select {
		case c.queue <- inflight{topic: topic, raw: msg}:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(c.queue)))
			return true
		case <-c.done:
			return false
		default:
			// Nearly full queue means the handlers are behind; yield or
			// sleep instead of dropping.
			fullness := float64(len(c.queue)) / float64(cap(c.queue))
			consumerQueueFullness.WithLabelValues(topic).Set(fullness)
			if fullness > 0.8 {
				time.Sleep(10 * time.Millisecond)
			} else {
				runtime.Gosched()
			}
		}
	}
}

func (c *Consumer) work() {
	defer c.wg.Done()
	for msg := range c.queue {
		handler, ok := c.handlers[msg.topic]
		if !ok {
			continue
		}
		c.dispatch(handler, msg)
	}
}

// dispatch runs one message through the handler with retries, then either
// commits or dead-letters it. Per-partition locking keeps at most one
// message of a partition in flight so ordering survives the worker pool.
func (c *Consumer) dispatch(handler MessageHandler, msg inflight) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("kafka consumer: panic in handler for %s: %v", msg.topic, r)
		}
	}()

	lock := c.partitionLock(msg.topic, msg.raw.Partition)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	err := c.handleWithRetry(handler, msg)
	if err != nil {
		c.hook.OnError(context.Background(), msg.topic, msg.raw, msg.raw.Value, err)
		log.Printf("kafka consumer: giving up on message from %s: %v", msg.topic, err)
		c.deadLetter(handler.Topic(), msg.raw.Value)
	}

	// Commit on success, or after dead-lettering so a poison message
	// cannot wedge the partition.
	if err == nil || c.dlq != nil {
		if reader := c.readers[msg.topic]; reader != nil {
			c.commit(reader, msg.raw)
		}
	}
	consumerHandleLatency.WithLabelValues(msg.topic).Observe(time.Since(start).Seconds())
}

func (c *Consumer) handleWithRetry(handler MessageHandler, msg inflight) error {
	var err error
	for attempt := 1; ; attempt++ {
		hctx, hmsg, hdata, berr := c.hook.BeforeHandle(context.Background(), msg.topic, msg.raw, msg.raw.Value)
		if berr != nil {
			return berr
		}

		err = handler.Handle(hctx, hdata)
		c.hook.AfterHandle(hctx, msg.topic, hmsg, hdata, err)
		if err == nil || attempt > c.cfg.RetryMax {
			return err
		}

		c.hook.OnError(hctx, msg.topic, hmsg, hdata, err)
		select {
		case <-time.After(jitteredBackoff(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)):
		case <-c.done:
			return err
		}
	}
}

func (c *Consumer) deadLetter(sourceTopic string, payload []byte) {
	if c.dlq == nil {
		return
	}
	err := c.dlq.WriteMessages(context.Background(), kafka.Message{
		Topic:   c.cfg.DLQTopic,
		Value:   payload,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: "source_topic", Value: []byte(sourceTopic)}},
	})
	if err != nil {
		log.Printf("kafka consumer: dlq write to %s: %v", c.cfg.DLQTopic, err)
	}
}

func (c *Consumer) commit(reader *kafka.Reader, msg kafka.Message) {
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = reader.CommitMessages(ctx, msg)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(jitteredBackoff(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	log.Printf("kafka consumer: commit failed: %v", err)
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	key := partitionKey{topic: topic, partition: partition}
	c.partMu.Lock()
	defer c.partMu.Unlock()
	lock, ok := c.partLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.partLocks[key] = lock
	}
	return lock
}

func jitteredBackoff(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	d := min * time.Duration(1<<uint(attempt-1))
	if d > max {
		d = max
	}
	// up to 50% jitter off the top
	return d - time.Duration(rand.Int63n(int64(d)/2))
}

var (
	consumerMetricsOnce   sync.Once
	consumerQueueDepth    *prometheus.GaugeVec
	consumerQueueFullness *prometheus.GaugeVec
	consumerHandleLatency *prometheus.HistogramVec
)

func registerConsumerMetrics() {
	consumerQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quantshield_kafka_consumer_queue_depth",
		Help: "Messages waiting in the consumer queue",
	}, []string{"topic"})
	consumerQueueFullness = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quantshield_kafka_consumer_queue_fullness",
		Help: "Consumer queue utilization (len/cap)",
	}, []string{"topic"})
	consumerHandleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "quantshield_kafka_consumer_handle_seconds",
		Help: "Per-message handling time including retries",
	}, []string{"topic"})
}
