package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"QuantShield/pkg/logger"
)

// QueueMode selects which halves of the queue a process runs.
type QueueMode int

const (
	ModeProducerConsumer QueueMode = iota
	ModeProducerOnly
	ModeConsumerOnly
)

func (m QueueMode) String() string {
	switch m {
	case ModeProducerOnly:
		return "producer-only"
	case ModeConsumerOnly:
		return "consumer-only"
	default:
		return "producer-consumer"
	}
}

// RedisQueue is a Redis-list job queue with delayed retries (sorted set)
// and a dead-letter list for jobs that exhaust their retries.
type RedisQueue struct {
	log    *logger.Logger
	cfg    *QueueConfig
	client *redis.Client
	mode   QueueMode
	prefix string

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool

	wg     sync.WaitGroup
	stop   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix overrides the Redis key prefix.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) { r.prefix = prefix }
}

// NewRedisQueue creates a queue. Workers and retry delay fall back to
// sane defaults when the config leaves them zero.
func NewRedisQueue(lgr *logger.Logger, cfg *QueueConfig, client *redis.Client, mode QueueMode, opts ...RedisQueueOption) *RedisQueue {
	if cfg == nil {
		cfg = &QueueConfig{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	rq := &RedisQueue{
		log:    lgr,
		cfg:    cfg,
		client: client,
		mode:   mode,
		prefix: "quantshield:queue",
		jobs:   make(map[string]Job),
		stop:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(rq)
	}
	return rq
}

// NewRedisPublisher creates and starts a producer-only queue.
func NewRedisPublisher(lgr *logger.Logger, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	q := NewRedisQueue(lgr, &QueueConfig{}, client, ModeProducerOnly, opts...)
	if err := q.Start(); err != nil {
		lgr.Error("redis publisher start failed", logger.Error(err))
	}
	return q
}

// NewRedisConsumer creates a consumer-only queue with jobs pre-registered.
func NewRedisConsumer(lgr *logger.Logger, cfg *QueueConfig, client *redis.Client, jobs []Job, opts ...RedisQueueOption) *RedisQueue {
	q := NewRedisQueue(lgr, cfg, client, ModeConsumerOnly, opts...)
	q.RegisterJobs(jobs)
	return q
}

// RegisterJobs registers multiple jobs.
func (r *RedisQueue) RegisterJobs(jobs []Job) {
	for _, job := range jobs {
		r.RegisterJob(job)
	}
}

// RegisterJob binds a job to its message type. Call before Start.
func (r *RedisQueue) RegisterJob(job Job) {
	if r.mode == ModeProducerOnly {
		r.log.Warn("job registration ignored in producer-only mode", logger.String("job", job.Name()))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.jobs[job.Type()]; dup {
		r.log.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
	r.log.Info("job registered", logger.String("job", job.Name()), logger.String("type", job.Type()))
}

// Start pings Redis and, for consumer modes, launches workers plus the
// retry mover.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("queue already running")
	}
	r.running = true
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		return fmt.Errorf("redis ping: %w", err)
	}

	if r.mode == ModeProducerOnly {
		r.log.Info("redis publisher started", logger.String("addr", r.client.Options().Addr))
		return nil
	}

	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.wg.Add(1)
	go r.retryMover()

	r.log.Info("redis queue started",
		logger.Int("workers", r.cfg.Workers),
		logger.String("addr", r.client.Options().Addr),
		logger.String("mode", r.mode.String()))
	return nil
}

// Stop cancels workers and waits for them within ctx.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	if r.mode != ModeProducerOnly {
		close(r.stop)
	}
	r.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(finished)
	}()
	select {
	case <-ctx.Done():
		r.log.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return fmt.Errorf("queue stop: %w", ctx.Err())
	case <-finished:
		r.log.Info("redis queue stopped")
		return nil
	}
}

// PublishMessage enqueues a payload for msgType. Implements QueueService.
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.running {
		return fmt.Errorf("queue not running")
	}
	if r.mode != ModeProducerOnly {
		if _, ok := r.jobs[msgType]; !ok {
			return fmt.Errorf("no job registered for type: %s", msgType)
		}
	}

	raw, err := json.Marshal(Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.queueKey(), raw).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

func (r *RedisQueue) worker(id int) {
	defer r.wg.Done()
	r.log.Info("queue worker started", logger.Int("worker_id", id))

	for {
		select {
		case <-r.stop:
			return
		case <-r.ctx.Done():
			return
		default:
			r.popAndRun()
		}
	}
}

func (r *RedisQueue) popAndRun() {
	ctx, cancel := context.WithTimeout(r.ctx, time.Second)
	defer cancel()

	result, err := r.client.BRPop(ctx, time.Second, r.queueKey()).Result()
	if err != nil {
		switch {
		case errors.Is(err, redis.Nil),
			errors.Is(err, context.DeadlineExceeded),
			errors.Is(err, context.Canceled):
		default:
			r.log.Error("brpop error", logger.Error(err))
			time.Sleep(time.Second)
		}
		return
	}
	if len(result) < 2 {
		return
	}

	var msg Message
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		r.log.Error("unmarshal message", logger.Error(err))
		return
	}
	r.run(msg)
}

func (r *RedisQueue) run(msg Message) {
	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.log.Error("no job for message", logger.String("type", msg.Type), logger.String("id", msg.ID))
		return
	}

	start := time.Now()
	err := job.Handle(r.ctx, normalizePayload(msg.Payload))
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		r.log.Warn("job cancelled",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return
	}

	r.log.Error("job failed",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	if msg.Attempts < r.cfg.RetryLimit {
		msg.Attempts++
		r.scheduleRetry(msg, time.Now().Add(r.cfg.RetryDelay))
	} else {
		r.log.Error("retries exhausted", logger.String("id", msg.ID), logger.String("job", job.Name()))
		r.deadLetter(msg)
	}
}

// normalizePayload turns decoded-JSON maps back into raw JSON so jobs can
// unmarshal into their own types via ParsePayload.
func normalizePayload(payload interface{}) interface{} {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return payload
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return payload
	}
	return json.RawMessage(raw)
}

func (r *RedisQueue) scheduleRetry(msg Message, at time.Time) {
	raw, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("marshal retry", logger.Error(err))
		return
	}
	err = r.client.ZAdd(context.Background(), r.retryKey(), redis.Z{
		Score:  float64(at.Unix()),
		Member: raw,
	}).Err()
	if err != nil {
		r.log.Error("zadd retry", logger.Error(err))
		return
	}
	r.log.Info("retry scheduled",
		logger.String("id", msg.ID),
		logger.Int("attempt", msg.Attempts),
		logger.String("retry_at", at.Format(time.RFC3339)))
}

func (r *RedisQueue) deadLetter(msg Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("marshal dlq", logger.Error(err))
		return
	}
	if err := r.client.LPush(context.Background(), r.dlqKey(), raw).Err(); err != nil {
		r.log.Error("lpush dlq", logger.Error(err))
	}
}

// retryMover periodically moves due retries from the sorted set back onto
// the main list.
func (r *RedisQueue) retryMover() {
	defer r.wg.Done()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.moveDueRetries()
		}
	}
}

func (r *RedisQueue) moveDueRetries() {
	due, err := r.client.ZRangeByScoreWithScores(r.ctx, r.retryKey(), &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(time.Now().Unix(), 10),
	}).Result()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.log.Error("fetch due retries", logger.Error(err))
		}
		return
	}

	for _, z := range due {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		raw := z.Member.(string)
		pipe := r.client.TxPipeline()
		pipe.ZRem(r.ctx, r.retryKey(), raw)
		pipe.LPush(r.ctx, r.queueKey(), raw)
		if _, err := pipe.Exec(r.ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.log.Error("requeue retry", logger.Error(err))
		}
	}
}

func (r *RedisQueue) queueKey() string { return r.prefix + ":messages" }
func (r *RedisQueue) retryKey() string { return r.prefix + ":retry" }
func (r *RedisQueue) dlqKey() string   { return r.prefix + ":dlq" }
