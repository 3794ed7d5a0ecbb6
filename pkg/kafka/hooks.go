package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// ConsumerHook observes and optionally rewrites messages around handler
// execution. A non-nil error from BeforeHandle skips the handler and sends
// the message down the error path (OnError, DLQ, commit).
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error)
	AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
	OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
}

// NoopHook passes everything through untouched.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	return ctx, km, data, nil
}

func (NoopHook) AfterHandle(context.Context, string, kafka.Message, []byte, error) {}

func (NoopHook) OnError(context.Context, string, kafka.Message, []byte, error) {}

type traceKey struct{}

// TracingHook copies the trace_id message header into the handler context
// so downstream logs can correlate a quote back to its producer.
type TracingHook struct{}

func (TracingHook) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	for _, h := range km.Headers {
		if h.Key == "trace_id" && len(h.Value) > 0 {
			ctx = context.WithValue(ctx, traceKey{}, string(h.Value))
			break
		}
	}
	return ctx, km, data, nil
}

func (TracingHook) AfterHandle(context.Context, string, kafka.Message, []byte, error) {}

func (TracingHook) OnError(context.Context, string, kafka.Message, []byte, error) {}

// TraceIDFrom returns the trace id stored by TracingHook, if any.
func TraceIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

// HookChain composes hooks. BeforeHandle threads context/message/data
// through in order; AfterHandle unwinds in reverse order. Hooks run
// panic-safe so a bad hook cannot take down the consumer.
type HookChain struct {
	hooks []ConsumerHook
}

// NewHookChain builds a chain, skipping nil entries.
func NewHookChain(hooks ...ConsumerHook) *HookChain {
	kept := make([]ConsumerHook, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			kept = append(kept, h)
		}
	}
	return &HookChain{hooks: kept}
}

func (c *HookChain) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	for _, h := range c.hooks {
		var err error
		ctx, km, data, err = safeBefore(h, ctx, topic, km, data)
		if err != nil {
			c.OnError(ctx, topic, km, data, err)
			return ctx, km, data, err
		}
	}
	return ctx, km, data, nil
}

func (c *HookChain) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	for i := len(c.hooks) - 1; i >= 0; i-- {
		h := c.hooks[i]
		func() {
			defer func() { _ = recover() }()
			h.AfterHandle(ctx, topic, km, data, err)
		}()
	}
}

func (c *HookChain) OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	for _, h := range c.hooks {
		func() {
			defer func() { _ = recover() }()
			h.OnError(ctx, topic, km, data, err)
		}()
	}
}

func safeBefore(h ConsumerHook, ctx context.Context, topic string, km kafka.Message, data []byte) (rctx context.Context, rkm kafka.Message, rdata []byte, err error) {
	rctx, rkm, rdata = ctx, km, data
	defer func() {
		if r := recover(); r != nil {
			rctx, rkm, rdata = ctx, km, data
			err = &HookPanicError{Value: r}
		}
	}()
	return h.BeforeHandle(ctx, topic, km, data)
}

// HookPanicError wraps a recovered panic from a hook.
type HookPanicError struct {
	Value interface{}
}

func (e *HookPanicError) Error() string { return "hook panic" }
