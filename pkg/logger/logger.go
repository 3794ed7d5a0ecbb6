package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls level, encoding, and destination.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	Output     string // stdout, stderr, or a file path
	TimeFormat string
}

// Logger wraps zerolog with a field API and an optional error collector
// that batches repeated errors for out-of-band publishing.
type Logger struct {
	zl        zerolog.Logger
	collector *LogCollector
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer
	switch cfg.Output {
	case "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
	}

	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: cfg.TimeFormat}
	}

	zl := zerolog.New(out).With().Timestamp().CallerWithSkipFrameCount(3).Logger()
	return &Logger{zl: zl}, nil
}

func (l *Logger) Debug(msg string, fields ...Field) { l.emit(l.zl.Debug(), msg, fields) }

func (l *Logger) Info(msg string, fields ...Field) { l.emit(l.zl.Info(), msg, fields) }

func (l *Logger) Warn(msg string, fields ...Field) { l.emit(l.zl.Warn(), msg, fields) }

func (l *Logger) Error(msg string, fields ...Field) {
	l.emit(l.zl.Error(), msg, fields)
	l.collect("error", msg, fields)
}

func (l *Logger) emit(event *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		f.write(event)
	}
	event.Msg(msg)
}

// AddCollector attaches an error-aggregation collector, replacing any
// previous one.
func (l *Logger) AddCollector(cfg *CollectionConfig) {
	if l.collector != nil {
		l.collector.Close()
	}
	l.collector = NewLogCollector(cfg)
}

func (l *Logger) RemoveCollector() {
	if l.collector != nil {
		l.collector.Close()
		l.collector = nil
	}
}

func (l *Logger) collect(level, msg string, fields []Field) {
	if l.collector == nil {
		return
	}

	// Skip collect and the public method to land on the caller.
	caller := "unknown"
	if _, file, line, ok := runtime.Caller(2); ok {
		if i := strings.Index(file, "QuantShield"); i >= 0 {
			file = file[i+len("QuantShield"):]
		}
		caller = fmt.Sprintf("%s:%d", file, line)
	}

	kv := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		kv[f.Key] = f.Value
	}
	l.collector.AddLog(level, msg, kv, caller)
}

// Field is one structured log attribute. The write closure applies the
// typed zerolog call; Key/Value feed the collector.
type Field struct {
	Key   string
	Value interface{}
	write func(*zerolog.Event)
}

func String(key, value string) Field {
	return Field{Key: key, Value: value, write: func(e *zerolog.Event) { e.Str(key, value) }}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value, write: func(e *zerolog.Event) { e.Int(key, value) }}
}

func Int32(key string, value int32) Field { return Int(key, int(value)) }

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value, write: func(e *zerolog.Event) { e.Int64(key, value) }}
}

func Uint(key string, value uint) Field { return Int64(key, int64(value)) }

func Uint64(key string, value uint64) Field { return Int64(key, int64(value)) }

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value, write: func(e *zerolog.Event) { e.Bool(key, value) }}
}

func Error(err error) Field {
	var v interface{}
	if err != nil {
		v = err.Error()
	}
	return Field{Key: "error", Value: v, write: func(e *zerolog.Event) { e.Err(err) }}
}

func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value, write: func(e *zerolog.Event) { e.Interface(key, value) }}
}

// Duration logs as integer milliseconds.
func Duration(key string, value time.Duration) Field {
	return Int64(key, value.Milliseconds())
}

func Strings(key string, value []string) Field {
	return String(key, strings.Join(value, ", "))
}
