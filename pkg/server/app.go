package server

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	pkgch "QuantShield/pkg/clickhouse"
	"QuantShield/pkg/config"
	xhttp "QuantShield/pkg/http"
	pkgkafka "QuantShield/pkg/kafka"
	applogger "QuantShield/pkg/logger"
	"QuantShield/pkg/queue"
)

// Collector is the ingestion lifecycle the app drives.
type Collector interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
	IsConnected() bool
}

// Closer releases processor-held resources on shutdown.
type Closer interface {
	Close()
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	collector   Collector
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	chClient    *pkgch.Client
	jobQueue    *queue.RedisQueue
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
	proc        Closer
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	collector Collector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	jobQueue *queue.RedisQueue,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		collector: collector,
		consumer:  consumer,
		kh:        kh,
		chClient:  chClient,
		jobQueue:  jobQueue,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// SetProcessorCloser registers processor resources to close on shutdown.
func (a *App) SetProcessorCloser(c Closer) { a.proc = c }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.log
	if l == nil {
		l, _ = applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRequestLogger(l),
	)

	// Start collector
	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				l.Error("collector error", applogger.Error(err))
			}
		}()
		l.Info("collector started", applogger.Strings("symbols", a.cfg.Feed.Symbols))
	}

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start job queue workers
	if a.jobQueue != nil {
		if err := a.jobQueue.Start(); err != nil {
			l.Error("job queue start error", applogger.Error(err))
		}
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l := a.log
	if l == nil {
		var err error
		l, err = applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
		if err != nil {
			log.Printf("failed to create logger: %v", err)
			return err
		}
	}
	l.Info("shutting down...")

	// Stop collector (pipeline + stream)
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			l.Warn("collector stop error", applogger.Error(err))
		}
	}

	// Shutdown HTTP server
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	// Stop job queue workers
	if a.jobQueue != nil {
		if err := a.jobQueue.Stop(shutdownCtx); err != nil {
			l.Warn("job queue stop error", applogger.Error(err))
		}
	}

	// Stop consumer
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Close processor resources (publisher/storage)
	if a.proc != nil {
		a.proc.Close()
	}

	// Close infrastructure clients
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
