package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	mid "github.com/Altav1sta/stocks-checker/internal/middleware"
	"github.com/Altav1sta/stocks-checker/internal/usecase"
	"github.com/Altav1sta/stocks-checker/pkg/config"
	xhttp "github.com/Altav1sta/stocks-checker/pkg/http"
	pkgkafka "github.com/Altav1sta/stocks-checker/pkg/kafka"
	applogger "github.com/Altav1sta/stocks-checker/pkg/logger"
)

// Broadcaster is the chat-facing surface of the app: plain text broadcasts
// plus the registration poller lifecycle. Nil when signals go to Kafka only.
type Broadcaster interface {
	Broadcast(ctx context.Context, text string) error
	StartUpdatesPoller(ctx context.Context)
	StopUpdatesPoller()
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	ingester    *usecase.PrimaryFeedIngester
	scheduler   *usecase.SecondarySubscriptionScheduler
	pipeline    *mid.SignalPipeline
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	broadcaster Broadcaster
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	ingester *usecase.PrimaryFeedIngester,
	scheduler *usecase.SecondarySubscriptionScheduler,
	pipeline *mid.SignalPipeline,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
) *App {
	return &App{
		cfg:       cfg,
		ingester:  ingester,
		scheduler: scheduler,
		pipeline:  pipeline,
		consumer:  consumer,
		kh:        kh,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// SetBroadcaster allows DI to inject the chat broadcaster.
func (a *App) SetBroadcaster(b Broadcaster) { a.broadcaster = b }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l, _ := applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Pipeline first so signals produced during warmup are not lost
	a.pipeline.Start(ctx)

	if err := a.ingester.Start(ctx); err != nil {
		l.Error("ingester start error", applogger.Error(err))
		return err
	}
	l.Info("primary ingester started")

	if err := a.scheduler.Start(ctx); err != nil {
		l.Error("scheduler start error", applogger.Error(err))
		_ = a.ingester.Stop()
		return err
	}
	l.Info("secondary scheduler started",
		applogger.Int("max_channels", a.cfg.Secondary.MaxChannels),
		applogger.Duration("poll_interval", a.cfg.Secondary.PollInterval),
	)

	if a.broadcaster != nil {
		a.broadcaster.StartUpdatesPoller(ctx)
		if err := a.broadcaster.Broadcast(ctx, "Bot started. Watching for level signals."); err != nil {
			l.Warn("startup broadcast failed", applogger.Error(err))
		}
	}

	// Start consumer if configured (Kafka backend relaying to chats)
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
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
	return a.shutdown(ctx, l)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context, l *applogger.Logger) error {
	if a.broadcaster != nil {
		if err := a.broadcaster.Broadcast(ctx, "Bot stopping."); err != nil {
			l.Warn("shutdown broadcast failed", applogger.Error(err))
		}
		a.broadcaster.StopUpdatesPoller()
	}

	if err := a.scheduler.Stop(); err != nil {
		l.Warn("scheduler stop error", applogger.Error(err))
	}
	if err := a.ingester.Stop(); err != nil {
		l.Warn("ingester stop error", applogger.Error(err))
	}
	a.pipeline.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
