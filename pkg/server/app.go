package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"CoinPulse/internal/middleware"
	"CoinPulse/internal/usecase"
	"CoinPulse/pkg/config"
	xhttp "CoinPulse/pkg/http"
	pkgkafka "CoinPulse/pkg/kafka"
	applogger "CoinPulse/pkg/logger"
	"CoinPulse/pkg/queue"
)

// Closer is an infrastructure client released on shutdown, in reverse order
// of registration.
type Closer struct {
	Name string
	io.Closer
}

// CloseFunc adapts a plain func to io.Closer.
type CloseFunc func() error

func (f CloseFunc) Close() error { return f() }

// Components are the long running parts of the application. Everything but
// the HTTP server and the ingest gate is optional.
type Components struct {
	HTTP         *xhttp.Server
	Gate         *middleware.IngestGate
	Consumer     *pkgkafka.Consumer
	Observations pkgkafka.MessageHandler
	Poller       *usecase.FeedPoller
	Queue        *queue.RedisQueue
	Closers      []Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg  *config.Config
	log  *applogger.Logger
	comp Components
}

func New(cfg *config.Config, log *applogger.Logger, comp Components) *App {
	return &App{cfg: cfg, log: log, comp: comp}
}

// Run starts every component and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		a.shutdown()
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	a.shutdown()
	return nil
}

// Start launches the components in dependency order: the gate before
// anything that feeds it, the HTTP server last.
func (a *App) Start(ctx context.Context) error {
	a.comp.Gate.Start(ctx)

	if a.comp.Queue != nil {
		if err := a.comp.Queue.Start(ctx); err != nil {
			a.log.Error("delivery queue start failed", applogger.Error(err))
			return err
		}
	}

	if a.comp.Consumer != nil && a.comp.Observations != nil {
		a.comp.Consumer.RegisterHandler(a.comp.Observations)
		if err := a.comp.Consumer.Start(); err != nil {
			a.log.Error("kafka consumer start failed", applogger.Error(err))
			return err
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.comp.Observations.Topic()))
	}

	if a.comp.Poller != nil {
		go a.comp.Poller.Run(ctx)
		a.log.Info("feed poller started",
			applogger.Strings("symbols", a.cfg.Feeds.Symbols),
			applogger.Duration("interval", a.cfg.Feeds.Interval))
	}

	if err := a.comp.HTTP.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	return nil
}

// shutdown stops intake first so in-flight work can drain, then releases the
// infrastructure clients.
func (a *App) shutdown() {
	a.log.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.comp.HTTP.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.comp.Consumer != nil {
		if err := a.comp.Consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	a.comp.Gate.Stop()

	if a.comp.Queue != nil {
		if err := a.comp.Queue.Stop(ctx); err != nil {
			a.log.Warn("delivery queue stop error", applogger.Error(err))
		}
	}

	for i := len(a.comp.Closers) - 1; i >= 0; i-- {
		c := a.comp.Closers[i]
		start := time.Now()
		if err := c.Close(); err != nil {
			a.log.Warn("close error", applogger.String("client", c.Name), applogger.Error(err))
			continue
		}
		a.log.Debug("closed", applogger.String("client", c.Name), applogger.Duration("took", time.Since(start)))
	}

	a.log.Info("shutdown complete")
	_ = a.log.Close()
}
