package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/repository"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/usecase"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/config"
	xhttp "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/http"
	pkgkafka "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/kafka"
	applogger "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/logger"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/scheduler"
)

// Components are the use cases shared by the server and the one-shot commands.
type Components struct {
	Engine   *usecase.Engine
	Scanner  *usecase.Scanner
	Training *usecase.TrainingUseCase
	Universe repository.UniverseProvider
	Store    repository.BarStore
	Writer   repository.BarWriter
	Results  repository.ResultStore
}

// App encapsulates the entire application lifecycle.
type App struct {
	Components

	cfg        *config.Config
	logger     *applogger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	scheduler  *scheduler.Scheduler
	watcher    *usecase.ModelWatcher
}

// New creates a new App instance. consumer, sched and watcher are optional.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	c Components,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	sched *scheduler.Scheduler,
	watcher *usecase.ModelWatcher,
) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		Components: c,
		cfg:        cfg,
		logger:     l,
		httpServer: httpServer,
		consumer:   consumer,
		scheduler:  sched,
		watcher:    watcher,
	}
}

func (a *App) Logger() *applogger.Logger { return a.logger }

// Run starts the long-running services and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if a.watcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.watcher.Run(runCtx); err != nil {
				a.logger.Warn("model watcher stopped", applogger.Error(err))
			}
		}()
	}

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			return err
		}
		a.logger.Info("kafka consumer started", applogger.Strings("brokers", a.cfg.Kafka.Brokers))
	}

	if a.scheduler != nil {
		a.scheduler.Start()
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("shutdown signal received")
	cancel()
	err := a.shutdown()
	wg.Wait()
	return err
}

// shutdown stops intake first: HTTP, then the consumer, then scheduled jobs.
func (a *App) shutdown() error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.scheduler != nil {
		if err := a.scheduler.Stop(ctx); err != nil {
			a.logger.Warn("scheduler stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}
