package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"booking-service/internal/application"
	"booking-service/internal/config"
	infraconfig "booking-service/internal/infrastructure/config"
	httpserver "booking-service/internal/infrastructure/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// App is a fully wired booking instance.
type App struct {
	Config  config.Config
	Log     *zap.Logger
	Server  *httpserver.Server
	Cache   *application.AvailabilityCache
	Workers []application.Worker
}

func NewApp(cfg config.Config, log *zap.Logger, srv *httpserver.Server, cache *application.AvailabilityCache, workers []application.Worker) *App {
	return &App{Config: cfg, Log: log, Server: srv, Cache: cache, Workers: workers}
}

// Run serves HTTP and runs the background workers until ctx is done, then
// drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + a.Config.Port,
		Handler: httpserver.NewRouter(a.Server),
	}

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	var wg sync.WaitGroup
	for _, w := range a.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Start(workerCtx)
		}()
	}
	a.Cache.Warm(workerCtx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Log.Info("server started", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), infraconfig.DefaultShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	stopWorkers()
	wg.Wait()
	a.Log.Info("server stopped")
	return err
}
