package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"booking-service/internal/application"
	"booking-service/internal/config"
	"booking-service/internal/infrastructure/bus"
	infraconfig "booking-service/internal/infrastructure/config"
	httpserver "booking-service/internal/infrastructure/http"
	"booking-service/internal/infrastructure/kafka"
	"booking-service/internal/infrastructure/logx"
	"booking-service/internal/infrastructure/metrics"
	"booking-service/internal/infrastructure/pg"
	redisstore "booking-service/internal/infrastructure/redis"
	"booking-service/internal/infrastructure/sqlite"
	"booking-service/internal/infrastructure/worker"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	ErrMissingDBURL   = errors.New("DATABASE_URL is required for STORAGE=pg")
	ErrUnknownStorage = errors.New("unknown STORAGE")
	ErrUnknownBackend = errors.New("unknown INVALIDATION_BACKEND")
)

// Storage is one opened database seen through the ports the application needs.
type Storage struct {
	UoW    application.UoWFactory
	Source application.SnapshotSource
	Ping   func(ctx context.Context) error
}

// Transport carries booking events between instances.
type Transport struct {
	Pub    application.Publisher
	Sub    application.Subscriber
	Source string
}

func ProvideLogger() *zap.Logger { return logx.L() }

func ProvideConfig() config.Config { return config.Load() }

// ProvideStorage opens the configured database and applies migrations.
func ProvideStorage(ctx context.Context, log *zap.Logger, cfg config.Config) (Storage, func(), error) {
	switch cfg.Storage {
	case "pg":
		if cfg.DatabaseURL == "" {
			return Storage{}, func() {}, ErrMissingDBURL
		}
		db, err := pg.Connect(ctx, cfg.DatabaseURL, cfg.StatementTimeout)
		if err != nil {
			return Storage{}, func() {}, err
		}
		if err := pg.RunMigrations(ctx, db); err != nil {
			db.Close()
			return Storage{}, func() {}, err
		}
		cleanup := func() {
			log.Info("closing pg")
			db.Close()
		}
		return Storage{UoW: pg.NewUoWFactory(db), Source: pg.NewSnapshotSource(db), Ping: db.Ping}, cleanup, nil
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath, cfg.StatementTimeout)
		if err != nil {
			return Storage{}, func() {}, err
		}
		if err := sqlite.RunMigrations(db); err != nil {
			_ = db.Close()
			return Storage{}, func() {}, err
		}
		cleanup := func() {
			log.Info("closing sqlite")
			_ = db.Close()
		}
		return Storage{UoW: sqlite.NewUoWFactory(db), Source: sqlite.NewSnapshotSource(db), Ping: db.Ping}, cleanup, nil
	default:
		return Storage{}, func() {}, fmt.Errorf("%w %q", ErrUnknownStorage, cfg.Storage)
	}
}

// ProvideRedisClient does not dial; the client connects on first use.
func ProvideRedisClient(cfg config.Config) (*redis.Client, func(), error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return client, func() { _ = client.Close() }, nil
}

func ProvideTransport(cfg config.Config, client *redis.Client, log *zap.Logger) (Transport, func(), error) {
	switch cfg.InvalidationBackend {
	case "redis":
		return Transport{
			Pub:    redisstore.NewPublisher(client, cfg.InvalidationChannel),
			Sub:    redisstore.NewSubscriber(client, cfg.InvalidationChannel),
			Source: "redis",
		}, func() {}, nil
	case "kafka":
		pub, err := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return Transport{}, func() {}, err
		}
		sub, err := kafka.NewSubscriber(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupPrefix)
		if err != nil {
			_ = pub.Close()
			return Transport{}, func() {}, err
		}
		log.Info("kafka transport", zap.String("topic", cfg.KafkaTopic), zap.String("group_id", sub.GroupID()))
		cleanup := func() {
			_ = sub.Close()
			_ = pub.Close()
		}
		return Transport{Pub: pub, Sub: sub, Source: "kafka"}, cleanup, nil
	case "local":
		b := bus.NewLocal()
		return Transport{Pub: b, Sub: b, Source: "local"}, func() {}, nil
	default:
		return Transport{}, func() {}, fmt.Errorf("%w %q", ErrUnknownBackend, cfg.InvalidationBackend)
	}
}

func ProvideIdempotency(cfg config.Config, client *redis.Client) application.IdempotencyStore {
	if cfg.IdempotencyBackend != "redis" {
		return application.NoopIdempotency{}
	}
	return redisstore.New(client, cfg.IdempotencyTTL)
}

func ProvideMetrics() *metrics.Recorder { return metrics.NewRecorder() }

func ProvideCache(s Storage, rec *metrics.Recorder, cfg config.Config) *application.AvailabilityCache {
	return application.NewAvailabilityCache(s.Source,
		application.WithHorizonMonths(cfg.HorizonMonths),
		application.WithCacheMetrics(rec),
	)
}

func ProvideEngine(s Storage, t Transport, cache *application.AvailabilityCache, rec *metrics.Recorder, cfg config.Config) *application.ReservationEngine {
	return application.NewReservationEngine(s.UoW, t.Pub,
		application.WithLocalCache(cache),
		application.WithMetrics(rec),
		application.WithTxTimeout(cfg.TxTimeout),
		application.WithPublishTimeout(infraconfig.DefaultPublishTimeout),
	)
}

func ProvideWorkers(t Transport, cache *application.AvailabilityCache, rec *metrics.Recorder, cfg config.Config, log *zap.Logger) []application.Worker {
	return []application.Worker{
		&application.InvalidationListener{
			Sub:     t.Sub,
			Cache:   cache,
			Metrics: rec,
			Source:  t.Source,
			Log:     log,
		},
		&worker.RefreshWorker{
			Cache:   cache,
			Metrics: rec,
			Every:   cfg.CacheRefresh,
			Log:     log,
		},
	}
}

func ProvideServer(
	engine *application.ReservationEngine,
	cache *application.AvailabilityCache,
	idem application.IdempotencyStore,
	rec *metrics.Recorder,
	s Storage,
	cfg config.Config,
) *httpserver.Server {
	srv := httpserver.NewServer(engine, cache,
		httpserver.WithIdempotency(idem),
		httpserver.WithRules(cfg.MaxStayDays, cfg.HorizonMonths),
		httpserver.WithCORSOrigins(cfg.CORSOrigins),
		httpserver.WithMetricsHandler(rec.Handler()),
	)
	srv.SetReadyCheck(s.Ping)
	return srv
}
