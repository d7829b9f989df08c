//go:build wireinject

package bootstrap

import (
	"context"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideConfig,
	ProvideStorage,
	ProvideRedisClient,
	ProvideTransport,
	ProvideIdempotency,
	ProvideMetrics,
)

var appSet = wire.NewSet(
	ProvideCache,
	ProvideEngine,
	ProvideWorkers,
	ProvideServer,
	NewApp,
)

// InitApp builds the API process with its background workers.
func InitApp(ctx context.Context) (*App, func(), error) {
	wire.Build(infraSet, appSet)
	return nil, nil, nil
}
