//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"

	"stw/internal"
	"stw/internal/cloud"
	"stw/internal/controllers"
	"stw/internal/importer"
	"stw/internal/notify"
	"stw/internal/providers"
	"stw/internal/services"
	"stw/internal/storage"
	"stw/internal/structures"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,

		storage.NewZstdCompressor,
		storage.NewFileStore,
		services.NewWalletService,
		services.NewHealthService,

		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,

		importer.NewValidator,
		cloud.NewGasClient,
		notify.NewTelegramNotifier,
		storage.NewScheduler,

		controllers.NewApiController,
		controllers.NewBackupController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}
