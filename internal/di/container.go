package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/torrent-hook/internal/config"
	"github.com/mikey/torrent-hook/internal/core"
	"github.com/mikey/torrent-hook/internal/factory"
	"github.com/mikey/torrent-hook/internal/logging"
	"github.com/mikey/torrent-hook/internal/ports"
)

// Options contains the command line settings the container depends on
type Options struct {
	ConfigPath string
	Verbose    bool
}

// BuildContainer creates and configures a dependency injection container
func BuildContainer(opts Options) (*dig.Container, error) {
	container := dig.New()

	// Register options
	if err := container.Provide(func() Options { return opts }); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(o Options) (*config.Config, error) {
		return config.New(o.ConfigPath)
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(cfg *config.Config, o Options) (*zap.Logger, error) {
		logger, err := logging.InitLogger(cfg, o.Verbose)
		if err != nil {
			return nil, err
		}
		logger.Debug("Loaded configuration", zap.String("file", cfg.ConfigFileUsed()))
		return logger, nil
	}); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewDeliveryFactory); err != nil {
		return nil, err
	}

	// Register delivery adapters
	if err := container.Provide(func(f *factory.DeliveryFactory) core.FileIngester {
		return f.CreateIngester()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.DeliveryFactory) (core.DeviceMailer, error) {
		return f.CreateMailer()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.DeliveryFactory) core.DeviceDirectory {
		return f.CreateDeviceDirectory()
	}); err != nil {
		return nil, err
	}

	// Register label vocabulary and formats
	if err := container.Provide(func(f *factory.DeliveryFactory) core.LabelParser {
		return f.CreateLabelParser()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.DeliveryFactory) (core.FormatSet, error) {
		return f.CreateFormatSet()
	}); err != nil {
		return nil, err
	}

	// Register dispatcher
	if err := container.Provide(func(
		parser core.LabelParser,
		ingester core.FileIngester,
		mailer core.DeviceMailer,
		directory core.DeviceDirectory,
		cfg *config.Config,
		logger *zap.Logger,
	) *core.Dispatcher {
		return core.NewDispatcher(
			parser,
			ingester,
			mailer,
			directory,
			cfg.GetDevices().Strict,
			logger,
		)
	}); err != nil {
		return nil, err
	}

	// Register hook service
	if err := container.Provide(func(
		formats core.FormatSet,
		dispatcher *core.Dispatcher,
		cfg *config.Config,
		logger *zap.Logger,
	) ports.Hook {
		return core.NewHookService(
			formats,
			dispatcher,
			logger,
			cfg.RequireAllDelivered(),
		)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
