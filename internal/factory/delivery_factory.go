package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/torrent-hook/internal/adapters/ingest"
	"github.com/mikey/torrent-hook/internal/adapters/mailer"
	"github.com/mikey/torrent-hook/internal/config"
	"github.com/mikey/torrent-hook/internal/core"
	"github.com/mikey/torrent-hook/internal/devices"
)

// DeliveryFactory creates delivery adapters based on configuration
type DeliveryFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewDeliveryFactory creates a new delivery factory
func NewDeliveryFactory(cfg *config.Config, logger *zap.Logger) *DeliveryFactory {
	return &DeliveryFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateIngester creates the local ingest copier
func (f *DeliveryFactory) CreateIngester() core.FileIngester {
	ic := f.cfg.GetIngest()
	return ingest.NewCopier(ingest.Config{
		Folder:    ic.Folder,
		Overwrite: ic.Overwrite,
	}, f.logger.Named("ingest"))
}

// CreateMailer creates the SMTP device mailer
func (f *DeliveryFactory) CreateMailer() (core.DeviceMailer, error) {
	sc := f.cfg.GetSMTP()

	tlsConfig, err := mailer.LoadTLSConfig(sc.Server, sc.CAFile)
	if err != nil {
		return nil, &config.ConfigError{Key: "smtp.ca_file", Reason: "invalid CA file", Err: err}
	}

	f.logger.Debug("Configured SMTP account",
		zap.String("server", sc.Server),
		zap.Int("port", sc.Port),
		zap.String("email", sc.Email),
		zap.Duration("timeout", sc.Timeout))

	return mailer.NewMailer(mailer.Config{
		Host:      sc.Server,
		Port:      sc.Port,
		Email:     sc.Email,
		Password:  sc.Password,
		Subject:   sc.Subject,
		Timeout:   sc.Timeout,
		TLSConfig: tlsConfig,
	}, f.logger.Named("mailer")), nil
}

// CreateDeviceDirectory creates the device directory
func (f *DeliveryFactory) CreateDeviceDirectory() core.DeviceDirectory {
	dir := devices.NewDirectory(f.cfg.GetDevices().Addresses, f.logger.Named("devices"))

	known := dir.Devices()
	if len(known) == 0 {
		f.logger.Warn("No devices configured, device labels will be ignored")
	} else {
		f.logger.Info("Initialized device directory", zap.Strings("devices", known))
	}

	return dir
}

// CreateLabelParser creates the label parser for the configured vocabulary
func (f *DeliveryFactory) CreateLabelParser() core.LabelParser {
	lc := f.cfg.GetLabels()
	return core.NewLabelParser(lc.Ingest, lc.DevicePrefix)
}

// CreateFormatSet creates the supported format set
func (f *DeliveryFactory) CreateFormatSet() (core.FormatSet, error) {
	formats := core.NewFormatSet(f.cfg.GetSupportedFormats())
	if len(formats) == 0 {
		return nil, fmt.Errorf("no supported formats configured")
	}
	return formats, nil
}
