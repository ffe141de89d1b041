package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Dispatcher maps labels to delivery actions and runs them one by one
type Dispatcher struct {
	parser        LabelParser
	ingester      FileIngester
	mailer        DeviceMailer
	devices       DeviceDirectory
	strictDevices bool
	logger        *zap.Logger
}

// NewDispatcher creates a new label dispatcher
func NewDispatcher(
	parser LabelParser,
	ingester FileIngester,
	mailer DeviceMailer,
	devices DeviceDirectory,
	strictDevices bool,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		parser:        parser,
		ingester:      ingester,
		mailer:        mailer,
		devices:       devices,
		strictDevices: strictDevices,
		logger:        logger,
	}
}

// Dispatch runs the actions selected by labels, in label order. A failing
// action never stops the following ones; every attempt ends up in the
// returned results.
func (d *Dispatcher) Dispatch(ctx context.Context, labels []string, filePath string) []ActionResult {
	results := make([]ActionResult, 0, len(labels))

	for _, raw := range labels {
		label := d.parser.Parse(raw)

		switch label.Kind {
		case LabelIngest:
			results = append(results, d.run(ctx, label, ingestAction{ingester: d.ingester}, filePath))

		case LabelDeviceSend:
			address, ok := d.devices.Lookup(label.Device)
			if !ok {
				if d.strictDevices {
					d.logger.Warn("Unknown device in label",
						zap.String("label", label.Raw),
						zap.String("device", label.Device))
					results = append(results, ActionResult{
						Label:  label.Raw,
						Kind:   ActionDevice,
						Device: label.Device,
						Status: StatusFailed,
						Err:    &UnknownDeviceError{Device: label.Device},
					})
					continue
				}
				d.logger.Debug("Skipping label for unknown device",
					zap.String("label", label.Raw),
					zap.String("device", label.Device))
				continue
			}

			result := d.run(ctx, label, deviceAction{mailer: d.mailer, address: address}, filePath)
			result.Device = label.Device
			results = append(results, result)

		default:
			d.logger.Debug("Ignoring label", zap.String("label", label.Raw))
		}
	}

	return results
}

// run executes one action, turning errors and panics into its result
func (d *Dispatcher) run(ctx context.Context, label Label, action Action, filePath string) (result ActionResult) {
	result = ActionResult{
		Label:  label.Raw,
		Kind:   action.Kind(),
		Target: action.Target(),
	}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("panic in %s action: %v", action.Kind(), r)
		}
		result.Duration = time.Since(start)
		if result.Err != nil {
			result.Status = StatusFailed
			d.logger.Error("Delivery failed",
				zap.String("label", result.Label),
				zap.String("action", string(result.Kind)),
				zap.String("target", result.Target),
				zap.Bool("expected", IsExpected(result.Err)),
				zap.Duration("duration", result.Duration),
				zap.Error(result.Err))
			return
		}
		result.Status = StatusSucceeded
		d.logger.Info("Delivery succeeded",
			zap.String("label", result.Label),
			zap.String("action", string(result.Kind)),
			zap.String("target", result.Target),
			zap.Duration("duration", result.Duration))
	}()

	if err := ctx.Err(); err != nil {
		result.Err = fmt.Errorf("%s action not started: %w", action.Kind(), err)
		return result
	}

	d.logger.Debug("Delivering file",
		zap.String("label", label.Raw),
		zap.String("action", string(action.Kind())),
		zap.String("target", action.Target()))

	result.Err = action.Deliver(ctx, filePath)
	return result
}
