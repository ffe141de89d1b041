package core

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HookService is the core service that runs one post-download hook
// invocation from format check to cleanup
type HookService struct {
	formats             FormatSet
	dispatcher          *Dispatcher
	logger              *zap.Logger
	requireAllDelivered bool
	remove              func(name string) error
}

// NewHookService creates a new hook service
func NewHookService(
	formats FormatSet,
	dispatcher *Dispatcher,
	logger *zap.Logger,
	requireAllDelivered bool,
) *HookService {
	return &HookService{
		formats:             formats,
		dispatcher:          dispatcher,
		logger:              logger,
		requireAllDelivered: requireAllDelivered,
		remove:              os.Remove,
	}
}

// Run processes a completed download. An unsupported format is not an error.
// Expected delivery failures are recorded in the report; any other failure
// fails the run and is returned.
func (s *HookService) Run(ctx context.Context, req *Request) (*RunReport, error) {
	report := &RunReport{
		RunID:  uuid.NewString(),
		Name:   req.Name,
		Labels: req.Labels,
		State:  StateValidating,
	}
	logger := s.logger.With(zap.String("run_id", report.RunID))

	defer func() {
		logger.Info("Processed torrent",
			zap.String("torrent", req.Name),
			zap.Strings("labels", req.Labels),
			zap.String("state", string(report.State)))
	}()

	if !s.formats.IsSupported(req.FilePath) {
		logger.Warn("Unsupported file format",
			zap.String("file", req.FilePath),
			zap.String("extension", Extension(req.FilePath)),
			zap.Strings("supported_formats", s.formats.List()))
		report.State = StateSkipped
		return report, nil
	}
	logger.Debug("File format supported",
		zap.String("file", req.FilePath),
		zap.String("extension", Extension(req.FilePath)))

	report.State = StateDispatching
	report.Results = s.dispatcher.Dispatch(ctx, req.Labels, req.FilePath)

	var unexpected []error
	for _, res := range report.Results {
		if res.Unexpected() {
			unexpected = append(unexpected, res.Err)
		}
	}
	if err := ctx.Err(); err != nil && len(unexpected) == 0 {
		unexpected = append(unexpected, fmt.Errorf("run interrupted: %w", err))
	}
	if len(unexpected) > 0 {
		report.State = StateFailed
		err := errors.Join(unexpected...)
		logger.Error("Error processing torrent",
			zap.String("torrent", req.Name),
			zap.Error(err))
		return report, fmt.Errorf("processing torrent %q: %w", req.Name, err)
	}

	logger.Info("Successfully processed torrent",
		zap.String("torrent", req.Name),
		zap.Int("actions", len(report.Results)),
		zap.Int("succeeded", report.Succeeded()),
		zap.Int("failed", report.Failed()))

	if req.Remove {
		report.State = StateCleanup
		s.cleanup(logger, req, report)
	}

	report.State = StateDone
	return report, nil
}

// cleanup removes the source file. Failures are logged only.
func (s *HookService) cleanup(logger *zap.Logger, req *Request, report *RunReport) {
	if s.requireAllDelivered && (len(report.Results) == 0 || report.Failed() > 0) {
		logger.Warn("Keeping file, not every delivery succeeded",
			zap.String("file", req.FilePath),
			zap.Int("actions", len(report.Results)),
			zap.Int("failed", report.Failed()))
		return
	}

	if err := s.remove(req.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		report.RemoveErr = &IOError{Op: "remove", Path: req.FilePath, Err: err}
		logger.Error("Failed to remove file",
			zap.String("file", req.FilePath),
			zap.Error(report.RemoveErr))
		return
	}

	report.Removed = true
	logger.Info("Removed file", zap.String("file", req.FilePath))
}
