package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/torrent-hook/internal/config"
	"github.com/mikey/torrent-hook/internal/core"
	"github.com/mikey/torrent-hook/internal/di"
	"github.com/mikey/torrent-hook/internal/logging"
	"github.com/mikey/torrent-hook/internal/ports"
	"github.com/mikey/torrent-hook/internal/utils"
)

// Exit codes
const (
	exitOK          = 0
	exitRunFailure  = 1
	exitConfigError = 2
)

type flags struct {
	name       string
	labels     string
	file       string
	remove     bool
	configPath string
	verbose    bool
}

func newRootCommand(f *flags) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "torrent-hook",
		Short: "Deliver a finished e-book download to Calibre and e-reader devices",
		Long: `torrent-hook is called by the torrent client once a download completes.
Labels on the torrent select where the file goes: the ingest label copies it
into the Calibre ingest folder and each "Send to <device>" label mails it to
the device address from the configuration.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHook(cmd.Context(), f)
		},
	}

	rootCmd.Flags().StringVarP(&f.name, "name", "N", "", "Torrent name")
	rootCmd.Flags().StringVarP(&f.labels, "labels", "G", "", "Comma separated torrent labels")
	rootCmd.Flags().StringVarP(&f.file, "file", "F", "", "Path to the downloaded file")
	rootCmd.Flags().BoolVarP(&f.remove, "rm", "R", false, "Remove the file after successful processing")
	rootCmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Configuration file path (overrides "+config.EnvConfigPath+")")
	rootCmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Enable debug logging")

	for _, name := range []string{"name", "labels", "file"} {
		_ = rootCmd.MarkFlagRequired(name)
	}

	return rootCmd
}

// execute runs the command line and returns the process exit code
func execute(ctx context.Context, args []string) int {
	f := &flags{}
	cmd := newRootCommand(f)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	code := exitCode(err)
	if err != nil {
		reportError(f.verbose, err, code)
	}
	return code
}

func runHook(ctx context.Context, f *flags) error {
	container, err := di.BuildContainer(di.Options{
		ConfigPath: f.configPath,
		Verbose:    f.verbose,
	})
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}

	return container.Invoke(func(hook ports.Hook, logger *zap.Logger) error {
		defer logger.Sync()

		req := &core.Request{
			Name:     f.name,
			Labels:   utils.SplitLabels(f.labels),
			FilePath: f.file,
			Remove:   f.remove,
		}
		if err := req.Validate(); err != nil {
			logger.Error("Invalid request",
				zap.String("torrent", req.Name),
				zap.String("file", req.FilePath),
				zap.Error(err))
			return err
		}

		report, err := hook.Run(ctx, req)
		if err != nil {
			return err
		}

		logger.Debug("Run finished",
			zap.String("run_id", report.RunID),
			zap.String("state", string(report.State)),
			zap.Int("succeeded", report.Succeeded()),
			zap.Int("failed", report.Failed()),
			zap.Bool("removed", report.Removed))
		return nil
	})
}

// exitCode maps a run error to the process exit code
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var cfgErr *config.ConfigError
	if errors.As(err, &cfgErr) || errors.As(dig.RootCause(err), &cfgErr) {
		return exitConfigError
	}
	return exitRunFailure
}

// reportError logs errors that could not reach the configured logger
func reportError(verbose bool, err error, code int) {
	if errors.Is(err, context.Canceled) {
		return
	}

	logger, logErr := logging.InitConsoleLogger(verbose, false)
	if logErr != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	defer logger.Sync()

	logger.Error("torrent-hook failed",
		zap.Int("exit_code", code),
		zap.Error(dig.RootCause(err)))
}
