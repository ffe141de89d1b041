package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type serviceEnv struct {
	service  *HookService
	ingester *fakeIngester
	mailer   *fakeMailer
	logs     *observer.ObservedLogs
	file     string
}

func newServiceEnv(t *testing.T, name string, requireAll bool) *serviceEnv {
	t.Helper()

	file := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(file, []byte("book"), 0o644))

	obsCore, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(obsCore)

	ingester := &fakeIngester{folder: "/ingest"}
	mailer := &fakeMailer{}
	dispatcher := NewDispatcher(
		NewLabelParser("Add to Calibre", "Send to "),
		ingester,
		mailer,
		testDevices,
		false,
		logger,
	)

	return &serviceEnv{
		service:  NewHookService(NewFormatSet([]string{"epub", "mobi"}), dispatcher, logger, requireAll),
		ingester: ingester,
		mailer:   mailer,
		logs:     logs,
		file:     file,
	}
}

func (e *serviceEnv) fileExists(t *testing.T) bool {
	t.Helper()
	_, err := os.Stat(e.file)
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	require.NoError(t, err)
	return true
}

func TestRunDeliversAndRemoves(t *testing.T) {
	env := newServiceEnv(t, "Book.epub", false)

	report, err := env.service.Run(context.Background(), &Request{
		Name:     "Book",
		Labels:   []string{"Add to Calibre", "Send to Kindle", "Seeding"},
		FilePath: env.file,
		Remove:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, StateDone, report.State)
	assert.NotEmpty(t, report.RunID)
	assert.Len(t, report.Results, 2)
	assert.Equal(t, 2, report.Succeeded())
	assert.True(t, report.Removed)
	assert.False(t, env.fileExists(t))
}

func TestRunKeepsFileWithoutRemove(t *testing.T) {
	env := newServiceEnv(t, "Book.epub", false)

	report, err := env.service.Run(context.Background(), &Request{
		Name:     "Book",
		Labels:   []string{"Add to Calibre"},
		FilePath: env.file,
	})
	require.NoError(t, err)

	assert.Equal(t, StateDone, report.State)
	assert.False(t, report.Removed)
	assert.True(t, env.fileExists(t))
}

func TestRunSkipsUnsupportedFormat(t *testing.T) {
	env := newServiceEnv(t, "Book.pdf", false)

	report, err := env.service.Run(context.Background(), &Request{
		Name:     "Book",
		Labels:   []string{"Add to Calibre", "Send to Kindle"},
		FilePath: env.file,
		Remove:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, StateSkipped, report.State)
	assert.Empty(t, report.Results)
	assert.Empty(t, env.ingester.calls)
	assert.Empty(t, env.mailer.calls)
	assert.True(t, env.fileExists(t))
	assert.Equal(t, 1, env.logs.FilterMessage("Unsupported file format").Len())
}

func TestRunExpectedFailuresStillSucceed(t *testing.T) {
	env := newServiceEnv(t, "Book.epub", false)
	env.mailer.fail = map[string]error{"me@kindle.com": &SMTPError{Stage: "auth", Address: "me@kindle.com", Code: 535}}

	report, err := env.service.Run(context.Background(), &Request{
		Name:     "Book",
		Labels:   []string{"Send to Kindle", "Add to Calibre"},
		FilePath: env.file,
		Remove:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, 1, report.Failed())
	assert.True(t, report.Removed)
	assert.False(t, env.fileExists(t))
}

func TestRunUnexpectedFailurePreventsRemoval(t *testing.T) {
	env := newServiceEnv(t, "Book.epub", false)
	env.ingester.panic = true

	report, err := env.service.Run(context.Background(), &Request{
		Name:     "Book",
		Labels:   []string{"Add to Calibre", "Send to Kindle"},
		FilePath: env.file,
		Remove:   true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")

	assert.Equal(t, StateFailed, report.State)
	assert.False(t, report.Removed)
	assert.True(t, env.fileExists(t))
	assert.Equal(t, []string{"me@kindle.com"}, env.mailer.calls, "later labels still run")
}

func TestRunCancelledContextFails(t *testing.T) {
	env := newServiceEnv(t, "Book.epub", false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := env.service.Run(ctx, &Request{
		Name:     "Book",
		Labels:   []string{"Add to Calibre"},
		FilePath: env.file,
		Remove:   true,
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, report.State)
	assert.True(t, env.fileExists(t))
}

func TestRunRemovalFailureIsNotFatal(t *testing.T) {
	env := newServiceEnv(t, "Book.epub", false)
	env.service.remove = func(string) error { return os.ErrPermission }

	report, err := env.service.Run(context.Background(), &Request{
		Name:     "Book",
		Labels:   []string{"Add to Calibre"},
		FilePath: env.file,
		Remove:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, StateDone, report.State)
	assert.False(t, report.Removed)
	var ioErr *IOError
	require.True(t, errors.As(report.RemoveErr, &ioErr))
	assert.Equal(t, "remove", ioErr.Op)
	assert.Equal(t, 1, env.logs.FilterMessage("Failed to remove file").Len())
}

func TestRunAlreadyRemovedCountsAsRemoved(t *testing.T) {
	env := newServiceEnv(t, "Book.epub", false)
	env.service.remove = func(string) error { return os.ErrNotExist }

	report, err := env.service.Run(context.Background(), &Request{
		Name:     "Book",
		Labels:   []string{"Add to Calibre"},
		FilePath: env.file,
		Remove:   true,
	})
	require.NoError(t, err)
	assert.True(t, report.Removed)
	assert.NoError(t, report.RemoveErr)
}

func TestRunRequireAllDelivered(t *testing.T) {
	tests := []struct {
		name    string
		labels  []string
		fail    bool
		removed bool
	}{
		{"all delivered", []string{"Add to Calibre", "Send to Kindle"}, false, true},
		{"one failed", []string{"Add to Calibre", "Send to Kindle"}, true, false},
		{"no actions", []string{"Seeding"}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newServiceEnv(t, "Book.epub", true)
			if tt.fail {
				env.mailer.fail = map[string]error{"me@kindle.com": &SMTPError{Stage: "rcpt"}}
			}

			report, err := env.service.Run(context.Background(), &Request{
				Name:     "Book",
				Labels:   tt.labels,
				FilePath: env.file,
				Remove:   true,
			})
			require.NoError(t, err)

			assert.Equal(t, StateDone, report.State)
			assert.Equal(t, tt.removed, report.Removed)
			assert.Equal(t, !tt.removed, env.fileExists(t))
		})
	}
}

func TestRunLogsFinalStatusLine(t *testing.T) {
	for _, name := range []string{"Book.epub", "Book.pdf"} {
		t.Run(name, func(t *testing.T) {
			env := newServiceEnv(t, name, false)

			_, _ = env.service.Run(context.Background(), &Request{
				Name:     "Some Torrent",
				Labels:   []string{"Add to Calibre", "Send to Kindle"},
				FilePath: env.file,
			})

			entries := env.logs.FilterMessage("Processed torrent").All()
			require.Len(t, entries, 1)
			fields := entries[0].ContextMap()
			assert.Equal(t, "Some Torrent", fields["torrent"])
			assert.Equal(t, []interface{}{"Add to Calibre", "Send to Kindle"}, fields["labels"])
			assert.NotEmpty(t, fields["run_id"])
		})
	}
}

type cancellingMailer struct {
	cancel context.CancelFunc
}

func (m *cancellingMailer) SendFile(context.Context, string, string) error {
	m.cancel()
	return &SMTPError{Stage: "data", Err: context.Canceled}
}

func TestRunInterruptedDuringLastActionKeepsFile(t *testing.T) {
	env := newServiceEnv(t, "Book.epub", false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := zap.NewNop()
	dispatcher := NewDispatcher(
		NewLabelParser("Add to Calibre", "Send to "),
		env.ingester,
		&cancellingMailer{cancel: cancel},
		testDevices,
		false,
		logger,
	)
	service := NewHookService(NewFormatSet([]string{"epub"}), dispatcher, logger, false)

	report, err := service.Run(ctx, &Request{
		Name:     "Book",
		Labels:   []string{"Send to Kindle"},
		FilePath: env.file,
		Remove:   true,
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, report.State)
	assert.True(t, env.fileExists(t))
}
