package ports

import (
	"context"

	"github.com/mikey/torrent-hook/internal/core"
)

// Hook defines the interface for processing a completed download
type Hook interface {
	// Run processes the request and returns the run report
	Run(ctx context.Context, req *core.Request) (*core.RunReport, error)
}
