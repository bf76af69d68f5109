package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/warcbuilder/internal/config"
	"git.home.luguber.info/inful/warcbuilder/internal/source"
)

// Service is the canonical interface for executing archive builds.
type Service interface {
	// Run executes a complete assembly and returns its Result. A Result is
	// returned even when err is non-nil, as long as the run started.
	Run(ctx context.Context, req Request) (*Result, error)
}

// Request contains the inputs of a build.
type Request struct {
	// Config is the merged and defaulted configuration.
	Config *config.Config

	// Args is the command line, recorded in the warcinfo record.
	Args []string
}

// Result describes the outcome of a run.
type Result struct {
	Status Status

	// Archive is the path of the written archive.
	Archive string

	// Records counts written records, primary and derived, excluding warcinfo.
	Records int

	// Items counts primary records.
	Items int

	// Skipped counts items rejected by the filter chain.
	Skipped int

	// Invalid lists inputs that produced no items.
	Invalid []source.InvalidInput

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Status represents the outcome of a run.
type Status string

const (
	// StatusSuccess indicates every input was archived.
	StatusSuccess Status = "success"

	// StatusWarning indicates the run finished but some inputs were invalid.
	StatusWarning Status = "warning"

	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsSuccess returns true if the run completed.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess || s == StatusWarning
}
