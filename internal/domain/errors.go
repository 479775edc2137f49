package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy. None of these is recoverable within a run.
var (
	// ErrConfiguration covers unknown methods and unusable station sets.
	ErrConfiguration = errors.New("configuration error")
	// ErrUnknownMethod is returned for a distribution outside idw|dk|kriging|grid.
	ErrUnknownMethod = fmt.Errorf("%w: unknown distribution method", ErrConfiguration)
	// ErrInsufficientStations is returned when a method cannot be fitted
	// with the available station count.
	ErrInsufficientStations = fmt.Errorf("%w: insufficient stations", ErrConfiguration)
	// ErrAllValuesMissing is returned when every selected station is NaN.
	ErrAllValuesMissing = errors.New("all values missing")
	// ErrNumericDomain is returned when a fit or solve is ill-posed,
	// e.g. collinear kriging stations.
	ErrNumericDomain = errors.New("numeric domain error")
	// ErrQueueTimeout is returned by a queue operation that waited too long.
	ErrQueueTimeout = errors.New("queue timeout")
	// ErrPipelineStall wraps a queue timeout observed by the orchestrator.
	ErrPipelineStall = errors.New("pipeline stall")
)

// StepError attaches the variable and timestep to a failure.
type StepError struct {
	Variable Variable
	Time     time.Time
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s at %s: %v", e.Variable, e.Time.Format(time.RFC3339), e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
