// Package output defines where distributed grids go.
package output

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shepherdmeng/smrf/internal/domain"
)

type runIDKey struct{}

// WithRunID tags ctx with the id of the run emitting grids.
func WithRunID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run id set by WithRunID.
func RunID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(runIDKey{}).(uuid.UUID)
	return id, ok
}

// Sink receives one grid per emitted variable and timestep. Emit may be
// called from a single goroutine only; grids are owned by the sink once
// passed in.
type Sink interface {
	Emit(ctx context.Context, variable domain.Variable, t time.Time, g domain.Grid) error
}

// ShouldEmit reports whether timestep i of n is an output step: every
// frequency-th step starting from the first, plus the last.
func ShouldEmit(i, n, frequency int) bool {
	if frequency <= 1 {
		return true
	}
	return i%frequency == 0 || i == n-1
}

// Selection filters the produced variables down to the requested ones,
// keeping order. An empty request selects everything produced.
func Selection(produced, requested []domain.Variable) []domain.Variable {
	if len(requested) == 0 {
		out := append([]domain.Variable(nil), produced...)
		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
		return out
	}
	have := make(map[domain.Variable]bool, len(produced))
	for _, v := range produced {
		have[v] = true
	}
	var out []domain.Variable
	for _, v := range requested {
		if have[v] {
			out = append(out, v)
		}
	}
	return out
}

// Record is one captured Emit call.
type Record struct {
	Variable domain.Variable
	Time     time.Time
	Grid     domain.Grid
}

// MemorySink keeps every emitted grid. It is safe for concurrent use.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

// NewMemorySink returns an empty sink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

// Emit records the grid.
func (s *MemorySink) Emit(_ context.Context, variable domain.Variable, t time.Time, g domain.Grid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, Record{Variable: variable, Time: t, Grid: g})
	return nil
}

// Records returns a copy of everything emitted so far.
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

// Get returns the grid emitted for variable at t.
func (s *MemorySink) Get(variable domain.Variable, t time.Time) (domain.Grid, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.Variable == variable && r.Time.Equal(t) {
			return r.Grid, true
		}
	}
	return domain.Grid{}, false
}

// Times returns the distinct emitted timesteps in order.
func (s *MemorySink) Times() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[int64]bool)
	var out []time.Time
	for _, r := range s.records {
		if k := r.Time.UnixNano(); !seen[k] {
			seen[k] = true
			out = append(out, r.Time)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// LogSink writes a one-line summary of each grid.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink that logs at Info.
func NewLogSink(logger *slog.Logger) *LogSink { return &LogSink{logger: logger} }

// Emit logs shape and range.
func (s *LogSink) Emit(ctx context.Context, variable domain.Variable, t time.Time, g domain.Grid) error {
	lo, hi := g.Range()
	s.logger.InfoContext(ctx, "grid emitted",
		"variable", variable,
		"time", t,
		"ny", g.Ny,
		"nx", g.Nx,
		"min", lo,
		"max", hi,
	)
	return nil
}

// Discard drops everything.
type Discard struct{}

// Emit does nothing.
func (Discard) Emit(context.Context, domain.Variable, time.Time, domain.Grid) error { return nil }
