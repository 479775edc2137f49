// Package pipeline runs distributors over a timestep range, either one
// variable after another or one goroutine per variable connected by
// queues.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/shepherdmeng/smrf/internal/distribute"
	"github.com/shepherdmeng/smrf/internal/domain"
	"github.com/shepherdmeng/smrf/internal/observability"
	"github.com/shepherdmeng/smrf/internal/output"
	"github.com/shepherdmeng/smrf/internal/queue"
)

var errSink = errors.New("output sink")

// Options controls scheduling and output.
type Options struct {
	// Threading selects the concurrent engine.
	Threading bool
	// Frequency emits every Nth timestep plus the last one.
	Frequency int
	// Variables restricts what reaches the sink. Empty means everything.
	Variables []domain.Variable
	// MaxDepth bounds every queue in concurrent mode.
	MaxDepth int
	// Timeout fails a stuck queue operation. Zero waits forever.
	Timeout time.Duration
	// Clock drives queue timeouts. Defaults to the real clock.
	Clock clockwork.Clock
}

// Orchestrator owns one run: distributors, their graph, the input data and
// the sink.
type Orchestrator struct {
	graph    *Graph
	terrain  *domain.Terrain
	dataset  *domain.Dataset
	times    []time.Time
	sink     output.Sink
	logger   *slog.Logger
	metrics  *observability.Metrics
	opts     Options
	selected []domain.Variable
	ready    atomic.Bool

	mu     sync.Mutex
	status Status
}

// Run states reported by Status.
const (
	StateIdle     = "idle"
	StateRunning  = "running"
	StateFinished = "finished"
	StateFailed   = "failed"
)

// Status is a snapshot of the current or last run.
type Status struct {
	RunID     string    `json:"run_id,omitempty"`
	State     string    `json:"state"`
	Started   time.Time `json:"started,omitzero"`
	Timesteps int       `json:"timesteps"`
	Emitted   int       `json:"emitted"`
	Error     string    `json:"error,omitempty"`
}

// New validates the distributor graph and the output selection.
func New(
	vars []distribute.Variable,
	terrain *domain.Terrain,
	dataset *domain.Dataset,
	times []time.Time,
	sink output.Sink,
	logger *slog.Logger,
	metrics *observability.Metrics,
	opts Options,
) (*Orchestrator, error) {
	graph, err := NewGraph(vars)
	if err != nil {
		return nil, err
	}
	for _, v := range opts.Variables {
		if _, ok := graph.Producer(v); !ok {
			return nil, fmt.Errorf("%w: output variable %s is not produced", domain.ErrConfiguration, v)
		}
	}
	if opts.Frequency < 1 {
		opts.Frequency = 1
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	return &Orchestrator{
		graph:    graph,
		terrain:  terrain,
		dataset:  dataset,
		times:    times,
		sink:     sink,
		logger:   logger,
		metrics:  metrics,
		opts:     opts,
		selected: output.Selection(graph.Outputs(), opts.Variables),
		status:   Status{State: StateIdle, Timesteps: len(times)},
	}, nil
}

// RunStatus returns a snapshot of the run state.
func (o *Orchestrator) RunStatus() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *Orchestrator) setStatus(fn func(*Status)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.status)
}

// markEmitted records a fully emitted timestep.
func (o *Orchestrator) markEmitted() {
	o.ready.Store(true)
	o.setStatus(func(s *Status) { s.Emitted++ })
}

// Graph returns the dependency graph.
func (o *Orchestrator) Graph() *Graph { return o.graph }

// CheckReadiness returns nil once the current run has emitted a timestep.
func (o *Orchestrator) CheckReadiness(_ context.Context) error {
	if !o.ready.Load() {
		return errors.New("no timestep has been emitted yet")
	}
	return nil
}

// Initialize prepares every distributor against the terrain and station
// metadata. It also resets any state left by a previous run.
func (o *Orchestrator) Initialize() error {
	for _, d := range o.graph.Order() {
		if err := d.Initialize(o.terrain, o.dataset.Metadata); err != nil {
			return err
		}
	}
	return nil
}

// Run initializes the distributors and processes every timestep with the
// configured engine. Any failure aborts the whole run.
func (o *Orchestrator) Run(ctx context.Context) error {
	runID := uuid.New()
	logger := o.logger.With("run_id", runID.String())
	ctx = output.WithRunID(ctx, runID)

	logger.Info("run started",
		"timesteps", len(o.times),
		"threading", o.opts.Threading,
		"distributors", len(o.graph.vars),
		"outputs", len(o.selected),
	)
	o.metrics.PipelineRunning.Set(1)
	defer o.metrics.PipelineRunning.Set(0)
	o.ready.Store(false)

	start := time.Now()
	o.setStatus(func(s *Status) {
		*s = Status{RunID: runID.String(), State: StateRunning, Started: start, Timesteps: len(o.times)}
	})
	err := o.Initialize()
	if err == nil {
		if o.opts.Threading {
			err = o.RunConcurrent(ctx)
		} else {
			err = o.RunSequential(ctx)
		}
	}
	if err != nil {
		kind := failureKind(err)
		o.metrics.RunFailures.WithLabelValues(kind).Inc()
		logger.Error("run failed", "kind", kind, "error", err)
		o.setStatus(func(s *Status) { s.State, s.Error = StateFailed, err.Error() })
		return err
	}

	logger.Info("run finished", "elapsed", time.Since(start))
	o.setStatus(func(s *Status) { s.State = StateFinished })
	return nil
}

// RunSequential distributes each timestep in dependency order. Only the
// current timestep's grids are held.
func (o *Orchestrator) RunSequential(ctx context.Context) error {
	order := o.graph.Order()
	for i, t := range o.times {
		if err := ctx.Err(); err != nil {
			return err
		}

		points := o.points(t)
		grids := make(domain.Outputs)
		for _, d := range order {
			step := distribute.Step{Time: t, Points: points, Inputs: make(domain.Outputs, len(d.Inputs()))}
			for _, in := range d.Inputs() {
				step.Inputs[in] = grids[in]
			}
			out, err := o.distribute(d, step)
			if err != nil {
				return err
			}
			for v, g := range out {
				grids[v] = g
			}
		}

		if output.ShouldEmit(i, len(o.times), o.opts.Frequency) {
			for _, v := range o.selected {
				if err := o.emit(ctx, v, t, grids[v]); err != nil {
					return err
				}
			}
			o.markEmitted()
		}
	}
	return nil
}

// RunConcurrent starts one worker per distributor, an output worker and a
// cleanup worker, and waits for all of them. The first failure cancels
// the rest.
func (o *Orchestrator) RunConcurrent(ctx context.Context) error {
	cfg := queue.Config{
		MaxDepth: o.opts.MaxDepth,
		Timeout:  o.opts.Timeout,
		Clock:    o.opts.Clock,
		Metrics:  o.metrics,
	}
	queues := make(map[domain.Variable]*queue.DateQueue[domain.Grid])
	for _, v := range o.graph.Outputs() {
		queues[v] = queue.New[domain.Grid](string(v), cfg)
	}
	acks := queue.New[bool](string(domain.OutputAck), cfg)

	g, gctx := errgroup.WithContext(ctx)
	for _, d := range o.graph.Order() {
		g.Go(func() error { return stall(o.worker(gctx, d, queues)) })
	}
	g.Go(func() error { return stall(o.outputWorker(gctx, queues, acks)) })
	g.Go(func() error { return stall(o.cleanupWorker(gctx, queues, acks)) })
	return g.Wait()
}

func (o *Orchestrator) worker(ctx context.Context, d distribute.Variable, queues map[domain.Variable]*queue.DateQueue[domain.Grid]) error {
	for _, t := range o.times {
		step := distribute.Step{Time: t, Points: o.points(t), Inputs: make(domain.Outputs, len(d.Inputs()))}
		for _, in := range d.Inputs() {
			grid, err := queues[in].Get(ctx, t)
			if err != nil {
				return &domain.StepError{Variable: domain.Variable(d.Name()), Time: t, Err: err}
			}
			step.Inputs[in] = grid
		}

		out, err := o.distribute(d, step)
		if err != nil {
			return err
		}
		for _, v := range d.Outputs() {
			if err := queues[v].Put(ctx, t, out[v]); err != nil {
				return &domain.StepError{Variable: v, Time: t, Err: err}
			}
		}
	}
	return nil
}

// outputWorker emits the selected grids on output steps and acknowledges
// each emitted timestep on acks.
func (o *Orchestrator) outputWorker(ctx context.Context, queues map[domain.Variable]*queue.DateQueue[domain.Grid], acks *queue.DateQueue[bool]) error {
	for i, t := range o.times {
		if !output.ShouldEmit(i, len(o.times), o.opts.Frequency) {
			continue
		}
		for _, v := range o.selected {
			grid, err := queues[v].Get(ctx, t)
			if err != nil {
				return &domain.StepError{Variable: domain.OutputAck, Time: t, Err: err}
			}
			if err := o.emit(ctx, v, t, grid); err != nil {
				return err
			}
		}
		o.markEmitted()
		if err := acks.Put(ctx, t, true); err != nil {
			return &domain.StepError{Variable: domain.OutputAck, Time: t, Err: err}
		}
	}
	return nil
}

// cleanupWorker frees a timestep once every queue holds its value for
// that timestep and, on output steps, the output worker has acknowledged
// it. A distributor puts its outputs only after reading all of its
// inputs, so a complete timestep has no reader left.
func (o *Orchestrator) cleanupWorker(ctx context.Context, queues map[domain.Variable]*queue.DateQueue[domain.Grid], acks *queue.DateQueue[bool]) error {
	outputs := o.graph.Outputs()
	for i, t := range o.times {
		emitted := output.ShouldEmit(i, len(o.times), o.opts.Frequency)
		if emitted {
			if _, err := acks.Get(ctx, t); err != nil {
				return &domain.StepError{Variable: domain.OutputAck, Time: t, Err: err}
			}
		}

		for _, v := range outputs {
			if _, err := queues[v].Get(ctx, t); err != nil {
				return &domain.StepError{Variable: v, Time: t, Err: err}
			}
		}
		for _, v := range outputs {
			queues[v].Clear(t)
		}
		if emitted {
			acks.Clear(t)
		}
	}
	return nil
}

func (o *Orchestrator) distribute(d distribute.Variable, step distribute.Step) (domain.Outputs, error) {
	start := time.Now()
	out, err := d.Distribute(step)
	if err != nil {
		return nil, &domain.StepError{Variable: domain.Variable(d.Name()), Time: step.Time, Err: err}
	}
	for _, v := range d.Outputs() {
		if _, ok := out[v]; !ok {
			return nil, &domain.StepError{Variable: v, Time: step.Time, Err: fmt.Errorf("not produced by %s", d.Name())}
		}
	}
	o.metrics.StepsDistributed.WithLabelValues(d.Name()).Inc()
	o.metrics.DistributeDuration.WithLabelValues(d.Name()).Observe(time.Since(start).Seconds())
	o.logger.Debug("distributed", "variable", d.Name(), "time", step.Time)
	return out, nil
}

func (o *Orchestrator) emit(ctx context.Context, v domain.Variable, t time.Time, grid domain.Grid) error {
	if err := o.sink.Emit(ctx, v, t, grid); err != nil {
		return &domain.StepError{Variable: v, Time: t, Err: fmt.Errorf("%w: %w", errSink, err)}
	}
	o.metrics.GridsEmitted.WithLabelValues(string(v)).Inc()
	return nil
}

// points gathers the station samples of every measured variable at t. A
// series without a row at t contributes no sample.
func (o *Orchestrator) points(t time.Time) map[domain.Variable]domain.Sample {
	out := make(map[domain.Variable]domain.Sample, len(o.dataset.Series))
	for v, series := range o.dataset.Series {
		if row, ok := series.At(t); ok {
			out[v] = row
		}
	}
	return out
}

// stall marks queue timeouts as a pipeline stall.
func stall(err error) error {
	if err != nil && errors.Is(err, domain.ErrQueueTimeout) {
		return fmt.Errorf("%w: %w", domain.ErrPipelineStall, err)
	}
	return err
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrConfiguration):
		return "config"
	case errors.Is(err, domain.ErrAllValuesMissing):
		return "missing"
	case errors.Is(err, domain.ErrNumericDomain):
		return "numeric"
	case errors.Is(err, domain.ErrPipelineStall):
		return "stall"
	case errors.Is(err, errSink):
		return "sink"
	default:
		return "other"
	}
}
