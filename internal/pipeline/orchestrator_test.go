package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shepherdmeng/smrf/internal/config"
	"github.com/shepherdmeng/smrf/internal/distribute"
	"github.com/shepherdmeng/smrf/internal/domain"
	"github.com/shepherdmeng/smrf/internal/envphys"
	"github.com/shepherdmeng/smrf/internal/observability"
	"github.com/shepherdmeng/smrf/internal/output"
	"github.com/shepherdmeng/smrf/internal/pipeline"
)

// --- fakes ---

type fakeVar struct {
	name    string
	inputs  []domain.Variable
	outputs []domain.Variable
	fn      func(distribute.Step) (domain.Outputs, error)
}

func fake(name string, inputs []domain.Variable, outputs ...domain.Variable) *fakeVar {
	return &fakeVar{name: name, inputs: inputs, outputs: outputs}
}

func (f *fakeVar) Name() string                                             { return f.name }
func (f *fakeVar) Inputs() []domain.Variable                                { return f.inputs }
func (f *fakeVar) Outputs() []domain.Variable                               { return f.outputs }
func (f *fakeVar) Initialize(*domain.Terrain, domain.StationMetadata) error { return nil }

func (f *fakeVar) Distribute(step distribute.Step) (domain.Outputs, error) {
	if f.fn != nil {
		return f.fn(step)
	}
	out := domain.Outputs{}
	for _, v := range f.outputs {
		out[v] = domain.Scalar(float64(step.Time.Hour()))
	}
	return out, nil
}

// --- fixture ---

var (
	testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	t0         = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
)

func hourly(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = t0.Add(time.Duration(i) * time.Hour)
	}
	return out
}

func testTerrain(t *testing.T) *domain.Terrain {
	t.Helper()
	terrain, err := domain.NewTerrain(domain.FullGrid(3, 3, 2000),
		[]float64{0, 100, 200}, []float64{200, 100, 0}, nil)
	require.NoError(t, err)
	return terrain
}

// testDataset has three stations, constant -2 degC air and 1000 Pa vapor
// pressure, and 2 mm of precipitation at the third timestep only.
func testDataset(times []time.Time) *domain.Dataset {
	meta := domain.StationMetadata{
		"S1": {ID: "S1", X: 0, Y: 200, Elevation: 2000},
		"S2": {ID: "S2", X: 200, Y: 200, Elevation: 2000},
		"S3": {ID: "S3", X: 100, Y: 0, Elevation: 2000},
	}
	constant := map[domain.Variable]float64{
		domain.AirTemp:       -2,
		domain.VaporPressure: 1000,
		domain.WindSpeed:     3,
		domain.WindDirection: 270,
		domain.CloudFactor:   0.8,
	}

	series := make(map[domain.Variable]*domain.PointSeries)
	for v := range constant {
		series[v] = domain.NewPointSeries()
	}
	series[domain.Precip] = domain.NewPointSeries()
	for i, t := range times {
		for id := range meta {
			for v, value := range constant {
				series[v].Set(t, id, value)
			}
			p := 0.0
			if i == 2 {
				p = 2
			}
			series[domain.Precip].Set(t, id, p)
		}
	}
	return &domain.Dataset{Metadata: meta, Series: series}
}

func idw(lo *float64) domain.VariableConfig {
	return domain.VariableConfig{Distribution: "idw", Min: lo}
}

func precipVars() []distribute.Variable {
	return []distribute.Variable{
		distribute.NewPrecip(idw(domain.Float(0)), envphys.DefaultStormParams(), time.Hour, testLogger),
		distribute.NewVaporPressure(idw(domain.Float(10)), testLogger),
		distribute.NewAirTemp(idw(nil), testLogger),
	}
}

func newOrchestrator(t *testing.T, vars []distribute.Variable, ds *domain.Dataset, times []time.Time, sink output.Sink, opts pipeline.Options) (*pipeline.Orchestrator, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	o, err := pipeline.New(vars, testTerrain(t), ds, times, sink, testLogger, metrics, opts)
	require.NoError(t, err)
	return o, metrics
}

// --- tests ---

func TestOrchestrator_SnowStormScenario(t *testing.T) {
	for _, threading := range []bool{false, true} {
		name := "sequential"
		if threading {
			name = "concurrent"
		}
		t.Run(name, func(t *testing.T) {
			times := hourly(4)
			sink := output.NewMemorySink()
			o, _ := newOrchestrator(t, precipVars(), testDataset(times), times, sink,
				pipeline.Options{Threading: threading, MaxDepth: 1, Timeout: 5 * time.Second})

			require.NoError(t, o.Run(context.Background()))

			get := func(v domain.Variable, i int) domain.Grid {
				g, ok := sink.Get(v, times[i])
				require.True(t, ok, "%s at step %d", v, i)
				return g
			}

			for k := 0; k < 9; k++ {
				assert.InDelta(t, -2.2, get(domain.DewPoint, 2).Data[k], 1e-9, "dew point clipped")
				assert.Equal(t, 0.0, get(domain.PercentSnow, 1).Data[k], "dry pixels have no phase")
				assert.Equal(t, 1.0, get(domain.PercentSnow, 2).Data[k])
				assert.Equal(t, 150.0, get(domain.SnowDensity, 2).Data[k])
				assert.Equal(t, 0.0, get(domain.StormDays, 2).Data[k])
				assert.InDelta(t, 2.0, get(domain.StormTotal, 2).Data[k], 1e-9)
				assert.InDelta(t, 2.0/24, get(domain.StormDays, 1).Data[k], 1e-12)
				assert.InDelta(t, 1.0/24, get(domain.StormDays, 3).Data[k], 1e-12)
				assert.Equal(t, 0.0, get(domain.StormTotal, 3).Data[k])
			}
			assert.Equal(t, times, sink.Times())
			require.NoError(t, o.CheckReadiness(context.Background()))

			status := o.RunStatus()
			assert.Equal(t, pipeline.StateFinished, status.State)
			assert.Equal(t, 4, status.Emitted)
			assert.NotEmpty(t, status.RunID)
		})
	}
}

func TestOrchestrator_ConcurrentMatchesSequential(t *testing.T) {
	doc := `
[time]
start = "2024-01-10 00:00"
end = "2024-01-10 05:00"

[topo]
basin_lat = 43.6
basin_lon = -116.2

[output]
frequency = 2
`
	forcing, err := config.ParseForcing(doc)
	require.NoError(t, err)
	times, err := forcing.Timesteps()
	require.NoError(t, err)
	require.Len(t, times, 6)

	run := func(opts pipeline.Options) *output.MemorySink {
		vars, err := distribute.Build(forcing, testLogger)
		require.NoError(t, err)
		sink := output.NewMemorySink()
		opts.Frequency = forcing.Output.Frequency
		o, _ := newOrchestrator(t, vars, testDataset(times), times, sink, opts)
		require.NoError(t, o.Run(context.Background()))
		return sink
	}

	seq := run(pipeline.Options{})
	conc := run(pipeline.Options{Threading: true, MaxDepth: 1})
	deep := run(pipeline.Options{Threading: true, MaxDepth: 4})

	assert.Equal(t, []time.Time{times[0], times[2], times[4], times[5]}, seq.Times())
	if diff := cmp.Diff(seq.Records(), conc.Records()); diff != "" {
		t.Errorf("concurrent run differs (-sequential +concurrent):\n%s", diff)
	}
	if diff := cmp.Diff(seq.Records(), deep.Records()); diff != "" {
		t.Errorf("deep-queue run differs (-sequential +concurrent):\n%s", diff)
	}
}

func TestOrchestrator_ConcurrentConsumerSortsBeforeInput(t *testing.T) {
	// "a" is read by nobody and sorts before its input "z".
	vars := []distribute.Variable{
		fake("zsrc", nil, "z"),
		fake("b", []domain.Variable{"z"}, "a"),
	}
	times := hourly(4)

	tests := []struct {
		name  string
		depth int
	}{
		{"max depth 1", 1},
		{"max depth 8", 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := output.NewMemorySink()
			o, _ := newOrchestrator(t, vars, &domain.Dataset{}, times, sink,
				pipeline.Options{Threading: true, MaxDepth: tt.depth})

			require.NoError(t, o.Run(context.Background()))
			assert.Equal(t, times, sink.Times())
			for _, ts := range times {
				g, ok := sink.Get("a", ts)
				require.True(t, ok)
				assert.InDelta(t, float64(ts.Hour()), g.Value(), 0)
			}
		})
	}
}

func TestOrchestrator_DependencyOrderOfBuiltDistributors(t *testing.T) {
	forcing, err := config.ParseForcing("[time]\nstart = \"2024-01-10 00:00\"\nend = \"2024-01-10 01:00\"\n")
	require.NoError(t, err)
	vars, err := distribute.Build(forcing, testLogger)
	require.NoError(t, err)

	g, err := pipeline.NewGraph(vars)
	require.NoError(t, err)

	pos := map[string]int{}
	for i, name := range names(g.Order()) {
		pos[name] = i
	}
	assert.Less(t, pos["air_temp"], pos["vapor_pressure"])
	assert.Less(t, pos["vapor_pressure"], pos["precip"])
	assert.Less(t, pos["precip"], pos["albedo"])
	assert.Less(t, pos["sun"], pos["albedo"])
	assert.Less(t, pos["albedo"], pos["solar"])
	assert.Less(t, pos["solar"], pos["thermal"])
	assert.Equal(t, []string{"albedo"}, names(g.Consumers(domain.StormDays)))
}

func TestOrchestrator_OutputSelection(t *testing.T) {
	times := hourly(3)
	sink := output.NewMemorySink()
	o, metrics := newOrchestrator(t, precipVars(), testDataset(times), times, sink,
		pipeline.Options{Threading: true, Variables: []domain.Variable{domain.Precip, domain.DewPoint}})

	require.NoError(t, o.Run(context.Background()))
	assert.Len(t, sink.Records(), 6)
	_, ok := sink.Get(domain.AirTemp, times[0])
	assert.False(t, ok)
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.GridsEmitted.WithLabelValues("precip")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.StepsDistributed.WithLabelValues("air_temp")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.PipelineRunning))
}

func TestOrchestrator_UnknownOutputVariable(t *testing.T) {
	times := hourly(1)
	_, err := pipeline.New(precipVars(), testTerrain(t), testDataset(times), times, output.Discard{},
		testLogger, observability.NewMetricsForTesting(), pipeline.Options{Variables: []domain.Variable{domain.Thermal}})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestOrchestrator_AllValuesMissingAborts(t *testing.T) {
	for _, threading := range []bool{false, true} {
		times := hourly(3)
		ds := testDataset(times)
		gap := domain.NewPointSeries()
		for _, ts := range []time.Time{times[0], times[2]} {
			for id := range ds.Metadata {
				gap.Set(ts, id, -2)
			}
		}
		ds.Series[domain.AirTemp] = gap

		sink := output.NewMemorySink()
		o, metrics := newOrchestrator(t, precipVars(), ds, times, sink,
			pipeline.Options{Threading: threading, Timeout: 5 * time.Second})

		err := o.Run(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrAllValuesMissing)

		var stepErr *domain.StepError
		require.ErrorAs(t, err, &stepErr)
		assert.Equal(t, domain.AirTemp, stepErr.Variable)
		assert.Equal(t, times[1], stepErr.Time)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RunFailures.WithLabelValues("missing")))

		_, ok := sink.Get(domain.AirTemp, times[1])
		assert.False(t, ok, "nothing emitted for the failed step")
	}
}

func TestOrchestrator_StallTimesOut(t *testing.T) {
	slow := fake("slow", nil, "slow_out")
	first := true
	slow.fn = func(step distribute.Step) (domain.Outputs, error) {
		if first {
			first = false
			time.Sleep(300 * time.Millisecond)
		}
		return domain.Outputs{"slow_out": domain.Scalar(1)}, nil
	}
	vars := []distribute.Variable{slow, fake("fast", []domain.Variable{"slow_out"}, "fast_out")}

	times := hourly(3)
	o, metrics := newOrchestrator(t, vars, &domain.Dataset{}, times, output.Discard{},
		pipeline.Options{Threading: true, MaxDepth: 1, Timeout: 50 * time.Millisecond})

	err := o.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPipelineStall)
	assert.ErrorIs(t, err, domain.ErrQueueTimeout)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RunFailures.WithLabelValues("stall")))
	assert.Error(t, o.CheckReadiness(context.Background()))
	assert.Equal(t, pipeline.StateFailed, o.RunStatus().State)
	assert.Contains(t, o.RunStatus().Error, "pipeline stall")
}

func TestOrchestrator_MissingDeclaredOutput(t *testing.T) {
	broken := fake("broken", nil, "a", "b")
	broken.fn = func(distribute.Step) (domain.Outputs, error) {
		return domain.Outputs{"a": domain.Scalar(1)}, nil
	}

	times := hourly(2)
	o, _ := newOrchestrator(t, []distribute.Variable{broken}, &domain.Dataset{}, times, output.Discard{}, pipeline.Options{})
	err := o.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b at")
	assert.Contains(t, err.Error(), "not produced by broken")
}

type failingSink struct{}

func (failingSink) Emit(context.Context, domain.Variable, time.Time, domain.Grid) error {
	return errors.New("disk full")
}

func TestOrchestrator_SinkFailure(t *testing.T) {
	times := hourly(2)
	o, metrics := newOrchestrator(t, []distribute.Variable{fake("a", nil, "a")}, &domain.Dataset{}, times, failingSink{},
		pipeline.Options{Threading: true, Timeout: time.Second})

	err := o.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RunFailures.WithLabelValues("sink")))
}

func TestOrchestrator_ContextCancelled(t *testing.T) {
	times := hourly(2)
	o, _ := newOrchestrator(t, precipVars(), testDataset(times), times, output.Discard{}, pipeline.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, o.Run(ctx), context.Canceled)
}
