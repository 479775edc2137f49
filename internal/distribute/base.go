// Package distribute holds one distributor per physical variable. Each
// distributor is initialized once against the terrain and station
// metadata, then called once per timestep in ascending time order.
package distribute

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/shepherdmeng/smrf/internal/domain"
	"github.com/shepherdmeng/smrf/internal/spatial"
)

// Step is everything a distributor sees for one timestep: the station
// samples of the measured variables and the grids of its upstream inputs.
type Step struct {
	Time   time.Time
	Points map[domain.Variable]domain.Sample
	Inputs domain.Outputs
}

// Input returns the upstream grid v or an error naming it.
func (s Step) Input(v domain.Variable) (domain.Grid, error) {
	g, ok := s.Inputs[v]
	if !ok {
		return domain.Grid{}, fmt.Errorf("missing input %s", v)
	}
	return g, nil
}

// Variable is the contract every distributor satisfies. Inputs and
// Outputs are static and define the dependency graph. Distribute must not
// retain the Step's input grids; the returned grids belong to the caller.
type Variable interface {
	Name() string
	Inputs() []domain.Variable
	Outputs() []domain.Variable
	Initialize(terrain *domain.Terrain, meta domain.StationMetadata) error
	Distribute(step Step) (domain.Outputs, error)
}

// Base is the interpolation half shared by every station-driven
// distributor: station subset, strategy and clamp limits.
type Base struct {
	name     string
	cfg      domain.VariableConfig
	logger   *slog.Logger
	stations []domain.Station
	strategy spatial.Strategy
	terrain  *domain.Terrain
	lo, hi   float64
}

// NewBase returns an uninitialized base for the named variable.
func NewBase(name string, cfg domain.VariableConfig, logger *slog.Logger) Base {
	lo, hi := cfg.Bounds()
	return Base{name: name, cfg: cfg, logger: logger.With("variable", name), lo: lo, hi: hi}
}

// Initialize resolves the station subset, sorted by id, and fits the
// configured strategy against the terrain.
func (b *Base) Initialize(terrain *domain.Terrain, meta domain.StationMetadata) error {
	method, err := domain.ParseMethod(b.cfg.Distribution)
	if err != nil {
		return fmt.Errorf("%s: %w", b.name, err)
	}
	stations, err := meta.Subset(b.cfg.Stations)
	if err != nil {
		return fmt.Errorf("%s: %w", b.name, err)
	}
	strategy, err := spatial.New(method)
	if err != nil {
		return fmt.Errorf("%s: %w", b.name, err)
	}
	if err := strategy.Fit(stations, terrain, b.cfg); err != nil {
		return fmt.Errorf("%s: %w", b.name, err)
	}

	b.stations = stations
	b.strategy = strategy
	b.terrain = terrain
	b.logger.Debug("distributor initialized", "method", method, "stations", len(stations))
	return nil
}

// Stations returns the active stations in interpolation order.
func (b *Base) Stations() []domain.Station { return b.stations }

// Values selects the active station columns from sample. Absent stations
// are NaN.
func (b *Base) Values(sample domain.Sample) []float64 {
	out := make([]float64, len(b.stations))
	for i, s := range b.stations {
		v, ok := sample[s.ID]
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}

// Interpolate distributes one sample and clamps the grid to [min, max].
func (b *Base) Interpolate(sample domain.Sample) (spatial.Result, error) {
	return b.InterpolateValues(b.Values(sample), b.cfg.Detrend, true)
}

// InterpolateValues distributes values already in station order. clamp
// controls whether [min, max] is applied.
func (b *Base) InterpolateValues(values []float64, detrend, clamp bool) (spatial.Result, error) {
	if b.strategy == nil {
		return spatial.Result{}, fmt.Errorf("%s: not initialized", b.name)
	}
	res, err := b.strategy.Estimate(values, detrend)
	if err != nil {
		return spatial.Result{}, err
	}
	if clamp {
		res.Grid.Clamp(b.lo, b.hi)
	}
	return res, nil
}

// withVariance appends the kriging variance name of each v when the
// configured method produces one.
func (b *Base) withVariance(vars ...domain.Variable) []domain.Variable {
	m, _ := domain.ParseMethod(b.cfg.Distribution)
	if m != domain.MethodDK && m != domain.MethodKriging {
		return vars
	}
	out := append([]domain.Variable(nil), vars...)
	for _, v := range vars {
		out = append(out, v.Variance())
	}
	return out
}

// addVariance stores the kriging variance next to v when there is one.
func addVariance(out domain.Outputs, v domain.Variable, res spatial.Result) {
	if res.Variance != nil {
		out[v.Variance()] = *res.Variance
	}
}
