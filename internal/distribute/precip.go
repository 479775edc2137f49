package distribute

import (
	"log/slog"
	"math"
	"time"

	"github.com/shepherdmeng/smrf/internal/domain"
	"github.com/shepherdmeng/smrf/internal/envphys"
)

// Precip distributes precipitation (mm per step), splits it into phase
// with the dew point and tracks storms. It is the only stateful
// distributor; its StormState lives for one run.
type Precip struct {
	Base
	params   envphys.StormParams
	stepDays float64
	mask     []bool
	storm    *envphys.StormState
}

// NewPrecip returns a precipitation distributor for a run with the given
// timestep.
func NewPrecip(cfg domain.VariableConfig, params envphys.StormParams, step time.Duration, logger *slog.Logger) *Precip {
	return &Precip{
		Base:     NewBase(string(domain.Precip), cfg, logger),
		params:   params,
		stepDays: step.Hours() / 24,
	}
}

func (d *Precip) Name() string              { return string(domain.Precip) }
func (d *Precip) Inputs() []domain.Variable { return []domain.Variable{domain.DewPoint} }

func (d *Precip) Outputs() []domain.Variable {
	return append(d.withVariance(domain.Precip),
		domain.PercentSnow,
		domain.SnowDensity,
		domain.StormDays,
		domain.StormTotal,
		domain.LastStormDay,
		domain.LastStormDayBasin,
	)
}

// Initialize fits the strategy and starts a fresh storm state.
func (d *Precip) Initialize(terrain *domain.Terrain, meta domain.StationMetadata) error {
	if err := d.Base.Initialize(terrain, meta); err != nil {
		return err
	}
	ny, nx := terrain.Shape()
	d.storm = envphys.NewStormState(ny, nx)
	d.mask = terrain.Mask
	return nil
}

// Distribute produces the precipitation grid and advances the storm state.
// When every reporting station is dry the grid is zero without
// interpolating.
func (d *Precip) Distribute(step Step) (domain.Outputs, error) {
	dpt, err := step.Input(domain.DewPoint)
	if err != nil {
		return nil, err
	}

	out := domain.Outputs{}
	values := d.Values(step.Points[domain.Precip])
	var precip domain.Grid
	if allDry(values) {
		precip = d.terrain.Zeros()
		if len(d.withVariance(domain.Precip)) > 1 {
			out[domain.Precip.Variance()] = d.terrain.Zeros()
		}
	} else {
		res, err := d.InterpolateValues(values, d.cfg.Detrend, true)
		if err != nil {
			return nil, err
		}
		precip = res.Grid
		addVariance(out, domain.Precip, res)
	}

	ps, sd := envphys.MkPrecip(precip, dpt)
	d.storm.Advance(precip, ps, d.stepDays, d.params)
	last, basin := d.storm.LastStormDay(domain.WaterDay(step.Time), d.mask)

	out[domain.Precip] = precip
	out[domain.PercentSnow] = ps
	out[domain.SnowDensity] = sd
	out[domain.StormDays] = d.storm.Days.Clone()
	out[domain.StormTotal] = d.storm.Precip.Clone()
	out[domain.LastStormDay] = last
	out[domain.LastStormDayBasin] = domain.Scalar(basin)
	return out, nil
}

// allDry reports whether at least one station reported and every report
// is zero.
func allDry(values []float64) bool {
	seen := false
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if v != 0 {
			return false
		}
		seen = true
	}
	return seen
}
