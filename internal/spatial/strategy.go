// Package spatial turns a handful of station values into a dense grid over
// the terrain. Every method satisfies Strategy so callers never special-case
// one.
package spatial

import (
	"fmt"
	"math"

	"github.com/shepherdmeng/smrf/internal/domain"
)

// Result is one timestep's estimate. Variance is set only by the kriging
// methods.
type Result struct {
	Grid     domain.Grid
	Variance *domain.Grid
}

// Strategy is the uniform interpolation contract.
//
// Fit is called once with the station set in its final order. Estimate is
// called once per timestep with values in the same order; NaN marks a
// missing station. Estimate returns domain.ErrAllValuesMissing when nothing
// is usable and never returns NaN otherwise. Implementations are not safe
// for concurrent use; each distributor owns its own instance.
type Strategy interface {
	Fit(stations []domain.Station, terrain *domain.Terrain, cfg domain.VariableConfig) error
	Estimate(values []float64, detrend bool) (Result, error)
}

// New returns an unfitted strategy for method.
func New(method domain.Method) (Strategy, error) {
	switch method {
	case domain.MethodIDW:
		return &IDW{}, nil
	case domain.MethodDK:
		return &Kriging{alwaysDetrend: true}, nil
	case domain.MethodKriging:
		return &Kriging{}, nil
	case domain.MethodGrid:
		return &GridLinear{}, nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownMethod, method)
}

// stationSet is the fitted station geometry shared by every method.
type stationSet struct {
	x, y, z []float64
	slope   int
}

func newStationSet(stations []domain.Station, slope int) stationSet {
	s := stationSet{
		x:     make([]float64, len(stations)),
		y:     make([]float64, len(stations)),
		z:     make([]float64, len(stations)),
		slope: slope,
	}
	for i, st := range stations {
		s.x[i], s.y[i], s.z[i] = st.X, st.Y, st.Elevation
	}
	return s
}

// prepare checks values against the station set, optionally removes the
// elevation trend and reports which stations are usable.
func (s stationSet) prepare(values []float64, detrend bool) ([]float64, []bool, Trend, error) {
	if len(values) != len(s.x) {
		return nil, nil, Trend{}, fmt.Errorf("%w: got %d values for %d stations",
			domain.ErrConfiguration, len(values), len(s.x))
	}
	valid := make([]bool, len(values))
	n := 0
	for i, v := range values {
		if !math.IsNaN(v) {
			valid[i] = true
			n++
		}
	}
	if n == 0 {
		return nil, nil, Trend{}, domain.ErrAllValuesMissing
	}
	if !detrend {
		return values, valid, Trend{}, nil
	}

	trend := FitTrend(s.z, values, valid, s.slope)
	resid := make([]float64, len(values))
	for i, v := range values {
		resid[i] = v - trend.At(s.z[i])
	}
	return resid, valid, trend, nil
}

// retrend adds the trend back at every pixel elevation.
func retrend(g domain.Grid, elevation domain.Grid, trend Trend) {
	if trend.isZero() {
		return
	}
	for k := range g.Data {
		g.Data[k] += trend.At(elevation.Data[k])
	}
}

func validPattern(valid []bool) string {
	b := make([]byte, len(valid))
	for i, ok := range valid {
		b[i] = '0'
		if ok {
			b[i] = '1'
		}
	}
	return string(b)
}
