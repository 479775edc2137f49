package spatial

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/shepherdmeng/smrf/internal/domain"
)

const collinearTolerance = 1e-9

// Kriging is ordinary kriging over the station residuals. With
// alwaysDetrend set it becomes detrended kriging: the elevation trend is
// removed before solving regardless of the per-call flag.
type Kriging struct {
	alwaysDetrend bool

	stations  stationSet
	elevation domain.Grid
	gamma     Variogram
	pixelX    []float64
	pixelY    []float64

	// Weights are solved once per missing-station pattern and reused
	// until the pattern changes.
	pattern string
	weights *mat.Dense // (n+1) x pixels, last row is the Lagrange multiplier
	rhs     *mat.Dense
	index   []int
}

// Fit validates the station geometry and builds the variogram.
func (m *Kriging) Fit(stations []domain.Station, terrain *domain.Terrain, cfg domain.VariableConfig) error {
	if len(stations) < 3 {
		return fmt.Errorf("%w: kriging needs 3 stations, have %d", domain.ErrInsufficientStations, len(stations))
	}
	m.stations = newStationSet(stations, cfg.Slope)
	if collinear(m.stations.x, m.stations.y) {
		return fmt.Errorf("%w: kriging stations are collinear", domain.ErrNumericDomain)
	}

	gamma, err := NewVariogram(cfg)
	if err != nil {
		return err
	}
	m.gamma = gamma
	m.elevation = terrain.Elevation

	n := terrain.Elevation.Len()
	m.pixelX = make([]float64, n)
	m.pixelY = make([]float64, n)
	for k := 0; k < n; k++ {
		m.pixelX[k], m.pixelY[k] = terrain.PixelXY(k)
	}
	m.pattern = ""
	return nil
}

// Estimate interpolates one timestep and reports the kriging variance.
func (m *Kriging) Estimate(values []float64, detrend bool) (Result, error) {
	vals, valid, trend, err := m.stations.prepare(values, detrend || m.alwaysDetrend)
	if err != nil {
		return Result{}, err
	}
	if key := validPattern(valid); key != m.pattern {
		if err := m.solve(valid); err != nil {
			return Result{}, err
		}
		m.pattern = key
	}

	ny, nx := m.elevation.Ny, m.elevation.Nx
	out := domain.NewGrid(ny, nx)
	variance := domain.NewGrid(ny, nx)
	n := len(m.index)
	for k := range out.Data {
		var est, sigma float64
		for r, i := range m.index {
			w := m.weights.At(r, k)
			est += w * vals[i]
			sigma += w * m.rhs.At(r, k)
		}
		sigma += m.weights.At(n, k)
		out.Data[k] = est
		variance.Data[k] = math.Max(sigma, 0)
	}
	retrend(out, m.elevation, trend)
	return Result{Grid: out, Variance: &variance}, nil
}

// solve factors the ordinary kriging system for the valid stations and
// solves it for every pixel at once.
func (m *Kriging) solve(valid []bool) error {
	m.index = m.index[:0]
	for i, ok := range valid {
		if ok {
			m.index = append(m.index, i)
		}
	}
	n := len(m.index)
	sx, sy := m.stations.x, m.stations.y

	a := mat.NewDense(n+1, n+1, nil)
	for r, i := range m.index {
		for c, j := range m.index {
			a.Set(r, c, m.gamma.At(math.Hypot(sx[i]-sx[j], sy[i]-sy[j])))
		}
		a.Set(r, n, 1)
		a.Set(n, r, 1)
	}

	pixels := len(m.pixelX)
	b := mat.NewDense(n+1, pixels, nil)
	for k := 0; k < pixels; k++ {
		for r, i := range m.index {
			b.Set(r, k, m.gamma.At(math.Hypot(m.pixelX[k]-sx[i], m.pixelY[k]-sy[i])))
		}
		b.Set(n, k, 1)
	}

	var lu mat.LU
	lu.Factorize(a)
	var x mat.Dense
	if err := lu.SolveTo(&x, false, b); err != nil {
		return fmt.Errorf("%w: kriging system: %v", domain.ErrNumericDomain, err)
	}
	m.weights = &x
	m.rhs = b
	return nil
}

// collinear reports whether every station lies on one line.
func collinear(x, y []float64) bool {
	scale := 0.0
	for i := range x {
		scale = math.Max(scale, math.Max(math.Abs(x[i]-x[0]), math.Abs(y[i]-y[0])))
	}
	if scale == 0 {
		return true
	}
	for i := 1; i < len(x); i++ {
		for j := i + 1; j < len(x); j++ {
			cross := (x[i]-x[0])*(y[j]-y[0]) - (y[i]-y[0])*(x[j]-x[0])
			if math.Abs(cross) > collinearTolerance*scale*scale {
				return false
			}
		}
	}
	return true
}

// Variogram is a semivariance model gamma(h).
type Variogram struct {
	Model  string
	Nugget float64
	Sill   float64
	Range  float64
}

// NewVariogram reads the variogram from cfg. The default is linear with
// unit slope; exponential and spherical require a positive sill and range.
func NewVariogram(cfg domain.VariableConfig) (Variogram, error) {
	v := Variogram{
		Model:  strings.ToLower(strings.TrimSpace(cfg.Variogram)),
		Nugget: cfg.Nugget,
		Sill:   cfg.Sill,
		Range:  cfg.Range,
	}
	switch v.Model {
	case "", "linear":
		v.Model = "linear"
	case "exponential", "spherical":
		if v.Sill <= 0 || v.Range <= 0 {
			return Variogram{}, fmt.Errorf("%w: %s variogram needs positive sill and range", domain.ErrConfiguration, v.Model)
		}
	default:
		return Variogram{}, fmt.Errorf("%w: unknown variogram %q", domain.ErrConfiguration, cfg.Variogram)
	}
	if v.Nugget < 0 {
		return Variogram{}, fmt.Errorf("%w: negative nugget", domain.ErrConfiguration)
	}
	return v, nil
}

// At returns gamma(h). gamma(0) is always zero.
func (v Variogram) At(h float64) float64 {
	if h == 0 {
		return 0
	}
	switch v.Model {
	case "exponential":
		return v.Nugget + v.Sill*(1-math.Exp(-3*h/v.Range))
	case "spherical":
		if h >= v.Range {
			return v.Nugget + v.Sill
		}
		r := h / v.Range
		return v.Nugget + v.Sill*(1.5*r-0.5*r*r*r)
	}
	slope := 1.0
	if v.Sill > 0 && v.Range > 0 {
		slope = v.Sill / v.Range
	}
	return v.Nugget + slope*h
}
