package spatial

import (
	"fmt"
	"math"

	"github.com/shepherdmeng/smrf/internal/domain"
)

// IDW is inverse distance weighting with w = 1/d^power.
type IDW struct {
	stations  stationSet
	elevation domain.Grid
	power     float64
	dist      [][]float64 // per pixel, per station
}

// Fit precomputes pixel to station distances.
func (m *IDW) Fit(stations []domain.Station, terrain *domain.Terrain, cfg domain.VariableConfig) error {
	if len(stations) == 0 {
		return fmt.Errorf("%w: idw needs at least one station", domain.ErrInsufficientStations)
	}
	m.power = cfg.Power
	if m.power == 0 {
		m.power = 2
	}
	if m.power < 0 {
		return fmt.Errorf("%w: idw power %v must be positive", domain.ErrConfiguration, m.power)
	}

	m.stations = newStationSet(stations, cfg.Slope)
	m.elevation = terrain.Elevation
	n := terrain.Elevation.Len()
	m.dist = make([][]float64, n)
	for k := 0; k < n; k++ {
		px, py := terrain.PixelXY(k)
		row := make([]float64, len(stations))
		for i := range stations {
			row[i] = math.Hypot(px-m.stations.x[i], py-m.stations.y[i])
		}
		m.dist[k] = row
	}
	return nil
}

// Estimate interpolates one timestep.
func (m *IDW) Estimate(values []float64, detrend bool) (Result, error) {
	vals, valid, trend, err := m.stations.prepare(values, detrend)
	if err != nil {
		return Result{}, err
	}

	out := domain.NewGrid(m.elevation.Ny, m.elevation.Nx)
	for k, dist := range m.dist {
		if i := coincident(dist, valid); i >= 0 {
			out.Data[k] = vals[i]
			continue
		}
		w := normalizedWeights(dist, valid, m.power)
		var sum float64
		for i, wi := range w {
			if wi != 0 {
				sum += wi * vals[i]
			}
		}
		out.Data[k] = sum
	}
	retrend(out, m.elevation, trend)
	return Result{Grid: out}, nil
}

// normalizedWeights returns 1/d^power for valid stations at a non-zero
// distance, scaled to sum to one. Invalid or coincident stations get zero.
func normalizedWeights(dist []float64, valid []bool, power float64) []float64 {
	w := make([]float64, len(dist))
	var total float64
	for i, d := range dist {
		if !valid[i] || d == 0 {
			continue
		}
		w[i] = 1 / math.Pow(d, power)
		total += w[i]
	}
	if total == 0 || math.IsInf(total, 0) {
		return w
	}
	for i := range w {
		w[i] /= total
	}
	return w
}

// coincident returns the first valid station sitting exactly on the pixel.
func coincident(dist []float64, valid []bool) int {
	for i, d := range dist {
		if d == 0 && valid[i] {
			return i
		}
	}
	return -1
}
