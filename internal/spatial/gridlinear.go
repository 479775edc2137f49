package spatial

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shepherdmeng/smrf/internal/domain"
)

// GridLinear interpolates stations that sit on a regular rectilinear mesh,
// such as the cell centres of a coarser gridded product.
type GridLinear struct {
	stations  stationSet
	elevation domain.Grid
	nearest   bool

	meshX, meshY []float64
	node         [][]int // [iy][ix] -> station index
	cells        []cell  // per pixel
}

type cell struct {
	x, y   float64 // pixel coordinates
	ix, iy int     // lower-left mesh node
	fx, fy float64 // fractional position inside the cell, clamped to [0,1]
}

// Fit checks that the stations form a complete mesh and locates every pixel
// inside it. Pixels outside the mesh use the nearest edge cell.
func (m *GridLinear) Fit(stations []domain.Station, terrain *domain.Terrain, cfg domain.VariableConfig) error {
	switch strings.ToLower(cfg.GridMethod) {
	case "", "linear":
	case "nearest":
		m.nearest = true
	default:
		return fmt.Errorf("%w: unknown grid_method %q", domain.ErrConfiguration, cfg.GridMethod)
	}

	m.stations = newStationSet(stations, cfg.Slope)
	m.elevation = terrain.Elevation
	m.meshX = uniqueSorted(m.stations.x)
	m.meshY = uniqueSorted(m.stations.y)
	if len(m.meshX) < 2 || len(m.meshY) < 2 {
		return fmt.Errorf("%w: grid method needs at least 2x2 mesh nodes", domain.ErrInsufficientStations)
	}
	if len(m.meshX)*len(m.meshY) != len(stations) {
		return fmt.Errorf("%w: %d stations do not form a %dx%d mesh",
			domain.ErrConfiguration, len(stations), len(m.meshX), len(m.meshY))
	}

	m.node = make([][]int, len(m.meshY))
	for iy := range m.node {
		m.node[iy] = make([]int, len(m.meshX))
		for ix := range m.node[iy] {
			m.node[iy][ix] = -1
		}
	}
	for i := range stations {
		ix := sort.SearchFloat64s(m.meshX, m.stations.x[i])
		iy := sort.SearchFloat64s(m.meshY, m.stations.y[i])
		if m.node[iy][ix] >= 0 {
			return fmt.Errorf("%w: stations %s and %s share a mesh node",
				domain.ErrConfiguration, stations[m.node[iy][ix]].ID, stations[i].ID)
		}
		m.node[iy][ix] = i
	}

	n := terrain.Elevation.Len()
	m.cells = make([]cell, n)
	for k := 0; k < n; k++ {
		px, py := terrain.PixelXY(k)
		ix, fx := locate(m.meshX, px)
		iy, fy := locate(m.meshY, py)
		m.cells[k] = cell{x: px, y: py, ix: ix, iy: iy, fx: fx, fy: fy}
	}
	return nil
}

// Estimate interpolates one timestep. Missing corners are dropped and the
// remaining weights renormalised; a cell with no valid corner takes the
// nearest valid station.
func (m *GridLinear) Estimate(values []float64, detrend bool) (Result, error) {
	vals, valid, trend, err := m.stations.prepare(values, detrend)
	if err != nil {
		return Result{}, err
	}

	out := domain.NewGrid(m.elevation.Ny, m.elevation.Nx)
	for k, c := range m.cells {
		if m.nearest {
			out.Data[k] = vals[m.nearestValid(c, valid)]
			continue
		}

		corners := [4]int{
			m.node[c.iy][c.ix], m.node[c.iy][c.ix+1],
			m.node[c.iy+1][c.ix], m.node[c.iy+1][c.ix+1],
		}
		weights := [4]float64{
			(1 - c.fx) * (1 - c.fy), c.fx * (1 - c.fy),
			(1 - c.fx) * c.fy, c.fx * c.fy,
		}
		var sum, total float64
		for q, i := range corners {
			if valid[i] {
				sum += weights[q] * vals[i]
				total += weights[q]
			}
		}
		if total > 0 {
			out.Data[k] = sum / total
			continue
		}
		out.Data[k] = vals[m.nearestValid(c, valid)]
	}
	retrend(out, m.elevation, trend)
	return Result{Grid: out}, nil
}

func (m *GridLinear) nearestValid(c cell, valid []bool) int {
	best, bestDist := -1, math.Inf(1)
	for i, ok := range valid {
		if !ok {
			continue
		}
		if d := math.Hypot(c.x-m.stations.x[i], c.y-m.stations.y[i]); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// locate returns the lower node index and the clamped fraction of v in mesh.
func locate(mesh []float64, v float64) (int, float64) {
	i := sort.SearchFloat64s(mesh, v) - 1
	if i < 0 {
		i = 0
	}
	if i > len(mesh)-2 {
		i = len(mesh) - 2
	}
	f := (v - mesh[i]) / (mesh[i+1] - mesh[i])
	return i, math.Min(math.Max(f, 0), 1)
}

func uniqueSorted(v []float64) []float64 {
	out := append([]float64(nil), v...)
	sort.Float64s(out)
	n := 0
	for i, x := range out {
		if i == 0 || x != out[n-1] {
			out[n] = x
			n++
		}
	}
	return out[:n]
}
