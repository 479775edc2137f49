package domain

import (
	"fmt"
	"math"
)

// Terrain is the fixed modelling domain. It is immutable after NewTerrain
// returns and shared read-only by every distributor.
type Terrain struct {
	Elevation Grid
	Mask      []bool
	Slope     Grid
	Aspect    Grid
	X         []float64 // len nx, eastings
	Y         []float64 // len ny, northings
}

// NewTerrain validates the inputs and derives slope and aspect when they are
// not supplied. A nil mask means every pixel is inside the basin.
func NewTerrain(elevation Grid, x, y []float64, mask []bool) (*Terrain, error) {
	if elevation.Ny == 0 || elevation.Nx == 0 {
		return nil, fmt.Errorf("%w: empty elevation grid", ErrConfiguration)
	}
	if len(x) != elevation.Nx || len(y) != elevation.Ny {
		return nil, fmt.Errorf("%w: coordinate vectors (%d,%d) do not match grid (%d,%d)",
			ErrConfiguration, len(y), len(x), elevation.Ny, elevation.Nx)
	}
	if mask == nil {
		mask = make([]bool, elevation.Len())
		for i := range mask {
			mask[i] = true
		}
	}
	if len(mask) != elevation.Len() {
		return nil, fmt.Errorf("%w: mask has %d cells, grid has %d", ErrConfiguration, len(mask), elevation.Len())
	}

	slope, aspect := SlopeAspect(elevation, x, y)
	return &Terrain{
		Elevation: elevation,
		Mask:      mask,
		Slope:     slope,
		Aspect:    aspect,
		X:         x,
		Y:         y,
	}, nil
}

// Shape returns (ny, nx).
func (t *Terrain) Shape() (int, int) { return t.Elevation.Ny, t.Elevation.Nx }

// Zeros returns a zero grid with the terrain's shape.
func (t *Terrain) Zeros() Grid { return NewGrid(t.Elevation.Ny, t.Elevation.Nx) }

// PixelXY returns the projected coordinates of flattened pixel k.
func (t *Terrain) PixelXY(k int) (float64, float64) {
	return t.X[k%t.Elevation.Nx], t.Y[k/t.Elevation.Nx]
}

// SlopeAspect computes slope (degrees) and aspect (degrees clockwise from
// north, downslope) with the Horn (1981) 3x3 kernel. Edges reflect.
func SlopeAspect(dem Grid, x, y []float64) (Grid, Grid) {
	ny, nx := dem.Ny, dem.Nx
	slope := NewGrid(ny, nx)
	aspect := NewGrid(ny, nx)

	cellX := meanStep(x)
	cellY := meanStep(y)

	at := func(i, j int) float64 {
		i = reflectIndex(i, ny)
		j = reflectIndex(j, nx)
		return dem.At(i, j)
	}

	for i := 0; i < ny; i++ {
		for j := 0; j < nx; j++ {
			a, b, c := at(i-1, j-1), at(i-1, j), at(i-1, j+1)
			d, f := at(i, j-1), at(i, j+1)
			g, h, k := at(i+1, j-1), at(i+1, j), at(i+1, j+1)

			var dzdx, dzdy float64
			if cellX != 0 {
				dzdx = ((c + 2*f + k) - (a + 2*d + g)) / (8 * cellX)
			}
			if cellY != 0 {
				dzdy = ((g + 2*h + k) - (a + 2*b + c)) / (8 * cellY)
			}

			tangent := math.Hypot(dzdx, dzdy)
			slope.Set(i, j, math.Atan(tangent)*180/math.Pi)
			if tangent == 0 {
				aspect.Set(i, j, -1)
				continue
			}
			az := math.Atan2(-dzdx, -dzdy) * 180 / math.Pi
			if az < 0 {
				az += 360
			}
			aspect.Set(i, j, az)
		}
	}
	return slope, aspect
}

func meanStep(v []float64) float64 {
	if len(v) < 2 {
		return 0
	}
	return (v[len(v)-1] - v[0]) / float64(len(v)-1)
}

func reflectIndex(i, n int) int {
	switch {
	case i < 0:
		return 0
	case i >= n:
		return n - 1
	}
	return i
}
