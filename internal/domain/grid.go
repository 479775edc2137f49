package domain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Grid is a dense row-major (ny, nx) array.
type Grid struct {
	Ny   int
	Nx   int
	Data []float64
}

// NewGrid returns a zero-filled grid.
func NewGrid(ny, nx int) Grid {
	return Grid{Ny: ny, Nx: nx, Data: make([]float64, ny*nx)}
}

// FullGrid returns a grid with every element set to v.
func FullGrid(ny, nx int, v float64) Grid {
	g := NewGrid(ny, nx)
	for i := range g.Data {
		g.Data[i] = v
	}
	return g
}

// Scalar wraps a single value as a 1x1 grid.
func Scalar(v float64) Grid {
	return Grid{Ny: 1, Nx: 1, Data: []float64{v}}
}

// Len returns the number of elements.
func (g Grid) Len() int { return len(g.Data) }

// IsScalar reports whether the grid holds a single value.
func (g Grid) IsScalar() bool { return len(g.Data) == 1 }

// Value returns the first element; meaningful for scalar grids.
func (g Grid) Value() float64 {
	if len(g.Data) == 0 {
		return math.NaN()
	}
	return g.Data[0]
}

// At returns the element at row i, column j.
func (g Grid) At(i, j int) float64 { return g.Data[i*g.Nx+j] }

// Set assigns the element at row i, column j.
func (g Grid) Set(i, j int, v float64) { g.Data[i*g.Nx+j] = v }

// Clone returns a deep copy.
func (g Grid) Clone() Grid {
	out := Grid{Ny: g.Ny, Nx: g.Nx, Data: make([]float64, len(g.Data))}
	copy(out.Data, g.Data)
	return out
}

// SameShape reports whether o has the same dimensions as g.
func (g Grid) SameShape(o Grid) bool { return g.Ny == o.Ny && g.Nx == o.Nx }

// Clamp limits every element to [lo, hi] in place and returns g.
// NaN elements are left untouched.
func (g Grid) Clamp(lo, hi float64) Grid {
	for i, v := range g.Data {
		switch {
		case v < lo:
			g.Data[i] = lo
		case v > hi:
			g.Data[i] = hi
		}
	}
	return g
}

// Max returns the largest element.
func (g Grid) Max() float64 {
	if len(g.Data) == 0 {
		return math.NaN()
	}
	return floats.Max(g.Data)
}

// Sum returns the sum of all elements.
func (g Grid) Sum() float64 { return floats.Sum(g.Data) }

// HasNaN reports whether any element is NaN.
func (g Grid) HasNaN() bool { return floats.HasNaN(g.Data) }

// MaskedMax returns the largest element where mask is true. A nil mask
// covers the whole grid.
func (g Grid) MaskedMax(mask []bool) float64 {
	if mask == nil {
		return g.Max()
	}
	best := math.Inf(-1)
	for i, v := range g.Data {
		if mask[i] && v > best {
			best = v
		}
	}
	return best
}

// CheckShape returns an error when o does not match g's shape.
func (g Grid) CheckShape(o Grid, name string) error {
	if !g.SameShape(o) {
		return fmt.Errorf("%s: shape (%d,%d) does not match (%d,%d)", name, o.Ny, o.Nx, g.Ny, g.Nx)
	}
	return nil
}

// Range returns the smallest and largest elements.
func (g Grid) Range() (float64, float64) {
	if len(g.Data) == 0 {
		return math.NaN(), math.NaN()
	}
	return floats.Min(g.Data), floats.Max(g.Data)
}
