package envphys

import (
	"math"

	"github.com/shepherdmeng/smrf/internal/domain"
)

// WindComponents splits compass directions (degrees) into unit east (u)
// and north (v) components so they can be interpolated without the 0/360
// wrap.
func WindComponents(direction []float64) (u, v []float64) {
	u = make([]float64, len(direction))
	v = make([]float64, len(direction))
	for i, d := range direction {
		rad := d * math.Pi / 180
		u[i] = math.Sin(rad)
		v[i] = math.Cos(rad)
	}
	return u, v
}

// WindDirection rebuilds a compass direction in [0, 360) from interpolated
// components.
func WindDirection(u, v domain.Grid) domain.Grid {
	out := domain.NewGrid(u.Ny, u.Nx)
	for k := range out.Data {
		d := math.Atan2(u.Data[k], v.Data[k]) * 180 / math.Pi
		if d < 0 {
			d += 360
		}
		out.Data[k] = d
	}
	return out
}
