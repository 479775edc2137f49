// Package envphys holds the physical transforms applied after
// interpolation: precipitation phase, storm tracking, dew point, radiation
// and sun geometry. Everything here is a plain function of its inputs or of
// explicitly threaded state.
package envphys

import (
	"math"

	"github.com/shepherdmeng/smrf/internal/domain"
)

// PhaseBucket maps a half-open precipitation temperature range [Min, Max)
// to a snow fraction and new snow density (kg/m^3).
type PhaseBucket struct {
	Min         float64
	Max         float64
	PercentSnow float64
	Density     float64
}

// PhaseTable is the precipitation phase lookup, after Susong et al. (1999).
var PhaseTable = []PhaseBucket{
	{Min: math.Inf(-1), Max: -5, PercentSnow: 1, Density: 75},
	{Min: -5, Max: -3, PercentSnow: 1, Density: 100},
	{Min: -3, Max: -1.5, PercentSnow: 1, Density: 150},
	{Min: -1.5, Max: -0.5, PercentSnow: 1, Density: 175},
	{Min: -0.5, Max: 0, PercentSnow: 0.75, Density: 200},
	{Min: 0, Max: 0.5, PercentSnow: 0.25, Density: 250},
	{Min: 0.5, Max: math.Inf(1), PercentSnow: 0, Density: 0},
}

// Phase looks up the bucket for a single temperature. NaN matches nothing
// and yields zeros.
func Phase(temp float64) (percentSnow, density float64) {
	for _, b := range PhaseTable {
		if temp >= b.Min && temp < b.Max {
			return b.PercentSnow, b.Density
		}
	}
	return 0, 0
}

// MkPrecip returns the snow fraction and new snow density for every pixel
// from the precipitation grid and a precipitation temperature grid (dew
// point when available). Pixels without precipitation report zero for both.
func MkPrecip(precip, temp domain.Grid) (percentSnow, density domain.Grid) {
	percentSnow = domain.NewGrid(precip.Ny, precip.Nx)
	density = domain.NewGrid(precip.Ny, precip.Nx)
	for k, p := range precip.Data {
		if p == 0 {
			continue
		}
		percentSnow.Data[k], density.Data[k] = Phase(temp.Data[k])
	}
	return percentSnow, density
}
