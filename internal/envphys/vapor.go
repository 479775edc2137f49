package envphys

import (
	"fmt"
	"math"

	"github.com/shepherdmeng/smrf/internal/domain"
)

// Magnus coefficients over water (Alduchov and Eskridge 1996), Pa and degC.
const (
	magnusE0 = 610.94
	magnusA  = 17.625
	magnusB  = 243.04
)

// DewPointOffset is how far below air temperature a clipped dew point sits.
const DewPointOffset = 0.2

// SaturationVaporPressure returns e_s in Pa for a temperature in degC.
func SaturationVaporPressure(ta float64) float64 {
	return magnusE0 * math.Exp(magnusA*ta/(magnusB+ta))
}

// DewPoint returns the dew point (degC) of every pixel of a vapor pressure
// grid in Pa. A pixel that is not strictly positive has no dew point and
// fails with domain.ErrNumericDomain.
func DewPoint(vp domain.Grid) (domain.Grid, error) {
	out := domain.NewGrid(vp.Ny, vp.Nx)
	for k, e := range vp.Data {
		if e <= 0 || math.IsNaN(e) {
			return domain.Grid{}, fmt.Errorf("%w: vapor pressure %g Pa at pixel %d has no dew point",
				domain.ErrNumericDomain, e, k)
		}
		x := math.Log(e / magnusE0)
		out.Data[k] = magnusB * x / (magnusA - x)
	}
	return out, nil
}

// ClipDewPoint lowers the dew point to ta - DewPointOffset wherever it is
// not below the air temperature. It modifies dpt in place and returns the
// number of clipped pixels.
func ClipDewPoint(dpt, ta domain.Grid) int {
	n := 0
	for k, d := range dpt.Data {
		if d >= ta.Data[k] {
			dpt.Data[k] = ta.Data[k] - DewPointOffset
			n++
		}
	}
	return n
}
