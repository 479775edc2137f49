package envphys

import "math"

// AlbedoParams describes snow albedo decay after a storm.
type AlbedoParams struct {
	MaxVis, MinVis float64
	MaxIR, MinIR   float64
	DecayDays      float64 // e-folding time
}

// DefaultAlbedoParams returns fresh snow 0.95/0.85 decaying to 0.6/0.35
// with a 10 day e-folding time.
func DefaultAlbedoParams() AlbedoParams {
	return AlbedoParams{MaxVis: 0.95, MinVis: 0.6, MaxIR: 0.85, MinIR: 0.35, DecayDays: 10}
}

// Albedo returns visible and infrared albedo after days since the last
// storm.
func Albedo(days float64, p AlbedoParams) (vis, ir float64) {
	f := 0.0
	if p.DecayDays > 0 {
		f = math.Exp(-math.Max(days, 0) / p.DecayDays)
	}
	vis = p.MinVis + (p.MaxVis-p.MinVis)*f
	ir = p.MinIR + (p.MaxIR-p.MinIR)*f
	return vis, ir
}
