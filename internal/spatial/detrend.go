package spatial

import (
	"gonum.org/v1/gonum/stat"
)

// Trend is a linear relation between elevation and a station value.
type Trend struct {
	Intercept float64
	Slope     float64
}

// At evaluates the trend at elevation z.
func (t Trend) At(z float64) float64 { return t.Intercept + t.Slope*z }

func (t Trend) isZero() bool { return t.Intercept == 0 && t.Slope == 0 }

// FitTrend regresses the valid values against elevation. constraint forces
// the sign of the slope: -1 negative, 1 positive, 0 either. A slope of the
// wrong sign, a single station or a flat station set all fall back to the
// mean.
func FitTrend(elevation, values []float64, valid []bool, constraint int) Trend {
	var z, v []float64
	for i, ok := range valid {
		if ok {
			z = append(z, elevation[i])
			v = append(v, values[i])
		}
	}

	mean := Trend{Intercept: stat.Mean(v, nil)}
	if len(v) < 2 || stat.Variance(z, nil) == 0 {
		return mean
	}

	alpha, beta := stat.LinearRegression(z, v, nil, false)
	if (constraint < 0 && beta > 0) || (constraint > 0 && beta < 0) {
		return mean
	}
	return Trend{Intercept: alpha, Slope: beta}
}
