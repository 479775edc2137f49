package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Method selects an interpolation strategy.
type Method string

// Recognised distribution methods.
const (
	MethodIDW     Method = "idw"
	MethodDK      Method = "dk"
	MethodKriging Method = "kriging"
	MethodGrid    Method = "grid"
)

// ParseMethod normalises s and rejects anything outside the four methods.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case MethodIDW, MethodDK, MethodKriging, MethodGrid:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// VariableConfig is the distribution section shared by every interpolated
// variable. It is treated as immutable once a distributor is built.
type VariableConfig struct {
	Distribution string   `toml:"distribution"` // idw, dk, kriging or grid
	Min          *float64 `toml:"min"`          // lower clamp, -Inf when unset
	Max          *float64 `toml:"max"`          // upper clamp, +Inf when unset
	Detrend      bool     `toml:"detrend"`      // regress against elevation before interpolating
	Slope        int      `toml:"slope"`        // -1 forces a negative trend, 1 positive, 0 either
	Stations     []string `toml:"stations"`     // optional subset, all stations when empty

	Power      float64 `toml:"power"`       // IDW exponent, default 2
	GridMethod string  `toml:"grid_method"` // linear or nearest

	Variogram string  `toml:"variogram"` // linear, exponential or spherical
	Nugget    float64 `toml:"nugget"`
	Sill      float64 `toml:"sill"`
	Range     float64 `toml:"range"`
}

// Bounds returns the clamp limits with infinite defaults.
func (c VariableConfig) Bounds() (float64, float64) {
	lo, hi := math.Inf(-1), math.Inf(1)
	if c.Min != nil {
		lo = *c.Min
	}
	if c.Max != nil {
		hi = *c.Max
	}
	return lo, hi
}

// Float returns a pointer to v, for building configs in code.
func Float(v float64) *float64 { return &v }

// WaterDay returns decimal days since 1 October 00:00 of t's water year.
func WaterDay(t time.Time) float64 {
	year := t.Year()
	if t.Month() < time.October {
		year--
	}
	start := time.Date(year, time.October, 1, 0, 0, 0, 0, t.Location())
	return t.Sub(start).Hours() / 24
}
