package envphys

import (
	"github.com/shepherdmeng/smrf/internal/domain"
)

// StormParams configures storm detection.
type StormParams struct {
	// MassThreshold is the storm precipitation (mm) that starts a new storm.
	MassThreshold float64
	// EndDays is the time without a storm, in days, after which the
	// accumulated storm precipitation is discarded.
	EndDays float64
	// SnowThreshold is the snow fraction at which a pixel counts as snowing.
	SnowThreshold float64
}

// DefaultStormParams returns mass 1 mm, 4 days and a 0.5 snow fraction.
func DefaultStormParams() StormParams {
	return StormParams{MassThreshold: 1, EndDays: 4, SnowThreshold: 0.5}
}

// StormState is the per-pixel storm tracker. It belongs to a single
// precipitation distributor and is advanced once per timestep.
type StormState struct {
	Days   domain.Grid // decimal days since the last storm
	Precip domain.Grid // precipitation accumulated in the current storm
}

// NewStormState returns an all-zero state.
func NewStormState(ny, nx int) *StormState {
	return &StormState{Days: domain.NewGrid(ny, nx), Precip: domain.NewGrid(ny, nx)}
}

// Advance applies one timestep of stepDays. The order of the steps matters:
//
//  1. every pixel ages by stepDays;
//  2. if no pixel is snowing, all storm precipitation is dropped and the
//     step ends;
//  3. pixels that have gone EndDays without a storm drop their storm
//     precipitation;
//  4. snowing pixels accumulate precipitation;
//  5. pixels whose storm precipitation reached MassThreshold restart their
//     day counter.
func (s *StormState) Advance(precip, percentSnow domain.Grid, stepDays float64, p StormParams) {
	for k := range s.Days.Data {
		s.Days.Data[k] += stepDays
	}

	snowing := false
	for _, ps := range percentSnow.Data {
		if ps >= p.SnowThreshold {
			snowing = true
			break
		}
	}
	if !snowing {
		for k := range s.Precip.Data {
			s.Precip.Data[k] = 0
		}
		return
	}

	for k := range s.Days.Data {
		if s.Days.Data[k] >= p.EndDays {
			s.Precip.Data[k] = 0
		}
		if percentSnow.Data[k] >= p.SnowThreshold {
			s.Precip.Data[k] += precip.Data[k]
		}
		if s.Precip.Data[k] >= p.MassThreshold {
			s.Days.Data[k] = 0
		}
	}
}

// LastStormDay returns the water day of the last storm at every pixel and
// the basin value, the latest storm day inside mask.
func (s *StormState) LastStormDay(waterDay float64, mask []bool) (domain.Grid, float64) {
	out := domain.NewGrid(s.Days.Ny, s.Days.Nx)
	for k, d := range s.Days.Data {
		out.Data[k] = waterDay - d - 0.001
	}
	return out, out.MaskedMax(mask)
}
