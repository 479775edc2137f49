package distribute

import (
	"log/slog"

	"github.com/shepherdmeng/smrf/internal/domain"
	"github.com/shepherdmeng/smrf/internal/envphys"
)

// VaporPressure distributes vapor pressure (Pa) and derives the dew point,
// which is kept below the air temperature.
type VaporPressure struct {
	Base
}

// NewVaporPressure returns a vapor pressure distributor.
func NewVaporPressure(cfg domain.VariableConfig, logger *slog.Logger) *VaporPressure {
	return &VaporPressure{Base: NewBase(string(domain.VaporPressure), cfg, logger)}
}

func (d *VaporPressure) Name() string { return string(domain.VaporPressure) }

func (d *VaporPressure) Inputs() []domain.Variable { return []domain.Variable{domain.AirTemp} }

func (d *VaporPressure) Outputs() []domain.Variable {
	return append(d.withVariance(domain.VaporPressure), domain.DewPoint)
}

// Distribute interpolates vapor pressure, converts it to dew point and
// clips the dew point against air temperature.
func (d *VaporPressure) Distribute(step Step) (domain.Outputs, error) {
	ta, err := step.Input(domain.AirTemp)
	if err != nil {
		return nil, err
	}
	res, err := d.Interpolate(step.Points[domain.VaporPressure])
	if err != nil {
		return nil, err
	}

	dpt, err := envphys.DewPoint(res.Grid)
	if err != nil {
		return nil, err
	}
	if n := envphys.ClipDewPoint(dpt, ta); n > 0 {
		d.logger.Debug("dew point clipped to air temperature", "time", step.Time, "pixels", n)
	}

	out := domain.Outputs{domain.VaporPressure: res.Grid, domain.DewPoint: dpt}
	addVariance(out, domain.VaporPressure, res)
	return out, nil
}
