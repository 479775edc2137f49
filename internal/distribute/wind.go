package distribute

import (
	"log/slog"

	"github.com/shepherdmeng/smrf/internal/domain"
	"github.com/shepherdmeng/smrf/internal/envphys"
)

// Wind distributes speed directly and direction through its unit vector
// components.
type Wind struct {
	Base
}

// NewWind returns a wind distributor.
func NewWind(cfg domain.VariableConfig, logger *slog.Logger) *Wind {
	return &Wind{Base: NewBase("wind", cfg, logger)}
}

func (d *Wind) Name() string              { return "wind" }
func (d *Wind) Inputs() []domain.Variable { return nil }

func (d *Wind) Outputs() []domain.Variable {
	return append(d.withVariance(domain.WindSpeed), domain.WindDirection)
}

// Distribute interpolates speed, then u and v, and rebuilds direction.
func (d *Wind) Distribute(step Step) (domain.Outputs, error) {
	speed, err := d.Interpolate(step.Points[domain.WindSpeed])
	if err != nil {
		return nil, err
	}

	u, v := envphys.WindComponents(d.Values(step.Points[domain.WindDirection]))
	ug, err := d.InterpolateValues(u, false, false)
	if err != nil {
		return nil, err
	}
	vg, err := d.InterpolateValues(v, false, false)
	if err != nil {
		return nil, err
	}

	out := domain.Outputs{
		domain.WindSpeed:     speed.Grid,
		domain.WindDirection: envphys.WindDirection(ug.Grid, vg.Grid),
	}
	addVariance(out, domain.WindSpeed, speed)
	return out, nil
}
