package distribute

import (
	"log/slog"

	"github.com/shepherdmeng/smrf/internal/domain"
)

// AirTemp distributes station air temperature (degC).
type AirTemp struct {
	Base
}

// NewAirTemp returns an air temperature distributor.
func NewAirTemp(cfg domain.VariableConfig, logger *slog.Logger) *AirTemp {
	return &AirTemp{Base: NewBase(string(domain.AirTemp), cfg, logger)}
}

func (d *AirTemp) Name() string               { return string(domain.AirTemp) }
func (d *AirTemp) Inputs() []domain.Variable  { return nil }
func (d *AirTemp) Outputs() []domain.Variable { return d.withVariance(domain.AirTemp) }

// Distribute interpolates the air temperature sample.
func (d *AirTemp) Distribute(step Step) (domain.Outputs, error) {
	res, err := d.Interpolate(step.Points[domain.AirTemp])
	if err != nil {
		return nil, err
	}
	out := domain.Outputs{domain.AirTemp: res.Grid}
	addVariance(out, domain.AirTemp, res)
	return out, nil
}
