package distribute

import (
	"log/slog"

	"github.com/shepherdmeng/smrf/internal/domain"
	"github.com/shepherdmeng/smrf/internal/envphys"
)

// Albedo derives visible and infrared snow albedo from days since the
// last storm. Albedo is zero while the sun is down.
type Albedo struct {
	params envphys.AlbedoParams
	logger *slog.Logger
}

// NewAlbedo returns an albedo distributor.
func NewAlbedo(params envphys.AlbedoParams, logger *slog.Logger) *Albedo {
	return &Albedo{params: params, logger: logger.With("variable", "albedo")}
}

func (d *Albedo) Name() string { return "albedo" }

func (d *Albedo) Inputs() []domain.Variable {
	return []domain.Variable{domain.CosZ, domain.StormDays}
}

func (d *Albedo) Outputs() []domain.Variable {
	return []domain.Variable{domain.AlbedoVis, domain.AlbedoIR}
}

// Initialize has nothing to fit.
func (d *Albedo) Initialize(*domain.Terrain, domain.StationMetadata) error { return nil }

// Distribute applies the decay curve per pixel.
func (d *Albedo) Distribute(step Step) (domain.Outputs, error) {
	cosz, err := step.Input(domain.CosZ)
	if err != nil {
		return nil, err
	}
	days, err := step.Input(domain.StormDays)
	if err != nil {
		return nil, err
	}

	vis := domain.NewGrid(days.Ny, days.Nx)
	ir := domain.NewGrid(days.Ny, days.Nx)
	if cosz.Value() > 0 {
		for k, age := range days.Data {
			vis.Data[k], ir.Data[k] = envphys.Albedo(age, d.params)
		}
	}
	return domain.Outputs{domain.AlbedoVis: vis, domain.AlbedoIR: ir}, nil
}
