package distribute

import (
	"github.com/shepherdmeng/smrf/internal/domain"
)

// SoilTemp is a constant soil temperature field.
type SoilTemp struct {
	temp float64
	grid domain.Grid
}

// NewSoilTemp returns a constant soil temperature (degC).
func NewSoilTemp(temp float64) *SoilTemp { return &SoilTemp{temp: temp} }

func (d *SoilTemp) Name() string               { return string(domain.SoilTemp) }
func (d *SoilTemp) Inputs() []domain.Variable  { return nil }
func (d *SoilTemp) Outputs() []domain.Variable { return []domain.Variable{domain.SoilTemp} }

// Initialize builds the field once.
func (d *SoilTemp) Initialize(terrain *domain.Terrain, _ domain.StationMetadata) error {
	ny, nx := terrain.Shape()
	d.grid = domain.FullGrid(ny, nx, d.temp)
	return nil
}

// Distribute returns a copy of the field.
func (d *SoilTemp) Distribute(Step) (domain.Outputs, error) {
	return domain.Outputs{domain.SoilTemp: d.grid.Clone()}, nil
}
