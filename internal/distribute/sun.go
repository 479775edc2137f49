package distribute

import (
	"github.com/shepherdmeng/smrf/internal/domain"
	"github.com/shepherdmeng/smrf/internal/envphys"
)

// Sun computes the basin sun position and per-pixel illumination. It has
// no station input.
type Sun struct {
	lat, lon float64
	terrain  *domain.Terrain
}

// NewSun returns a sun geometry worker for the basin centre.
func NewSun(lat, lon float64) *Sun { return &Sun{lat: lat, lon: lon} }

func (d *Sun) Name() string              { return "sun" }
func (d *Sun) Inputs() []domain.Variable { return nil }

func (d *Sun) Outputs() []domain.Variable {
	return []domain.Variable{domain.CosZ, domain.Azimuth, domain.IllumAngle}
}

// Initialize keeps the terrain for slope and aspect.
func (d *Sun) Initialize(terrain *domain.Terrain, _ domain.StationMetadata) error {
	d.terrain = terrain
	return nil
}

// Distribute returns cosz and azimuth as scalars and the illumination
// cosine grid.
func (d *Sun) Distribute(step Step) (domain.Outputs, error) {
	sun := envphys.SunAngles(step.Time, d.lat, d.lon)
	return domain.Outputs{
		domain.CosZ:       domain.Scalar(sun.CosZ),
		domain.Azimuth:    domain.Scalar(sun.Azimuth),
		domain.IllumAngle: envphys.Illumination(sun, d.terrain.Slope, d.terrain.Aspect),
	}, nil
}
