package distribute

import (
	"math"

	"github.com/shepherdmeng/smrf/internal/domain"
	"github.com/shepherdmeng/smrf/internal/envphys"
)

// ThermalParams selects the longwave methods and clamp limits.
type ThermalParams struct {
	ClearSky     envphys.ClearSkyFunc
	CorrectCloud bool
	Cloud        envphys.CloudFunc
	Min, Max     *float64
}

// Thermal computes incoming longwave (W/m^2) from the distributed air
// temperature, vapor pressure and cloud factor.
type Thermal struct {
	params ThermalParams
	lo, hi float64
}

// NewThermal returns a thermal distributor.
func NewThermal(params ThermalParams) *Thermal {
	lo, hi := domain.VariableConfig{Min: params.Min, Max: params.Max}.Bounds()
	if params.ClearSky == nil {
		params.ClearSky = envphys.Dilley1998
	}
	if params.Cloud == nil {
		params.Cloud = envphys.Garen2005
	}
	return &Thermal{params: params, lo: lo, hi: hi}
}

func (d *Thermal) Name() string { return string(domain.Thermal) }

func (d *Thermal) Inputs() []domain.Variable {
	return []domain.Variable{domain.AirTemp, domain.VaporPressure, domain.CloudFactor}
}

func (d *Thermal) Outputs() []domain.Variable { return []domain.Variable{domain.Thermal} }

// Initialize has nothing to fit.
func (d *Thermal) Initialize(*domain.Terrain, domain.StationMetadata) error { return nil }

// Distribute applies the clear sky method and the optional cloud
// correction per pixel.
func (d *Thermal) Distribute(step Step) (domain.Outputs, error) {
	ta, err := step.Input(domain.AirTemp)
	if err != nil {
		return nil, err
	}
	vp, err := step.Input(domain.VaporPressure)
	if err != nil {
		return nil, err
	}
	cf, err := step.Input(domain.CloudFactor)
	if err != nil {
		return nil, err
	}

	out := domain.NewGrid(ta.Ny, ta.Nx)
	for k := range out.Data {
		tk := ta.Data[k] + envphys.FreezingK
		l := d.params.ClearSky(tk, vp.Data[k]/1000)
		if d.params.CorrectCloud {
			l = d.params.Cloud(l, tk, cf.Data[k])
		}
		out.Data[k] = math.Max(math.Min(l, d.hi), d.lo)
	}
	return domain.Outputs{domain.Thermal: out}, nil
}
