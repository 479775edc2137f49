package distribute

import (
	"log/slog"

	"github.com/shepherdmeng/smrf/internal/domain"
	"github.com/shepherdmeng/smrf/internal/envphys"
)

// SolarParams sets the clear sky model.
type SolarParams struct {
	ClearTau    float64 // broadband zenith transmissivity
	VisFraction float64 // share of irradiance in the visible band
}

// Solar distributes the station cloud factor and computes net shortwave
// from clear sky irradiance, illumination and albedo.
type Solar struct {
	Base
	params SolarParams
}

// NewSolar returns a solar distributor. cfg drives the cloud factor
// interpolation.
func NewSolar(cfg domain.VariableConfig, params SolarParams, logger *slog.Logger) *Solar {
	return &Solar{Base: NewBase("solar", cfg, logger), params: params}
}

func (d *Solar) Name() string { return "solar" }

func (d *Solar) Inputs() []domain.Variable {
	return []domain.Variable{domain.CosZ, domain.Azimuth, domain.IllumAngle, domain.AlbedoVis, domain.AlbedoIR}
}

func (d *Solar) Outputs() []domain.Variable {
	return append(d.withVariance(domain.CloudFactor), domain.NetSolar)
}

// Distribute returns cloud_factor and net_solar (W/m^2). Net solar is zero
// while the sun is down.
func (d *Solar) Distribute(step Step) (domain.Outputs, error) {
	grids := make(map[domain.Variable]domain.Grid, 5)
	for _, v := range d.Inputs() {
		g, err := step.Input(v)
		if err != nil {
			return nil, err
		}
		grids[v] = g
	}

	cf, err := d.Interpolate(step.Points[domain.CloudFactor])
	if err != nil {
		return nil, err
	}

	sun := envphys.Sun{CosZ: grids[domain.CosZ].Value(), Azimuth: grids[domain.Azimuth].Value()}
	mu := grids[domain.IllumAngle]
	vis, ir := grids[domain.AlbedoVis], grids[domain.AlbedoIR]
	vf := d.params.VisFraction

	net := domain.NewGrid(mu.Ny, mu.Nx)
	if sun.Up() {
		for k := range net.Data {
			beam := envphys.ClearSkyBeam(sun, mu.Data[k], d.params.ClearTau)
			absorbed := vf*(1-vis.Data[k]) + (1-vf)*(1-ir.Data[k])
			net.Data[k] = cf.Grid.Data[k] * beam * absorbed
		}
	}

	out := domain.Outputs{domain.CloudFactor: cf.Grid, domain.NetSolar: net}
	addVariance(out, domain.CloudFactor, cf)
	return out, nil
}
