package distribute

import (
	"log/slog"

	"github.com/shepherdmeng/smrf/internal/config"
	"github.com/shepherdmeng/smrf/internal/envphys"
)

// Build constructs every distributor described by a validated forcing
// configuration.
func Build(f *config.Forcing, logger *slog.Logger) ([]Variable, error) {
	clearSky, err := envphys.ClearSkyMethod(f.Thermal.Method)
	if err != nil {
		return nil, err
	}
	cloud, err := envphys.CloudMethod(f.Thermal.CloudMethod)
	if err != nil {
		return nil, err
	}

	return []Variable{
		NewSun(f.Topo.BasinLat, f.Topo.BasinLon),
		NewAirTemp(f.AirTemp, logger),
		NewVaporPressure(f.VaporPressure, logger),
		NewWind(f.Wind, logger),
		NewPrecip(f.Precip.VariableConfig, f.Precip.StormParams(), f.Step(), logger),
		NewAlbedo(f.Albedo.Params(), logger),
		NewSolar(f.Solar.VariableConfig, SolarParams{ClearTau: f.Solar.ClearTau, VisFraction: f.Solar.VisFraction}, logger),
		NewThermal(ThermalParams{
			ClearSky:     clearSky,
			CorrectCloud: f.Thermal.CorrectCloud,
			Cloud:        cloud,
			Min:          f.Thermal.Min,
			Max:          f.Thermal.Max,
		}),
		NewSoilTemp(*f.SoilTemp.Temp),
	}, nil
}
