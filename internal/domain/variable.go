package domain

// Variable names a distributed quantity. Each name identifies exactly one
// queue in the concurrent engine and one stream at the output sink.
type Variable string

// Measured and derived variables.
const (
	AirTemp           Variable = "air_temp"
	VaporPressure     Variable = "vapor_pressure"
	DewPoint          Variable = "dew_point"
	WindSpeed         Variable = "wind_speed"
	WindDirection     Variable = "wind_direction"
	Precip            Variable = "precip"
	PercentSnow       Variable = "percent_snow"
	SnowDensity       Variable = "snow_density"
	StormDays         Variable = "storm_days"
	StormTotal        Variable = "storm_total"
	LastStormDay      Variable = "last_storm_day"
	LastStormDayBasin Variable = "last_storm_day_basin"
	AlbedoVis         Variable = "albedo_vis"
	AlbedoIR          Variable = "albedo_ir"
	CloudFactor       Variable = "cloud_factor"
	NetSolar          Variable = "net_solar"
	Thermal           Variable = "thermal"
	SoilTemp          Variable = "soil_temp"
	CosZ              Variable = "cosz"
	Azimuth           Variable = "azimuth"
	IllumAngle        Variable = "illum_ang"
	OutputAck         Variable = "output"
)

// Variance returns the name of the kriging variance side output for v.
func (v Variable) Variance() Variable { return v + "_variance" }

// Outputs is one worker's results for one timestep.
type Outputs map[Variable]Grid
