package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shepherdmeng/smrf/internal/domain"
)

const minimalForcing = `
[time]
start = "2024-01-01 00:00"
end = "2024-01-01 03:00"
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "forcing.toml", cfg.ForcingPath)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("FORCING_CONFIG", "/etc/smrf/basin.toml")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/etc/smrf/basin.toml", cfg.ForcingPath)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidLogFormat(t *testing.T) {
	t.Setenv("LOG_FORMAT", "xml")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_FORMAT")
}

func TestParseForcing_Defaults(t *testing.T) {
	f, err := ParseForcing(minimalForcing)
	require.NoError(t, err)

	assert.Equal(t, 60, f.Time.StepMinutes)
	assert.Equal(t, "UTC", f.Time.TimeZone)
	assert.False(t, f.System.Threading)
	assert.Equal(t, 1, f.System.MaxValues)
	assert.Equal(t, time.Duration(0), f.QueueTimeout())
	assert.Equal(t, 1, f.Output.Frequency)
	assert.Equal(t, "log", f.Output.Sink)
	assert.Equal(t, "idw", f.AirTemp.Distribution)
	assert.Equal(t, 1.0, f.Precip.StormMassThreshold)
	assert.Equal(t, 4.0, f.Precip.TimeStepsToEndStorms)
	assert.Equal(t, 0.5, f.Precip.PercentSnowThreshold)
	require.NotNil(t, f.Precip.Min)
	assert.Equal(t, 0.0, *f.Precip.Min)
	assert.Equal(t, 0.7, f.Solar.ClearTau)
	assert.Equal(t, -2.5, *f.SoilTemp.Temp)
	assert.Nil(t, f.OutputVariables())

	steps, err := f.Timesteps()
	require.NoError(t, err)
	require.Len(t, steps, 4)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), steps[0])
	assert.Equal(t, time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC), steps[3])
}

func TestParseForcing_Sections(t *testing.T) {
	doc := `
[time]
start = "2024-01-01T00:00:00-07:00"
end = "2024-01-01T02:00:00-07:00"
step_minutes = 30

[system]
threading = true
max_values = 3
time_out = 15

[output]
frequency = 2
variables = ["air_temp", " precip "]
sink = "kafka"
kafka_brokers = ["localhost:9092"]

[air_temp]
distribution = "DK"
detrend = true
slope = -1
min = -50
max = 45
stations = ["ATAI1", "BOII"]

[precip]
distribution = "kriging"
variogram = "spherical"
sill = 2
range = 5000
storm_mass_threshold = 2.5
ps_thresh = 0.75

[thermal]
method = "prata1996"
correct_cloud = true
cloud_method = "crawford1999"

[soil_temp]
temp = 0
`
	f, err := ParseForcing(doc)
	require.NoError(t, err)

	assert.True(t, f.System.Threading)
	assert.Equal(t, 3, f.System.MaxValues)
	assert.Equal(t, 15*time.Second, f.QueueTimeout())
	assert.Equal(t, 30*time.Minute, f.Step())
	assert.Equal(t, []domain.Variable{domain.AirTemp, domain.Precip}, f.OutputVariables())
	assert.Equal(t, "smrf-forcing", f.Output.KafkaTopic)

	assert.Equal(t, "DK", f.AirTemp.Distribution)
	assert.True(t, f.AirTemp.Detrend)
	assert.Equal(t, -1, f.AirTemp.Slope)
	lo, hi := f.AirTemp.Bounds()
	assert.Equal(t, -50.0, lo)
	assert.Equal(t, 45.0, hi)
	assert.Equal(t, []string{"ATAI1", "BOII"}, f.AirTemp.Stations)

	assert.Equal(t, "spherical", f.Precip.Variogram)
	assert.Equal(t, 5000.0, f.Precip.Range)
	params := f.Precip.StormParams()
	assert.Equal(t, 2.5, params.MassThreshold)
	assert.Equal(t, 4.0, params.EndDays)
	assert.Equal(t, 0.75, params.SnowThreshold)

	assert.True(t, f.Thermal.CorrectCloud)
	assert.Equal(t, 0.0, *f.SoilTemp.Temp)

	steps, err := f.Timesteps()
	require.NoError(t, err)
	require.Len(t, steps, 5)
	assert.Equal(t, time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC), steps[0])
}

func TestParseForcing_Errors(t *testing.T) {
	cases := map[string]string{
		"air_temp.distribution": minimalForcing + "\n[air_temp]\ndistribution = \"spline\"\n",
		"output.sink":           minimalForcing + "\n[output]\nsink = \"netcdf\"\n",
		"time.end":              "[time]\nstart = \"2024-01-02\"\nend = \"2024-01-01\"\n",
		"time.start":            "[time]\nend = \"2024-01-01\"\n",
		"thermal.method":        minimalForcing + "\n[thermal]\nmethod = \"marks1979\"\n",
		"wind.slope":            minimalForcing + "\n[wind]\nslope = 2\n",
		"system.max_values":     minimalForcing + "\n[system]\nmax_values = -1\n",
		"vapor_pressure.min":    minimalForcing + "\n[vapor_pressure]\nmin = 0.0\n",
	}
	for key, doc := range cases {
		t.Run(key, func(t *testing.T) {
			_, err := ParseForcing(doc)
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoadForcing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forcing.toml")
	require.NoError(t, os.WriteFile(path, []byte(minimalForcing), 0o600))

	f, err := LoadForcing(path)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01 00:00", f.Time.Start)

	_, err = LoadForcing(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestCSVSection_Series(t *testing.T) {
	c := CSVSection{AirTemp: "ta.csv", Precip: "ppt.csv"}
	assert.Equal(t, map[domain.Variable]string{
		domain.AirTemp: "ta.csv",
		domain.Precip:  "ppt.csv",
	}, c.Series())
}
