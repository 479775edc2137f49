package distribute

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shepherdmeng/smrf/internal/domain"
	"github.com/shepherdmeng/smrf/internal/envphys"
)

var (
	testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	testTime   = time.Date(2024, 1, 15, 18, 0, 0, 0, time.UTC)
)

// testTerrain is a flat 2x2 basin at 100 m spacing.
func testTerrain(t *testing.T) *domain.Terrain {
	t.Helper()
	terrain, err := domain.NewTerrain(domain.FullGrid(2, 2, 1500), []float64{0, 100}, []float64{100, 0}, nil)
	require.NoError(t, err)
	return terrain
}

func testMetadata() domain.StationMetadata {
	return domain.StationMetadata{
		"SNOTEL3": {ID: "SNOTEL3", X: 100, Y: 0, Elevation: 1500},
		"SNOTEL1": {ID: "SNOTEL1", X: 0, Y: 100, Elevation: 1500},
		"SNOTEL2": {ID: "SNOTEL2", X: 100, Y: 100, Elevation: 1500},
	}
}

func idw() domain.VariableConfig { return domain.VariableConfig{Distribution: "idw"} }

func TestBase_Initialize(t *testing.T) {
	terrain := testTerrain(t)

	t.Run("stations sorted by id", func(t *testing.T) {
		b := NewBase("air_temp", idw(), testLogger)
		require.NoError(t, b.Initialize(terrain, testMetadata()))
		var ids []string
		for _, s := range b.Stations() {
			ids = append(ids, s.ID)
		}
		assert.Equal(t, []string{"SNOTEL1", "SNOTEL2", "SNOTEL3"}, ids)
	})

	t.Run("unknown method", func(t *testing.T) {
		b := NewBase("air_temp", domain.VariableConfig{Distribution: "nearest"}, testLogger)
		err := b.Initialize(terrain, testMetadata())
		assert.ErrorIs(t, err, domain.ErrUnknownMethod)
		assert.Contains(t, err.Error(), "air_temp")
	})

	t.Run("unknown station in subset", func(t *testing.T) {
		cfg := idw()
		cfg.Stations = []string{"SNOTEL1", "SNOTEL9"}
		b := NewBase("air_temp", cfg, testLogger)
		assert.ErrorIs(t, b.Initialize(terrain, testMetadata()), domain.ErrConfiguration)
	})

	t.Run("kriging with too few stations", func(t *testing.T) {
		cfg := domain.VariableConfig{Distribution: "kriging", Stations: []string{"SNOTEL1", "SNOTEL2"}}
		b := NewBase("air_temp", cfg, testLogger)
		assert.ErrorIs(t, b.Initialize(terrain, testMetadata()), domain.ErrInsufficientStations)
	})
}

func TestBase_Interpolate(t *testing.T) {
	terrain := testTerrain(t)
	cfg := idw()
	cfg.Stations = []string{"SNOTEL2", "SNOTEL1"}
	cfg.Max = domain.Float(5)
	b := NewBase("air_temp", cfg, testLogger)
	require.NoError(t, b.Initialize(terrain, testMetadata()))

	values := b.Values(domain.Sample{"SNOTEL1": 3, "SNOTEL3": 100})
	require.Len(t, values, 2)
	assert.Equal(t, 3.0, values[0])
	assert.True(t, math.IsNaN(values[1]))

	res, err := b.Interpolate(domain.Sample{"SNOTEL1": 3, "SNOTEL2": 9})
	require.NoError(t, err)
	assert.Equal(t, 3.0, res.Grid.At(0, 0))
	assert.Equal(t, 5.0, res.Grid.At(0, 1), "clamped to max")

	_, err = b.Interpolate(domain.Sample{"SNOTEL3": 1})
	assert.ErrorIs(t, err, domain.ErrAllValuesMissing)

	_, err = b.Interpolate(nil)
	assert.ErrorIs(t, err, domain.ErrAllValuesMissing)
}

func TestVaporPressure_ClipsDewPointOnlyWhereAboveAirTemp(t *testing.T) {
	terrain := testTerrain(t)
	d := NewVaporPressure(idw(), testLogger)
	require.NoError(t, d.Initialize(terrain, testMetadata()))
	assert.Equal(t, []domain.Variable{domain.VaporPressure, domain.DewPoint}, d.Outputs())

	e := envphys.SaturationVaporPressure(1)
	ta := domain.Grid{Ny: 2, Nx: 2, Data: []float64{5, 0, 0.5, -3}}
	out, err := d.Distribute(Step{
		Time:   testTime,
		Points: map[domain.Variable]domain.Sample{domain.VaporPressure: {"SNOTEL1": e, "SNOTEL2": e, "SNOTEL3": e}},
		Inputs: domain.Outputs{domain.AirTemp: ta},
	})
	require.NoError(t, err)

	dpt := out[domain.DewPoint]
	assert.InDelta(t, 1.0, dpt.Data[0], 1e-9)
	assert.InDelta(t, -0.2, dpt.Data[1], 1e-12)
	assert.InDelta(t, 0.3, dpt.Data[2], 1e-12)
	assert.InDelta(t, -3.2, dpt.Data[3], 1e-12)
	assert.InDelta(t, e, out[domain.VaporPressure].Data[0], 1e-9)
}

func TestVaporPressure_ZeroReadingFailsInsteadOfNaNDewPoint(t *testing.T) {
	d := NewVaporPressure(domain.VariableConfig{Distribution: "idw", Min: domain.Float(0)}, testLogger)
	require.NoError(t, d.Initialize(testTerrain(t), testMetadata()))

	e := envphys.SaturationVaporPressure(-5)
	_, err := d.Distribute(Step{
		Time:   testTime,
		Points: map[domain.Variable]domain.Sample{domain.VaporPressure: {"SNOTEL1": 0, "SNOTEL2": e, "SNOTEL3": e}},
		Inputs: domain.Outputs{domain.AirTemp: domain.FullGrid(2, 2, 0)},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNumericDomain)
}

func TestVaporPressure_MissingAirTemp(t *testing.T) {
	d := NewVaporPressure(idw(), testLogger)
	require.NoError(t, d.Initialize(testTerrain(t), testMetadata()))
	_, err := d.Distribute(Step{Time: testTime})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "air_temp")
}

func TestWind_DirectionAveragesAcrossNorth(t *testing.T) {
	d := NewWind(idw(), testLogger)
	require.NoError(t, d.Initialize(testTerrain(t), testMetadata()))

	out, err := d.Distribute(Step{
		Time: testTime,
		Points: map[domain.Variable]domain.Sample{
			domain.WindSpeed:     {"SNOTEL1": 2, "SNOTEL2": 2, "SNOTEL3": 2},
			domain.WindDirection: {"SNOTEL1": 350, "SNOTEL2": 10, "SNOTEL3": 0},
		},
	})
	require.NoError(t, err)

	for _, dir := range out[domain.WindDirection].Data {
		assert.True(t, dir < 10.0001 || dir > 349.9999, "direction %v", dir)
	}
	assert.InDelta(t, 2.0, out[domain.WindSpeed].Data[3], 1e-12)
}

func TestPrecip(t *testing.T) {
	terrain := testTerrain(t)
	step := time.Hour
	cold := domain.FullGrid(2, 2, -2.2)

	t.Run("dry step still ages storms", func(t *testing.T) {
		d := NewPrecip(idw(), envphys.DefaultStormParams(), step, testLogger)
		require.NoError(t, d.Initialize(terrain, testMetadata()))

		out, err := d.Distribute(Step{
			Time:   testTime,
			Points: map[domain.Variable]domain.Sample{domain.Precip: {"SNOTEL1": 0, "SNOTEL2": 0, "SNOTEL3": math.NaN()}},
			Inputs: domain.Outputs{domain.DewPoint: cold},
		})
		require.NoError(t, err)
		assert.Equal(t, 0.0, out[domain.Precip].Sum())
		assert.Equal(t, 0.0, out[domain.PercentSnow].Sum())
		assert.InDelta(t, 1.0/24, out[domain.StormDays].Data[0], 1e-12)
		assert.True(t, out[domain.LastStormDayBasin].IsScalar())
		assert.Len(t, out, len(d.Outputs()))
	})

	t.Run("snow storm", func(t *testing.T) {
		d := NewPrecip(idw(), envphys.DefaultStormParams(), step, testLogger)
		require.NoError(t, d.Initialize(terrain, testMetadata()))

		out, err := d.Distribute(Step{
			Time:   testTime,
			Points: map[domain.Variable]domain.Sample{domain.Precip: {"SNOTEL1": 2, "SNOTEL2": 2, "SNOTEL3": 2}},
			Inputs: domain.Outputs{domain.DewPoint: cold},
		})
		require.NoError(t, err)
		for k := 0; k < 4; k++ {
			assert.Equal(t, 1.0, out[domain.PercentSnow].Data[k])
			assert.Equal(t, 150.0, out[domain.SnowDensity].Data[k])
			assert.Equal(t, 0.0, out[domain.StormDays].Data[k])
			assert.Equal(t, 2.0, out[domain.StormTotal].Data[k])
		}
		wd := domain.WaterDay(testTime)
		assert.InDelta(t, wd-0.001, out[domain.LastStormDayBasin].Value(), 1e-9)
	})

	t.Run("outputs are not aliased to state", func(t *testing.T) {
		d := NewPrecip(idw(), envphys.DefaultStormParams(), step, testLogger)
		require.NoError(t, d.Initialize(terrain, testMetadata()))
		dry := Step{
			Time:   testTime,
			Points: map[domain.Variable]domain.Sample{domain.Precip: {"SNOTEL1": 0}},
			Inputs: domain.Outputs{domain.DewPoint: cold},
		}
		first, err := d.Distribute(dry)
		require.NoError(t, err)
		_, err = d.Distribute(dry)
		require.NoError(t, err)
		assert.InDelta(t, 1.0/24, first[domain.StormDays].Data[0], 1e-12)
	})

	t.Run("all stations missing", func(t *testing.T) {
		d := NewPrecip(idw(), envphys.DefaultStormParams(), step, testLogger)
		require.NoError(t, d.Initialize(terrain, testMetadata()))
		_, err := d.Distribute(Step{Time: testTime, Inputs: domain.Outputs{domain.DewPoint: cold}})
		assert.ErrorIs(t, err, domain.ErrAllValuesMissing)
	})
}

func TestAlbedo(t *testing.T) {
	d := NewAlbedo(envphys.DefaultAlbedoParams(), testLogger)
	days := domain.Grid{Ny: 1, Nx: 2, Data: []float64{0, 30}}

	out, err := d.Distribute(Step{Inputs: domain.Outputs{domain.CosZ: domain.Scalar(0.5), domain.StormDays: days}})
	require.NoError(t, err)
	assert.InDelta(t, 0.95, out[domain.AlbedoVis].Data[0], 1e-12)
	assert.Less(t, out[domain.AlbedoVis].Data[1], 0.95)

	out, err = d.Distribute(Step{Inputs: domain.Outputs{domain.CosZ: domain.Scalar(-0.5), domain.StormDays: days}})
	require.NoError(t, err)
	assert.Equal(t, 0.0, out[domain.AlbedoIR].Sum())
}

func TestSunAndSolar(t *testing.T) {
	terrain := testTerrain(t)
	sun := NewSun(43.6, -116.2)
	require.NoError(t, sun.Initialize(terrain, nil))

	noon := time.Date(2024, 6, 21, 19, 47, 0, 0, time.UTC)
	geo, err := sun.Distribute(Step{Time: noon})
	require.NoError(t, err)
	require.True(t, geo[domain.CosZ].IsScalar())
	assert.Greater(t, geo[domain.CosZ].Value(), 0.9)
	assert.InDelta(t, geo[domain.CosZ].Value(), geo[domain.IllumAngle].Data[0], 1e-12, "flat terrain")

	solar := NewSolar(domain.VariableConfig{Distribution: "idw", Min: domain.Float(0), Max: domain.Float(1)},
		SolarParams{ClearTau: 0.7, VisFraction: 0.5}, testLogger)
	require.NoError(t, solar.Initialize(terrain, testMetadata()))

	inputs := domain.Outputs{
		domain.AlbedoVis: domain.FullGrid(2, 2, 0.9),
		domain.AlbedoIR:  domain.FullGrid(2, 2, 0.7),
	}
	for k, v := range geo {
		inputs[k] = v
	}
	out, err := solar.Distribute(Step{
		Time:   noon,
		Points: map[domain.Variable]domain.Sample{domain.CloudFactor: {"SNOTEL1": 1.2, "SNOTEL2": 1.2, "SNOTEL3": 1.2}},
		Inputs: inputs,
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, out[domain.CloudFactor].Data[0], "clamped")

	mu := geo[domain.IllumAngle].Data[0]
	want := envphys.ClearSkyBeam(envphys.Sun{CosZ: geo[domain.CosZ].Value()}, mu, 0.7) * (0.5*0.1 + 0.5*0.3)
	assert.InDelta(t, want, out[domain.NetSolar].Data[0], 1e-9)
}

func TestThermal(t *testing.T) {
	ta := domain.FullGrid(1, 2, 5)
	vp := domain.FullGrid(1, 2, 600)
	cf := domain.Grid{Ny: 1, Nx: 2, Data: []float64{1, 0}}
	step := Step{Inputs: domain.Outputs{domain.AirTemp: ta, domain.VaporPressure: vp, domain.CloudFactor: cf}}

	clearSky := envphys.Dilley1998(5+envphys.FreezingK, 0.6)

	out, err := NewThermal(ThermalParams{}).Distribute(step)
	require.NoError(t, err)
	assert.InDelta(t, clearSky, out[domain.Thermal].Data[1], 1e-9)

	out, err = NewThermal(ThermalParams{CorrectCloud: true, Max: domain.Float(300)}).Distribute(step)
	require.NoError(t, err)
	assert.InDelta(t, clearSky*0.997, out[domain.Thermal].Data[0], 1e-9)
	assert.Equal(t, 300.0, out[domain.Thermal].Data[1])
}

func TestSoilTemp(t *testing.T) {
	d := NewSoilTemp(-2.5)
	require.NoError(t, d.Initialize(testTerrain(t), nil))
	out, err := d.Distribute(Step{})
	require.NoError(t, err)
	assert.Equal(t, []float64{-2.5, -2.5, -2.5, -2.5}, out[domain.SoilTemp].Data)

	out[domain.SoilTemp].Data[0] = 99
	again, err := d.Distribute(Step{})
	require.NoError(t, err)
	assert.Equal(t, -2.5, again[domain.SoilTemp].Data[0])
}
