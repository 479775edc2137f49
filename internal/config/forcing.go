package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/shepherdmeng/smrf/internal/domain"
	"github.com/shepherdmeng/smrf/internal/envphys"
)

// Forcing describes one distribution run. It is decoded from TOML, then
// Validate fills defaults and rejects bad values.
type Forcing struct {
	Time   TimeSection   `toml:"time"`
	System SystemSection `toml:"system"`
	Topo   TopoSection   `toml:"topo"`
	CSV    CSVSection    `toml:"csv"`
	Output OutputSection `toml:"output"`

	AirTemp       domain.VariableConfig `toml:"air_temp"`
	VaporPressure domain.VariableConfig `toml:"vapor_pressure"`
	Wind          domain.VariableConfig `toml:"wind"`
	Precip        PrecipSection         `toml:"precip"`
	Albedo        AlbedoSection         `toml:"albedo"`
	Solar         SolarSection          `toml:"solar"`
	Thermal       ThermalSection        `toml:"thermal"`
	SoilTemp      SoilTempSection       `toml:"soil_temp"`
}

// TimeSection is the run window. Start and End are inclusive and read in
// TimeZone.
type TimeSection struct {
	Start       string `toml:"start"`
	End         string `toml:"end"`
	StepMinutes int    `toml:"step_minutes"` // default 60
	TimeZone    string `toml:"time_zone"`    // default UTC
}

// SystemSection controls the execution model.
type SystemSection struct {
	Threading bool `toml:"threading"`
	MaxValues int  `toml:"max_values"` // queue depth, default 1
	TimeOut   int  `toml:"time_out"`   // seconds a queue call may block, 0 waits forever
}

// TopoSection locates the terrain.
type TopoSection struct {
	DEM      string  `toml:"dem"`
	Mask     string  `toml:"mask"`
	BasinLat float64 `toml:"basin_lat"`
	BasinLon float64 `toml:"basin_lon"`
}

// CSVSection locates station metadata and one series file per measured
// variable.
type CSVSection struct {
	Metadata      string `toml:"metadata"`
	AirTemp       string `toml:"air_temp"`
	VaporPressure string `toml:"vapor_pressure"`
	WindSpeed     string `toml:"wind_speed"`
	WindDirection string `toml:"wind_direction"`
	Precip        string `toml:"precip"`
	CloudFactor   string `toml:"cloud_factor"`
}

// Series maps measured variables to their files, skipping unset ones.
func (c CSVSection) Series() map[domain.Variable]string {
	out := make(map[domain.Variable]string)
	for v, path := range map[domain.Variable]string{
		domain.AirTemp:       c.AirTemp,
		domain.VaporPressure: c.VaporPressure,
		domain.WindSpeed:     c.WindSpeed,
		domain.WindDirection: c.WindDirection,
		domain.Precip:        c.Precip,
		domain.CloudFactor:   c.CloudFactor,
	} {
		if path != "" {
			out[v] = path
		}
	}
	return out
}

// OutputSection selects what is emitted and where.
type OutputSection struct {
	Frequency    int      `toml:"frequency"` // every Nth timestep, default 1
	Variables    []string `toml:"variables"` // empty emits everything
	Sink         string   `toml:"sink"`      // log, kafka or none
	KafkaBrokers []string `toml:"kafka_brokers"`
	KafkaTopic   string   `toml:"kafka_topic"`
}

// PrecipSection adds storm tracking to the shared distribution settings.
type PrecipSection struct {
	domain.VariableConfig
	StormMassThreshold   float64 `toml:"storm_mass_threshold"`     // mm, default 1
	TimeStepsToEndStorms float64 `toml:"time_steps_to_end_storms"` // days, default 4
	PercentSnowThreshold float64 `toml:"ps_thresh"`                // default 0.5
}

// StormParams converts the section to recurrence parameters.
func (p PrecipSection) StormParams() envphys.StormParams {
	return envphys.StormParams{
		MassThreshold: p.StormMassThreshold,
		EndDays:       p.TimeStepsToEndStorms,
		SnowThreshold: p.PercentSnowThreshold,
	}
}

// AlbedoSection sets the snow albedo decay curve.
type AlbedoSection struct {
	MaxVis    float64 `toml:"max_vis"`
	MinVis    float64 `toml:"min_vis"`
	MaxIR     float64 `toml:"max_ir"`
	MinIR     float64 `toml:"min_ir"`
	DecayDays float64 `toml:"decay_days"`
}

// Params converts the section to decay parameters.
func (a AlbedoSection) Params() envphys.AlbedoParams {
	return envphys.AlbedoParams{
		MaxVis: a.MaxVis, MinVis: a.MinVis,
		MaxIR: a.MaxIR, MinIR: a.MinIR,
		DecayDays: a.DecayDays,
	}
}

// SolarSection distributes the station cloud factor and sets the clear
// sky model.
type SolarSection struct {
	domain.VariableConfig
	ClearTau    float64 `toml:"clear_tau"`    // default 0.7
	VisFraction float64 `toml:"vis_fraction"` // default 0.5
}

// ThermalSection selects the longwave methods.
type ThermalSection struct {
	Method       string   `toml:"method"` // dilley1998, prata1996 or angstrom1918
	CorrectCloud bool     `toml:"correct_cloud"`
	CloudMethod  string   `toml:"cloud_method"` // garen2005 or crawford1999
	Min          *float64 `toml:"min"`
	Max          *float64 `toml:"max"`
}

// SoilTempSection is the constant soil temperature.
type SoilTempSection struct {
	Temp *float64 `toml:"temp"` // degC, default -2.5
}

// LoadForcing reads and validates the TOML run description at path.
func LoadForcing(path string) (*Forcing, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("forcing config: %w", err)
	}
	var f Forcing
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("decode forcing config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// ParseForcing decodes and validates a TOML document.
func ParseForcing(doc string) (*Forcing, error) {
	var f Forcing
	if _, err := toml.Decode(doc, &f); err != nil {
		return nil, fmt.Errorf("decode forcing config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate applies defaults and checks every section. Errors name the
// offending key.
func (f *Forcing) Validate() error {
	if f.Time.StepMinutes == 0 {
		f.Time.StepMinutes = 60
	}
	if f.Time.StepMinutes < 0 {
		return fmt.Errorf("time.step_minutes must be positive")
	}
	if f.Time.TimeZone == "" {
		f.Time.TimeZone = "UTC"
	}
	if _, err := f.Timesteps(); err != nil {
		return err
	}

	if f.System.MaxValues == 0 {
		f.System.MaxValues = 1
	}
	if f.System.MaxValues < 0 {
		return fmt.Errorf("system.max_values must be positive")
	}
	if f.System.TimeOut < 0 {
		return fmt.Errorf("system.time_out must not be negative")
	}

	if f.Output.Frequency == 0 {
		f.Output.Frequency = 1
	}
	if f.Output.Frequency < 0 {
		return fmt.Errorf("output.frequency must be positive")
	}
	if f.Output.Sink == "" {
		f.Output.Sink = "log"
	}
	switch f.Output.Sink {
	case "log", "kafka", "none":
	default:
		return fmt.Errorf("output.sink %q must be log, kafka or none", f.Output.Sink)
	}
	if f.Output.KafkaTopic == "" {
		f.Output.KafkaTopic = "smrf-forcing"
	}

	for key, vc := range map[string]*domain.VariableConfig{
		"air_temp":       &f.AirTemp,
		"vapor_pressure": &f.VaporPressure,
		"wind":           &f.Wind,
		"precip":         &f.Precip.VariableConfig,
		"solar":          &f.Solar.VariableConfig,
	} {
		if vc.Distribution == "" {
			vc.Distribution = string(domain.MethodIDW)
		}
		if _, err := domain.ParseMethod(vc.Distribution); err != nil {
			return fmt.Errorf("%s.distribution: %w", key, err)
		}
		if vc.Slope < -1 || vc.Slope > 1 {
			return fmt.Errorf("%s.slope must be -1, 0 or 1", key)
		}
		if vc.Min != nil && vc.Max != nil && *vc.Min > *vc.Max {
			return fmt.Errorf("%s.min is above %s.max", key, key)
		}
	}

	defaults := envphys.DefaultStormParams()
	if f.Precip.StormMassThreshold == 0 {
		f.Precip.StormMassThreshold = defaults.MassThreshold
	}
	if f.Precip.TimeStepsToEndStorms == 0 {
		f.Precip.TimeStepsToEndStorms = defaults.EndDays
	}
	if f.Precip.PercentSnowThreshold == 0 {
		f.Precip.PercentSnowThreshold = defaults.SnowThreshold
	}
	if f.Precip.Min == nil {
		f.Precip.Min = domain.Float(0)
	}
	if f.VaporPressure.Min == nil {
		f.VaporPressure.Min = domain.Float(10)
	}
	if *f.VaporPressure.Min <= 0 {
		return fmt.Errorf("vapor_pressure.min must be positive, dew point is undefined at %g Pa", *f.VaporPressure.Min)
	}
	if f.Wind.Min == nil {
		f.Wind.Min = domain.Float(0)
	}

	if f.Albedo == (AlbedoSection{}) {
		d := envphys.DefaultAlbedoParams()
		f.Albedo = AlbedoSection{MaxVis: d.MaxVis, MinVis: d.MinVis, MaxIR: d.MaxIR, MinIR: d.MinIR, DecayDays: d.DecayDays}
	}
	if f.Albedo.MinVis > f.Albedo.MaxVis || f.Albedo.MinIR > f.Albedo.MaxIR {
		return fmt.Errorf("albedo.min_* must not exceed albedo.max_*")
	}

	if f.Solar.ClearTau == 0 {
		f.Solar.ClearTau = 0.7
	}
	if f.Solar.VisFraction == 0 {
		f.Solar.VisFraction = 0.5
	}
	if f.Solar.ClearTau <= 0 || f.Solar.ClearTau > 1 {
		return fmt.Errorf("solar.clear_tau must be in (0, 1]")
	}
	if f.Solar.Min == nil {
		f.Solar.Min = domain.Float(0)
	}
	if f.Solar.Max == nil {
		f.Solar.Max = domain.Float(1)
	}

	if _, err := envphys.ClearSkyMethod(f.Thermal.Method); err != nil {
		return fmt.Errorf("thermal.method: %w", err)
	}
	if _, err := envphys.CloudMethod(f.Thermal.CloudMethod); err != nil {
		return fmt.Errorf("thermal.cloud_method: %w", err)
	}

	if f.SoilTemp.Temp == nil {
		f.SoilTemp.Temp = domain.Float(-2.5)
	}
	return nil
}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"}

// Location resolves time.time_zone.
func (f *Forcing) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(f.Time.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("time.time_zone: %w", err)
	}
	return loc, nil
}

// Timesteps expands the run window into ascending UTC timestamps.
func (f *Forcing) Timesteps() ([]time.Time, error) {
	loc, err := f.Location()
	if err != nil {
		return nil, err
	}
	start, err := ParseTime(f.Time.Start, loc)
	if err != nil {
		return nil, fmt.Errorf("time.start: %w", err)
	}
	end, err := ParseTime(f.Time.End, loc)
	if err != nil {
		return nil, fmt.Errorf("time.end: %w", err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("time.end is before time.start")
	}

	step := time.Duration(f.Time.StepMinutes) * time.Minute
	var out []time.Time
	for t := start; !t.After(end); t = t.Add(step) {
		out = append(out, t.UTC())
	}
	return out, nil
}

// Step returns the model timestep.
func (f *Forcing) Step() time.Duration {
	return time.Duration(f.Time.StepMinutes) * time.Minute
}

// QueueTimeout returns system.time_out as a duration.
func (f *Forcing) QueueTimeout() time.Duration {
	return time.Duration(f.System.TimeOut) * time.Second
}

// OutputVariables returns the requested output names, or nil for all.
func (f *Forcing) OutputVariables() []domain.Variable {
	var out []domain.Variable
	for _, v := range f.Output.Variables {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, domain.Variable(v))
		}
	}
	return out
}

// ParseTime reads s in loc using the layouts accepted for run windows
// and series timestamps.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("required")
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q", s)
}
