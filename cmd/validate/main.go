// Command validate checks a forcing run before it is started: the TOML
// file, the terrain rasters, the station CSVs and the distributor graph.
// It finishes with a dry run that initializes every distributor without
// distributing a timestep.
//
// Usage:
//
//	go run ./cmd/validate -forcing data/mock/forcing.toml
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/shepherdmeng/smrf/internal/adapter/ascgrid"
	"github.com/shepherdmeng/smrf/internal/adapter/csvdata"
	"github.com/shepherdmeng/smrf/internal/config"
	"github.com/shepherdmeng/smrf/internal/distribute"
	"github.com/shepherdmeng/smrf/internal/domain"
	"github.com/shepherdmeng/smrf/internal/observability"
	"github.com/shepherdmeng/smrf/internal/output"
	"github.com/shepherdmeng/smrf/internal/pipeline"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	forcingPath := flag.String("forcing", "", "path to the forcing TOML file")
	flag.Parse()

	if *forcingPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(*forcingPath))
}

func run(forcingPath string) int {
	fmt.Println("=== Forcing Run Validation ===")
	fmt.Println()

	forcing, err := config.LoadForcing(forcingPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	loc, err := forcing.Location()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	times, err := forcing.Timesteps()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	terrain, err := ascgrid.LoadTerrain(forcing.Topo.DEM, forcing.Topo.Mask)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load terrain: %v\n", err)
		return 1
	}

	dataset, err := csvdata.Load(forcing.CSV, loc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load station data: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateTerrain(terrain),
		validateStationCoverage(forcing, dataset),
		validateSeriesCoverage(dataset, times),
		validateDryRun(forcing, terrain, dataset, times),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	ny, nx := terrain.Shape()
	fmt.Println()
	fmt.Printf("Run: %d timesteps of %s from %s, grid %dx%d, %d stations\n",
		len(times), forcing.Step(), times[0].Format(time.RFC3339), ny, nx, len(dataset.Metadata))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: terrain ──

func validateTerrain(t *domain.Terrain) *phase {
	p := &phase{name: "Phase 1: Terrain"}

	inside := 0
	for _, m := range t.Mask {
		if m {
			inside++
		}
	}
	if inside == 0 {
		p.errorf("mask excludes every cell")
	}

	lo, hi := t.Elevation.Range()
	if lo < -500 || hi > 9000 {
		p.errorf("elevation range %.1f..%.1f m is outside -500..9000", lo, hi)
	}
	if t.Slope.HasNaN() || t.Aspect.HasNaN() {
		p.errorf("slope or aspect contains NaN")
	}

	fmt.Printf("  Terrain: %d cells inside the mask, elevation %.1f..%.1f m\n", inside, lo, hi)
	return p
}

// ── Phase 2: station subsets ──

// validateStationCoverage checks that every configured station list names
// stations present in the metadata.
func validateStationCoverage(f *config.Forcing, ds *domain.Dataset) *phase {
	p := &phase{name: "Phase 2: Station subsets"}

	known := ds.Metadata.IDs()
	for key, vc := range map[string]domain.VariableConfig{
		"air_temp":       f.AirTemp,
		"vapor_pressure": f.VaporPressure,
		"wind":           f.Wind,
		"precip":         f.Precip.VariableConfig,
		"solar":          f.Solar.VariableConfig,
	} {
		active, err := ds.Metadata.Subset(vc.Stations)
		if err != nil {
			p.errorf("%s.stations: %v", key, err)
			continue
		}
		if len(active) < 2 && vc.Distribution != string(domain.MethodGrid) {
			p.errorf("%s: %s needs at least 2 stations, have %d", key, vc.Distribution, len(active))
		}
	}

	fmt.Printf("  Stations: %s\n", strings.Join(known, ", "))
	return p
}

// ── Phase 3: series coverage ──

// validateSeriesCoverage requires a row for every timestep in every
// series and at least one reported value per row.
func validateSeriesCoverage(ds *domain.Dataset, times []time.Time) *phase {
	p := &phase{name: "Phase 3: Series coverage"}

	for _, v := range []domain.Variable{
		domain.AirTemp, domain.VaporPressure, domain.WindSpeed,
		domain.WindDirection, domain.Precip, domain.CloudFactor,
	} {
		series, ok := ds.Series[v]
		if !ok {
			p.errorf("%s: no series configured", v)
			continue
		}
		var missingRows, emptyRows, gaps int
		for _, t := range times {
			row, ok := series.At(t)
			if !ok {
				missingRows++
				continue
			}
			reported := 0
			for _, val := range row {
				if math.IsNaN(val) {
					gaps++
					continue
				}
				reported++
			}
			if reported == 0 {
				emptyRows++
			}
		}
		if missingRows > 0 {
			p.errorf("%s: %d of %d timesteps have no row", v, missingRows, len(times))
		}
		if emptyRows > 0 {
			p.errorf("%s: %d timesteps have no reported value", v, emptyRows)
		}
		fmt.Printf("  %-16s %d rows, %d missing values\n", v, len(series.Times()), gaps)
	}
	return p
}

// ── Phase 4: dry run ──

// validateDryRun builds the distributors, orders the graph and
// initializes every distributor against the terrain.
func validateDryRun(f *config.Forcing, t *domain.Terrain, ds *domain.Dataset, times []time.Time) *phase {
	p := &phase{name: "Phase 4: Distributor dry run"}

	logger := slog.New(slog.DiscardHandler)
	vars, err := distribute.Build(f, logger)
	if err != nil {
		p.errorf("build distributors: %v", err)
		return p
	}

	orch, err := pipeline.New(vars, t, ds, times, output.Discard{}, logger,
		observability.NewMetricsForTesting(), pipeline.Options{
			Threading: f.System.Threading,
			Frequency: f.Output.Frequency,
			Variables: f.OutputVariables(),
			MaxDepth:  f.System.MaxValues,
			Timeout:   f.QueueTimeout(),
		})
	if err != nil {
		p.errorf("dependency graph: %v", err)
		return p
	}

	names := make([]string, 0, len(vars))
	for _, d := range orch.Graph().Order() {
		names = append(names, d.Name())
	}
	fmt.Printf("  Order: %s\n", strings.Join(names, " -> "))

	if err := orch.Initialize(); err != nil {
		p.errorf("initialize: %v", err)
	}
	return p
}
