// Command genmock writes a small synthetic basin for local runs and
// integration tests: a DEM and mask in ESRI ASCII grid format, station
// metadata, one CSV series per measured variable and a forcing.toml that
// points at them.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -nx 40 -ny 30 -stations 6 -hours 48
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"text/template"
	"time"

	"github.com/shepherdmeng/smrf/internal/adapter/ascgrid"
	"github.com/shepherdmeng/smrf/internal/domain"
)

const timeLayout = "2006-01-02 15:04"

type basin struct {
	dem      domain.Grid
	mask     domain.Grid
	xll, yll float64
	cellSize float64
}

type station struct {
	id        string
	x, y, elv float64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory")
	nx := flag.Int("nx", 40, "grid columns")
	ny := flag.Int("ny", 30, "grid rows")
	cellSize := flag.Float64("cell", 100, "cell size in metres")
	nStations := flag.Int("stations", 6, "number of stations")
	start := flag.String("start", "2024-01-15 00:00", "first timestep, UTC")
	hours := flag.Int("hours", 48, "number of hourly timesteps")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *nx < 2 || *ny < 2 || *nStations < 3 || *hours < 1 {
		return fmt.Errorf("need nx, ny >= 2, stations >= 3 and hours >= 1")
	}
	t0, err := time.Parse(timeLayout, *start)
	if err != nil {
		return fmt.Errorf("parse -start: %w", err)
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	b := makeBasin(*ny, *nx, *cellSize)
	stations := placeStations(b, *nStations, rng)
	times := make([]time.Time, *hours)
	for i := range times {
		times[i] = t0.Add(time.Duration(i) * time.Hour)
	}

	if err := writeRaster(filepath.Join(*out, "dem.asc"), b, b.dem); err != nil {
		return err
	}
	if err := writeRaster(filepath.Join(*out, "mask.asc"), b, b.mask); err != nil {
		return err
	}
	if err := writeMetadata(filepath.Join(*out, "metadata.csv"), stations); err != nil {
		return err
	}

	series := simulate(stations, times, rng)
	for _, name := range []string{"air_temp", "vapor_pressure", "wind_speed", "wind_direction", "precip", "cloud_factor"} {
		path := filepath.Join(*out, name+".csv")
		if err := writeSeries(path, stations, times, series[name]); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}

	if err := writeForcing(filepath.Join(*out, "forcing.toml"), *out, times); err != nil {
		return err
	}

	log.Printf("wrote %dx%d basin, %d stations, %d timesteps to %s", *ny, *nx, len(stations), len(times), *out)
	return nil
}

// makeBasin builds a valley draining north: elevation rises from 1800 m
// along the axis toward ridges on the east and west edges and toward the
// south. The mask excludes the outer ring of cells.
func makeBasin(ny, nx int, cellSize float64) basin {
	b := basin{
		dem:      domain.NewGrid(ny, nx),
		mask:     domain.NewGrid(ny, nx),
		xll:      500000,
		yll:      4100000,
		cellSize: cellSize,
	}
	for i := range ny {
		south := float64(i) / float64(ny-1)
		for j := range nx {
			across := math.Abs(float64(j)/float64(nx-1)-0.5) * 2
			b.dem.Set(i, j, 1800+600*south+900*across*across)
			if i > 0 && j > 0 && i < ny-1 && j < nx-1 {
				b.mask.Set(i, j, 1)
			}
		}
	}
	return b
}

func placeStations(b basin, n int, rng *rand.Rand) []station {
	if n > b.dem.Len() {
		n = b.dem.Len()
	}
	out := make([]station, n)
	taken := make(map[int]bool, n)
	for k := range out {
		var i, j int
		for {
			i, j = rng.IntN(b.dem.Ny), rng.IntN(b.dem.Nx)
			if !taken[i*b.dem.Nx+j] {
				taken[i*b.dem.Nx+j] = true
				break
			}
		}
		out[k] = station{
			id:  fmt.Sprintf("ST%02d", k+1),
			x:   b.xll + (float64(j)+0.5)*b.cellSize,
			y:   b.yll + (float64(b.dem.Ny-1-i)+0.5)*b.cellSize,
			elv: b.dem.At(i, j),
		}
	}
	return out
}

// simulate produces hourly values per variable as [time][station]. Air
// temperature follows a diurnal cycle with a 6.5 K/km lapse rate, and a
// storm passes through the middle third of the window.
func simulate(stations []station, times []time.Time, rng *rand.Rand) map[string][][]float64 {
	out := make(map[string][][]float64)
	n := len(times)
	for t, ts := range times {
		storm := t >= n/3 && t < 2*n/3
		hour := float64(ts.Hour()) + float64(ts.Minute())/60
		diurnal := 4 * math.Sin(2*math.Pi*(hour-9)/24)

		row := func(name string, f func(s station) float64) {
			vals := make([]float64, len(stations))
			for k, s := range stations {
				vals[k] = f(s)
			}
			out[name] = append(out[name], vals)
		}

		row("air_temp", func(s station) float64 {
			ta := 1 + diurnal - 0.0065*(s.elv-1800) + rng.NormFloat64()*0.3
			if storm {
				ta -= 3
			}
			return round(ta, 2)
		})
		row("vapor_pressure", func(s station) float64 {
			vp := 450 - 0.1*(s.elv-1800) + rng.NormFloat64()*15
			if storm {
				vp += 150
			}
			return round(vp, 1)
		})
		row("wind_speed", func(station) float64 {
			ws := 2.5 + math.Abs(rng.NormFloat64())
			if storm {
				ws += 3
			}
			return round(ws, 2)
		})
		row("wind_direction", func(station) float64 {
			return round(math.Mod(240+rng.NormFloat64()*20+360, 360), 1)
		})
		row("precip", func(s station) float64 {
			if !storm {
				return 0
			}
			return round(1.5+0.001*(s.elv-1800)+rng.Float64(), 2)
		})
		row("cloud_factor", func(station) float64 {
			if storm {
				return round(0.2+rng.Float64()*0.2, 2)
			}
			return round(0.8+rng.Float64()*0.2, 2)
		})
	}

	// A missing reading exercises the gap handling downstream.
	if n > 1 && len(stations) > 1 {
		out["air_temp"][1][1] = math.NaN()
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func writeRaster(path string, b basin, g domain.Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := ascgrid.Write(f, ascgrid.New(g, b.xll, b.yll, b.cellSize, -9999)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func writeMetadata(path string, stations []station) error {
	rows := [][]string{{"primary_id", "X", "Y", "elevation"}}
	for _, s := range stations {
		rows = append(rows, []string{s.id, formatFloat(s.x), formatFloat(s.y), formatFloat(s.elv)})
	}
	return writeCSV(path, rows)
}

func writeSeries(path string, stations []station, times []time.Time, values [][]float64) error {
	header := []string{"date_time"}
	for _, s := range stations {
		header = append(header, s.id)
	}
	rows := [][]string{header}
	for t, ts := range times {
		row := []string{ts.Format(timeLayout)}
		for _, v := range values[t] {
			if math.IsNaN(v) {
				row = append(row, "")
				continue
			}
			row = append(row, formatFloat(v))
		}
		rows = append(rows, row)
	}
	return writeCSV(path, rows)
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

var forcingTemplate = template.Must(template.New("forcing").Parse(`[time]
start = "{{.Start}}"
end = "{{.End}}"
step_minutes = 60
time_zone = "UTC"

[system]
threading = true
max_values = 1
time_out = 30

[topo]
dem = "{{.Dir}}/dem.asc"
mask = "{{.Dir}}/mask.asc"
basin_lat = 37.1
basin_lon = -119.2

[csv]
metadata = "{{.Dir}}/metadata.csv"
air_temp = "{{.Dir}}/air_temp.csv"
vapor_pressure = "{{.Dir}}/vapor_pressure.csv"
wind_speed = "{{.Dir}}/wind_speed.csv"
wind_direction = "{{.Dir}}/wind_direction.csv"
precip = "{{.Dir}}/precip.csv"
cloud_factor = "{{.Dir}}/cloud_factor.csv"

[output]
frequency = 1
sink = "log"

[air_temp]
distribution = "idw"
detrend = true
slope = -1

[vapor_pressure]
distribution = "idw"
detrend = true

[wind]
distribution = "idw"

[precip]
distribution = "dk"
detrend = true
slope = 1

[solar]
distribution = "idw"

[thermal]
method = "dilley1998"
correct_cloud = true
cloud_method = "garen2005"
`))

func writeForcing(path, dir string, times []time.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	err = forcingTemplate.Execute(f, map[string]string{
		"Dir":   dir,
		"Start": times[0].Format(timeLayout),
		"End":   times[len(times)-1].Format(timeLayout),
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
