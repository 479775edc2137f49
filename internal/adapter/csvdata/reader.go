// Package csvdata loads station metadata and per-variable point series
// from CSV files.
//
// The metadata file has one row per station with at least the columns
// primary_id, X, Y and elevation. Each series file has a date_time column
// followed by one column per station id; empty or NaN cells are missing
// values.
package csvdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shepherdmeng/smrf/internal/config"
	"github.com/shepherdmeng/smrf/internal/domain"
)

var metadataColumns = []string{"primary_id", "x", "y", "elevation"}

// Load reads the metadata and every configured series file and checks
// that each series has a column for every station.
func Load(section config.CSVSection, loc *time.Location) (*domain.Dataset, error) {
	if section.Metadata == "" {
		return nil, fmt.Errorf("%w: csv.metadata is required", domain.ErrConfiguration)
	}
	meta, err := readFile(section.Metadata, ReadMetadata)
	if err != nil {
		return nil, err
	}

	ds := &domain.Dataset{Metadata: meta, Series: make(map[domain.Variable]*domain.PointSeries)}
	for v, path := range section.Series() {
		series, err := readFile(path, func(r io.Reader) (*domain.PointSeries, error) {
			return ReadSeries(r, loc)
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", v, err)
		}
		ds.Series[v] = series
	}

	if err := ds.CheckStations(); err != nil {
		return nil, err
	}
	return ds, nil
}

func readFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	out, err := read(f)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}

// ReadMetadata parses the station metadata table. Column names are
// matched case-insensitively and extra columns are ignored.
func ReadMetadata(r io.Reader) (domain.StationMetadata, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range metadataColumns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("%w: metadata missing column %q", domain.ErrConfiguration, c)
		}
	}

	meta := make(domain.StationMetadata)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		id := strings.TrimSpace(row[idx["primary_id"]])
		if id == "" {
			return nil, fmt.Errorf("line %d: empty primary_id", line)
		}
		if _, dup := meta[id]; dup {
			return nil, fmt.Errorf("line %d: duplicate station %q", line, id)
		}
		s := domain.Station{ID: id}
		for _, f := range []struct {
			col string
			dst *float64
		}{{"x", &s.X}, {"y", &s.Y}, {"elevation", &s.Elevation}} {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[idx[f.col]]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, f.col, err)
			}
			*f.dst = v
		}
		meta[id] = s
	}

	if len(meta) == 0 {
		return nil, fmt.Errorf("%w: metadata has no stations", domain.ErrConfiguration)
	}
	return meta, nil
}

// ReadSeries parses a date_time-indexed table with one column per station.
// Timestamps without a zone are read in loc.
func ReadSeries(r io.Reader, loc *time.Location) (*domain.PointSeries, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 2 || !strings.EqualFold(strings.TrimSpace(header[0]), "date_time") {
		return nil, fmt.Errorf("%w: first column must be date_time", domain.ErrConfiguration)
	}
	stations := make([]string, len(header)-1)
	for i, h := range header[1:] {
		stations[i] = strings.TrimSpace(h)
	}

	series := domain.NewPointSeries()
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		t, err := config.ParseTime(row[0], loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: date_time: %w", line, err)
		}
		for i, id := range stations {
			v, err := parseValue(row[i+1])
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, id, err)
			}
			series.Set(t, id, v)
		}
	}
	return series, nil
}

func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "na") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
