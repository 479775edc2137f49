package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Station is one measurement site in projected coordinates.
type Station struct {
	ID        string
	X         float64
	Y         float64
	Elevation float64
}

// StationMetadata indexes stations by primary id.
type StationMetadata map[string]Station

// IDs returns every station id in ascending order.
func (m StationMetadata) IDs() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Subset resolves the active stations for a variable: the explicit list when
// given, otherwise every station. The result is sorted ascending by id.
// Ids are matched case-insensitively against the metadata.
func (m StationMetadata) Subset(ids []string) ([]Station, error) {
	if len(ids) == 0 {
		ids = m.IDs()
	}

	byUpper := make(map[string]string, len(m))
	for id := range m {
		byUpper[strings.ToUpper(id)] = id
	}

	seen := make(map[string]bool, len(ids))
	out := make([]Station, 0, len(ids))
	for _, want := range ids {
		id, ok := byUpper[strings.ToUpper(strings.TrimSpace(want))]
		if !ok {
			return nil, fmt.Errorf("%w: station %q not in metadata", ErrConfiguration, want)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, m[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Sample holds one timestep of point values keyed by station id.
type Sample map[string]float64

// PointSeries is a station-by-time table for one measured quantity.
// Timestamps are keyed by their UTC instant.
type PointSeries struct {
	rows     map[int64]Sample
	stations map[string]struct{}
}

// NewPointSeries returns an empty series.
func NewPointSeries() *PointSeries {
	return &PointSeries{
		rows:     make(map[int64]Sample),
		stations: make(map[string]struct{}),
	}
}

// Set records a value for station at t.
func (s *PointSeries) Set(t time.Time, station string, v float64) {
	key := t.UnixNano()
	row, ok := s.rows[key]
	if !ok {
		row = make(Sample)
		s.rows[key] = row
	}
	row[station] = v
	s.stations[station] = struct{}{}
}

// At returns the sample recorded at t.
func (s *PointSeries) At(t time.Time) (Sample, bool) {
	row, ok := s.rows[t.UnixNano()]
	return row, ok
}

// Stations returns the column names in ascending order.
func (s *PointSeries) Stations() []string {
	out := make([]string, 0, len(s.stations))
	for id := range s.stations {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Times returns every recorded timestamp in ascending order, in UTC.
func (s *PointSeries) Times() []time.Time {
	keys := make([]int64, 0, len(s.rows))
	for k := range s.rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]time.Time, len(keys))
	for i, k := range keys {
		out[i] = time.Unix(0, k).UTC()
	}
	return out
}

// Dataset is everything the data source hands to the core for one run.
type Dataset struct {
	Metadata StationMetadata
	Series   map[Variable]*PointSeries
}

// CheckStations verifies metadata ⊆ series columns for every series.
func (d *Dataset) CheckStations() error {
	for name, series := range d.Series {
		for _, id := range d.Metadata.IDs() {
			if _, ok := series.stations[id]; !ok {
				return fmt.Errorf("%w: station %q missing from %s series", ErrConfiguration, id, name)
			}
		}
	}
	return nil
}
