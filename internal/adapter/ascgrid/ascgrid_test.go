package ascgrid_test

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shepherdmeng/smrf/internal/adapter/ascgrid"
	"github.com/shepherdmeng/smrf/internal/domain"
)

const dem = `ncols 3
nrows 2
xllcorner 1000
yllcorner 5000
cellsize 50
NODATA_value -9999
1500 1510 1520
1490 1500 1510
`

func TestRead(t *testing.T) {
	r, err := ascgrid.Read(strings.NewReader(dem))
	require.NoError(t, err)

	assert.Equal(t, 2, r.Grid.Ny)
	assert.Equal(t, 3, r.Grid.Nx)
	assert.Equal(t, []float64{1025, 1075, 1125}, r.X)
	assert.Equal(t, []float64{5075, 5025}, r.Y, "north row first")
	assert.Equal(t, 1520.0, r.Grid.At(0, 2))
	assert.Equal(t, -9999.0, r.NoData)
}

func TestRead_CenterHeader(t *testing.T) {
	doc := "NCOLS 2\nNROWS 1\nXLLCENTER 10\nYLLCENTER 20\nCELLSIZE 4\n7 8\n"
	r, err := ascgrid.Read(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 14}, r.X)
	assert.Equal(t, []float64{20}, r.Y)
}

func TestRead_Errors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{"too few values", "ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2 3\n", "got 3 values, want 4"},
		{"too many values", "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2\n", "more than 1 values"},
		{"no origin", "ncols 1\nnrows 1\ncellsize 1\n1\n", "xllcorner"},
		{"bad size", "ncols 0\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n", "positive"},
		{"bad value", "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\nhigh\n", "header high has no value"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ascgrid.Read(strings.NewReader(tc.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestWriteThenRead(t *testing.T) {
	g := domain.Grid{Ny: 2, Nx: 2, Data: []float64{1.25, math.NaN(), -3, 4}}
	src := ascgrid.New(g, 100, 200, 30, -9999)

	var buf bytes.Buffer
	require.NoError(t, ascgrid.Write(&buf, src))
	assert.Contains(t, buf.String(), "1.25 -9999\n")

	got, err := ascgrid.Read(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(src.X, got.X); diff != "" {
		t.Errorf("x mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(src.Y, got.Y); diff != "" {
		t.Errorf("y mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, -9999.0, got.Grid.Data[1])
}

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadTerrain(t *testing.T) {
	dir := t.TempDir()
	demPath := write(t, dir, "dem.asc", dem)

	terrain, err := ascgrid.LoadTerrain(demPath, "")
	require.NoError(t, err)
	ny, nx := terrain.Shape()
	assert.Equal(t, 2, ny)
	assert.Equal(t, 3, nx)
	assert.Equal(t, []bool{true, true, true, true, true, true}, terrain.Mask)

	t.Run("with mask", func(t *testing.T) {
		mask := write(t, dir, "mask.asc", strings.Replace(dem, "1500 1510 1520\n1490 1500 1510", "0 1 1\n-9999 1 0", 1))
		terrain, err := ascgrid.LoadTerrain(demPath, mask)
		require.NoError(t, err)
		assert.Equal(t, []bool{false, true, true, false, true, false}, terrain.Mask)
	})

	t.Run("mask shape mismatch", func(t *testing.T) {
		mask := write(t, dir, "small.asc", "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n")
		_, err := ascgrid.LoadTerrain(demPath, mask)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("nodata in dem", func(t *testing.T) {
		holes := write(t, dir, "holes.asc", strings.Replace(dem, "1490", "-9999", 1))
		_, err := ascgrid.LoadTerrain(holes, "")
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("dem required", func(t *testing.T) {
		_, err := ascgrid.LoadTerrain("", "")
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})
}
