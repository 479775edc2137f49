// Package ascgrid reads and writes ESRI ASCII grids and builds the model
// terrain from them.
package ascgrid

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/shepherdmeng/smrf/internal/domain"
)

// Raster is one ASCII grid. Grid rows run north to south; X and Y hold
// cell centre coordinates.
type Raster struct {
	Grid     domain.Grid
	X        []float64
	Y        []float64
	CellSize float64
	NoData   float64
}

// New builds a raster whose lower-left cell corner is at (xll, yll).
func New(g domain.Grid, xll, yll, cellSize, noData float64) *Raster {
	r := &Raster{Grid: g, CellSize: cellSize, NoData: noData, X: make([]float64, g.Nx), Y: make([]float64, g.Ny)}
	for j := range r.X {
		r.X[j] = xll + (float64(j)+0.5)*cellSize
	}
	for i := range r.Y {
		r.Y[i] = yll + (float64(g.Ny-1-i)+0.5)*cellSize
	}
	return r
}

// Read parses a grid. Both the corner and centre header variants are
// accepted; NODATA_value defaults to -9999.
func Read(r io.Reader) (*Raster, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)

	header := map[string]float64{"nodata_value": -9999}
	var first string
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			first = key
			break
		}
		if !sc.Scan() {
			return nil, fmt.Errorf("header %s has no value", key)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("header %s: %w", key, err)
		}
		header[key] = v
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	ncols, nrows := int(header["ncols"]), int(header["nrows"])
	cellSize := header["cellsize"]
	if ncols <= 0 || nrows <= 0 || cellSize <= 0 {
		return nil, fmt.Errorf("header needs positive ncols, nrows and cellsize")
	}
	xll, okx := header["xllcorner"]
	yll, oky := header["yllcorner"]
	if xc, ok := header["xllcenter"]; ok {
		xll, okx = xc-cellSize/2, true
	}
	if yc, ok := header["yllcenter"]; ok {
		yll, oky = yc-cellSize/2, true
	}
	if !okx || !oky {
		return nil, fmt.Errorf("header needs xllcorner/yllcorner or xllcenter/yllcenter")
	}

	g := domain.NewGrid(nrows, ncols)
	n := 0
	word := first
	for {
		if word == "" {
			if !sc.Scan() {
				break
			}
			word = sc.Text()
		}
		if n == len(g.Data) {
			return nil, fmt.Errorf("more than %d values", len(g.Data))
		}
		v, err := strconv.ParseFloat(word, 64)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", n, err)
		}
		g.Data[n] = v
		n++
		word = ""
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if n != len(g.Data) {
		return nil, fmt.Errorf("got %d values, want %d", n, len(g.Data))
	}

	return New(g, xll, yll, cellSize, header["nodata_value"]), nil
}

// ReadFile opens and parses path.
func ReadFile(path string) (*Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Write serializes r with a corner header. NaN cells are written as the
// raster's NoData value.
func Write(w io.Writer, r *Raster) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols %d\nnrows %d\n", r.Grid.Nx, r.Grid.Ny)
	fmt.Fprintf(bw, "xllcorner %s\nyllcorner %s\n",
		formatFloat(r.X[0]-r.CellSize/2), formatFloat(r.Y[r.Grid.Ny-1]-r.CellSize/2))
	fmt.Fprintf(bw, "cellsize %s\nNODATA_value %s\n", formatFloat(r.CellSize), formatFloat(r.NoData))
	for i := 0; i < r.Grid.Ny; i++ {
		for j := 0; j < r.Grid.Nx; j++ {
			if j > 0 {
				bw.WriteByte(' ')
			}
			v := r.Grid.At(i, j)
			if math.IsNaN(v) {
				v = r.NoData
			}
			bw.WriteString(formatFloat(v))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// LoadTerrain reads the DEM and an optional mask of the same shape. Mask
// cells that are non-zero and not NODATA are inside the basin. The DEM
// itself may not contain NODATA.
func LoadTerrain(demPath, maskPath string) (*domain.Terrain, error) {
	if demPath == "" {
		return nil, fmt.Errorf("%w: topo.dem is required", domain.ErrConfiguration)
	}
	dem, err := ReadFile(demPath)
	if err != nil {
		return nil, fmt.Errorf("dem: %w", err)
	}
	for k, v := range dem.Grid.Data {
		if v == dem.NoData || math.IsNaN(v) {
			return nil, fmt.Errorf("%w: dem cell %d is NODATA", domain.ErrConfiguration, k)
		}
	}

	var mask []bool
	if maskPath != "" {
		m, err := ReadFile(maskPath)
		if err != nil {
			return nil, fmt.Errorf("mask: %w", err)
		}
		if !m.Grid.SameShape(dem.Grid) {
			return nil, fmt.Errorf("%w: mask is %dx%d, dem is %dx%d",
				domain.ErrConfiguration, m.Grid.Ny, m.Grid.Nx, dem.Grid.Ny, dem.Grid.Nx)
		}
		mask = make([]bool, m.Grid.Len())
		for k, v := range m.Grid.Data {
			mask[k] = v != 0 && v != m.NoData
		}
	}

	return domain.NewTerrain(dem.Grid, dem.X, dem.Y, mask)
}
