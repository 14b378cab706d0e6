// Package grid buckets station positions into rectangular cells sized from a distance
// threshold, so that neighbour candidates come from a cell and its eight adjacent cells.
package grid

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// Degree conversion factors for the deployment region (Barcelona, ~41.4°N).
// 1 degree latitude ≈ 111 km everywhere; 1 degree longitude ≈ 83 km at this latitude.
// A different region needs different longitude factor since no cos(lat) correction is applied.
const (
	KmPerDegreeLat = 111.0
	KmPerDegreeLon = 83.0

	// boundsMargin keeps extreme stations inside the grid despite float rounding
	boundsMargin = 1e-5
)

// Cell is a grid coordinate
type Cell struct {
	Row int
	Col int
}

// neighborOffsets addresses the 8 cells around a cell
var neighborOffsets = [8]Cell{
	{-1, 0}, {-1, 1}, {-1, -1},
	{0, 1}, {0, -1},
	{1, 1}, {1, 0}, {1, -1},
}

// Index maps cells to the positions of the points they contain
type Index struct {
	points   []orb.Point
	cells    map[Cell][]int
	deltaLat float64
	deltaLon float64
	bound    orb.Bound
}

// Deltas converts a threshold in meters to latitude and longitude degree deltas
func Deltas(thresholdMeters float64) (deltaLat, deltaLon float64) {
	km := thresholdMeters / 1000

	return km / KmPerDegreeLat, km / KmPerDegreeLon
}

// New builds an index over points ([lon, lat]) with cells of one threshold in each axis.
// The threshold must be positive.
func New(points []orb.Point, thresholdMeters float64) *Index {
	deltaLat, deltaLon := Deltas(thresholdMeters)

	return Build(points, deltaLat, deltaLon)
}

// Build constructs the index with explicit cell height (latitude degrees) and width
// (longitude degrees)
func Build(points []orb.Point, cellHeight, cellWidth float64) *Index {
	idx := &Index{
		points:   points,
		cells:    make(map[Cell][]int),
		deltaLat: cellHeight,
		deltaLon: cellWidth,
	}

	if len(points) == 0 {
		return idx
	}

	idx.bound = orb.MultiPoint(points).Bound().Pad(boundsMargin)

	for i, p := range points {
		cell := idx.CellOf(p.Lat(), p.Lon())
		idx.cells[cell] = append(idx.cells[cell], i)
	}

	return idx
}

// CellOf returns the cell a coordinate falls into
func (idx *Index) CellOf(lat, lon float64) Cell {
	return Cell{
		Row: int(math.Floor((lat - idx.bound.Min.Lat()) / idx.deltaLat)),
		Col: int(math.Floor((lon - idx.bound.Min.Lon()) / idx.deltaLon)),
	}
}

// Neighbors returns the 8 cells adjacent to cell
func (idx *Index) Neighbors(cell Cell) [8]Cell {
	var out [8]Cell
	for i, offset := range neighborOffsets {
		out[i] = Cell{Row: cell.Row + offset.Row, Col: cell.Col + offset.Col}
	}

	return out
}

// Items returns the point positions stored in a cell
func (idx *Index) Items(cell Cell) []int {
	return idx.cells[cell]
}

// Cells returns the occupied cells in row-major order
func (idx *Index) Cells() []Cell {
	cells := make([]Cell, 0, len(idx.cells))
	for cell := range idx.cells {
		cells = append(cells, cell)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Row != cells[j].Row {
			return cells[i].Row < cells[j].Row
		}

		return cells[i].Col < cells[j].Col
	})

	return cells
}

// Point returns the point stored at position i
func (idx *Index) Point(i int) orb.Point {
	return idx.points[i]
}

// Size returns the number of indexed points
func (idx *Index) Size() int {
	return len(idx.points)
}

// CellSize returns the cell height and width in degrees
func (idx *Index) CellSize() (deltaLat, deltaLon float64) {
	return idx.deltaLat, idx.deltaLon
}

// Bound returns the padded bounding box of the indexed points
func (idx *Index) Bound() orb.Bound {
	return idx.bound
}
