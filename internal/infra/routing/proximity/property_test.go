package proximity

import (
	"strconv"
	"testing"

	"bikeshare/internal/domain/entity"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

const propertyStations = 25

func stationsFrom(lats, lons []float64) []entity.Station {
	stations := make([]entity.Station, 0, len(lats))
	for i := range lats {
		stations = append(stations, entity.Station{ID: strconv.Itoa(i), Lat: lats[i], Lon: lons[i]})
	}

	return stations
}

func isSubset(small, large map[[2]string]bool) bool {
	for pair := range small {
		if !large[pair] {
			return false
		}
	}

	return true
}

// TestProximityInvariants checks the grid-accelerated builder against the quadratic
// reference on random station sets around Barcelona
func TestProximityInvariants(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	lats := gen.SliceOfN(propertyStations, gen.Float64Range(41.35, 41.45))
	lons := gen.SliceOfN(propertyStations, gen.Float64Range(2.10, 2.22))

	properties.Property("edges are exactly the pairs within threshold", prop.ForAll(
		func(lats, lons []float64, threshold float64) bool {
			stations := stationsFrom(lats, lons)
			g := BuildGraph(stations, threshold, nil)

			want := bruteForceEdges(stations, threshold)
			got := edgeSet(g)

			return len(want) == len(got) && isSubset(want, got)
		},
		lats,
		lons,
		gen.Float64Range(50, 3000),
	))

	properties.Property("non-positive threshold adds no edges", prop.ForAll(
		func(lats, lons []float64, threshold float64) bool {
			g := BuildGraph(stationsFrom(lats, lons), threshold, nil)

			return g.EdgeCount() == 0
		},
		lats,
		lons,
		gen.Float64Range(-5000, 0),
	))

	properties.Property("growing the threshold only adds edges", prop.ForAll(
		func(lats, lons []float64, d1, extra float64) bool {
			stations := stationsFrom(lats, lons)
			small := edgeSet(BuildGraph(stations, d1, nil))
			large := edgeSet(BuildGraph(stations, d1+extra, nil))

			return isSubset(small, large)
		},
		lats,
		lons,
		gen.Float64Range(50, 2000),
		gen.Float64Range(1, 2000),
	))

	properties.Property("rebuilding in place matches a fresh build", prop.ForAll(
		func(lats, lons []float64, d1, d2 float64) bool {
			stations := stationsFrom(lats, lons)
			previous := BuildGraph(stations, d1, nil)
			rebuilt := BuildGraph(stations, d2, previous)
			fresh := BuildGraph(stations, d2, nil)

			got, want := edgeSet(rebuilt), edgeSet(fresh)

			return len(got) == len(want) && isSubset(got, want) && rebuilt.NodeCount() == len(stations)
		},
		lats,
		lons,
		gen.Float64Range(50, 3000),
		gen.Float64Range(50, 3000),
	))

	properties.TestingRun(t)
}
