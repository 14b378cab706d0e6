package proximity

import (
	"math"
	"testing"

	"bikeshare/internal/domain/entity"
	"bikeshare/internal/infra/routing/graph"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Stations in central Barcelona
var testStations = []entity.Station{
	{ID: "1", Lat: 41.3979, Lon: 2.1801},
	{ID: "2", Lat: 41.3955, Lon: 2.1771}, // ~370 m from 1
	{ID: "3", Lat: 41.3943, Lon: 2.1812}, // ~410 m from 1
	{ID: "4", Lat: 41.4100, Lon: 2.2200}, // ~3.6 km away
}

func stationPoint(st entity.Station) orb.Point {
	return orb.Point{st.Lon, st.Lat}
}

// bruteForceEdges returns the station pairs within threshold, ordered by station index
func bruteForceEdges(stations []entity.Station, threshold float64) map[[2]string]bool {
	out := make(map[[2]string]bool)
	for i := 0; i < len(stations); i++ {
		for j := i + 1; j < len(stations); j++ {
			if geo.DistanceHaversine(stationPoint(stations[i]), stationPoint(stations[j])) <= threshold {
				out[[2]string{stations[i].ID, stations[j].ID}] = true
			}
		}
	}

	return out
}

func edgeSet(g *graph.Graph) map[[2]string]bool {
	out := make(map[[2]string]bool)
	for _, edge := range g.Edges() {
		out[[2]string{edge.From.Key, edge.To.Key}] = true
	}

	return out
}

func TestBuildGraph(t *testing.T) {
	g := BuildGraph(testStations, DefaultDistanceMeters, nil)

	assert.False(t, g.Directed())
	assert.Equal(t, 4, g.NodeCount())
	assert.Equal(t, bruteForceEdges(testStations, DefaultDistanceMeters), edgeSet(g))
	assert.True(t, g.HasEdge(graph.StationNode("1"), graph.StationNode("2")))
	assert.False(t, g.HasEdge(graph.StationNode("1"), graph.StationNode("4")))
	assert.Equal(t, 2, g.Components())
}

func TestBuildGraph_RoutingWeight(t *testing.T) {
	g := BuildGraph(testStations[:2], DefaultDistanceMeters, nil)

	edge, ok := g.Edge(graph.StationNode("1"), graph.StationNode("2"))
	require.True(t, ok)

	meters := geo.DistanceHaversine(stationPoint(testStations[0]), stationPoint(testStations[1]))
	assert.InDelta(t, meters/1000/RoutingWeightDivisor, edge.Weight, 1e-12)
	assert.False(t, edge.Capacitated())
}

func TestBuildGraph_RebuildKeepsNodes(t *testing.T) {
	g := BuildGraph(testStations, DefaultDistanceMeters, nil)
	nodes := g.Nodes()

	rebuilt := BuildGraph(testStations, 5000, g)

	assert.Same(t, g, rebuilt)
	assert.Equal(t, nodes, rebuilt.Nodes())
	assert.Equal(t, 6, rebuilt.EdgeCount())
	assert.Equal(t, 1, rebuilt.Components())

	shrunk := BuildGraph(testStations, 100, rebuilt)
	assert.Equal(t, 4, shrunk.NodeCount())
	assert.Equal(t, 0, shrunk.EdgeCount())
}

func TestBuildGraph_DuplicateStationKeepsFirst(t *testing.T) {
	stations := []entity.Station{
		{ID: "1", Lat: 41.3979, Lon: 2.1801},
		{ID: "1", Lat: 41.5000, Lon: 2.5000},
	}

	g := BuildGraph(stations, DefaultDistanceMeters, nil)

	require.Equal(t, 1, g.NodeCount())
	node, _ := g.Node(graph.StationNode("1"))
	assert.InDelta(t, 41.3979, node.Point.Lat(), 1e-9)
}

func TestConnect_NonPositiveThreshold(t *testing.T) {
	for _, threshold := range []float64{0, -1, -1000} {
		g := BuildGraph(testStations, threshold, nil)

		assert.Equal(t, 0, g.EdgeCount(), "threshold %v", threshold)
		assert.Equal(t, len(testStations), g.NodeCount())
	}
}

func TestConnect_AcrossCellBoundary(t *testing.T) {
	// c shifts the grid origin so that a and b land in adjacent rows
	stations := []entity.Station{
		{ID: "c", Lat: 41.3950, Lon: 2.1700},
		{ID: "a", Lat: 41.4000, Lon: 2.1700},
		{ID: "b", Lat: 41.4089, Lon: 2.1700},
	}

	g := BuildGraph(stations, DefaultDistanceMeters, nil)

	assert.True(t, g.HasEdge(graph.StationNode("a"), graph.StationNode("b")), "~990 m across a cell boundary")
	assert.True(t, g.HasEdge(graph.StationNode("a"), graph.StationNode("c")), "~556 m")
	assert.False(t, g.HasEdge(graph.StationNode("b"), graph.StationNode("c")), "~1.5 km")
}

func TestConnect_FlowMode(t *testing.T) {
	g := graph.New(true)
	for _, st := range testStations[:3] {
		require.NoError(t, g.AddLocatedNode(graph.StationNode(st.ID), st.Lat, st.Lon))
	}
	// only station nodes take part, even when they carry a position
	supply := graph.NodeID{Role: graph.RoleSupply, Key: "1"}
	require.NoError(t, g.AddLocatedNode(supply, testStations[0].Lat, testStations[0].Lon))

	Connect(g, DefaultDistanceMeters, ModeFlow)

	assert.Equal(t, 6, g.EdgeCount())
	assert.Empty(t, g.Neighbors(supply))

	forward, ok := g.Edge(graph.StationNode("1"), graph.StationNode("2"))
	require.True(t, ok)
	backward, ok := g.Edge(graph.StationNode("2"), graph.StationNode("1"))
	require.True(t, ok)

	meters := geo.DistanceHaversine(stationPoint(testStations[0]), stationPoint(testStations[1]))
	assert.Equal(t, math.Round(meters), forward.Weight)
	assert.Equal(t, forward.Weight, backward.Weight)
	assert.Equal(t, graph.Uncapacitated, forward.Capacity)
}

func TestConnect_EmptyGraph(t *testing.T) {
	g := graph.New(false)

	Connect(g, DefaultDistanceMeters, ModeRouting)

	assert.Equal(t, 0, g.EdgeCount())
}
