package flow

import (
	"math"
	"testing"

	"bikeshare/internal/domain/entity"
	"bikeshare/internal/infra/routing/graph"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Three stations in the Eixample, pairwise within 200 m
var (
	stationA = entity.Station{ID: "A", Lat: 41.3900, Lon: 2.1700}
	stationB = entity.Station{ID: "B", Lat: 41.3900, Lon: 2.1720}
	stationC = entity.Station{ID: "C", Lat: 41.3915, Lon: 2.1710}
)

func table(stations ...entity.Station) map[string]entity.Station {
	return entity.StationTable(stations)
}

func meters(a, b entity.Station) float64 {
	return geo.DistanceHaversine(orb.Point{a.Lon, a.Lat}, orb.Point{b.Lon, b.Lat})
}

func demandOf(t *testing.T, n *Network, id graph.NodeID) int64 {
	t.Helper()

	node, ok := n.Graph.Node(id)
	require.True(t, ok, "node %s", id)

	return node.Demand
}

func TestBuildNetwork_Structure(t *testing.T) {
	inventory := entity.Inventory{
		{StationID: "A", Bikes: 0, Docks: 5},
		{StationID: "B", Bikes: 5, Docks: 0},
	}

	n, err := BuildNetwork(entity.Demand{Bikes: 2, Docks: 2}, table(stationA, stationB), inventory, 300)
	require.NoError(t, err)

	assert.True(t, n.Graph.Directed())
	assert.Equal(t, 7, n.Graph.NodeCount())
	assert.Equal(t, []string{"A", "B"}, n.Stations)

	capacity := func(from, to graph.NodeID) int64 {
		edge, ok := n.Graph.Edge(from, to)
		require.True(t, ok, "%s -> %s", from, to)
		assert.Zero(t, edge.Weight)

		return edge.Capacity
	}

	assert.Equal(t, int64(0), capacity(BalancingNode, SupplyNode("A")))
	assert.Equal(t, int64(5), capacity(DemandNode("A"), BalancingNode))
	assert.Equal(t, int64(0), capacity(SupplyNode("A"), BufferNode("A")))
	assert.Equal(t, int64(3), capacity(BufferNode("A"), DemandNode("A")))

	assert.Equal(t, int64(5), capacity(BalancingNode, SupplyNode("B")))
	assert.Equal(t, int64(0), capacity(DemandNode("B"), BalancingNode))
	assert.Equal(t, int64(3), capacity(SupplyNode("B"), BufferNode("B")))
	assert.Equal(t, int64(0), capacity(BufferNode("B"), DemandNode("B")))

	assert.Equal(t, int64(2), demandOf(t, n, DemandNode("A")))
	assert.Equal(t, int64(-2), demandOf(t, n, SupplyNode("B")))
	assert.Equal(t, int64(0), n.BalancingDemand())

	// buffers are joined both ways with integer meter weights
	forward, ok := n.Graph.Edge(BufferNode("A"), BufferNode("B"))
	require.True(t, ok)
	assert.Equal(t, math.Round(meters(stationA, stationB)), forward.Weight)
	assert.True(t, n.Graph.HasEdge(BufferNode("B"), BufferNode("A")))
}

func TestBuildNetwork_BalancingOffsetsStations(t *testing.T) {
	stations := table(stationA, stationB, stationC)
	inventory := entity.Inventory{
		{StationID: "A", Bikes: 0, Docks: 0},
		{StationID: "B", Bikes: 9, Docks: 1},
		{StationID: "C", Bikes: 1, Docks: 9},
	}

	n, err := BuildNetwork(entity.Demand{Bikes: 4, Docks: 3}, stations, inventory, 300)
	require.NoError(t, err)

	var stationSum int64
	for _, id := range n.Graph.Nodes() {
		if id == BalancingNode {
			continue
		}
		stationSum += demandOf(t, n, id)
	}

	assert.Equal(t, -stationSum, n.BalancingDemand())
	assert.NoError(t, n.CheckBalance())

	// a station short of both bikes and docks only records the missing bikes
	assert.Equal(t, int64(4), demandOf(t, n, DemandNode("A")))
	assert.Equal(t, int64(0), demandOf(t, n, SupplyNode("A")))
	assert.Equal(t, int64(-2), demandOf(t, n, SupplyNode("B")))
	assert.Equal(t, int64(3), demandOf(t, n, DemandNode("C")))
}

func TestBuildNetwork_SkipsUnknownStations(t *testing.T) {
	inventory := entity.Inventory{
		{StationID: "A", Bikes: 1, Docks: 1},
		{StationID: "ghost", Bikes: 10, Docks: 0},
		{StationID: "A", Bikes: 7, Docks: 7},
	}

	n, err := BuildNetwork(entity.Demand{}, table(stationA), inventory, 300)
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, n.Stations)
	assert.Equal(t, 4, n.Graph.NodeCount())
	assert.False(t, n.Graph.HasNode(BufferNode("ghost")))

	edge, _ := n.Graph.Edge(BalancingNode, SupplyNode("A"))
	assert.Equal(t, int64(1), edge.Capacity, "the first inventory row wins")
}

func TestPlan_MovesBikesToStationInNeed(t *testing.T) {
	inventory := entity.Inventory{
		{StationID: "A", Bikes: 0, Docks: 5},
		{StationID: "B", Bikes: 5, Docks: 0},
		{StationID: "C", Bikes: 2, Docks: 2},
	}

	report, err := Plan(entity.Demand{Bikes: 2, Docks: 2}, 300, table(stationA, stationB, stationC), inventory)
	require.NoError(t, err)

	weight := math.Round(meters(stationB, stationA))
	assert.InDelta(t, 2*weight/1000, report.TotalCost, 1e-9)
	assert.False(t, report.NoTransfer())

	require.Len(t, report.Transfers, 1)
	require.NotNil(t, report.MaxEdge)
	assert.Equal(t, Transfer{From: "B", To: "A", Bikes: 2, Cost: 2 * weight / 1000}, *report.MaxEdge)

	assert.Equal(t, entity.Inventory{
		{StationID: "A", Bikes: 2, Docks: 3},
		{StationID: "B", Bikes: 3, Docks: 2},
		{StationID: "C", Bikes: 2, Docks: 2},
	}, inventory)

	assert.Contains(t, report.Summary(), "Max cost edge: B -> A")
}

func TestPlan_DuplicateInventoryRowUpdatesThePlannedRow(t *testing.T) {
	inventory := entity.Inventory{
		{StationID: "A", Bikes: 0, Docks: 5},
		{StationID: "B", Bikes: 5, Docks: 0},
		{StationID: "A", Bikes: 9, Docks: 9},
	}

	report, err := Plan(entity.Demand{Bikes: 2, Docks: 2}, 300, table(stationA, stationB), inventory)
	require.NoError(t, err)
	require.Len(t, report.Transfers, 1)

	// the network was built from the first A row, so that row receives the bikes
	assert.Equal(t, entity.Inventory{
		{StationID: "A", Bikes: 2, Docks: 3},
		{StationID: "B", Bikes: 3, Docks: 2},
		{StationID: "A", Bikes: 9, Docks: 9},
	}, inventory)
}

func TestPlan_Infeasible(t *testing.T) {
	inventory := entity.Inventory{{StationID: "A", Bikes: 0, Docks: 5}}

	report, err := Plan(entity.Demand{Bikes: 5}, 300, table(stationA), inventory)

	assert.Nil(t, report)
	assert.True(t, errors.Is(err, ErrInfeasible))
	assert.Equal(t, entity.Inventory{{StationID: "A", Bikes: 0, Docks: 5}}, inventory)
}

func TestPlan_OutOfRangeIsInfeasible(t *testing.T) {
	inventory := entity.Inventory{
		{StationID: "A", Bikes: 0, Docks: 5},
		{StationID: "B", Bikes: 5, Docks: 0},
	}

	// A and B are ~170 m apart
	_, err := Plan(entity.Demand{Bikes: 2, Docks: 2}, 100, table(stationA, stationB), inventory)

	assert.True(t, errors.Is(err, ErrInfeasible))
}

func TestPlan_NothingToMove(t *testing.T) {
	inventory := entity.Inventory{
		{StationID: "A", Bikes: 2, Docks: 2},
		{StationID: "B", Bikes: 3, Docks: 4},
	}

	report, err := Plan(entity.Demand{Bikes: 2, Docks: 2}, 300, table(stationA, stationB), inventory)
	require.NoError(t, err)

	assert.True(t, report.NoTransfer())
	assert.Empty(t, report.Transfers)
	assert.Nil(t, report.MaxEdge)
	assert.Equal(t, NoTransferMessage, report.Summary())

	report, err = Plan(entity.Demand{}, 300, table(stationA, stationB), inventory)
	require.NoError(t, err)
	assert.True(t, report.NoTransfer())
}

func TestSolve_PicksCheapestRoute(t *testing.T) {
	g := graph.New(true)
	s, a, b, d := graph.StationNode("s"), graph.StationNode("a"), graph.StationNode("b"), graph.StationNode("d")
	for _, id := range []graph.NodeID{s, a, b, d} {
		require.NoError(t, g.AddNode(graph.Node{ID: id}))
	}
	require.NoError(t, g.SetDemand(s, -3))
	require.NoError(t, g.SetDemand(d, 3))

	require.NoError(t, g.SetEdge(s, a, 1, 2))
	require.NoError(t, g.SetEdge(a, d, 1, graph.Uncapacitated))
	require.NoError(t, g.SetEdge(s, b, 5, graph.Uncapacitated))
	require.NoError(t, g.SetEdge(b, d, 5, graph.Uncapacitated))

	sol, err := Solve(&Network{Graph: g})
	require.NoError(t, err)

	// two units through a at cost 2 each, one through b at cost 10
	assert.Equal(t, int64(14), sol.Cost)
	assert.Equal(t, int64(2), sol.Flow(s, a))
	assert.Equal(t, int64(1), sol.Flow(s, b))
	assert.Equal(t, int64(0), sol.Flow(a, b))
}

func TestSolve_Unbalanced(t *testing.T) {
	n, err := BuildNetwork(entity.Demand{Bikes: 1}, table(stationA), entity.Inventory{{StationID: "A"}}, 300)
	require.NoError(t, err)

	require.NoError(t, n.Graph.SetDemand(BalancingNode, 0))

	_, err = Solve(n)
	assert.True(t, errors.Is(err, ErrUnbalanced))
}

func TestSolve_NegativeCost(t *testing.T) {
	g := graph.New(true)
	a, b := graph.StationNode("a"), graph.StationNode("b")
	require.NoError(t, g.AddNode(graph.Node{ID: a, Demand: -1}))
	require.NoError(t, g.AddNode(graph.Node{ID: b, Demand: 1}))
	require.NoError(t, g.SetEdge(a, b, -1, graph.Uncapacitated))

	_, err := Solve(&Network{Graph: g})
	assert.True(t, errors.Is(err, ErrNegativeCost))
}
