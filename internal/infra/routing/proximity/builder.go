// Package proximity connects stations that lie within a distance threshold of each other.
package proximity

import (
	"math"

	"bikeshare/internal/domain/entity"
	"bikeshare/internal/infra/routing/graph"
	"bikeshare/internal/infra/routing/grid"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Mode selects the edge weight regime
type Mode int

const (
	// ModeRouting adds undirected edges weighted by km / RoutingWeightDivisor
	ModeRouting Mode = iota
	// ModeFlow adds edges both ways weighted by whole meters, usable as integer flow costs
	ModeFlow
)

// RoutingWeightDivisor scales station-to-station km in routing mode
const RoutingWeightDivisor = 10.0

// DefaultDistanceMeters is the threshold a new session graph is built with
const DefaultDistanceMeters = 1000.0

// Connect adds an edge between every pair of located station nodes in g that are
// within thresholdMeters. Existing edges between the same pair are overwritten.
// A threshold <= 0 leaves the graph untouched.
func Connect(g *graph.Graph, thresholdMeters float64, mode Mode) {
	if thresholdMeters <= 0 {
		return
	}

	ids, points := locatedStations(g)
	if len(ids) == 0 {
		return
	}

	index := grid.New(points, thresholdMeters)
	c := connector{
		g:         g,
		index:     index,
		ids:       ids,
		threshold: thresholdMeters,
		mode:      mode,
	}
	c.deltaLat, c.deltaLon = index.CellSize()

	for _, cell := range index.Cells() {
		members := index.Items(cell)
		c.connectCell(members)
		for _, member := range members {
			c.connectNeighbors(member, cell)
		}
	}
}

// BuildGraph returns an undirected routing graph over stations. When previous is
// given, its edges are cleared and rebuilt in place and its nodes are kept.
func BuildGraph(stations []entity.Station, thresholdMeters float64, previous *graph.Graph) *graph.Graph {
	g := previous
	if g == nil {
		g = graph.New(false)
		for _, st := range stations {
			// duplicate station IDs keep the first occurrence
			_ = g.AddLocatedNode(graph.StationNode(st.ID), st.Lat, st.Lon)
		}
	} else {
		g.ClearEdges()
	}

	Connect(g, thresholdMeters, ModeRouting)

	return g
}

type connector struct {
	g         *graph.Graph
	index     *grid.Index
	ids       []graph.NodeID
	threshold float64
	deltaLat  float64
	deltaLon  float64
	mode      Mode
}

// connectCell compares every pair inside one cell
func (c *connector) connectCell(members []int) {
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			c.tryConnect(members[i], members[j])
		}
	}
}

// connectNeighbors compares one station with every station of the 8 adjacent cells.
// A pair split across two cells is visited from both sides; SetEdge is idempotent.
func (c *connector) connectNeighbors(member int, cell grid.Cell) {
	for _, neighbor := range c.index.Neighbors(cell) {
		for _, other := range c.index.Items(neighbor) {
			c.tryConnect(member, other)
		}
	}
}

func (c *connector) tryConnect(a, b int) {
	pa, pb := c.index.Point(a), c.index.Point(b)

	if math.Abs(pa.Lat()-pb.Lat()) >= c.deltaLat || math.Abs(pa.Lon()-pb.Lon()) >= c.deltaLon {
		return
	}

	meters := geo.DistanceHaversine(pa, pb)
	if meters > c.threshold {
		return
	}

	from, to := c.ids[a], c.ids[b]
	switch c.mode {
	case ModeFlow:
		weight := math.Round(meters)
		_ = c.g.SetEdge(from, to, weight, graph.Uncapacitated)
		_ = c.g.SetEdge(to, from, weight, graph.Uncapacitated)
	default:
		_ = c.g.SetEdge(from, to, meters/1000/RoutingWeightDivisor, graph.Uncapacitated)
	}
}

// locatedStations collects the geometric nodes; supply, demand and balancing nodes
// carry no position and are never connected here
func locatedStations(g *graph.Graph) ([]graph.NodeID, []orb.Point) {
	var ids []graph.NodeID
	var points []orb.Point
	for _, id := range g.Nodes() {
		if id.Role != graph.RoleStation {
			continue
		}
		node, _ := g.Node(id)
		if !node.Located {
			continue
		}
		ids = append(ids, id)
		points = append(points, node.Point)
	}

	return ids, points
}
