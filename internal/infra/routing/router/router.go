// Package router finds the shortest trip between two arbitrary points over a station
// proximity graph.
package router

import (
	"bikeshare/internal/infra/routing/graph"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/pkg/errors"
)

// ErrSameEndpoint is returned when start and finish are the same point
var ErrSameEndpoint = errors.New("start and finish are the same point")

// WalkingWeightDivisor scales the km between an endpoint and a station
const WalkingWeightDivisor = 4.0

var (
	startNode  = graph.NodeID{Role: graph.RoleEndpoint, Key: "start"}
	finishNode = graph.NodeID{Role: graph.RoleEndpoint, Key: "finish"}
)

// Result is an ordered station sequence from start to finish
type Result struct {
	Stations []string
	Cost     float64
}

// Route attaches virtual start and finish nodes to every station of g, runs Dijkstra
// between them and detaches them again. g has the same nodes and edges on return,
// whatever the outcome.
func Route(g *graph.Graph, start, finish orb.Point) (result *Result, err error) {
	if start.Equal(finish) {
		return nil, ErrSameEndpoint
	}

	detach, err := attachEndpoints(g, start, finish)
	if err != nil {
		return nil, err
	}
	defer func() {
		if detachErr := detach(); detachErr != nil && err == nil {
			result, err = nil, detachErr
		}
	}()

	path, err := g.ShortestPath(startNode, finishNode)
	if err != nil {
		return nil, err
	}

	stations := make([]string, 0, len(path.Nodes))
	for _, id := range path.Nodes {
		if id.Role == graph.RoleStation {
			stations = append(stations, id.Key)
		}
	}

	return &Result{Stations: stations, Cost: path.Cost}, nil
}

// attachEndpoints adds the two virtual nodes and returns the rollback that removes them
func attachEndpoints(g *graph.Graph, start, finish orb.Point) (func() error, error) {
	stations := g.Nodes()

	var added []graph.NodeID
	rollback := func() error {
		var firstErr error
		for _, id := range added {
			if err := g.RemoveNode(id); err != nil && firstErr == nil {
				firstErr = err
			}
		}

		return firstErr
	}

	for _, endpoint := range []struct {
		id    graph.NodeID
		point orb.Point
	}{{startNode, start}, {finishNode, finish}} {
		if err := g.AddNode(graph.Node{ID: endpoint.id, Point: endpoint.point, Located: true}); err != nil {
			_ = rollback()

			return nil, errors.Wrap(err, "attach route endpoint")
		}
		added = append(added, endpoint.id)
	}

	for _, id := range stations {
		node, _ := g.Node(id)
		if id.Role != graph.RoleStation || !node.Located {
			continue
		}

		toStart := geo.DistanceHaversine(start, node.Point) / 1000 / WalkingWeightDivisor
		toFinish := geo.DistanceHaversine(finish, node.Point) / 1000 / WalkingWeightDivisor

		if err := g.SetEdge(startNode, id, toStart, graph.Uncapacitated); err != nil {
			_ = rollback()

			return nil, errors.WithStack(err)
		}
		// finish -> station in a directed graph would make finish unreachable
		if err := g.SetEdge(id, finishNode, toFinish, graph.Uncapacitated); err != nil {
			_ = rollback()

			return nil, errors.WithStack(err)
		}
	}

	return rollback, nil
}
