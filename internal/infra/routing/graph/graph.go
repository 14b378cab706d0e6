// Package graph holds the weighted graph shared by the proximity builder, the router
// and the redistribution solver.
package graph

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// ErrNodeNotFound is returned when an operation references a node that is not in the graph
var ErrNodeNotFound = errors.New("node not found")

// ErrNodeExists is returned when adding a node whose ID is already taken
var ErrNodeExists = errors.New("node already exists")

// Uncapacitated marks an edge without an upper bound on flow
const Uncapacitated int64 = -1

// Role tells what a node stands for
type Role uint8

const (
	// RoleStation is the geometric node of a station. In a redistribution
	// network it is the buffer node through which bikes move between stations.
	RoleStation Role = iota
	RoleSupply
	RoleDemand
	RoleBalancing
	// RoleEndpoint marks the virtual start/finish nodes injected by the router
	RoleEndpoint
)

func (r Role) String() string {
	switch r {
	case RoleStation:
		return "station"
	case RoleSupply:
		return "supply"
	case RoleDemand:
		return "demand"
	case RoleBalancing:
		return "balancing"
	case RoleEndpoint:
		return "endpoint"
	default:
		return "unknown"
	}
}

// NodeID identifies a node by role and the underlying station key
type NodeID struct {
	Role Role
	Key  string
}

// StationNode returns the geometric node ID of a station
func StationNode(stationID string) NodeID {
	return NodeID{Role: RoleStation, Key: stationID}
}

func (id NodeID) String() string {
	return id.Role.String() + ":" + id.Key
}

// Node is a graph vertex. Point is meaningful only when Located is true.
type Node struct {
	ID      NodeID
	Point   orb.Point // [lon, lat]
	Located bool
	// Demand follows the min-cost-flow convention: positive consumes flow, negative supplies it
	Demand int64
}

// Edge is a weighted, optionally capacitated connection
type Edge struct {
	From     NodeID
	To       NodeID
	Weight   float64
	Capacity int64
}

// Capacitated reports whether the edge has a finite capacity
func (e Edge) Capacitated() bool {
	return e.Capacity != Uncapacitated
}

// Graph is an adjacency-map graph with insertion-ordered nodes.
// It is not safe for concurrent mutation.
type Graph struct {
	directed bool
	nodes    map[NodeID]*Node
	order    []NodeID
	position map[NodeID]int
	adj      map[NodeID]map[NodeID]*Edge
	edges    int
}

// New creates an empty graph
func New(directed bool) *Graph {
	return &Graph{
		directed: directed,
		nodes:    make(map[NodeID]*Node),
		position: make(map[NodeID]int),
		adj:      make(map[NodeID]map[NodeID]*Edge),
	}
}

// Directed reports whether edges are one-way
func (g *Graph) Directed() bool {
	return g.directed
}

// AddNode inserts a node
func (g *Graph) AddNode(node Node) error {
	if _, exists := g.nodes[node.ID]; exists {
		return errors.Wrapf(ErrNodeExists, "add %s", node.ID)
	}

	stored := node
	g.nodes[node.ID] = &stored
	g.position[node.ID] = len(g.order)
	g.order = append(g.order, node.ID)
	g.adj[node.ID] = make(map[NodeID]*Edge)

	return nil
}

// AddLocatedNode inserts a node with a geographic position
func (g *Graph) AddLocatedNode(id NodeID, lat, lon float64) error {
	return g.AddNode(Node{ID: id, Point: orb.Point{lon, lat}, Located: true})
}

// HasNode reports whether the node exists
func (g *Graph) HasNode(id NodeID) bool {
	_, ok := g.nodes[id]

	return ok
}

// Node returns the node with the given ID
func (g *Graph) Node(id NodeID) (*Node, bool) {
	node, ok := g.nodes[id]

	return node, ok
}

// SetDemand sets the flow demand of a node
func (g *Graph) SetDemand(id NodeID, demand int64) error {
	node, ok := g.nodes[id]
	if !ok {
		return errors.Wrapf(ErrNodeNotFound, "set demand on %s", id)
	}
	node.Demand = demand

	return nil
}

// Nodes returns node IDs in insertion order
func (g *Graph) Nodes() []NodeID {
	out := make([]NodeID, len(g.order))
	copy(out, g.order)

	return out
}

// NodeCount returns the number of nodes
func (g *Graph) NodeCount() int {
	return len(g.order)
}

// EdgeCount returns the number of edges; an undirected edge counts once
func (g *Graph) EdgeCount() int {
	return g.edges
}

// RemoveNode deletes a node and every edge touching it
func (g *Graph) RemoveNode(id NodeID) error {
	if _, ok := g.nodes[id]; !ok {
		return errors.Wrapf(ErrNodeNotFound, "remove %s", id)
	}

	for to := range g.adj[id] {
		g.edges--
		if !g.directed {
			delete(g.adj[to], id)
		}
	}
	delete(g.adj, id)

	if g.directed {
		for from, out := range g.adj {
			if _, ok := out[id]; ok {
				delete(g.adj[from], id)
				g.edges--
			}
		}
	}

	delete(g.nodes, id)
	idx := g.position[id]
	g.order = append(g.order[:idx], g.order[idx+1:]...)
	delete(g.position, id)
	for i := idx; i < len(g.order); i++ {
		g.position[g.order[i]] = i
	}

	return nil
}

// SetEdge inserts or overwrites an edge. Re-setting an existing edge replaces its
// weight and capacity; the edge count is unchanged.
func (g *Graph) SetEdge(from, to NodeID, weight float64, capacity int64) error {
	if _, ok := g.nodes[from]; !ok {
		return errors.Wrapf(ErrNodeNotFound, "edge source %s", from)
	}
	if _, ok := g.nodes[to]; !ok {
		return errors.Wrapf(ErrNodeNotFound, "edge target %s", to)
	}

	if existing, ok := g.adj[from][to]; ok {
		existing.Weight = weight
		existing.Capacity = capacity
		if !g.directed {
			reverse := g.adj[to][from]
			reverse.Weight = weight
			reverse.Capacity = capacity
		}

		return nil
	}

	g.adj[from][to] = &Edge{From: from, To: to, Weight: weight, Capacity: capacity}
	if !g.directed && from != to {
		g.adj[to][from] = &Edge{From: to, To: from, Weight: weight, Capacity: capacity}
	}
	g.edges++

	return nil
}

// Edge returns the edge from -> to
func (g *Graph) Edge(from, to NodeID) (Edge, bool) {
	out, ok := g.adj[from]
	if !ok {
		return Edge{}, false
	}
	edge, ok := out[to]
	if !ok {
		return Edge{}, false
	}

	return *edge, true
}

// HasEdge reports whether from -> to exists
func (g *Graph) HasEdge(from, to NodeID) bool {
	_, ok := g.Edge(from, to)

	return ok
}

// Neighbors returns outgoing edges of a node ordered by target insertion position
func (g *Graph) Neighbors(id NodeID) []Edge {
	out := g.adj[id]
	edges := make([]Edge, 0, len(out))
	for _, edge := range out {
		edges = append(edges, *edge)
	}
	sort.Slice(edges, func(i, j int) bool {
		return g.position[edges[i].To] < g.position[edges[j].To]
	})

	return edges
}

// Edges lists every edge once, in node insertion order. For undirected graphs the
// edge is reported from the endpoint inserted first.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, g.edges)
	for _, id := range g.order {
		for _, edge := range g.Neighbors(id) {
			if !g.directed && g.position[edge.To] < g.position[id] {
				continue
			}
			edges = append(edges, edge)
		}
	}

	return edges
}

// ClearEdges removes all edges and keeps the nodes
func (g *Graph) ClearEdges() {
	for id := range g.adj {
		g.adj[id] = make(map[NodeID]*Edge)
	}
	g.edges = 0
}

// Clone returns a deep copy
func (g *Graph) Clone() *Graph {
	clone := New(g.directed)
	for _, id := range g.order {
		_ = clone.AddNode(*g.nodes[id])
	}
	for from, out := range g.adj {
		for to, edge := range out {
			clone.adj[from][to] = &Edge{From: from, To: to, Weight: edge.Weight, Capacity: edge.Capacity}
		}
	}
	clone.edges = g.edges

	return clone
}
