package flow

import (
	"container/heap"
	"math"

	"bikeshare/internal/infra/routing/graph"

	"github.com/pkg/errors"
)

// ErrInfeasible is returned when no flow satisfies every node demand
var ErrInfeasible = errors.New("no feasible flow satisfies the demands")

// ErrNegativeCost is returned when an edge weight cannot be used as a flow cost
var ErrNegativeCost = errors.New("negative edge cost")

// ArcFlow is the flow carried by one edge of the network
type ArcFlow struct {
	From   graph.NodeID
	To     graph.NodeID
	Flow   int64
	Weight int64
}

// Solution is a min-cost flow over a network
type Solution struct {
	Cost  int64
	Flows []ArcFlow // edges with positive flow, in network edge order
}

// Flow returns the flow on from -> to
func (s *Solution) Flow(from, to graph.NodeID) int64 {
	for _, arc := range s.Flows {
		if arc.From == from && arc.To == to {
			return arc.Flow
		}
	}

	return 0
}

type residualArc struct {
	to   int
	rev  int
	cap  int64
	cost int64
	// edge is the position in network edges, -1 for arcs added by the solver
	edge int
}

type residual struct {
	arcs [][]residualArc
}

func (r *residual) addArc(from, to int, capacity, cost int64, edge int) {
	r.arcs[from] = append(r.arcs[from], residualArc{to: to, rev: len(r.arcs[to]), cap: capacity, cost: cost, edge: edge})
	r.arcs[to] = append(r.arcs[to], residualArc{to: from, rev: len(r.arcs[from]) - 1, cap: 0, cost: -cost, edge: -1})
}

// Solve computes a min-cost flow meeting every node demand using successive shortest
// paths with node potentials. Edge weights are taken as integer costs.
func Solve(n *Network) (*Solution, error) {
	if err := n.CheckBalance(); err != nil {
		return nil, err
	}

	g := n.Graph
	ids := g.Nodes()
	position := make(map[graph.NodeID]int, len(ids))
	for i, id := range ids {
		position[id] = i
	}

	source, sink := len(ids), len(ids)+1
	res := &residual{arcs: make([][]residualArc, len(ids)+2)}

	var required int64
	for i, id := range ids {
		node, _ := g.Node(id)
		switch {
		case node.Demand < 0:
			res.addArc(source, i, -node.Demand, 0, -1)
		case node.Demand > 0:
			res.addArc(i, sink, node.Demand, 0, -1)
			required += node.Demand
		}
	}

	edges := g.Edges()
	for i, edge := range edges {
		if edge.Weight < 0 {
			return nil, errors.Wrapf(ErrNegativeCost, "%s -> %s", edge.From, edge.To)
		}
		capacity := edge.Capacity
		if !edge.Capacitated() {
			capacity = required
		}
		if capacity <= 0 {
			continue
		}
		res.addArc(position[edge.From], position[edge.To], capacity, int64(math.Round(edge.Weight)), i)
	}

	cost, sent := res.minCostFlow(source, sink, required)
	if sent < required {
		return nil, errors.Wrapf(ErrInfeasible, "routed %d of %d units", sent, required)
	}

	flows := make([]int64, len(edges))
	for from := range res.arcs {
		for _, arc := range res.arcs[from] {
			if arc.edge < 0 {
				continue
			}
			// flow equals the capacity left on the reverse arc
			flows[arc.edge] = res.arcs[arc.to][arc.rev].cap
		}
	}

	solution := &Solution{Cost: cost}
	for i, edge := range edges {
		if flows[i] > 0 {
			solution.Flows = append(solution.Flows, ArcFlow{
				From:   edge.From,
				To:     edge.To,
				Flow:   flows[i],
				Weight: int64(math.Round(edge.Weight)),
			})
		}
	}

	return solution, nil
}

func (r *residual) minCostFlow(source, sink int, required int64) (cost, sent int64) {
	nodes := len(r.arcs)
	potential := make([]int64, nodes)
	dist := make([]int64, nodes)
	prevNode := make([]int, nodes)
	prevArc := make([]int, nodes)

	for sent < required {
		if !r.shortestPaths(source, potential, dist, prevNode, prevArc) || dist[sink] == math.MaxInt64 {
			break
		}

		for v := range potential {
			if dist[v] != math.MaxInt64 {
				potential[v] += dist[v]
			}
		}

		push := required - sent
		for v := sink; v != source; v = prevNode[v] {
			arc := r.arcs[prevNode[v]][prevArc[v]]
			push = min(push, arc.cap)
		}

		for v := sink; v != source; v = prevNode[v] {
			arc := &r.arcs[prevNode[v]][prevArc[v]]
			arc.cap -= push
			r.arcs[v][arc.rev].cap += push
			cost += push * arc.cost
		}
		sent += push
	}

	return cost, sent
}

// shortestPaths runs Dijkstra on reduced costs and reports whether any node was reached
func (r *residual) shortestPaths(source int, potential, dist []int64, prevNode, prevArc []int) bool {
	for v := range dist {
		dist[v] = math.MaxInt64
		prevNode[v] = -1
		prevArc[v] = -1
	}
	dist[source] = 0

	pq := &indexQueue{}
	heap.Push(pq, indexItem{node: source, dist: 0})

	for pq.Len() > 0 {
		current := heap.Pop(pq).(indexItem)
		if current.dist > dist[current.node] {
			continue
		}

		for i, arc := range r.arcs[current.node] {
			if arc.cap <= 0 {
				continue
			}
			reduced := arc.cost + potential[current.node] - potential[arc.to]
			candidate := dist[current.node] + reduced
			if candidate < dist[arc.to] {
				dist[arc.to] = candidate
				prevNode[arc.to] = current.node
				prevArc[arc.to] = i
				heap.Push(pq, indexItem{node: arc.to, dist: candidate})
			}
		}
	}

	return true
}

type indexItem struct {
	node int
	dist int64
}

type indexQueue []indexItem

func (q indexQueue) Len() int           { return len(q) }
func (q indexQueue) Less(i, j int) bool { return q[i].dist < q[j].dist }
func (q indexQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *indexQueue) Push(x any) { *q = append(*q, x.(indexItem)) }

func (q *indexQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]

	return item
}
