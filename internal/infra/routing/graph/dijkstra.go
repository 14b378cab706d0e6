package graph

import (
	"container/heap"
	"math"

	"github.com/pkg/errors"
)

// ErrNoPath is returned when the target cannot be reached from the source
var ErrNoPath = errors.New("no path between nodes")

// ErrNegativeWeight is returned when Dijkstra meets a negative edge weight
var ErrNegativeWeight = errors.New("negative edge weight")

// Path is the result of a shortest path search
type Path struct {
	Nodes []NodeID
	Cost  float64
}

// queueItem represents a node in the priority queue
type queueItem struct {
	id    NodeID
	dist  float64
	index int
}

// priorityQueue implements heap.Interface for Dijkstra's algorithm
type priorityQueue []*queueItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	return pq[i].dist < pq[j].dist
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	item := x.(*queueItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[0 : n-1]

	return item
}

// ShortestPath runs Dijkstra from source to target and returns the node sequence
func (g *Graph) ShortestPath(source, target NodeID) (*Path, error) {
	if !g.HasNode(source) {
		return nil, errors.Wrapf(ErrNodeNotFound, "source %s", source)
	}
	if !g.HasNode(target) {
		return nil, errors.Wrapf(ErrNodeNotFound, "target %s", target)
	}

	dist := map[NodeID]float64{source: 0}
	prev := make(map[NodeID]NodeID)
	visited := make(map[NodeID]bool)

	pq := make(priorityQueue, 0)
	heap.Init(&pq)
	heap.Push(&pq, &queueItem{id: source, dist: 0})

	for pq.Len() > 0 {
		current := heap.Pop(&pq).(*queueItem)
		if visited[current.id] {
			continue
		}
		visited[current.id] = true

		if current.id == target {
			return &Path{Nodes: buildPath(prev, source, target), Cost: current.dist}, nil
		}

		for _, edge := range g.adj[current.id] {
			if edge.Weight < 0 {
				return nil, errors.Wrapf(ErrNegativeWeight, "%s -> %s", edge.From, edge.To)
			}
			if visited[edge.To] {
				continue
			}

			candidate := current.dist + edge.Weight
			known, seen := dist[edge.To]
			if !seen {
				known = math.Inf(1)
			}
			if candidate < known {
				dist[edge.To] = candidate
				prev[edge.To] = current.id
				heap.Push(&pq, &queueItem{id: edge.To, dist: candidate})
			}
		}
	}

	return nil, errors.Wrapf(ErrNoPath, "%s -> %s", source, target)
}

func buildPath(prev map[NodeID]NodeID, source, target NodeID) []NodeID {
	var reversed []NodeID
	for at := target; ; at = prev[at] {
		reversed = append(reversed, at)
		if at == source {
			break
		}
	}

	path := make([]NodeID, len(reversed))
	for i, id := range reversed {
		path[len(reversed)-1-i] = id
	}

	return path
}

// Components counts connected components, treating directed edges as undirected
func (g *Graph) Components() int {
	undirected := make(map[NodeID][]NodeID, len(g.order))
	for from, out := range g.adj {
		for to := range out {
			undirected[from] = append(undirected[from], to)
			undirected[to] = append(undirected[to], from)
		}
	}

	seen := make(map[NodeID]bool, len(g.order))
	components := 0
	for _, start := range g.order {
		if seen[start] {
			continue
		}
		components++

		stack := []NodeID{start}
		seen[start] = true
		for len(stack) > 0 {
			current := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, next := range undirected[current] {
				if !seen[next] {
					seen[next] = true
					stack = append(stack, next)
				}
			}
		}
	}

	return components
}
