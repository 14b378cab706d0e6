// Package flow turns station inventories and a target demand into a transportation
// network, solves it as a min-cost flow and reports the resulting bike transfers.
package flow

import (
	"bikeshare/internal/domain/entity"
	"bikeshare/internal/infra/routing/graph"
	"bikeshare/internal/infra/routing/proximity"

	"github.com/pkg/errors"
)

// ErrUnbalanced is returned when node demands do not sum to zero
var ErrUnbalanced = errors.New("network demands do not sum to zero")

// BalancingNode absorbs the network-wide imbalance
var BalancingNode = graph.NodeID{Role: graph.RoleBalancing}

// Network is a directed flow graph with supply, buffer, demand and balancing nodes
type Network struct {
	Graph    *graph.Graph
	Demand   entity.Demand
	Distance float64
	// Stations lists the station IDs that made it into the network, in inventory order
	Stations []string
}

// SupplyNode returns the supply node of a station
func SupplyNode(stationID string) graph.NodeID {
	return graph.NodeID{Role: graph.RoleSupply, Key: stationID}
}

// BufferNode returns the buffer node of a station
func BufferNode(stationID string) graph.NodeID {
	return graph.StationNode(stationID)
}

// DemandNode returns the demand node of a station
func DemandNode(stationID string) graph.NodeID {
	return graph.NodeID{Role: graph.RoleDemand, Key: stationID}
}

// BuildNetwork creates the transportation network for a target demand. Inventory rows
// without a matching station in the table are skipped. Buffer nodes are connected in
// both directions when within distanceMeters of each other.
func BuildNetwork(demand entity.Demand, stations map[string]entity.Station, inventory entity.Inventory, distanceMeters float64) (*Network, error) {
	g := graph.New(true)
	if err := g.AddNode(graph.Node{ID: BalancingNode}); err != nil {
		return nil, errors.WithStack(err)
	}

	network := &Network{Graph: g, Demand: demand, Distance: distanceMeters}

	var total int64
	for _, status := range inventory {
		station, ok := stations[status.StationID]
		if !ok {
			continue
		}
		if g.HasNode(BufferNode(station.ID)) {
			// a repeated inventory row for the same station
			continue
		}

		shortfall, err := addStation(g, station, status, demand)
		if err != nil {
			return nil, err
		}
		total += shortfall
		network.Stations = append(network.Stations, station.ID)
	}

	if err := g.SetDemand(BalancingNode, -total); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := network.CheckBalance(); err != nil {
		return nil, err
	}

	proximity.Connect(g, distanceMeters, proximity.ModeFlow)

	return network, nil
}

// addStation adds the supply/buffer/demand triplet and returns the signed demand it
// placed on the network
func addStation(g *graph.Graph, station entity.Station, status entity.StationStatus, demand entity.Demand) (int64, error) {
	supply, buffer, sink := SupplyNode(station.ID), BufferNode(station.ID), DemandNode(station.ID)

	if err := g.AddLocatedNode(buffer, station.Lat, station.Lon); err != nil {
		return 0, errors.WithStack(err)
	}
	if err := g.AddNode(graph.Node{ID: supply}); err != nil {
		return 0, errors.WithStack(err)
	}
	if err := g.AddNode(graph.Node{ID: sink}); err != nil {
		return 0, errors.WithStack(err)
	}

	bikes, docks := int64(status.Bikes), int64(status.Docks)
	targetBikes, targetDocks := int64(demand.Bikes), int64(demand.Docks)

	edges := []graph.Edge{
		{From: BalancingNode, To: supply, Capacity: bikes},
		{From: sink, To: BalancingNode, Capacity: docks},
		{From: supply, To: buffer, Capacity: max(0, bikes-targetBikes)},
		{From: buffer, To: sink, Capacity: max(0, docks-targetDocks)},
	}
	for _, edge := range edges {
		if err := g.SetEdge(edge.From, edge.To, 0, edge.Capacity); err != nil {
			return 0, errors.WithStack(err)
		}
	}

	missingBikes := max(0, targetBikes-bikes)
	missingDocks := max(0, targetDocks-docks)

	switch {
	case missingBikes > 0:
		if err := g.SetDemand(sink, missingBikes); err != nil {
			return 0, errors.WithStack(err)
		}

		return missingBikes, nil
	case missingDocks > 0:
		if err := g.SetDemand(supply, -missingDocks); err != nil {
			return 0, errors.WithStack(err)
		}

		return -missingDocks, nil
	default:
		return 0, nil
	}
}

// CheckBalance verifies that the balancing node offsets every station demand
func (n *Network) CheckBalance() error {
	var sum int64
	for _, id := range n.Graph.Nodes() {
		node, _ := n.Graph.Node(id)
		sum += node.Demand
	}
	if sum != 0 {
		return errors.Wrapf(ErrUnbalanced, "sum is %d", sum)
	}

	return nil
}

// BalancingDemand returns the demand carried by the balancing node
func (n *Network) BalancingDemand() int64 {
	node, ok := n.Graph.Node(BalancingNode)
	if !ok {
		return 0
	}

	return node.Demand
}
