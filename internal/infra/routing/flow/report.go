package flow

import (
	"fmt"
	"strconv"

	"bikeshare/internal/domain/entity"
	"bikeshare/internal/infra/routing/graph"
)

// NoTransferMessage is the summary of a plan that moves nothing
const NoTransferMessage = "No transference of bikes was performed"

// Transfer is a number of bikes moved between two stations
type Transfer struct {
	From  string  `json:"from"`
	To    string  `json:"to"`
	Bikes int64   `json:"bikes"`
	Cost  float64 `json:"cost"` // bikes × meters / 1000
}

// Report summarizes a solved redistribution
type Report struct {
	TotalCost float64    `json:"total_cost"` // km-equivalent
	MaxEdge   *Transfer  `json:"max_edge,omitempty"`
	Transfers []Transfer `json:"transfers"`
}

// NewReport applies the station-to-station flows of sol to inventory and totals their
// cost. Flows through supply, demand and balancing nodes leave the inventory alone.
func NewReport(sol *Solution, inventory entity.Inventory) *Report {
	report := &Report{
		TotalCost: float64(sol.Cost) / 1000,
		Transfers: []Transfer{},
	}

	index := inventory.Index()
	for _, arc := range sol.Flows {
		if arc.From.Role != graph.RoleStation || arc.To.Role != graph.RoleStation {
			continue
		}

		transfer := Transfer{
			From:  arc.From.Key,
			To:    arc.To.Key,
			Bikes: arc.Flow,
			Cost:  float64(arc.Weight*arc.Flow) / 1000,
		}
		report.Transfers = append(report.Transfers, transfer)

		if report.MaxEdge == nil || transfer.Cost > report.MaxEdge.Cost {
			maxEdge := transfer
			report.MaxEdge = &maxEdge
		}

		moved := int(arc.Flow)
		if i, ok := index[transfer.From]; ok {
			inventory[i].Bikes -= moved
			inventory[i].Docks += moved
		}
		if i, ok := index[transfer.To]; ok {
			inventory[i].Bikes += moved
			inventory[i].Docks -= moved
		}
	}

	return report
}

// NoTransfer reports whether the plan costs nothing
func (r *Report) NoTransfer() bool {
	return r.TotalCost == 0
}

// Summary renders the report as a short human-readable text
func (r *Report) Summary() string {
	if r.NoTransfer() || r.MaxEdge == nil {
		return NoTransferMessage
	}

	return fmt.Sprintf("Total cost: %s\nMax cost edge: %s -> %s with cost %s.",
		formatCost(r.TotalCost), r.MaxEdge.From, r.MaxEdge.To, formatCost(r.MaxEdge.Cost))
}

func formatCost(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Plan builds the network for demand, solves it and applies the transfers to inventory.
// It returns ErrInfeasible, possibly wrapped, when the demand cannot be met.
func Plan(demand entity.Demand, distanceMeters float64, stations map[string]entity.Station, inventory entity.Inventory) (*Report, error) {
	network, err := BuildNetwork(demand, stations, inventory, distanceMeters)
	if err != nil {
		return nil, err
	}

	solution, err := Solve(network)
	if err != nil {
		return nil, err
	}

	return NewReport(solution, inventory), nil
}
