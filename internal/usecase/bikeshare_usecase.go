package usecase

import (
	"context"
	"time"

	"bikeshare/internal/domain/entity"

	"github.com/paulmach/orb/geojson"
)

// SessionInfo describes a session right after it is created or refreshed
type SessionInfo struct {
	ID        string    `json:"id"`
	Distance  float64   `json:"distance"`   // Proximity threshold in meters
	Stations  int       `json:"stations"`   // Stations in the snapshot
	FetchedAt time.Time `json:"fetched_at"` // When the snapshot was taken
}

// GraphStats summarises a session's proximity graph
type GraphStats struct {
	Nodes      int     `json:"nodes"`
	Edges      int     `json:"edges"`
	Components int     `json:"components"`
	Distance   float64 `json:"distance"`
}

// RouteInput names the two ends of a trip. Either Addresses ("origin, destination"),
// From and To, or Start and Finish must be set.
type RouteInput struct {
	Addresses string
	From      string
	To        string
	Start     *entity.Coordinate
	Finish    *entity.Coordinate
}

// RouteResult is the station sequence of the fastest trip
type RouteResult struct {
	Start    entity.Coordinate          `json:"start"`
	Finish   entity.Coordinate          `json:"finish"`
	Stations []string                   `json:"stations"`
	Cost     float64                    `json:"cost"`
	Path     *geojson.FeatureCollection `json:"path"`
}

// Transfer is one station-to-station move of bikes
type Transfer struct {
	From  string  `json:"from"`
	To    string  `json:"to"`
	Bikes int64   `json:"bikes"`
	Cost  float64 `json:"cost"`
}

// DistributionResult is a redistribution plan applied to the session inventory
type DistributionResult struct {
	TotalCost float64          `json:"total_cost"` // Bike-kilometers
	MaxEdge   *Transfer        `json:"max_edge,omitempty"`
	Transfers []Transfer       `json:"transfers"`
	Summary   string           `json:"summary"`
	Inventory entity.Inventory `json:"inventory"`
}

// BikeshareUsecase defines the session-scoped operations over the station network
type BikeshareUsecase interface {
	// StartSession fetches station data and builds a graph at the default distance
	StartSession(ctx context.Context) (*SessionInfo, error)

	// EndSession drops a session and its graph
	EndSession(ctx context.Context, sessionID string) error

	// SetDistance rebuilds the session graph in place at a new distance in meters
	SetDistance(ctx context.Context, sessionID string, distance float64) (*GraphStats, error)

	// GraphStats reports node, edge and component counts
	GraphStats(ctx context.Context, sessionID string) (*GraphStats, error)

	// GraphGeoJSON renders the session graph
	GraphGeoJSON(ctx context.Context, sessionID string) (*geojson.FeatureCollection, error)

	// Route finds the fastest trip between two places
	Route(ctx context.Context, sessionID string, input RouteInput) (*RouteResult, error)

	// Distribute plans the cheapest bike moves so every station meets the demand and
	// applies them to the session inventory
	Distribute(ctx context.Context, sessionID string, demand entity.Demand) (*DistributionResult, error)

	// Refresh re-fetches station data and rebuilds the graph at the current distance
	Refresh(ctx context.Context, sessionID string) (*SessionInfo, error)
}
