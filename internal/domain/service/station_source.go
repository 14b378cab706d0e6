package service

import (
	"context"

	"bikeshare/internal/domain/entity"
)

// StationSource defines the interface for loading station metadata and live inventory
type StationSource interface {
	// Snapshot fetches the station table and the live inventory together.
	// Inventory rows may reference stations missing from the table.
	Snapshot(ctx context.Context) (*entity.Snapshot, error)
}
