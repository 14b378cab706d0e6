package service

import (
	"context"

	"bikeshare/internal/domain/entity"
)

// Geocoder defines the interface for resolving free-text addresses
type Geocoder interface {
	// Geocode returns the coordinate of an address, or ErrAddressUnresolved
	Geocode(ctx context.Context, address string) (entity.Coordinate, error)
}
