// Package entity contains the core business objects of the project.
package entity

import "time"

// Station is a dock location taken from the station metadata feed.
// Stations are immutable within a snapshot.
type Station struct {
	ID       string  // Opaque station key
	Name     string  // Human-readable name, may be empty
	Lat      float64 // The geographic latitude
	Lon      float64 // The geographic longitude
	Capacity int     // Total docks, 0 when the feed does not report it
}

// StationStatus is one row of the live inventory
type StationStatus struct {
	StationID string `json:"station_id"`
	Bikes     int    `json:"bikes"`
	Docks     int    `json:"docks"`
}

// Inventory is the live inventory dataset. Redistribution plans update it in place.
type Inventory []StationStatus

// Index maps station IDs to their position in the inventory; the first row of a
// duplicate ID wins
func (inv Inventory) Index() map[string]int {
	index := make(map[string]int, len(inv))
	for i, status := range inv {
		if _, exists := index[status.StationID]; !exists {
			index[status.StationID] = i
		}
	}

	return index
}

// Clone returns an independent copy
func (inv Inventory) Clone() Inventory {
	out := make(Inventory, len(inv))
	copy(out, inv)

	return out
}

// Snapshot pairs station metadata with live inventory fetched together
type Snapshot struct {
	Stations  []Station
	Inventory Inventory
	FetchedAt time.Time
}

// StationTable indexes stations by ID
func (s *Snapshot) StationTable() map[string]Station {
	return StationTable(s.Stations)
}

// StationTable indexes stations by ID; the first occurrence of a duplicate ID wins
func StationTable(stations []Station) map[string]Station {
	table := make(map[string]Station, len(stations))
	for _, st := range stations {
		if _, exists := table[st.ID]; !exists {
			table[st.ID] = st
		}
	}

	return table
}
