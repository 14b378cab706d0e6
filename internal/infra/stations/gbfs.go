package stations

import (
	"bytes"
	"encoding/json"
	"strconv"

	"bikeshare/internal/domain/entity"

	"github.com/pkg/errors"
)

// stationID accepts GBFS station identifiers encoded as JSON strings or numbers
type stationID string

func (id *stationID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.WithStack(err)
		}
		*id = stationID(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Wrapf(err, "station_id %s", data)
	}
	// integral floats such as 12.0 keep their integer form
	if f, err := n.Float64(); err == nil && f == float64(int64(f)) {
		*id = stationID(strconv.FormatInt(int64(f), 10))

		return nil
	}
	*id = stationID(n.String())

	return nil
}

type informationFeed struct {
	Data struct {
		Stations []informationRecord `json:"stations"`
	} `json:"data"`
}

type informationRecord struct {
	StationID stationID `json:"station_id"`
	Name      string    `json:"name"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Capacity  int       `json:"capacity"`
}

type statusFeed struct {
	Data struct {
		Stations []statusRecord `json:"stations"`
	} `json:"data"`
}

type statusRecord struct {
	StationID stationID `json:"station_id"`
	Bikes     int       `json:"num_bikes_available"`
	Docks     int       `json:"num_docks_available"`
}

// decodeInformation parses a station_information document. Stations without an ID or
// with an impossible position are dropped.
func decodeInformation(body []byte) ([]entity.Station, error) {
	var feed informationFeed
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, errors.Wrap(err, "decode station_information")
	}

	stations := make([]entity.Station, 0, len(feed.Data.Stations))
	for _, rec := range feed.Data.Stations {
		coord := entity.Coordinate{Lat: rec.Lat, Lon: rec.Lon}
		if rec.StationID == "" || !coord.IsValid() {
			continue
		}
		stations = append(stations, entity.Station{
			ID:       string(rec.StationID),
			Name:     rec.Name,
			Lat:      rec.Lat,
			Lon:      rec.Lon,
			Capacity: rec.Capacity,
		})
	}

	return stations, nil
}

// decodeStatus parses a station_status document
func decodeStatus(body []byte) (entity.Inventory, error) {
	var feed statusFeed
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, errors.Wrap(err, "decode station_status")
	}

	inventory := make(entity.Inventory, 0, len(feed.Data.Stations))
	for _, rec := range feed.Data.Stations {
		if rec.StationID == "" {
			continue
		}
		inventory = append(inventory, entity.StationStatus{
			StationID: string(rec.StationID),
			Bikes:     max(0, rec.Bikes),
			Docks:     max(0, rec.Docks),
		})
	}

	return inventory, nil
}
