// Package geocoding resolves free-text addresses with a Nominatim-compatible search API.
package geocoding

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"bikeshare/config"
	domainerrors "bikeshare/internal/domain/errors"
	"bikeshare/internal/domain/entity"
	"bikeshare/internal/domain/service"

	"github.com/pkg/errors"
)

const maxResponseSize = 1 << 20

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Nominatim is a service.Geocoder
type Nominatim struct {
	endpoint   string
	userAgent  string
	citySuffix string
	client     *http.Client
	logger     *slog.Logger
}

var _ service.Geocoder = (*Nominatim)(nil)

// New creates a geocoder from config
func New(cfg *config.GeocodingConfig, logger *slog.Logger) *Nominatim {
	return &Nominatim{
		endpoint:   cfg.Endpoint,
		userAgent:  cfg.UserAgent,
		citySuffix: cfg.CitySuffix,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Geocode returns the best match for address. The configured city suffix is appended
// to narrow the search. Lookup failures are not retried.
func (n *Nominatim) Geocode(ctx context.Context, address string) (entity.Coordinate, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return entity.Coordinate{}, domainerrors.ErrAddressUnresolved.WithDetails("empty address")
	}

	query := address + n.citySuffix

	results, err := n.search(ctx, query)
	if err != nil {
		n.logger.Warn("Geocoding request failed", slog.String("query", query), slog.Any("error", err))

		return entity.Coordinate{}, errors.Wrap(domainerrors.ErrAddressUnresolved, err.Error())
	}
	if len(results) == 0 {
		return entity.Coordinate{}, errors.Wrapf(domainerrors.ErrAddressUnresolved, "no match for %q", query)
	}

	lat, errLat := strconv.ParseFloat(results[0].Lat, 64)
	lon, errLon := strconv.ParseFloat(results[0].Lon, 64)
	coord := entity.Coordinate{Lat: lat, Lon: lon}
	if errLat != nil || errLon != nil || !coord.IsValid() {
		return entity.Coordinate{}, errors.Wrapf(domainerrors.ErrAddressUnresolved,
			"invalid position %q,%q for %q", results[0].Lat, results[0].Lon, query)
	}

	return coord, nil
}

func (n *Nominatim) search(ctx context.Context, query string) ([]searchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build search request")
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "search request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("search returned status %d", resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&results); err != nil {
		return nil, errors.Wrap(err, "decode search response")
	}

	return results, nil
}
