package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bikeshare/config"
	"bikeshare/internal/delivery/api/router"
	"bikeshare/internal/delivery/api/router/handler"
	deliverycontext "bikeshare/internal/delivery/context"
	"bikeshare/internal/domain/entity"
	"bikeshare/internal/infra/metrics"
	mockService "bikeshare/internal/mocks/service"
	"bikeshare/internal/usecase/impl"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details any    `json:"details"`
	} `json:"error"`
	Meta struct {
		RequestID string `json:"request_id"`
	} `json:"meta"`
}

type apiFixtures struct {
	echo     *echo.Echo
	stations *mockService.MockStationSource
	geocoder *mockService.MockGeocoder
}

func newTestAPI(t *testing.T) apiFixtures {
	t.Helper()

	cfg := &config.Config{
		Network:  &config.NetworkConfig{DefaultDistanceMeters: 1000, MaxDistanceMeters: 5000},
		Sessions: &config.SessionsConfig{TTL: time.Hour},
		Metrics:  &config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	cfg.HTTP.MaxRequestBodySize = "100KB"

	logger := slog.New(slog.DiscardHandler)
	stations := mockService.NewMockStationSource(t)
	geocoder := mockService.NewMockGeocoder(t)
	registry := metrics.NewRegistry()

	uc := impl.NewBikeshareService(impl.BikeshareServiceParams{
		Config:   cfg,
		Logger:   logger,
		Stations: stations,
		Geocoder: geocoder,
		Metrics:  registry,
	})

	e := NewEcho(cfg, logger, router.RouterParams{
		SessionHandler: handler.NewSessionHandler(handler.SessionHandlerParams{BikeshareUC: uc, Logger: logger}),
		Metrics:        registry,
		Config:         cfg,
	})

	stations.EXPECT().
		Snapshot(mock.Anything).
		RunAndReturn(func(_ context.Context) (*entity.Snapshot, error) {
			return &entity.Snapshot{
				Stations: []entity.Station{
					{ID: "A", Lat: 41.3900, Lon: 2.1700},
					{ID: "B", Lat: 41.3900, Lon: 2.1720},
					{ID: "C", Lat: 41.3915, Lon: 2.1710},
				},
				Inventory: entity.Inventory{
					{StationID: "A", Bikes: 0, Docks: 5},
					{StationID: "B", Bikes: 5, Docks: 0},
					{StationID: "C", Bikes: 2, Docks: 2},
				},
			}, nil
		}).
		Maybe()

	return apiFixtures{echo: e, stations: stations, geocoder: geocoder}
}

func (fx apiFixtures) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	fx.echo.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}

	return rec, env
}

func (fx apiFixtures) startSession(t *testing.T) string {
	t.Helper()

	rec, env := fx.do(t, http.MethodPost, "/api/v1/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var info struct {
		ID       string  `json:"id"`
		Distance float64 `json:"distance"`
		Stations int     `json:"stations"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &info))
	require.NotEmpty(t, info.ID)
	assert.InDelta(t, 1000.0, info.Distance, 1e-9)
	assert.Equal(t, 3, info.Stations)

	return info.ID
}

func TestAPI_Health(t *testing.T) {
	fx := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(deliverycontext.HeaderXRequestID, "health-1")
	rec := httptest.NewRecorder()
	fx.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "health-1", rec.Header().Get(deliverycontext.HeaderXRequestID))
	assert.JSONEq(t, `{"data":{"status":"ok"},"meta":{"request_id":"health-1"}}`, rec.Body.String())
}

func TestAPI_GraphLifecycle(t *testing.T) {
	fx := newTestAPI(t)
	id := fx.startSession(t)
	base := "/api/v1/sessions/" + id

	rec, env := fx.do(t, http.MethodGet, base+"/graph", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"nodes":3,"edges":3,"components":1,"distance":1000}`, string(env.Data))

	rec, env = fx.do(t, http.MethodPut, base+"/graph", `{"distance":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"nodes":3,"edges":0,"components":3,"distance":0}`, string(env.Data))

	rec, _ = fx.do(t, http.MethodGet, base+"/graph/geojson", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, handler.GeoJSONContentType, rec.Header().Get(echo.HeaderContentType))

	var fc struct {
		Type     string `json:"type"`
		Features []any  `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 3)

	rec, _ = fx.do(t, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = fx.do(t, http.MethodGet, base+"/graph", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "SESSION_NOT_FOUND", env.Error.Code)
}

func TestAPI_SetDistance_Validation(t *testing.T) {
	fx := newTestAPI(t)
	id := fx.startSession(t)

	tests := []struct {
		name     string
		body     string
		wantCode string
		details  string
	}{
		{name: "missing", body: `{}`, wantCode: "VALIDATION_FAILED", details: "distance: field is required"},
		{name: "negative", body: `{"distance":-5}`, wantCode: "VALIDATION_FAILED", details: "distance: must be at least 0"},
		{name: "above maximum", body: `{"distance":9000}`, wantCode: "INVALID_INPUT", details: "the distance must not exceed 5000 meters"},
		{name: "malformed", body: `{"distance":`, wantCode: "INVALID_INPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := fx.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/graph", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
			if tt.details != "" {
				assert.Equal(t, tt.details, env.Error.Details)
			}
		})
	}
}

func TestAPI_Distribute(t *testing.T) {
	fx := newTestAPI(t)
	id := fx.startSession(t)
	base := "/api/v1/sessions/" + id

	rec, env := fx.do(t, http.MethodPost, base+"/distribute", `{"bikes":2,"docks":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		TotalCost float64 `json:"total_cost"`
		MaxEdge   *struct {
			From  string `json:"from"`
			To    string `json:"to"`
			Bikes int64  `json:"bikes"`
		} `json:"max_edge"`
		Summary   string           `json:"summary"`
		Inventory entity.Inventory `json:"inventory"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.NotNil(t, result.MaxEdge)
	assert.Equal(t, "B", result.MaxEdge.From)
	assert.Equal(t, "A", result.MaxEdge.To)
	assert.Equal(t, int64(2), result.MaxEdge.Bikes)
	assert.True(t, strings.HasPrefix(result.Summary, "Total cost: "))
	assert.Contains(t, result.Inventory, entity.StationStatus{StationID: "A", Bikes: 2, Docks: 3})

	rec, env = fx.do(t, http.MethodPost, base+"/distribute", `{"bikes":-1,"docks":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
}

func TestAPI_Distribute_Infeasible(t *testing.T) {
	fx := newTestAPI(t)
	id := fx.startSession(t)

	rec, env := fx.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/distribute", `{"bikes":10,"docks":0}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "DISTRIBUTION_INFEASIBLE", env.Error.Code)
	assert.Equal(t, "The distribution is not possible", env.Error.Message)
}

func TestAPI_Route(t *testing.T) {
	fx := newTestAPI(t)
	id := fx.startSession(t)

	fx.geocoder.EXPECT().
		Geocode(mock.Anything, "Carrer de Balmes 1").
		Return(entity.Coordinate{Lat: 41.3900, Lon: 2.1690}, nil)
	fx.geocoder.EXPECT().
		Geocode(mock.Anything, "Carrer de Pau Claris 2").
		Return(entity.Coordinate{Lat: 41.3900, Lon: 2.1730}, nil)

	rec, env := fx.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/route",
		`{"addresses":"Carrer de Balmes 1, Carrer de Pau Claris 2"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Stations []string `json:"stations"`
		Path     struct {
			Type string `json:"type"`
		} `json:"path"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, []string{"A", "B"}, result.Stations)
	assert.Equal(t, "FeatureCollection", result.Path.Type)

	rec, env = fx.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/route",
		`{"start":{"lat":41.39,"lon":2.169},"finish":{"lat":41.39,"lon":2.169}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "SAME_ENDPOINT", env.Error.Code)

	rec, env = fx.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/route",
		`{"start":{"lat":141.39,"lon":2.169},"finish":{"lat":41.39,"lon":2.17}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
}

func TestAPI_Metrics(t *testing.T) {
	fx := newTestAPI(t)
	fx.startSession(t)

	rec, _ := fx.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `bikeshare_http_requests_total{method="POST",path="/api/v1/sessions",status="201"} 1`)
	assert.Contains(t, body, "bikeshare_sessions_active 1")
	assert.Contains(t, body, "bikeshare_graph_build_duration_seconds_count 1")
}
