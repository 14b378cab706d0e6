package handler

import (
	"context"
	"log/slog"
	"net/http"

	"bikeshare/internal/delivery/api/response"
	deliverycontext "bikeshare/internal/delivery/context"
	"bikeshare/internal/domain/entity"
	"bikeshare/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// GeoJSONContentType is the media type of GeoJSON documents
const GeoJSONContentType = "application/geo+json"

// SessionHandlerParams holds dependencies for SessionHandler, injected by Fx.
type SessionHandlerParams struct {
	fx.In

	BikeshareUC usecase.BikeshareUsecase
	Logger      *slog.Logger
}

// SessionHandler holds dependencies for session-scoped graph, route and distribution handlers
type SessionHandler struct {
	bikeshareUC usecase.BikeshareUsecase
	logger      *slog.Logger
}

// NewSessionHandler is the constructor for SessionHandler
func NewSessionHandler(params SessionHandlerParams) *SessionHandler {
	return &SessionHandler{
		bikeshareUC: params.BikeshareUC,
		logger:      params.Logger,
	}
}

// SetDistanceRequest represents the request body for rebuilding a session graph
type SetDistanceRequest struct {
	Distance *float64 `json:"distance" validate:"required,gte=0"`
}

// CoordinateRequest is a latitude/longitude pair
type CoordinateRequest struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lon float64 `json:"lon" validate:"longitude"`
}

// RouteRequest names the two ends of a trip, either as one "origin, destination"
// string, as two addresses or as two coordinates
type RouteRequest struct {
	Addresses string             `json:"addresses"`
	From      string             `json:"from" validate:"required_with=To"`
	To        string             `json:"to" validate:"required_with=From"`
	Start     *CoordinateRequest `json:"start" validate:"required_with=Finish"`
	Finish    *CoordinateRequest `json:"finish" validate:"required_with=Start"`
}

// DistributeRequest represents the bikes and docks every station should end up with
type DistributeRequest struct {
	Bikes int `json:"bikes" validate:"gte=0"`
	Docks int `json:"docks" validate:"gte=0"`
}

// sessionContext tags the request context with the session from the path
func sessionContext(c echo.Context) context.Context {
	ctx := deliverycontext.WithSessionID(c.Request().Context(), c.Param("id"))
	c.SetRequest(c.Request().WithContext(ctx))

	return ctx
}

// StartSession handles session creation
func (h *SessionHandler) StartSession(c echo.Context) error {
	info, err := h.bikeshareUC.StartSession(c.Request().Context())
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusCreated, info)
}

// EndSession handles session removal
func (h *SessionHandler) EndSession(c echo.Context) error {
	if err := h.bikeshareUC.EndSession(sessionContext(c), c.Param("id")); err != nil {
		return response.HandleAppError(c, err)
	}

	return response.NoContent(c)
}

// SetDistance handles rebuilding the session graph at a new distance
func (h *SessionHandler) SetDistance(c echo.Context) error {
	var req SetDistanceRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid distance input")
	}

	if err := c.Validate(&req); err != nil {
		return response.HandleAppError(c, err)
	}

	stats, err := h.bikeshareUC.SetDistance(sessionContext(c), c.Param("id"), *req.Distance)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, stats)
}

// GraphStats handles retrieving node, edge and component counts
func (h *SessionHandler) GraphStats(c echo.Context) error {
	stats, err := h.bikeshareUC.GraphStats(sessionContext(c), c.Param("id"))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, stats)
}

// GraphGeoJSON handles rendering the session graph
func (h *SessionHandler) GraphGeoJSON(c echo.Context) error {
	fc, err := h.bikeshareUC.GraphGeoJSON(sessionContext(c), c.Param("id"))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Raw(c, http.StatusOK, GeoJSONContentType, fc)
}

// Route handles finding the fastest trip between two places
func (h *SessionHandler) Route(c echo.Context) error {
	var req RouteRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid route input")
	}

	if err := c.Validate(&req); err != nil {
		return response.HandleAppError(c, err)
	}

	input := usecase.RouteInput{
		Addresses: req.Addresses,
		From:      req.From,
		To:        req.To,
	}
	if req.Start != nil && req.Finish != nil {
		input.Start = &entity.Coordinate{Lat: req.Start.Lat, Lon: req.Start.Lon}
		input.Finish = &entity.Coordinate{Lat: req.Finish.Lat, Lon: req.Finish.Lon}
	}

	result, err := h.bikeshareUC.Route(sessionContext(c), c.Param("id"), input)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, result)
}

// Distribute handles redistribution planning
func (h *SessionHandler) Distribute(c echo.Context) error {
	var req DistributeRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid demand input")
	}

	if err := c.Validate(&req); err != nil {
		return response.HandleAppError(c, err)
	}

	demand := entity.Demand{Bikes: req.Bikes, Docks: req.Docks}
	result, err := h.bikeshareUC.Distribute(sessionContext(c), c.Param("id"), demand)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, result)
}

// Refresh handles re-fetching station data for a session
func (h *SessionHandler) Refresh(c echo.Context) error {
	info, err := h.bikeshareUC.Refresh(sessionContext(c), c.Param("id"))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, info)
}

// HealthCheck reports that the process is serving
func HealthCheck(c echo.Context) error {
	return response.Success(c, http.StatusOK, map[string]string{"status": "ok"})
}
