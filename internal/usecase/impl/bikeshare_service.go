// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"bikeshare/config"
	deliverycontext "bikeshare/internal/delivery/context"
	"bikeshare/internal/domain/entity"
	domainerrors "bikeshare/internal/domain/errors"
	"bikeshare/internal/domain/service"
	"bikeshare/internal/infra/metrics"
	"bikeshare/internal/infra/render"
	"bikeshare/internal/infra/routing/flow"
	"bikeshare/internal/infra/routing/graph"
	"bikeshare/internal/infra/routing/proximity"
	"bikeshare/internal/infra/routing/router"
	"bikeshare/internal/usecase"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// bikeshareService implements the BikeshareUsecase interface.
type bikeshareService struct {
	stations        service.StationSource
	geocoder        service.Geocoder
	sessions        *sessionStore
	defaultDistance float64
	maxDistance     float64
	metrics         *metrics.Registry
	logger          *slog.Logger
}

// BikeshareServiceParams holds dependencies for BikeshareService, injected by Fx.
type BikeshareServiceParams struct {
	fx.In

	Config   *config.Config
	Logger   *slog.Logger
	Stations service.StationSource
	Geocoder service.Geocoder
	Metrics  *metrics.Registry `optional:"true"`
}

// NewBikeshareService creates the session-scoped bike-share service
func NewBikeshareService(params BikeshareServiceParams) usecase.BikeshareUsecase {
	defaultDistance := proximity.DefaultDistanceMeters
	maxDistance := math.Inf(1)
	var ttl time.Duration
	if params.Config != nil {
		if params.Config.Network != nil {
			if params.Config.Network.DefaultDistanceMeters > 0 {
				defaultDistance = params.Config.Network.DefaultDistanceMeters
			}
			if params.Config.Network.MaxDistanceMeters > 0 {
				maxDistance = params.Config.Network.MaxDistanceMeters
			}
		}
		if params.Config.Sessions != nil {
			ttl = params.Config.Sessions.TTL
		}
	}

	return &bikeshareService{
		stations:        params.Stations,
		geocoder:        params.Geocoder,
		sessions:        newSessionStore(ttl),
		defaultDistance: defaultDistance,
		maxDistance:     maxDistance,
		metrics:         params.Metrics,
		logger:          params.Logger,
	}
}

func (s *bikeshareService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, s.logger)
}

// StartSession fetches station data and builds the initial graph
func (s *bikeshareService) StartSession(ctx context.Context) (*usecase.SessionInfo, error) {
	snapshot, err := s.stations.Snapshot(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch station data for new session")
	}

	g := s.buildGraph(snapshot.Stations, s.defaultDistance, nil)
	sess := newSession(snapshot, s.defaultDistance, g)
	s.sessions.add(sess)
	s.reportSessions()

	s.log(ctx).Info("Session started",
		slog.String("session_id", sess.id),
		slog.Int("stations", g.NodeCount()),
		slog.Int("edges", g.EdgeCount()),
	)

	return &usecase.SessionInfo{
		ID:        sess.id,
		Distance:  sess.distance,
		Stations:  len(sess.stations),
		FetchedAt: sess.fetchedAt,
	}, nil
}

// EndSession drops a session
func (s *bikeshareService) EndSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.remove(sessionID); err != nil {
		return err
	}
	s.reportSessions()

	s.log(ctx).Info("Session ended", slog.String("session_id", sessionID))

	return nil
}

// SetDistance rebuilds the session graph in place
func (s *bikeshareService) SetDistance(ctx context.Context, sessionID string, distance float64) (*usecase.GraphStats, error) {
	if err := s.validateDistance(distance); err != nil {
		return nil, err
	}

	var stats *usecase.GraphStats
	err := s.sessions.with(sessionID, func(sess *session) error {
		sess.graph = s.buildGraph(sess.stations, distance, sess.graph)
		sess.distance = distance
		stats = graphStats(sess)

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log(ctx).Debug("Session graph rebuilt",
		slog.String("session_id", sessionID),
		slog.Float64("distance", distance),
		slog.Int("edges", stats.Edges),
	)

	return stats, nil
}

func (s *bikeshareService) validateDistance(distance float64) error {
	if math.IsNaN(distance) || math.IsInf(distance, 0) || distance < 0 {
		return errors.Wrap(domainerrors.ErrInvalidInput, "the distance must be 0 or a positive number")
	}
	if distance > s.maxDistance {
		return errors.Wrapf(domainerrors.ErrInvalidInput, "the distance must not exceed %.0f meters", s.maxDistance)
	}

	return nil
}

// GraphStats reports the size of the session graph
func (s *bikeshareService) GraphStats(_ context.Context, sessionID string) (*usecase.GraphStats, error) {
	var stats *usecase.GraphStats
	err := s.sessions.with(sessionID, func(sess *session) error {
		stats = graphStats(sess)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func graphStats(sess *session) *usecase.GraphStats {
	return &usecase.GraphStats{
		Nodes:      sess.graph.NodeCount(),
		Edges:      sess.graph.EdgeCount(),
		Components: sess.graph.Components(),
		Distance:   sess.distance,
	}
}

// GraphGeoJSON renders the session graph
func (s *bikeshareService) GraphGeoJSON(_ context.Context, sessionID string) (*geojson.FeatureCollection, error) {
	var fc *geojson.FeatureCollection
	err := s.sessions.with(sessionID, func(sess *session) error {
		fc = render.Graph(sess.graph)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return fc, nil
}

// Route resolves both ends of the trip and finds the fastest station sequence
func (s *bikeshareService) Route(ctx context.Context, sessionID string, input usecase.RouteInput) (*usecase.RouteResult, error) {
	start, finish, err := s.resolveEndpoints(ctx, input)
	if err != nil {
		return nil, err
	}

	startPoint := orb.Point{start.Lon, start.Lat}
	finishPoint := orb.Point{finish.Lon, finish.Lat}

	var result *usecase.RouteResult
	err = s.sessions.with(sessionID, func(sess *session) error {
		found, routeErr := router.Route(sess.graph, startPoint, finishPoint)
		if routeErr != nil {
			return routeErr
		}

		result = &usecase.RouteResult{
			Start:    start,
			Finish:   finish,
			Stations: found.Stations,
			Cost:     found.Cost,
			Path:     render.Route(sess.graph, startPoint, finishPoint, found.Stations),
		}

		return nil
	})

	switch {
	case err == nil:
		s.recordRoute(metrics.OutcomeOK)

		return result, nil
	case errors.Is(err, domainerrors.ErrSessionNotFound):
		return nil, err
	case errors.Is(err, router.ErrSameEndpoint):
		s.recordRoute(metrics.OutcomeError)

		return nil, errors.Wrap(domainerrors.ErrSameEndpoint, "both addresses are the same")
	case errors.Is(err, graph.ErrNoPath):
		s.recordRoute(metrics.OutcomeInfeasible)

		return nil, errors.Wrap(domainerrors.ErrRouteNotFound, "no route between the addresses")
	default:
		s.recordRoute(metrics.OutcomeError)
		s.log(ctx).Error("Route failed", slog.String("session_id", sessionID), slog.Any("error", err))

		return nil, errors.Wrap(domainerrors.ErrInternalError.WithDetails(err.Error()), "route failed")
	}
}

// resolveEndpoints turns the route input into two coordinates, geocoding addresses
// when no coordinates are given
func (s *bikeshareService) resolveEndpoints(ctx context.Context, input usecase.RouteInput) (start, finish entity.Coordinate, err error) {
	if input.Start != nil || input.Finish != nil {
		if input.Start == nil || input.Finish == nil {
			return start, finish, errors.Wrap(domainerrors.ErrInvalidInput, "both start and finish coordinates are required")
		}
		if !input.Start.IsValid() || !input.Finish.IsValid() {
			return start, finish, errors.Wrap(domainerrors.ErrInvalidInput, "coordinates are out of range")
		}

		return *input.Start, *input.Finish, nil
	}

	from, to, err := splitAddresses(input)
	if err != nil {
		return start, finish, err
	}

	if start, err = s.geocoder.Geocode(ctx, from); err != nil {
		return start, finish, errors.Wrapf(err, "failed to geocode %q", from)
	}
	if finish, err = s.geocoder.Geocode(ctx, to); err != nil {
		return start, finish, errors.Wrapf(err, "failed to geocode %q", to)
	}

	return start, finish, nil
}

// splitAddresses reads either the From/To pair or a single "origin, destination" string
func splitAddresses(input usecase.RouteInput) (from, to string, err error) {
	from, to = strings.TrimSpace(input.From), strings.TrimSpace(input.To)
	if input.Addresses != "" {
		parts := strings.Split(input.Addresses, ",")
		if len(parts) != 2 {
			return "", "", errors.Wrap(domainerrors.ErrInvalidInput, "expected two addresses separated by a comma")
		}
		from, to = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}

	if from == "" || to == "" {
		return "", "", errors.Wrap(domainerrors.ErrInvalidInput, "both addresses are required")
	}

	return from, to, nil
}

// Distribute plans on a copy of the session inventory and keeps the copy only when
// the plan succeeds
func (s *bikeshareService) Distribute(ctx context.Context, sessionID string, demand entity.Demand) (*usecase.DistributionResult, error) {
	if demand.Bikes < 0 || demand.Docks < 0 {
		return nil, errors.Wrap(domainerrors.ErrInvalidInput, "bikes and docks must be non-negative integers")
	}

	started := time.Now()

	var result *usecase.DistributionResult
	err := s.sessions.with(sessionID, func(sess *session) error {
		inventory := sess.inventory.Clone()

		report, planErr := flow.Plan(demand, sess.distance, sess.table, inventory)
		if planErr != nil {
			return planErr
		}
		sess.inventory = inventory

		result = distributionResult(report, inventory.Clone())

		return nil
	})

	switch {
	case err == nil:
		s.recordPlan(metrics.OutcomeOK, result.TotalCost, time.Since(started))
		s.log(ctx).Info("Distribution applied",
			slog.String("session_id", sessionID),
			slog.Int("bikes", demand.Bikes),
			slog.Int("docks", demand.Docks),
			slog.Float64("total_cost", result.TotalCost),
			slog.Int("transfers", len(result.Transfers)),
		)

		return result, nil
	case errors.Is(err, domainerrors.ErrSessionNotFound):
		return nil, err
	case errors.Is(err, flow.ErrInfeasible):
		s.recordPlan(metrics.OutcomeInfeasible, 0, time.Since(started))

		return nil, errors.Wrap(domainerrors.ErrInfeasible, err.Error())
	default:
		s.recordPlan(metrics.OutcomeError, 0, time.Since(started))
		s.log(ctx).Error("Distribution failed", slog.String("session_id", sessionID), slog.Any("error", err))

		return nil, errors.Wrap(domainerrors.ErrInternalError.WithDetails(err.Error()), "distribution failed")
	}
}

func distributionResult(report *flow.Report, inventory entity.Inventory) *usecase.DistributionResult {
	transfers := make([]usecase.Transfer, 0, len(report.Transfers))
	for _, t := range report.Transfers {
		transfers = append(transfers, usecase.Transfer(t))
	}

	var maxEdge *usecase.Transfer
	if report.MaxEdge != nil {
		edge := usecase.Transfer(*report.MaxEdge)
		maxEdge = &edge
	}

	return &usecase.DistributionResult{
		TotalCost: report.TotalCost,
		MaxEdge:   maxEdge,
		Transfers: transfers,
		Summary:   report.Summary(),
		Inventory: inventory,
	}
}

// Refresh replaces the session's station data and rebuilds the graph from scratch
func (s *bikeshareService) Refresh(ctx context.Context, sessionID string) (*usecase.SessionInfo, error) {
	snapshot, err := s.stations.Snapshot(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to refresh station data")
	}

	var info *usecase.SessionInfo
	err = s.sessions.with(sessionID, func(sess *session) error {
		sess.replaceSnapshot(snapshot, s.buildGraph(snapshot.Stations, sess.distance, nil))
		info = &usecase.SessionInfo{
			ID:        sess.id,
			Distance:  sess.distance,
			Stations:  len(sess.stations),
			FetchedAt: sess.fetchedAt,
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log(ctx).Info("Session refreshed",
		slog.String("session_id", sessionID),
		slog.Int("stations", info.Stations),
	)

	return info, nil
}

func (s *bikeshareService) buildGraph(stations []entity.Station, distance float64, previous *graph.Graph) *graph.Graph {
	started := time.Now()
	g := proximity.BuildGraph(stations, distance, previous)
	if s.metrics != nil {
		s.metrics.RecordGraphBuild(g.EdgeCount(), time.Since(started))
	}

	return g
}

func (s *bikeshareService) reportSessions() {
	if s.metrics != nil {
		s.metrics.SessionsActive.Set(float64(s.sessions.len()))
	}
}

func (s *bikeshareService) recordRoute(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordRoute(outcome)
	}
}

func (s *bikeshareService) recordPlan(outcome string, costKm float64, duration time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordPlan(outcome, costKm, duration)
	}
}
