package main

import (
	"context"
	"log/slog"
	"os"

	"bikeshare/config"
	"bikeshare/internal/delivery"
	"bikeshare/internal/delivery/api"
	"bikeshare/internal/delivery/api/router/handler"
	"bikeshare/internal/domain/service"
	"bikeshare/internal/infra/geocoding"
	logs "bikeshare/internal/infra/log"
	"bikeshare/internal/infra/metrics"
	"bikeshare/internal/infra/stations"
	"bikeshare/internal/usecase/impl"

	"go.uber.org/fx"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectService(),
		injectUsecase(),
		injectDelivery(),
		injectHandler(),
		fx.Invoke(
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
		context.Background,
		metrics.NewRegistry,
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			newStationSource,
			newGeocoder,
		),
	)
}

// newStationSource reads GBFS feeds over HTTP or from a blob bucket
func newStationSource(cfg *config.Config, logger *slog.Logger, registry *metrics.Registry) service.StationSource {
	return stations.New(cfg.Stations, logger, registry)
}

// newGeocoder resolves addresses with a Nominatim-compatible endpoint
func newGeocoder(cfg *config.Config, logger *slog.Logger) service.Geocoder {
	return geocoding.New(cfg.Geocoding, logger)
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewBikeshareService,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewSessionHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				api.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))
				os.Exit(1)
			}
		}()
	}
}
