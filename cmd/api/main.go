package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/fieldops-backend/api/routes"
	"github.com/angelmondragon/fieldops-backend/internal/assignments"
	"github.com/angelmondragon/fieldops-backend/internal/geocoding"
	"github.com/angelmondragon/fieldops-backend/internal/routing"
	"github.com/angelmondragon/fieldops-backend/internal/stores"
	"github.com/angelmondragon/fieldops-backend/internal/telemetry"
	"github.com/angelmondragon/fieldops-backend/internal/users"
	"github.com/angelmondragon/fieldops-backend/internal/worklog"
	"github.com/angelmondragon/fieldops-backend/pkg/config"
	"github.com/angelmondragon/fieldops-backend/pkg/db"
	"github.com/angelmondragon/fieldops-backend/pkg/env"
	"github.com/angelmondragon/fieldops-backend/pkg/events"
	"github.com/angelmondragon/fieldops-backend/pkg/geo"
	"github.com/angelmondragon/fieldops-backend/pkg/instance"
	"github.com/angelmondragon/fieldops-backend/pkg/locks"
	"github.com/angelmondragon/fieldops-backend/pkg/logger"
	"github.com/angelmondragon/fieldops-backend/pkg/maps"
	"github.com/angelmondragon/fieldops-backend/pkg/metrics"
	"github.com/angelmondragon/fieldops-backend/pkg/migrate"
	"github.com/angelmondragon/fieldops-backend/pkg/ors"
	"github.com/angelmondragon/fieldops-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	assignmentLocks, totalsLocks, err := buildLockers(cfg, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create lockers", err)
		os.Exit(1)
	}

	routingMetrics := metrics.NewRoutingMetrics(prometheus.DefaultRegisterer)
	calculator, err := buildCalculator(cfg, logg, routingMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create route calculator", err)
		os.Exit(1)
	}

	reconciler, err := telemetry.NewReconciler(telemetry.NewRepository(dbClient.DB()), cfg.Assignments.ReturnRadiusKm, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create gps reconciler", err)
		os.Exit(1)
	}

	userRepo := users.NewRepository(dbClient.DB())
	ledger, err := worklog.NewService(worklog.NewRepository(dbClient.DB()), userRepo, totalsLocks, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create work log service", err)
		os.Exit(1)
	}

	publisher, closePublisher, err := buildPublisher(cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create event publisher", err)
		os.Exit(1)
	}
	defer closePublisher()

	assignmentService, err := assignments.NewService(assignments.Deps{
		Repo:       assignments.NewRepository(dbClient.DB()),
		Tx:         dbClient,
		Users:      userRepo,
		Stores:     stores.NewRepository(dbClient.DB()),
		Ledger:     ledger,
		Reconciler: reconciler,
		Routes:     calculator,
		Locker:     assignmentLocks,
		Events:     publisher,
		Metrics:    metrics.NewAssignmentMetrics(prometheus.DefaultRegisterer),
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create assignment service", err)
		os.Exit(1)
	}

	addr := ":" + env.Get("PORT", cfg.App.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			DB:          dbClient,
			Redis:       redisClient,
			Assignments: assignmentService,
			Ledger:      ledger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}

// buildLockers returns the per-assignment and per-user lockers. Keys live under
// the shared lock namespace so the cron worker contends on the same totals keys.
func buildLockers(cfg *config.Config, client *redis.Client) (locks.Locker, locks.Locker, error) {
	if cfg.FeatureFlags.LocalLocks {
		return locks.NewLocalLocker(), locks.NewLocalLocker(), nil
	}
	assignmentLocks, err := locks.NewRedisLocker(client, client.LockKey("", ""), cfg.Assignments.LockTTL)
	if err != nil {
		return nil, nil, err
	}
	totalsLocks, err := locks.NewRedisLocker(client, client.LockKey("", ""), cfg.Assignments.TotalsLockTTL)
	if err != nil {
		return nil, nil, err
	}
	return assignmentLocks, totalsLocks, nil
}

func buildCalculator(cfg *config.Config, logg *logger.Logger, m *metrics.RoutingMetrics) (routing.Calculator, error) {
	var providers []geocoding.Provider
	if key := cfg.Geocoding.GoogleMapsAPIKey; key != "" {
		client, err := maps.NewClient(key, maps.WithRegion(cfg.Geocoding.Region))
		if err != nil {
			return nil, err
		}
		providers = append(providers, geocoding.NewGoogleProvider(client))
	}

	params := routing.Params{
		Depot: routing.Stop{
			Label:   cfg.Depot.Name,
			Address: cfg.Depot.Address,
		},
		AssumedSpeedKmh:    cfg.Routing.AssumedSpeedKmh,
		ProviderTimeout:    cfg.Routing.Timeout,
		GeocodeTimeout:     cfg.Geocoding.Timeout,
		GeocodeConcurrency: cfg.Geocoding.Concurrency,
		Logger:             logg,
		Metrics:            m,
	}
	if cfg.Depot.HasCoordinates() {
		params.Depot.Coordinates = &geo.Coordinates{Lat: *cfg.Depot.Lat, Lng: *cfg.Depot.Lng}
	}

	if cfg.Routing.ProviderEnabled() {
		client, err := ors.NewClient(cfg.Routing.ORSAPIKey,
			ors.WithBaseURL(cfg.Routing.ORSBaseURL),
			ors.WithProfile(cfg.Routing.Profile),
			ors.WithRateLimit(cfg.Routing.RequestsPerSecond),
		)
		if err != nil {
			return nil, err
		}
		providers = append(providers, geocoding.NewORSProvider(client))
		params.Provider = client
	}

	params.Geocoder = geocoding.NewChain(logg, m, providers...)
	return routing.NewCalculator(params)
}

func buildPublisher(cfg *config.Config, logg *logger.Logger) (events.Publisher, func(), error) {
	if !cfg.Events.Enabled() {
		return events.Noop{}, func() {}, nil
	}
	publisher, err := events.NewRabbitPublisher(cfg.Events.RabbitMQURL, cfg.Events.Exchange, logg)
	if err != nil {
		return nil, nil, err
	}
	return publisher, func() {
		if err := publisher.Close(); err != nil {
			logg.Error(context.Background(), "error closing event publisher", err)
		}
	}, nil
}
