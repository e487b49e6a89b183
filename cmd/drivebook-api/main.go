// README: Entry point; loads config, wires services and serves the HTTP API until SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"drivebook/internal/config"
	httptransport "drivebook/internal/http"
	"drivebook/internal/infra"
	"drivebook/internal/logger"
	"drivebook/internal/maps"
	"drivebook/internal/modules/booking"
	"drivebook/internal/modules/catalog"
	"drivebook/internal/modules/dispatch"
	"drivebook/internal/modules/fare"
	"drivebook/internal/modules/matching"
	"drivebook/internal/modules/notify"
)

func main() {
	if err := run(); err != nil {
		slog.Error("drivebook-api exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Init("drivebook-api", cfg.Log.Level, os.Stdout)
	if cfg.HTTP.GinMode != "" {
		gin.SetMode(cfg.HTTP.GinMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifier, err := newVerifier(ctx, cfg.Auth)
	if err != nil {
		return err
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	if cfg.DB.Migrate {
		applied, err := infra.Migrate(ctx, dbPool, cfg.DB.MigrationsDir)
		if err != nil {
			return err
		}
		slog.Info("migrations applied", slog.Any("files", applied))
	}

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	publisher, closePublisher, err := newPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePublisher()

	var router fare.Router = unavailableRouter{}
	if cfg.Maps.APIKey != "" {
		rs, err := maps.NewRouteService(cfg.Maps.APIKey, cfg.Maps.Region)
		if err != nil {
			return err
		}
		router = rs
	} else {
		slog.Warn("GOOGLE_MAPS_API_KEY not set; fare estimates will fail")
	}

	surge, err := fare.PolicyFromConfig(cfg.Fare.Surge, rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	if err != nil {
		return err
	}

	catalogSvc := catalog.NewService(catalog.NewStore(dbPool))
	fareSvc := fare.NewService(router, catalogSvc, cfg.Fare, surge)
	bookingSvc := booking.NewService(booking.NewStore(dbPool), fareSvc, catalogSvc)
	matchingSvc := matching.NewService(matching.NewStore(dbPool), matching.NewDispatchStore(redisClient))
	dispatchSvc := dispatch.NewService(dispatch.NewStore(dbPool), bookingSvc, matchingSvc, publisher)

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Booking:        bookingSvc,
		Fare:           fareSvc,
		Catalog:        catalogSvc,
		Dispatch:       dispatchSvc,
		Matching:       matchingSvc,
		Verifier:       verifier,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})

	return httptransport.NewServer(cfg.HTTP.Addr, handler).Run(ctx)
}

func newVerifier(ctx context.Context, cfg config.AuthConfig) (infra.TokenVerifier, error) {
	if cfg.Provider == "firebase" {
		return infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	}
	return infra.NewJWTVerifier(cfg.JWT.Secret, cfg.JWT.Issuer)
}

// newPublisher returns the no-op publisher when no broker URL is configured.
func newPublisher(ctx context.Context, cfg config.Config) (notify.Publisher, func(), error) {
	if cfg.AMQP.URL == "" {
		slog.Info("DRIVEBOOK_AMQP_URL not set; booking notifications disabled")
		return notify.Nop{}, func() {}, nil
	}
	conn, err := infra.NewAMQP(ctx, cfg.AMQP.URL, 5)
	if err != nil {
		return nil, nil, err
	}
	pub, err := notify.NewAMQPPublisher(conn.Channel, cfg.AMQP.Exchange)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return pub, func() { _ = conn.Close() }, nil
}

type unavailableRouter struct{}

func (unavailableRouter) Route(context.Context, string, string) (maps.Route, error) {
	return maps.Route{}, errors.New("maps api key not configured")
}
