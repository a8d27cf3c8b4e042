package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vetclinic/vetsched/internal/config"
	"github.com/vetclinic/vetsched/internal/domain/availability"
	"github.com/vetclinic/vetsched/internal/domain/party"
	"github.com/vetclinic/vetsched/internal/domain/treatment"
	"github.com/vetclinic/vetsched/internal/domain/visit"
	"github.com/vetclinic/vetsched/internal/platform/db"
	"github.com/vetclinic/vetsched/internal/platform/middleware"
	"github.com/vetclinic/vetsched/internal/platform/openapi"
	"github.com/vetclinic/vetsched/internal/platform/slotlock"
)

const version = "0.1.0"

// app holds the HTTP server and the resources it must release.
type app struct {
	echo    *echo.Echo
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type repositories struct {
	persons    party.PersonRepository
	pets       party.PetRepository
	treatments treatment.Repository
	windows    availability.WindowRepository
	exceptions availability.ExceptionRepository
	visits     visit.Repository
	history    visit.HistoryRepository
	tx         db.Transactor
}

func memoryRepositories() repositories {
	return repositories{
		persons:    party.NewPersonRepoMemory(),
		pets:       party.NewPetRepoMemory(),
		treatments: treatment.NewRepoMemory(),
		windows:    availability.NewWindowRepoMemory(),
		exceptions: availability.NewExceptionRepoMemory(),
		visits:     visit.NewRepoMemory(),
		history:    visit.NewHistoryRepoMemory(),
		tx:         db.NopTx{},
	}
}

func postgresRepositories(pool *pgxpool.Pool) repositories {
	return repositories{
		persons:    party.NewPersonRepoPG(pool),
		pets:       party.NewPetRepoPG(pool),
		treatments: treatment.NewRepoPG(pool),
		windows:    availability.NewWindowRepoPG(pool),
		exceptions: availability.NewExceptionRepoPG(pool),
		visits:     visit.NewRepoPG(pool),
		history:    visit.NewHistoryRepoPG(pool),
		tx:         db.NewTxManager(pool),
	}
}

func newLocker(cfg *config.Config, logger zerolog.Logger) (slotlock.Locker, func(), error) {
	if cfg.SlotLock != config.LockRedis {
		return slotlock.NewLocal(cfg.SlotLockWait), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	return slotlock.NewRedis(client, cfg.SlotLockTTL, cfg.SlotLockWait, logger), func() { client.Close() }, nil
}

// newApp wires the configured backend into services and mounts their routes.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{}

	var repos repositories
	var pool *pgxpool.Pool
	switch cfg.StoreBackend {
	case config.BackendMemory:
		repos = memoryRepositories()
		logger.Warn().Msg("using in-memory store; data is lost on restart")
	default:
		var err error
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBSchema, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		logger.Info().Str("schema", cfg.DBSchema).Msg("connected to database")
		repos = postgresRepositories(pool)
	}

	locker, closeLocker, err := newLocker(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeLocker)

	loc, err := cfg.Location()
	if err != nil {
		a.Close()
		return nil, err
	}

	partySvc := party.NewService(repos.persons, repos.pets)
	treatmentSvc := treatment.NewService(repos.treatments)
	availSvc := availability.NewService(repos.windows, repos.exceptions, partySvc, repos.tx)
	visitSvc := visit.NewService(repos.visits, repos.history, partySvc, treatmentSvc, availSvc, locker, repos.tx, visit.Options{
		Location:       loc,
		WalkInDuration: cfg.WalkInDurationMinutes,
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
			"backend": cfg.StoreBackend,
		})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}))

	party.NewHandler(partySvc).RegisterRoutes(apiV1)
	treatment.NewHandler(treatmentSvc).RegisterRoutes(apiV1)
	availability.NewHandler(availSvc).RegisterRoutes(apiV1)
	visit.NewHandler(visitSvc).RegisterRoutes(apiV1)

	openapi.NewGenerator(e, "vetsched API", version, "/api/v1").RegisterRoutes(e.Group(""))

	a.echo = e
	return a, nil
}
