package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/fidely/fidely-api/internal/config"
	"github.com/fidely/fidely-api/internal/domain/customer"
	"github.com/fidely/fidely-api/internal/domain/membership"
	"github.com/fidely/fidely-api/internal/domain/notification"
	"github.com/fidely/fidely-api/internal/domain/program"
	"github.com/fidely/fidely-api/internal/domain/review"
	"github.com/fidely/fidely-api/internal/domain/reward"
	"github.com/fidely/fidely-api/internal/domain/stamp"
	"github.com/fidely/fidely-api/internal/domain/tenant"
	"github.com/fidely/fidely-api/internal/domain/visit"
	"github.com/fidely/fidely-api/internal/middleware"
	"github.com/fidely/fidely-api/internal/pkg/database"
	"github.com/fidely/fidely-api/internal/pkg/jwt"
	"github.com/fidely/fidely-api/internal/pkg/logger"
	"github.com/fidely/fidely-api/internal/pkg/push"
	pkgresponse "github.com/fidely/fidely-api/internal/pkg/response"
)

const notifyDedupeTTL = 24 * time.Hour

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Fidely API")

	db, err := database.NewPostgres(context.Background(), cfg.DatabaseURL, database.APIPool)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), time.Minute)
	if err := database.Migrate(migrateCtx, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}
	cancelMigrate()

	rdb, err := database.NewRedis(context.Background(), cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(rdb)

	publisher := newPublisher(cfg)
	defer publisher.Close()

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// ---------- Repositories ----------
	tenantRepo := tenant.NewRepository(db)
	programRepo := program.NewRepository(db)
	customerRepo := customer.NewRepository(db)
	stampRepo := stamp.NewRepository(db)
	membershipRepo := membership.NewRepository(db)
	rewardRepo := reward.NewRepository(db)
	reviewRepo := review.NewRepository(db)

	// ---------- Services ----------
	notifier := notification.NewNotifier(publisher, reviewRepo, newDeduper(rdb), cfg.ReviewDelay)
	visitService := visit.NewService(
		customerRepo,
		programRepo,
		stampRepo,
		membershipRepo,
		reward.NewIssuer(rewardRepo),
		visit.NewLimiter(rdb, cfg.VisitRateLimit),
		notifier,
		visit.Options{
			GeofenceRadius: cfg.GeofenceRadiusMeters,
			Timeout:        cfg.VisitTimeout,
			Location:       cfg.Location(),
		},
	)

	// ---------- Handlers ----------
	visitHandler := visit.NewHandler(visitService)
	tenantHandler := tenant.NewHandler(tenantRepo)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			pkgresponse.OK(w, map[string]string{"message": "pong"})
		})

		mountVisitRoutes(r, visitHandler, middleware.StaffAuth(jwtService))
		r.Mount("/tenants", tenantHandler.Routes())
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	notifier.Wait()

	log.Info().Msg("Server exited properly")
}

func mountVisitRoutes(r chi.Router, h *visit.Handler, staffAuth func(http.Handler) http.Handler) {
	r.Mount("/visits", h.Routes())
	r.Mount("/staff/visits", h.StaffRoutes(staffAuth))
}

func newPublisher(cfg *config.Config) push.Publisher {
	if cfg.AMQPURL == "" {
		log.Warn().Msg("AMQP URL not configured, push messages will be dropped")
		return push.NopPublisher{}
	}
	return push.NewAMQPPublisher(cfg.AMQPURL, cfg.PushQueue)
}

// newDeduper returns nil without Redis so the notifier skips the guard
func newDeduper(rdb *redis.Client) notification.Deduper {
	if rdb == nil {
		return nil
	}
	return notification.NewRedisDeduper(rdb, notifyDedupeTTL)
}
