package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fidely/fidely-api/internal/config"
	"github.com/fidely/fidely-api/internal/domain/customer"
	"github.com/fidely/fidely-api/internal/domain/membership"
	"github.com/fidely/fidely-api/internal/domain/review"
	"github.com/fidely/fidely-api/internal/domain/stamp"
	"github.com/fidely/fidely-api/internal/domain/visit"
	"github.com/fidely/fidely-api/internal/pkg/database"
	"github.com/fidely/fidely-api/internal/pkg/logger"
	"github.com/fidely/fidely-api/internal/pkg/push"
	"github.com/fidely/fidely-api/internal/worker"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	log.Info().Msg("Starting ledger-worker")

	db, err := database.NewPostgres(context.Background(), cfg.DatabaseURL, database.WorkerPool)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	var publisher push.Publisher = push.NopPublisher{}
	if cfg.AMQPURL != "" {
		publisher = push.NewAMQPPublisher(cfg.AMQPURL, cfg.PushQueue)
	} else {
		log.Warn().Msg("AMQP URL not configured, review requests will be dropped")
	}
	defer publisher.Close()

	stampRepo := stamp.NewRepository(db)
	customerRepo := customer.NewRepository(db)
	membershipRepo := membership.NewRepository(db)
	reviewRepo := review.NewRepository(db)

	scheduler := worker.NewScheduler(
		visit.NewSweeper(stampRepo, customerRepo, cfg.OrphanGrace),
		membershipRepo,
		review.NewDispatcher(reviewRepo, publisher),
		worker.Intervals{
			Sweep:   cfg.SweepInterval,
			Expiry:  time.Hour,
			Reviews: time.Minute,
		},
	)
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule jobs")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Info().Msg("Shutting down ledger-worker...")
	scheduler.Stop()
	log.Info().Msg("ledger-worker stopped")
}
