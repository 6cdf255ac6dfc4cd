package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"crm-messaging-api/internal/api"
	"crm-messaging-api/internal/audience"
	"crm-messaging-api/internal/config"
	"crm-messaging-api/internal/delivery"
	"crm-messaging-api/internal/listener"
	"crm-messaging-api/internal/storage"
)

func Run(cfg config.Config) {
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	store, err := storage.NewPostgres(rootCtx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init storage")
	}
	defer store.Close()

	// Audience snapshot
	aud := audience.NewEngine()
	if err := aud.Refresh(rootCtx, store); err != nil {
		log.Fatal().Err(err).Msg("initial audience snapshot")
	}

	// Delivery
	runner := delivery.NewRunner(store, delivery.SimulatedVendor{}, cfg.Delivery.Workers)

	// HTTP
	h := api.NewHandler(store, aud, runner)
	r := api.Router(h)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Listener (LISTEN/NOTIFY)
	go listener.ListenAndRefresh(rootCtx, store, aud, cfg.Listener.Channel, cfg.Backoff())

	// Scheduler for timed campaigns
	go runner.RunScheduler(rootCtx, cfg.SchedulerInterval())

	// Server goroutine
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server crashed")
		}
	}()

	// Wait for signal
	waitForSignal()
	log.Info().Msg("shutdown...")

	// Graceful shutdown
	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	cancel() // stop background goroutines
	_ = srv.Shutdown(shCtx)
	runner.Drain()
}

func waitForSignal() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
