package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/faceoff/internal/config"
	"github.com/mcdev12/faceoff/internal/gateway"
	"github.com/mcdev12/faceoff/internal/identity"
	"github.com/mcdev12/faceoff/internal/registry"
	"github.com/mcdev12/faceoff/internal/storage"
	"github.com/mcdev12/faceoff/internal/tournament"
	"github.com/mcdev12/faceoff/internal/uploads"
	"github.com/mcdev12/faceoff/internal/votelock"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var store tournament.Store
	if cfg.DBPath != "" {
		boltStore, err := storage.NewBoltStore(cfg.DBPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
		}
		defer boltStore.Close()
		store = boltStore
		log.Info().Str("path", cfg.DBPath).Msg("using bbolt store")
	} else {
		store = storage.NewMemoryStore()
		log.Info().Msg("using in-memory store")
	}

	blobs, err := uploads.NewDirStore(cfg.UploadDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.UploadDir).Msg("failed to open upload store")
	}

	deriver := identity.NewDeriver([]byte(cfg.Secret))
	reg := registry.NewRegistry()
	manager := gateway.NewManager(gateway.DefaultConnectionConfig(), reg)
	service := gateway.NewService(manager, deriver, store, cfg.AdminKey, cfg.SecondsPerMatch)

	ledger := votelock.NewLedger()
	orch := tournament.New(store, blobs, ledger, service, nil, nil)
	service.SetOrchestrator(orch)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go service.Start(ctx)

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: service.Handler(),
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("faceoff listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
