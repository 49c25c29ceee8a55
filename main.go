// main.go
//
// Entry point for the matchgames HTTP server.
// Loads configuration, opens + migrates the database, wires the session
// registry into the HTTP server and evicts idle sessions in the background.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/matchgames/assets"
	"github.com/robalobadob/matchgames/internal/config"
	"github.com/robalobadob/matchgames/internal/db"
	"github.com/robalobadob/matchgames/internal/httpserver"
	"github.com/robalobadob/matchgames/internal/store"
)

func main() {
	cfg := config.Load()
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if !cfg.Production {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	sqldb, err := db.OpenMigrated(cfg.DBDriver, cfg.DBPath, assets.Migrations())
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	defer sqldb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := httpserver.New(cfg, store.NewMemoryStore(), sqldb)
	go srv.SweepSessions(ctx, time.Minute)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("starting matchgames server")
		if err := srv.Start(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("server exited")
		}
	}()
	<-ctx.Done()
	log.Info().Msg("shutting down")
}
