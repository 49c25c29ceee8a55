// cmd/matchtui/main.go
//
// Terminal client: plays either game locally against the same controller
// the server uses, persisting best scores to a local SQLite file.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/matchgames/assets"
	"github.com/robalobadob/matchgames/internal/config"
	"github.com/robalobadob/matchgames/internal/daily"
	"github.com/robalobadob/matchgames/internal/db"
	"github.com/robalobadob/matchgames/internal/game"
	"github.com/robalobadob/matchgames/internal/rng"
	"github.com/robalobadob/matchgames/internal/scores"
)

type options struct {
	variant   string
	pairs     int
	choices   int
	timeLimit time.Duration
	dbPath    string
	sound     bool
	daily     bool
	logFile   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:   "matchtui",
		Short: "Play the memory and color guessing games in a terminal",
		Long: `matchtui runs a single game in the terminal.

  memory  flip two tiles at a time and find every pair in as few moves as possible
  guess   pick the option matching the target color; keep the streak going

Keys: arrows/hjkl move, enter/space pick, n next round, r restart,
R hard reset (forgets the best score), q quit.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.variant, "variant", "v", "memory", "game variant: memory or guess")
	f.IntVar(&o.pairs, "pairs", game.DefaultPairs, "memory: number of pairs")
	f.IntVar(&o.choices, "options", game.DefaultOptions, "guess: number of color options")
	f.DurationVarP(&o.timeLimit, "time-limit", "t", 0, "round time limit (0 disables the countdown)")
	f.StringVar(&o.dbPath, "db", defaultDBPath(), "score database path (empty keeps scores in memory)")
	f.BoolVar(&o.sound, "sound", true, "play sound effects")
	f.BoolVar(&o.daily, "daily", false, "play today's shared board")
	f.StringVar(&o.logFile, "log", "", "write logs to this file")
	return cmd
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "matchgames", "scores.db")
}

func run(cmd *cobra.Command, o options) error {
	cfg := config.Load()
	closeLog, err := setupLogging(cfg.LogLevel, o.logFile)
	if err != nil {
		return err
	}
	defer closeLog()

	variant, err := game.ParseVariant(o.variant)
	if err != nil {
		return err
	}

	kv := scores.NewMemoryKV()
	if o.dbPath != "" {
		sqldb, err := db.OpenMigrated(db.DriverPureGo, o.dbPath, assets.Migrations())
		if err != nil {
			return fmt.Errorf("open scores: %w", err)
		}
		defer sqldb.Close()
		kv = scores.NewSQLiteKV(sqldb)
	}
	store := scores.NewStore(kv).Scoped("local:")

	gc := game.Config{
		ID:              uuid.NewString(),
		Variant:         variant,
		Pairs:           o.pairs,
		Options:         o.choices,
		RevealDelay:     cfg.RevealDelay,
		TimeLimit:       o.timeLimit,
		LeaderboardSize: cfg.LeaderboardSize,
	}
	var src rng.Source
	if o.daily {
		now := time.Now()
		src = daily.Source(now, cfg.DailySalt)
		gc.ExtraLeaderboards = []string{daily.LeaderboardKey(string(variant), daily.DateKey(now))}
	}

	ctrl, err := game.NewController(cmd.Context(), gc, src, game.RealClock{}, store)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	snd := newSound(o.sound)
	defer snd.close()

	ui, err := newTUI(cmd.Context(), ctrl, snd)
	if err != nil {
		return err
	}
	return ui.run()
}

// setupLogging keeps the terminal clean: logs go to a file or nowhere.
func setupLogging(level, path string) (func(), error) {
	if lvl, err := zerolog.ParseLevel(level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if path == "" {
		log.Logger = zerolog.New(io.Discard)
		return func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.Logger = zerolog.New(f).With().Timestamp().Logger()
	return func() { _ = f.Close() }, nil
}
