package game

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned for configurations that cannot build a board.
var ErrInvalidConfig = errors.New("invalid game config")

const (
	DefaultPairs       = 8
	DefaultOptions     = 6
	DefaultRevealDelay = 850 * time.Millisecond
	DefaultTick        = time.Second

	MaxPairs   = 32
	MaxOptions = 16
)

// Config describes one game session.
type Config struct {
	ID          string        // session identifier, used in logs
	Variant     Variant       // memory or guess
	Pairs       int           // memory: number of pairs on the board
	Options     int           // guess: number of color options
	RevealDelay time.Duration // delay before mismatched tiles flip back
	TimeLimit   time.Duration // 0 disables the countdown
	Tick        time.Duration // countdown granularity

	// LeaderboardSize bounds every leaderboard written by the session.
	LeaderboardSize int
	// ExtraLeaderboards receive every won metric in addition to the
	// variant's own leaderboard (e.g. the daily board).
	ExtraLeaderboards []string
}

func (c Config) withDefaults() Config {
	if c.Variant == "" {
		c.Variant = VariantMemory
	}
	if c.Pairs == 0 {
		c.Pairs = DefaultPairs
	}
	if c.Options == 0 {
		c.Options = DefaultOptions
	}
	if c.RevealDelay == 0 {
		c.RevealDelay = DefaultRevealDelay
	}
	if c.Tick == 0 {
		c.Tick = DefaultTick
	}
	return c
}

// Validate checks the configuration after defaults are applied.
func (c Config) Validate() error {
	c = c.withDefaults()
	switch c.Variant {
	case VariantMemory:
		if c.Pairs < 1 || c.Pairs > MaxPairs {
			return fmt.Errorf("%w: pairs must be 1..%d, got %d", ErrInvalidConfig, MaxPairs, c.Pairs)
		}
	case VariantGuess:
		if c.Options < 2 || c.Options > MaxOptions {
			return fmt.Errorf("%w: options must be 2..%d, got %d", ErrInvalidConfig, MaxOptions, c.Options)
		}
	default:
		return fmt.Errorf("%w: unknown variant %q", ErrInvalidConfig, c.Variant)
	}
	if c.RevealDelay < 0 || c.TimeLimit < 0 || c.Tick < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	return nil
}
