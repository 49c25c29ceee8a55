// internal/game/types.go
//
// Core type definitions for the matching games.
// Defines:
//   - TileState: per-tile visibility (hidden/armed/matched).
//   - Value, RGB: comparable tile keys (pair numbers or packed colors).
//   - Tile, Board: the shuffled playing field.
//   - Phase, Variant, Outcome, Stats: round controller state.

package game

import (
	"fmt"

	"github.com/robalobadob/matchgames/internal/scores"
)

// TileState is the visibility of a single tile.
type TileState int

const (
	Hidden TileState = iota
	Armed
	Matched
)

func (s TileState) String() string {
	switch s {
	case Hidden:
		return "hidden"
	case Armed:
		return "armed"
	case Matched:
		return "matched"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name for JSON views.
func (s TileState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *TileState) UnmarshalText(b []byte) error {
	for _, c := range []TileState{Hidden, Armed, Matched} {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown tile state %q", b)
}

// Value is the comparable key of a tile. Memory boards use pair numbers,
// guessing boards use colors packed as 0xRRGGBB.
type Value int

// RGB unpacks a color value.
func (v Value) RGB() RGB {
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}
}

// RGB is a 24-bit color.
type RGB struct {
	R, G, B uint8
}

// Value packs the color into a Value.
func (c RGB) Value() Value {
	return Value(int(c.R)<<16 | int(c.G)<<8 | int(c.B))
}

func (c RGB) String() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
}

// Tile is a single selectable unit on the board.
type Tile struct {
	ID    int       // position on the board, 0-based
	Value Value     // comparison key
	State TileState // mutated only by the Controller
}

// Board is the ordered set of tiles for one round.
type Board struct {
	Tiles     []Tile
	Target    Value // guessing variant only
	HasTarget bool
}

// AllMatched reports whether no tile is left to match.
func (b *Board) AllMatched() bool {
	for _, t := range b.Tiles {
		if t.State != Matched {
			return false
		}
	}
	return len(b.Tiles) > 0
}

// Phase is the round controller state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingFirst
	PhaseAwaitingSecond
	PhaseResolving
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingFirst:
		return "awaiting_first"
	case PhaseAwaitingSecond:
		return "awaiting_second"
	case PhaseResolving:
		return "resolving"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(b []byte) error {
	for c := PhaseIdle; c <= PhaseComplete; c++ {
		if c.String() == string(b) {
			*p = c
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// Variant selects the game rules.
type Variant string

const (
	// VariantMemory pairs two hidden tiles; fewer moves is better.
	VariantMemory Variant = "memory"
	// VariantGuess picks the option equal to a target color; longer streaks are better.
	VariantGuess Variant = "guess"
)

// ParseVariant maps user input onto a Variant. Empty input selects memory.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case "", VariantMemory:
		return VariantMemory, nil
	case VariantGuess:
		return VariantGuess, nil
	}
	return "", fmt.Errorf("%w: unknown variant %q", ErrInvalidConfig, s)
}

// Ranking returns the comparator used for this variant's best score.
func (v Variant) Ranking() scores.Ranking {
	if v == VariantGuess {
		return scores.HigherIsBetter
	}
	return scores.LowerIsBetter
}

// BestKey is the persistence key of this variant's best score.
func (v Variant) BestKey() string {
	if v == VariantGuess {
		return "best-streak"
	}
	return "best-moves"
}

// LeaderboardKey is the persistence key of this variant's leaderboard.
func (v Variant) LeaderboardKey() string {
	return "leaderboard:" + string(v)
}

// OutcomeKind tags how a round ended.
type OutcomeKind string

const (
	OutcomeWon      OutcomeKind = "won"
	OutcomeTimedOut OutcomeKind = "timed_out"
)

// Outcome is the result of a completed round. Metric is the variant's score
// (moves or streak) and is only meaningful for OutcomeWon.
type Outcome struct {
	Kind      OutcomeKind `json:"kind"`
	Metric    int         `json:"metric"`
	Improved  bool        `json:"improved"` // metric beat the stored best
	ElapsedMs int64       `json:"elapsedMs"`
}

// Stats are the per-round counters.
type Stats struct {
	Moves      int `json:"moves"`
	Resolved   int `json:"resolved"` // matched pairs or correct guesses
	Streak     int `json:"streak"`
	BestStreak int `json:"bestStreak"`
}
