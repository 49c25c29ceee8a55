package game

import (
	"fmt"

	"github.com/robalobadob/matchgames/internal/rng"
	"github.com/robalobadob/matchgames/internal/shuffle"
)

// NewPairBoard builds 2*pairs tiles where every value 1..pairs appears
// exactly twice, in shuffled order.
func NewPairBoard(src rng.Source, pairs int) (*Board, error) {
	if pairs < 1 {
		return nil, fmt.Errorf("%w: pairs must be positive, got %d", ErrInvalidConfig, pairs)
	}
	values := make([]Value, 0, 2*pairs)
	for v := 1; v <= pairs; v++ {
		values = append(values, Value(v), Value(v))
	}
	shuffle.Shuffle(src, values)
	return &Board{Tiles: tilesFor(values)}, nil
}

// NewGuessBoard builds options distinct random colors and picks one of them
// as the target.
func NewGuessBoard(src rng.Source, options int) (*Board, error) {
	if options < 2 {
		return nil, fmt.Errorf("%w: options must be at least 2, got %d", ErrInvalidConfig, options)
	}
	seen := make(map[Value]struct{}, options)
	values := make([]Value, 0, options)
	for len(values) < options {
		c := RGB{R: uint8(src.Intn(256)), G: uint8(src.Intn(256)), B: uint8(src.Intn(256))}
		v := c.Value()
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	return &Board{
		Tiles:     tilesFor(values),
		Target:    values[src.Intn(len(values))],
		HasTarget: true,
	}, nil
}

func tilesFor(values []Value) []Tile {
	tiles := make([]Tile, len(values))
	for i, v := range values {
		tiles[i] = Tile{ID: i, Value: v, State: Hidden}
	}
	return tiles
}
