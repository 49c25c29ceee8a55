package game

// TileView is the client-facing representation of a tile. Memory values stay
// hidden until the tile is armed or matched; guessing colors are always
// shown.
type TileView struct {
	ID    int       `json:"id"`
	State TileState `json:"state"`
	Value *Value    `json:"value,omitempty"`
	Color string    `json:"color,omitempty"`
}

// Snapshot is an immutable copy of the controller state.
type Snapshot struct {
	ID          string     `json:"id"`
	Variant     Variant    `json:"variant"`
	Phase       Phase      `json:"phase"`
	Generation  uint64     `json:"generation"`
	Tiles       []TileView `json:"tiles"`
	Target      string     `json:"target,omitempty"` // guessing variant
	Locked      bool       `json:"locked"`
	Stats       Stats      `json:"stats"`
	RemainingMs int64      `json:"remainingMs"`
	TimeLimitMs int64      `json:"timeLimitMs"`
	Best        *int       `json:"best,omitempty"`
	Outcome     *Outcome   `json:"outcome,omitempty"`
}

// Snapshot returns the current state for rendering.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		ID:          c.cfg.ID,
		Variant:     c.cfg.Variant,
		Phase:       c.phase,
		Generation:  c.generation,
		Tiles:       make([]TileView, len(c.board.Tiles)),
		Locked:      c.tracker.Locked(),
		Stats:       c.stats,
		RemainingMs: c.remaining.Milliseconds(),
		TimeLimitMs: c.cfg.TimeLimit.Milliseconds(),
	}
	for i, t := range c.board.Tiles {
		s.Tiles[i] = c.tileView(t)
	}
	if c.board.HasTarget {
		s.Target = c.board.Target.RGB().String()
	}
	if c.hasBest {
		best := c.best
		s.Best = &best
	}
	if c.outcome != nil {
		o := *c.outcome
		s.Outcome = &o
	}
	return s
}

func (c *Controller) tileView(t Tile) TileView {
	v := TileView{ID: t.ID, State: t.State}
	if c.cfg.Variant == VariantGuess {
		val := t.Value
		v.Value = &val
		v.Color = t.Value.RGB().String()
		return v
	}
	if t.State != Hidden {
		val := t.Value
		v.Value = &val
	}
	return v
}
