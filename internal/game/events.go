package game

// EventKind names a UI update notification.
type EventKind string

const (
	EventTileChanged   EventKind = "tile_changed"
	EventStreakChanged EventKind = "streak_changed"
	EventRoundComplete EventKind = "round_complete"
	EventCountdownTick EventKind = "countdown_tick"
	EventBoardReplaced EventKind = "board_replaced"
)

// Event is a notification produced by the Controller for the view layer.
// Exactly one payload field is set, matching Kind.
type Event struct {
	Kind       EventKind `json:"kind"`
	Generation uint64    `json:"generation"`

	Tile        *TileView   `json:"tile,omitempty"`
	Streak      *StreakView `json:"streak,omitempty"`
	Outcome     *Outcome    `json:"outcome,omitempty"`
	Stats       *Stats      `json:"stats,omitempty"`
	RemainingMs *int64      `json:"remainingMs,omitempty"`
}

// StreakView carries the current and best streak.
type StreakView struct {
	Streak     int `json:"streak"`
	BestStreak int `json:"bestStreak"`
}

// Listener receives events in the order they were produced. See
// Controller.Subscribe for the delivery rules.
type Listener func(Event)
