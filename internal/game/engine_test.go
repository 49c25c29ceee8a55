package game

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/robalobadob/matchgames/internal/rng"
	"github.com/robalobadob/matchgames/internal/scores"
)

func newTestController(t *testing.T, cfg Config, store ScoreStore) (*Controller, *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	if cfg.ID == "" {
		cfg.ID = t.Name()
	}
	c, err := NewController(context.Background(), cfg, rng.NewSeeded(1), clk, store)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	t.Cleanup(c.Close)
	return c, clk
}

// setBoard replaces the dealt board with a fixed layout.
func setBoard(c *Controller, values ...Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.board = &Board{Tiles: tilesFor(values)}
}

func setGuessBoard(c *Controller, target int, values ...Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.board = &Board{Tiles: tilesFor(values), Target: values[target], HasTarget: true}
}

func activate(t *testing.T, c *Controller, id int, want bool) {
	t.Helper()
	if got := c.Activate(context.Background(), id); got != want {
		t.Fatalf("Activate(%d) = %v, want %v", id, got, want)
	}
}

func tileStates(s Snapshot) []TileState {
	out := make([]TileState, len(s.Tiles))
	for i, tv := range s.Tiles {
		out[i] = tv.State
	}
	return out
}

// Board [2,1,1,2]: a mismatch reverts after the delay, then a match commits.
func TestMismatchThenMatch(t *testing.T) {
	c, clk := newTestController(t, Config{Pairs: 2}, nil)
	setBoard(c, 2, 1, 1, 2)
	c.Start()

	activate(t, c, 0, true)
	if s := c.Snapshot(); s.Phase != PhaseAwaitingSecond || s.Stats.Moves != 0 {
		t.Fatalf("after first arm: phase %v moves %d", s.Phase, s.Stats.Moves)
	}

	activate(t, c, 1, true)
	s := c.Snapshot()
	if s.Phase != PhaseResolving || !s.Locked || s.Stats.Moves != 1 {
		t.Fatalf("after mismatch: phase %v locked %v moves %d", s.Phase, s.Locked, s.Stats.Moves)
	}
	if !reflect.DeepEqual(tileStates(s), []TileState{Armed, Armed, Hidden, Hidden}) {
		t.Fatalf("tiles during reveal: %v", tileStates(s))
	}
	if c.Pending() != 1 {
		t.Fatalf("pending = %d, want 1 revert", c.Pending())
	}

	clk.Advance(DefaultRevealDelay - time.Millisecond)
	if got := tileStates(c.Snapshot()); got[0] != Armed {
		t.Fatalf("reverted early: %v", got)
	}
	clk.Advance(time.Millisecond)
	s = c.Snapshot()
	if !reflect.DeepEqual(tileStates(s), []TileState{Hidden, Hidden, Hidden, Hidden}) {
		t.Fatalf("tiles after revert: %v", tileStates(s))
	}
	if s.Phase != PhaseAwaitingFirst || s.Locked || s.Stats.Moves != 1 {
		t.Fatalf("after revert: phase %v locked %v moves %d", s.Phase, s.Locked, s.Stats.Moves)
	}

	activate(t, c, 1, true)
	activate(t, c, 2, true)
	s = c.Snapshot()
	if !reflect.DeepEqual(tileStates(s), []TileState{Hidden, Matched, Matched, Hidden}) {
		t.Fatalf("tiles after match: %v", tileStates(s))
	}
	if s.Stats.Resolved != 1 || s.Stats.Moves != 2 || s.Locked || s.Phase != PhaseAwaitingFirst {
		t.Fatalf("after match: %+v locked %v phase %v", s.Stats, s.Locked, s.Phase)
	}
	if c.Pending() != 0 {
		t.Fatalf("match scheduled a revert")
	}
}

func TestLockedInputIsNoop(t *testing.T) {
	c, _ := newTestController(t, Config{Pairs: 2}, nil)
	setBoard(c, 2, 1, 1, 2)
	c.Start()
	activate(t, c, 0, true)
	activate(t, c, 1, true)

	before := c.Snapshot()
	for _, id := range []int{0, 1, 2, 3, -1, 4, 99} {
		activate(t, c, id, false)
	}
	if after := c.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Fatalf("locked input changed state:\n%+v\n%+v", before, after)
	}
}

func TestInputIgnoredOutsidePlay(t *testing.T) {
	c, _ := newTestController(t, Config{Pairs: 2}, nil)
	activate(t, c, 0, false) // idle
	c.Start()
	setBoard(c, 1, 1, 2, 2)
	activate(t, c, 0, true)
	activate(t, c, 0, false) // already armed
	activate(t, c, 1, true)
	activate(t, c, 1, false) // matched
	activate(t, c, 2, true)
	activate(t, c, 3, true)
	if s := c.Snapshot(); s.Phase != PhaseComplete {
		t.Fatalf("phase %v, want complete", s.Phase)
	}
	activate(t, c, 0, false) // complete
}

func TestResetCancelsPendingCallbacks(t *testing.T) {
	for _, ignoreStop := range []bool{false, true} {
		name := "stop honoured"
		if ignoreStop {
			name = "stop ignored"
		}
		t.Run(name, func(t *testing.T) {
			c, clk := newTestController(t, Config{Pairs: 2}, nil)
			clk.ignoreStop = ignoreStop
			c.Start()

			fired := 0
			c.mu.Lock()
			for i := 0; i < 5; i++ {
				c.schedule(time.Duration(i+1)*time.Second, func() { fired++ })
			}
			c.mu.Unlock()

			c.Reset()
			if c.Pending() != 0 {
				t.Fatalf("pending = %d after reset", c.Pending())
			}
			clk.Advance(time.Minute)
			if fired != 0 {
				t.Fatalf("%d stale callbacks fired", fired)
			}
		})
	}
}

func TestResetDuringRevertKeepsNewBoard(t *testing.T) {
	c, clk := newTestController(t, Config{Pairs: 2}, nil)
	clk.ignoreStop = true
	c.Start()
	setBoard(c, 2, 1, 1, 2)
	activate(t, c, 0, true)
	activate(t, c, 1, true)

	c.Reset()
	c.Start()
	setBoard(c, 1, 2, 1, 2)
	activate(t, c, 0, true)

	var events []Event
	c.Subscribe(func(e Event) { events = append(events, e) })
	clk.Advance(time.Minute)

	if len(events) != 0 {
		t.Fatalf("stale revert produced events: %+v", events)
	}
	s := c.Snapshot()
	if s.Tiles[0].State != Armed || s.Phase != PhaseAwaitingSecond {
		t.Fatalf("stale revert touched the new board: %v phase %v", tileStates(s), s.Phase)
	}
	if s.Stats.Moves != 0 {
		t.Fatalf("moves = %d after reset", s.Stats.Moves)
	}
}

// playMemory completes a [1,2,1,2] board in exactly moves moves (moves >= 2).
func playMemory(t *testing.T, c *Controller, clk *fakeClock, moves int) {
	t.Helper()
	setBoard(c, 1, 2, 1, 2)
	for i := 0; i < moves-2; i++ {
		activate(t, c, 0, true)
		activate(t, c, 1, true)
		clk.Advance(DefaultRevealDelay)
	}
	activate(t, c, 0, true)
	activate(t, c, 2, true)
	activate(t, c, 1, true)
	activate(t, c, 3, true)
}

func TestBestMovesOnlyImproves(t *testing.T) {
	ctx := context.Background()
	store := scores.NewStore(scores.NewMemoryKV())
	c, clk := newTestController(t, Config{Pairs: 2}, store)
	c.Start()

	playMemory(t, c, clk, 7)
	s := c.Snapshot()
	if s.Outcome == nil || s.Outcome.Kind != OutcomeWon || s.Outcome.Metric != 7 || !s.Outcome.Improved {
		t.Fatalf("first round outcome %+v", s.Outcome)
	}
	if v, ok := store.Load(ctx, "best-moves"); !ok || v != 7 {
		t.Fatalf("stored best = %d,%v want 7", v, ok)
	}

	c.NextRound()
	playMemory(t, c, clk, 9)
	s = c.Snapshot()
	if s.Outcome.Metric != 9 || s.Outcome.Improved {
		t.Fatalf("second round outcome %+v", s.Outcome)
	}
	if v, _ := store.Load(ctx, "best-moves"); v != 7 {
		t.Fatalf("stored best = %d, want 7", v)
	}
	if s.Best == nil || *s.Best != 7 {
		t.Fatalf("snapshot best = %v", s.Best)
	}

	c.NextRound()
	playMemory(t, c, clk, 4)
	if v, _ := store.Load(ctx, "best-moves"); v != 4 {
		t.Fatalf("stored best = %d, want 4", v)
	}

	lb := store.Leaderboard(ctx, "leaderboard:memory")
	if len(lb) != 3 || lb[0].Score != 4 || lb[1].Score != 7 || lb[2].Score != 9 {
		t.Fatalf("leaderboard = %+v", lb)
	}
}

// Two sessions of one player share a best key. The session that loaded
// "no best" earlier must not overwrite a better value saved since.
func TestSharedBestNeverRegresses(t *testing.T) {
	ctx := context.Background()
	store := scores.NewStore(scores.NewMemoryKV())
	a, clkA := newTestController(t, Config{ID: "a", Pairs: 2}, store)
	b, clkB := newTestController(t, Config{ID: "b", Pairs: 2}, store)
	a.Start()
	b.Start()

	playMemory(t, a, clkA, 2)
	if v, _ := store.Load(ctx, "best-moves"); v != 2 {
		t.Fatalf("best-moves after a = %d, want 2", v)
	}

	playMemory(t, b, clkB, 9)
	s := b.Snapshot()
	if s.Outcome == nil || s.Outcome.Metric != 9 || s.Outcome.Improved {
		t.Fatalf("b outcome %+v, want 9 moves not improved", s.Outcome)
	}
	if v, _ := store.Load(ctx, "best-moves"); v != 2 {
		t.Fatalf("best-moves after b = %d, want 2", v)
	}
	if s.Best == nil || *s.Best != 2 {
		t.Fatalf("b snapshot best = %v, want 2", s.Best)
	}

	// A best cleared elsewhere lets the next win count again.
	_ = store.Clear(ctx, "best-moves")
	a.NextRound()
	playMemory(t, a, clkA, 5)
	if s := a.Snapshot(); !s.Outcome.Improved {
		t.Fatalf("a outcome %+v after clear, want improved", s.Outcome)
	}
	if v, _ := store.Load(ctx, "best-moves"); v != 5 {
		t.Fatalf("best-moves after clear = %d, want 5", v)
	}
}

func TestBestSeededFromStore(t *testing.T) {
	ctx := context.Background()
	store := scores.NewStore(scores.NewMemoryKV())
	_ = store.Save(ctx, "best-streak", 4)
	c, _ := newTestController(t, Config{Variant: VariantGuess}, store)
	s := c.Snapshot()
	if s.Best == nil || *s.Best != 4 || s.Stats.BestStreak != 4 {
		t.Fatalf("best %v bestStreak %d, want 4", s.Best, s.Stats.BestStreak)
	}
}

func TestGuessStreak(t *testing.T) {
	ctx := context.Background()
	store := scores.NewStore(scores.NewMemoryKV())
	c, clk := newTestController(t, Config{Variant: VariantGuess, Options: 3}, store)
	red, green, blue := RGB{R: 255}.Value(), RGB{G: 255}.Value(), RGB{B: 255}.Value()

	c.Start()
	setGuessBoard(c, 1, red, green, blue)
	if s := c.Snapshot(); s.Target != "rgb(0, 255, 0)" {
		t.Fatalf("target = %q", s.Target)
	}
	activate(t, c, 1, true)
	s := c.Snapshot()
	if s.Phase != PhaseComplete || s.Outcome.Kind != OutcomeWon || s.Stats.Streak != 1 {
		t.Fatalf("correct guess: phase %v outcome %+v stats %+v", s.Phase, s.Outcome, s.Stats)
	}
	if v, _ := store.Load(ctx, "best-streak"); v != 1 {
		t.Fatalf("best-streak = %d, want 1", v)
	}

	c.NextRound()
	setGuessBoard(c, 2, red, green, blue)
	activate(t, c, 1, true)
	activate(t, c, 0, false) // locked during reveal
	s = c.Snapshot()
	if s.Stats.Streak != 0 || s.Stats.BestStreak != 1 || s.Tiles[1].State != Armed {
		t.Fatalf("wrong guess: stats %+v tile %v", s.Stats, s.Tiles[1].State)
	}
	if lb := store.Leaderboard(ctx, "leaderboard:guess"); len(lb) != 1 || lb[0].Score != 1 {
		t.Fatalf("ended streak not recorded: %+v", lb)
	}
	clk.Advance(DefaultRevealDelay)
	if s := c.Snapshot(); s.Tiles[1].State != Hidden || s.Phase != PhaseAwaitingFirst {
		t.Fatalf("after revert: %v phase %v", tileStates(s), s.Phase)
	}
	activate(t, c, 2, true)
	if s := c.Snapshot(); s.Stats.Streak != 1 || s.Outcome.Improved {
		t.Fatalf("repeat streak: stats %+v outcome %+v", s.Stats, s.Outcome)
	}
	if v, _ := store.Load(ctx, "best-streak"); v != 1 {
		t.Fatalf("best-streak = %d, want 1", v)
	}

	for i := 0; i < 2; i++ {
		c.NextRound()
		setGuessBoard(c, 0, red, green, blue)
		activate(t, c, 0, true)
	}
	if v, _ := store.Load(ctx, "best-streak"); v != 3 {
		t.Fatalf("best-streak = %d, want 3", v)
	}
}

func TestCountdownTimesOut(t *testing.T) {
	store := scores.NewStore(scores.NewMemoryKV())
	c, clk := newTestController(t, Config{Pairs: 2, TimeLimit: 3 * time.Second}, store)
	var ticks []int64
	var complete *Outcome
	c.Subscribe(func(e Event) {
		switch e.Kind {
		case EventCountdownTick:
			ticks = append(ticks, *e.RemainingMs)
		case EventRoundComplete:
			complete = e.Outcome
		}
	})

	c.Start()
	setBoard(c, 2, 1, 1, 2)
	clk.Advance(2500 * time.Millisecond)
	activate(t, c, 0, true)
	activate(t, c, 1, true) // mismatch: revert still pending when time runs out
	clk.Advance(500 * time.Millisecond)

	s := c.Snapshot()
	if s.Phase != PhaseComplete || s.Outcome == nil || s.Outcome.Kind != OutcomeTimedOut {
		t.Fatalf("phase %v outcome %+v", s.Phase, s.Outcome)
	}
	if !reflect.DeepEqual(ticks, []int64{2000, 1000, 0}) {
		t.Fatalf("ticks = %v", ticks)
	}
	if complete == nil || complete.Kind != OutcomeTimedOut {
		t.Fatalf("round complete event %+v", complete)
	}
	if c.Pending() != 0 {
		t.Fatalf("pending = %d after timeout", c.Pending())
	}
	if !reflect.DeepEqual(tileStates(s), []TileState{Hidden, Hidden, Hidden, Hidden}) {
		t.Fatalf("tiles after timeout: %v", tileStates(s))
	}
	if _, ok := store.Load(context.Background(), "best-moves"); ok {
		t.Fatalf("timeout saved a score")
	}
	activate(t, c, 2, false)
}

func TestHardResetClearsBest(t *testing.T) {
	ctx := context.Background()
	store := scores.NewStore(scores.NewMemoryKV())
	c, clk := newTestController(t, Config{Pairs: 2}, store)
	c.Start()
	playMemory(t, c, clk, 3)

	c.HardReset(ctx)
	s := c.Snapshot()
	if s.Best != nil || s.Phase != PhaseIdle || s.Stats != (Stats{}) {
		t.Fatalf("after hard reset: best %v phase %v stats %+v", s.Best, s.Phase, s.Stats)
	}
	if _, ok := store.Load(ctx, "best-moves"); ok {
		t.Fatalf("best-moves survived hard reset")
	}
	if lb := store.Leaderboard(ctx, "leaderboard:memory"); len(lb) != 0 {
		t.Fatalf("leaderboard survived hard reset: %+v", lb)
	}

	c.Start()
	playMemory(t, c, clk, 12)
	if v, _ := store.Load(ctx, "best-moves"); v != 12 {
		t.Fatalf("best-moves = %d after hard reset, want 12", v)
	}
}

func TestResetKeepsBestStreak(t *testing.T) {
	c, clk := newTestController(t, Config{Pairs: 2}, nil)
	c.Start()
	playMemory(t, c, clk, 2)
	c.Reset()
	s := c.Snapshot()
	if s.Stats.BestStreak != 2 || s.Stats.Streak != 0 || s.Stats.Moves != 0 || s.Stats.Resolved != 0 {
		t.Fatalf("stats after reset %+v", s.Stats)
	}
	if s.Phase != PhaseIdle || s.Outcome != nil {
		t.Fatalf("phase %v outcome %+v", s.Phase, s.Outcome)
	}
	for _, tv := range s.Tiles {
		if tv.State != Hidden || tv.Value != nil {
			t.Fatalf("tile not reset: %+v", tv)
		}
	}
}

func TestEventsInOrder(t *testing.T) {
	c, clk := newTestController(t, Config{Pairs: 2}, nil)
	var got []string
	unsubscribe := c.Subscribe(func(e Event) {
		switch e.Kind {
		case EventTileChanged:
			got = append(got, e.Tile.State.String())
		default:
			got = append(got, string(e.Kind))
		}
	})
	c.Start()
	setBoard(c, 2, 1, 1, 2)
	activate(t, c, 0, true)
	activate(t, c, 1, true)
	clk.Advance(DefaultRevealDelay)
	activate(t, c, 1, true)
	activate(t, c, 2, true)

	want := []string{"armed", "armed", "hidden", "hidden", "armed", "armed", "matched", "matched", "streak_changed"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v\nwant     %v", got, want)
	}

	unsubscribe()
	activate(t, c, 0, true)
	if len(got) != len(want) {
		t.Fatalf("listener called after unsubscribe")
	}
}

func TestListenerMayCallController(t *testing.T) {
	c, _ := newTestController(t, Config{Pairs: 1}, nil)
	var kinds []EventKind
	c.Subscribe(func(e Event) {
		kinds = append(kinds, e.Kind)
		if e.Kind == EventRoundComplete {
			c.NextRound()
			_ = c.Snapshot()
		}
	})
	c.Start()
	setBoard(c, 1, 1)
	activate(t, c, 0, true)

	done := make(chan struct{})
	go func() {
		c.Activate(context.Background(), 1)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Activate blocked on a listener that calls the controller")
	}

	want := []EventKind{
		EventTileChanged, EventTileChanged, EventTileChanged, EventTileChanged,
		EventStreakChanged, EventRoundComplete, EventBoardReplaced,
	}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("events = %v\nwant     %v", kinds, want)
	}
	if s := c.Snapshot(); s.Phase != PhaseAwaitingFirst || s.Outcome != nil {
		t.Fatalf("after next round from listener: phase %v outcome %+v", s.Phase, s.Outcome)
	}
}

func TestHiddenValuesStayHidden(t *testing.T) {
	c, _ := newTestController(t, Config{Pairs: 2}, nil)
	c.Start()
	setBoard(c, 2, 1, 1, 2)
	activate(t, c, 3, true)
	s := c.Snapshot()
	for _, tv := range s.Tiles {
		if tv.ID == 3 {
			if tv.Value == nil || *tv.Value != 2 {
				t.Fatalf("armed tile value %v", tv.Value)
			}
			continue
		}
		if tv.Value != nil {
			t.Fatalf("hidden tile %d leaks value %d", tv.ID, *tv.Value)
		}
	}
}

func TestClosedControllerIgnoresInput(t *testing.T) {
	c, clk := newTestController(t, Config{Pairs: 2, TimeLimit: time.Second}, nil)
	c.Start()
	c.Close()
	activate(t, c, 0, false)
	c.NextRound()
	clk.Advance(time.Minute)
	if s := c.Snapshot(); s.Phase != PhaseAwaitingFirst || s.Outcome != nil {
		t.Fatalf("closed controller moved: phase %v outcome %+v", s.Phase, s.Outcome)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"defaults", Config{}, true},
		{"guess defaults", Config{Variant: VariantGuess}, true},
		{"too many pairs", Config{Pairs: MaxPairs + 1}, false},
		{"negative pairs", Config{Pairs: -1}, false},
		{"one option", Config{Variant: VariantGuess, Options: 1}, false},
		{"unknown variant", Config{Variant: "whack"}, false},
		{"negative limit", Config{TimeLimit: -time.Second}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("got %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestParseVariant(t *testing.T) {
	if v, err := ParseVariant(""); err != nil || v != VariantMemory {
		t.Fatalf("empty: %v %v", v, err)
	}
	if v, err := ParseVariant("guess"); err != nil || v != VariantGuess {
		t.Fatalf("guess: %v %v", v, err)
	}
	if _, err := ParseVariant("typing"); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("typing: %v", err)
	}
}
