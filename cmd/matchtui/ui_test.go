package main

import (
	"context"
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/robalobadob/matchgames/internal/game"
	"github.com/robalobadob/matchgames/internal/rng"
)

func newTestTUI(t *testing.T, cfg game.Config) *tui {
	t.Helper()
	ctrl, err := game.NewController(context.Background(), cfg, rng.NewSeeded(7), nil, nil)
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	t.Cleanup(ctrl.Close)
	ctrl.Start()

	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("screen: %v", err)
	}
	screen.SetSize(100, 40)
	t.Cleanup(screen.Fini)
	return &tui{ctx: context.Background(), screen: screen, ctrl: ctrl, sound: &sound{}}
}

// tileCenter returns the rune drawn in the middle of tile i.
func tileCenter(s tcell.Screen, i, n int) rune {
	cols := columns(n)
	x := left + (i%cols)*(tileW+gapX) + tileW/2
	y := top + (i/cols)*(tileH+gapY) + tileH/2
	r, _, _, _ := s.GetContent(x, y)
	return r
}

func TestColumns(t *testing.T) {
	tests := []struct{ n, want int }{
		{0, 1}, {1, 1}, {2, 2}, {4, 2}, {5, 3}, {16, 4}, {17, 5},
	}
	for _, tt := range tests {
		if got := columns(tt.n); got != tt.want {
			t.Errorf("columns(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestMove(t *testing.T) {
	// 8 tiles in 3 columns: rows [0 1 2] [3 4 5] [6 7]
	tests := []struct {
		name           string
		cursor, dx, dy int
		want           int
	}{
		{"right", 0, 1, 0, 1},
		{"right edge", 2, 1, 0, 2},
		{"left edge", 3, -1, 0, 3},
		{"left at origin", 0, -1, 0, 0},
		{"down", 1, 0, 1, 4},
		{"down past last row", 5, 0, 1, 5},
		{"up at top", 1, 0, -1, 1},
		{"short last row", 7, 1, 0, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := move(tt.cursor, tt.dx, tt.dy, 8); got != tt.want {
				t.Fatalf("move = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRenderRevealsOnlyArmedValues(t *testing.T) {
	ui := newTestTUI(t, game.Config{Pairs: 2})
	ui.draw()
	for i := 0; i < 4; i++ {
		if r := tileCenter(ui.screen, i, 4); r != '?' {
			t.Fatalf("tile %d shows %q before arming", i, r)
		}
	}

	ui.handleKey(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone))
	ui.draw()
	if r := tileCenter(ui.screen, 0, 4); r < '1' || r > '2' {
		t.Fatalf("armed tile shows %q", r)
	}
	if r := tileCenter(ui.screen, 1, 4); r != '?' {
		t.Fatalf("unarmed tile shows %q", r)
	}
}

func TestHandleKey(t *testing.T) {
	ui := newTestTUI(t, game.Config{Pairs: 4})

	ui.handleKey(tcell.NewEventKey(tcell.KeyRight, 0, tcell.ModNone))
	ui.handleKey(tcell.NewEventKey(tcell.KeyRune, 'j', tcell.ModNone))
	if ui.cursor != 4 {
		t.Fatalf("cursor = %d, want 4", ui.cursor)
	}

	ui.handleKey(tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone))
	if st := ui.ctrl.Snapshot().Tiles[4].State; st != game.Armed {
		t.Fatalf("tile 4 = %s, want armed", st)
	}

	ui.handleKey(tcell.NewEventKey(tcell.KeyRune, 'r', tcell.ModNone))
	snap := ui.ctrl.Snapshot()
	if snap.Phase != game.PhaseAwaitingFirst || snap.Tiles[4].State != game.Hidden {
		t.Fatalf("after restart: phase %s tile %s", snap.Phase, snap.Tiles[4].State)
	}

	if !ui.handleKey(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)) {
		t.Fatalf("q did not quit")
	}
	if !ui.handleKey(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)) {
		t.Fatalf("esc did not quit")
	}
}

func TestCue(t *testing.T) {
	matched := game.TileView{State: game.Matched}
	armed := game.TileView{State: game.Armed}
	tests := []struct {
		name string
		e    game.Event
		want []note
	}{
		{"match", game.Event{Kind: game.EventTileChanged, Tile: &matched}, matchNotes},
		{"arm", game.Event{Kind: game.EventTileChanged, Tile: &armed}, nil},
		{"streak broken", game.Event{Kind: game.EventStreakChanged, Streak: &game.StreakView{}}, mismatchNotes},
		{"streak up", game.Event{Kind: game.EventStreakChanged, Streak: &game.StreakView{Streak: 2}}, nil},
		{"won", game.Event{Kind: game.EventRoundComplete, Outcome: &game.Outcome{Kind: game.OutcomeWon}}, winNotes},
		{"timeout", game.Event{Kind: game.EventRoundComplete, Outcome: &game.Outcome{Kind: game.OutcomeTimedOut}}, timeoutNotes},
		{"tick", game.Event{Kind: game.EventCountdownTick}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cue(tt.e)
			if len(got) != len(tt.want) || (len(got) > 0 && &got[0] != &tt.want[0]) {
				t.Fatalf("cue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseColor(t *testing.T) {
	if got, want := parseColor("rgb(10, 20, 30)"), tcell.NewRGBColor(10, 20, 30); got != want {
		t.Fatalf("parseColor = %v, want %v", got, want)
	}
	if got := parseColor("teal"); got != tcell.ColorDefault {
		t.Fatalf("bad input = %v", got)
	}
}

func TestRootCmdFlags(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"variant", "pairs", "options", "time-limit", "db", "sound", "daily", "log"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("missing flag --%s", name)
		}
	}
}
