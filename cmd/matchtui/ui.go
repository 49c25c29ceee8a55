package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/robalobadob/matchgames/internal/game"
)

const (
	tileW = 7
	tileH = 3
	gapX  = 1
	gapY  = 1
	top   = 3 // rows above the board
	left  = 2
)

// tui drives one controller from a tcell screen. Controller events arrive
// as interrupts through the screen's event queue, so all drawing happens
// on the loop goroutine.
type tui struct {
	ctx    context.Context
	screen tcell.Screen
	ctrl   *game.Controller
	sound  *sound
	cursor int
}

func newTUI(ctx context.Context, ctrl *game.Controller, snd *sound) (*tui, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	return &tui{ctx: ctx, screen: screen, ctrl: ctrl, sound: snd}, nil
}

func (t *tui) run() error {
	defer t.screen.Fini()

	unsubscribe := t.ctrl.Subscribe(func(e game.Event) {
		_ = t.screen.PostEvent(tcell.NewEventInterrupt(e))
	})
	defer unsubscribe()

	t.ctrl.Start()
	t.draw()
	for {
		switch ev := t.screen.PollEvent().(type) {
		case nil:
			return nil
		case *tcell.EventResize:
			t.screen.Sync()
		case *tcell.EventKey:
			if t.handleKey(ev) {
				return nil
			}
		case *tcell.EventInterrupt:
			if e, ok := ev.Data().(game.Event); ok {
				t.sound.on(e)
			}
		}
		t.draw()
	}
}

// handleKey applies a key press and reports whether to quit.
func (t *tui) handleKey(ev *tcell.EventKey) bool {
	n := len(t.ctrl.Snapshot().Tiles)
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyLeft:
		t.cursor = move(t.cursor, -1, 0, n)
	case tcell.KeyRight:
		t.cursor = move(t.cursor, 1, 0, n)
	case tcell.KeyUp:
		t.cursor = move(t.cursor, 0, -1, n)
	case tcell.KeyDown:
		t.cursor = move(t.cursor, 0, 1, n)
	case tcell.KeyEnter:
		t.ctrl.Activate(t.ctx, t.cursor)
	case tcell.KeyRune:
		switch r := ev.Rune(); r {
		case 'q':
			return true
		case 'h':
			t.cursor = move(t.cursor, -1, 0, n)
		case 'l':
			t.cursor = move(t.cursor, 1, 0, n)
		case 'k':
			t.cursor = move(t.cursor, 0, -1, n)
		case 'j':
			t.cursor = move(t.cursor, 0, 1, n)
		case ' ':
			t.ctrl.Activate(t.ctx, t.cursor)
		case 'n':
			t.ctrl.NextRound()
		case 'r':
			t.ctrl.Reset()
			t.ctrl.Start()
		case 'R':
			t.ctrl.HardReset(t.ctx)
			t.ctrl.Start()
		default:
			if r >= '1' && r <= '9' && int(r-'1') < n {
				t.cursor = int(r - '1')
				t.ctrl.Activate(t.ctx, t.cursor)
			}
		}
	}
	return false
}

func (t *tui) draw() {
	render(t.screen, t.ctrl.Snapshot(), t.cursor)
	t.screen.Show()
}

// columns lays n tiles out as a near-square grid.
func columns(n int) int {
	if n <= 1 {
		return 1
	}
	return int(math.Ceil(math.Sqrt(float64(n))))
}

// move shifts cursor by (dx, dy) grid cells, staying on the board.
func move(cursor, dx, dy, n int) int {
	if n == 0 {
		return 0
	}
	cols := columns(n)
	next := cursor + dx + dy*cols
	if next < 0 || (dx != 0 && next/cols != cursor/cols) {
		return cursor
	}
	if next >= n {
		return cursor
	}
	return next
}

var (
	styleText    = tcell.StyleDefault
	styleDim     = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleHidden  = tcell.StyleDefault.Background(tcell.ColorNavy).Foreground(tcell.ColorWhite)
	styleArmed   = tcell.StyleDefault.Background(tcell.ColorYellow).Foreground(tcell.ColorBlack).Bold(true)
	styleMatched = tcell.StyleDefault.Background(tcell.ColorGreen).Foreground(tcell.ColorBlack)
	styleBanner  = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
)

// render draws a full frame for snap.
func render(s tcell.Screen, snap game.Snapshot, cursor int) {
	s.Clear()
	drawText(s, left, 0, styleText.Bold(true), header(snap))
	if snap.Variant == game.VariantGuess && snap.Target != "" {
		drawText(s, left, 1, styleText, "target ")
		fill(s, left+7, 1, 10, 1, tcell.StyleDefault.Background(parseColor(snap.Target)))
	}

	cols := columns(len(snap.Tiles))
	for i, tv := range snap.Tiles {
		x := left + (i%cols)*(tileW+gapX)
		y := top + (i/cols)*(tileH+gapY)
		st, label := tileLook(snap.Variant, tv)
		if i == cursor {
			st = st.Reverse(true)
		}
		fill(s, x, y, tileW, tileH, st)
		drawText(s, x+(tileW-len(label))/2, y+tileH/2, st, label)
	}

	rows := (len(snap.Tiles) + cols - 1) / cols
	y := top + rows*(tileH+gapY)
	if snap.Outcome != nil {
		drawText(s, left, y, styleBanner, banner(snap))
		y++
	}
	drawText(s, left, y+1, styleDim, "arrows/hjkl move  enter/space pick  n next  r restart  R hard reset  q quit")
}

func header(snap game.Snapshot) string {
	h := fmt.Sprintf("%s  moves %d  streak %d (best %d)", snap.Variant, snap.Stats.Moves, snap.Stats.Streak, snap.Stats.BestStreak)
	if snap.Variant == game.VariantMemory {
		h += fmt.Sprintf("  pairs %d/%d", snap.Stats.Resolved, len(snap.Tiles)/2)
		if snap.Best != nil {
			h += fmt.Sprintf("  best %d moves", *snap.Best)
		}
	}
	if snap.TimeLimitMs > 0 {
		d := time.Duration(snap.RemainingMs) * time.Millisecond
		h += fmt.Sprintf("  time %d:%02d", int(d.Minutes()), int(d.Seconds())%60)
	}
	return h
}

func banner(snap game.Snapshot) string {
	o := snap.Outcome
	if o.Kind == game.OutcomeTimedOut {
		return "time's up!  press n for another round"
	}
	msg := fmt.Sprintf("solved in %d moves", snap.Stats.Moves)
	if snap.Variant == game.VariantGuess {
		msg = fmt.Sprintf("correct! streak %d", o.Metric)
	}
	if o.Improved {
		msg += "  new best!"
	}
	return msg + "  press n for the next round"
}

// tileLook returns the style and label for a tile.
func tileLook(v game.Variant, tv game.TileView) (tcell.Style, string) {
	if v == game.VariantGuess {
		st := tcell.StyleDefault.Background(parseColor(tv.Color))
		switch tv.State {
		case game.Armed:
			return st.Foreground(tcell.ColorWhite), "x"
		case game.Matched:
			return st.Foreground(tcell.ColorWhite), "ok"
		}
		return st, ""
	}
	switch tv.State {
	case game.Armed:
		return styleArmed, valueLabel(tv)
	case game.Matched:
		return styleMatched, valueLabel(tv)
	}
	return styleHidden, "?"
}

func valueLabel(tv game.TileView) string {
	if tv.Value == nil {
		return "?"
	}
	return fmt.Sprintf("%d", *tv.Value)
}

// parseColor reads the "rgb(r, g, b)" form used by snapshots.
func parseColor(s string) tcell.Color {
	var r, g, b int32
	if _, err := fmt.Sscanf(s, "rgb(%d, %d, %d)", &r, &g, &b); err != nil {
		return tcell.ColorDefault
	}
	return tcell.NewRGBColor(r, g, b)
}

func fill(s tcell.Screen, x, y, w, h int, st tcell.Style) {
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			s.SetContent(x+dx, y+dy, ' ', nil, st)
		}
	}
}

func drawText(s tcell.Screen, x, y int, st tcell.Style, text string) {
	for i, r := range []rune(text) {
		s.SetContent(x+i, y, r, nil, st)
	}
}
