package main

import (
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/matchgames/internal/game"
)

const sampleRate = beep.SampleRate(44100)

// note is a single sine tone.
type note struct {
	freq float64
	dur  time.Duration
}

var (
	matchNotes    = []note{{660, 60 * time.Millisecond}, {880, 90 * time.Millisecond}}
	mismatchNotes = []note{{220, 140 * time.Millisecond}}
	winNotes      = []note{{523, 90 * time.Millisecond}, {659, 90 * time.Millisecond}, {784, 180 * time.Millisecond}}
	timeoutNotes  = []note{{330, 150 * time.Millisecond}, {196, 250 * time.Millisecond}}
)

// sound plays short cues for controller events. A disabled or failed
// speaker turns every call into a no-op.
type sound struct {
	enabled bool
}

func newSound(enabled bool) *sound {
	if !enabled {
		return &sound{}
	}
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
		// Non-fatal, the game runs silently.
		log.Warn().Err(err).Msg("audio init failed")
		return &sound{}
	}
	return &sound{enabled: true}
}

func (s *sound) close() {
	if s.enabled {
		speaker.Clear()
	}
}

// cue maps an event onto a sound, if any.
func cue(e game.Event) []note {
	switch e.Kind {
	case game.EventTileChanged:
		if e.Tile != nil && e.Tile.State == game.Matched {
			return matchNotes
		}
	case game.EventStreakChanged:
		if e.Streak != nil && e.Streak.Streak == 0 {
			return mismatchNotes
		}
	case game.EventRoundComplete:
		if e.Outcome != nil && e.Outcome.Kind == game.OutcomeTimedOut {
			return timeoutNotes
		}
		return winNotes
	}
	return nil
}

func (s *sound) on(e game.Event) {
	if notes := cue(e); notes != nil {
		s.play(notes)
	}
}

func (s *sound) play(notes []note) {
	if !s.enabled {
		return
	}
	seq := make([]beep.Streamer, 0, len(notes))
	for _, n := range notes {
		sine, err := generators.SineTone(sampleRate, n.freq)
		if err != nil {
			continue
		}
		seq = append(seq, beep.Take(sampleRate.N(n.dur), sine))
	}
	speaker.Play(&effects.Gain{Streamer: beep.Seq(seq...), Gain: -0.7})
}
