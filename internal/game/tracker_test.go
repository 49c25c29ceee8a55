package game

import (
	"slices"
	"testing"
)

func TestTrackerTransitions(t *testing.T) {
	tiles := tilesFor([]Value{1, 1, 2, 2})
	var s SelectionTracker
	if s.State() != TrackerEmpty {
		t.Fatalf("new tracker state %v", s.State())
	}
	if !s.Arm(&tiles[0]) || s.State() != TrackerOneArmed || s.Locked() {
		t.Fatalf("first arm: state %v locked %v", s.State(), s.Locked())
	}
	if !s.Arm(&tiles[2]) || s.State() != TrackerTwoArmed || !s.Locked() {
		t.Fatalf("second arm: state %v locked %v", s.State(), s.Locked())
	}
	if got := s.Armed(); !slices.Equal(got, []int{0, 2}) {
		t.Fatalf("Armed() = %v", got)
	}
	s.Clear()
	if s.State() != TrackerEmpty || s.Locked() {
		t.Fatalf("after clear: state %v locked %v", s.State(), s.Locked())
	}
}

func TestTrackerIgnoresInvalidArms(t *testing.T) {
	tiles := tilesFor([]Value{1, 1, 2, 2})
	tiles[3].State = Matched

	var s SelectionTracker
	if s.Arm(&tiles[3]) {
		t.Fatalf("armed a matched tile")
	}
	if s.Arm(nil) {
		t.Fatalf("armed nil")
	}
	s.Arm(&tiles[0])
	if s.Arm(&tiles[0]) {
		t.Fatalf("armed the same tile twice")
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}
}

func TestTrackerLockedIsNoop(t *testing.T) {
	tiles := tilesFor([]Value{1, 1, 2, 2})
	var s SelectionTracker
	s.Arm(&tiles[0])
	s.Arm(&tiles[1])
	before := s
	for i := range tiles {
		if s.Arm(&tiles[i]) {
			t.Fatalf("arm %d accepted while locked", i)
		}
	}
	if s != before {
		t.Fatalf("locked tracker changed: %+v -> %+v", before, s)
	}

	var single SelectionTracker
	single.Arm(&tiles[2])
	single.Lock()
	if single.Arm(&tiles[3]) {
		t.Fatalf("explicit lock ignored")
	}
}
