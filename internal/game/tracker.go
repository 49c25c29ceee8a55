package game

// TrackerState is the occupancy of a SelectionTracker.
type TrackerState int

const (
	TrackerEmpty TrackerState = iota
	TrackerOneArmed
	TrackerTwoArmed
)

// SelectionTracker holds up to two armed tiles and the busy lock.
//
// Arming the second tile locks the tracker; while locked every Arm call is
// ignored until Clear. Tiles that are not Hidden, or already armed, are
// ignored as well.
type SelectionTracker struct {
	armed  [2]int
	n      int
	locked bool
}

// Arm adds t to the selection. It returns false and changes nothing when the
// input must be ignored.
func (s *SelectionTracker) Arm(t *Tile) bool {
	if s.locked || t == nil || t.State != Hidden {
		return false
	}
	for i := 0; i < s.n; i++ {
		if s.armed[i] == t.ID {
			return false
		}
	}
	s.armed[s.n] = t.ID
	s.n++
	if s.n == len(s.armed) {
		s.locked = true
	}
	return true
}

// Lock rejects further Arm calls until Clear. The guessing variant locks
// after a single selection.
func (s *SelectionTracker) Lock() { s.locked = true }

// Clear empties the selection and releases the lock.
func (s *SelectionTracker) Clear() {
	s.n = 0
	s.locked = false
}

func (s *SelectionTracker) Locked() bool { return s.locked }

func (s *SelectionTracker) Len() int { return s.n }

// Armed returns a copy of the armed tile IDs in selection order.
func (s *SelectionTracker) Armed() []int {
	out := make([]int, s.n)
	copy(out, s.armed[:s.n])
	return out
}

func (s *SelectionTracker) State() TrackerState {
	switch s.n {
	case 0:
		return TrackerEmpty
	case 1:
		return TrackerOneArmed
	default:
		return TrackerTwoArmed
	}
}
