package game

// Result of comparing two tile values.
type Result int

const (
	NotEqual Result = iota
	Equal
)

func (r Result) String() string {
	if r == Equal {
		return "equal"
	}
	return "not_equal"
}

// Evaluate compares two values by exact equality. For the guessing variant b
// is the target.
func Evaluate(a, b Value) Result {
	if a == b {
		return Equal
	}
	return NotEqual
}
