package rng

import "testing"

func TestIntnRange(t *testing.T) {
	src := NewSeeded(42)
	for _, n := range []int{1, 2, 3, 7, 100} {
		for i := 0; i < 1000; i++ {
			v := src.Intn(n)
			if v < 0 || v >= n {
				t.Fatalf("Intn(%d) = %d, out of range", n, v)
			}
		}
	}
}

func TestIntnNonPositive(t *testing.T) {
	src := NewSeeded(1)
	if got := src.Intn(0); got != 0 {
		t.Fatalf("Intn(0) = %d, want 0", got)
	}
	if got := src.Intn(-5); got != 0 {
		t.Fatalf("Intn(-5) = %d, want 0", got)
	}
}

func TestFloat64Range(t *testing.T) {
	src := New()
	for i := 0; i < 10000; i++ {
		f := src.Float64()
		if f < 0 || f >= 1 {
			t.Fatalf("Float64() = %v, out of [0,1)", f)
		}
	}
}

func TestSeededDeterministic(t *testing.T) {
	a, b := NewSeeded(7), NewSeeded(7)
	for i := 0; i < 50; i++ {
		if x, y := a.Intn(1000), b.Intn(1000); x != y {
			t.Fatalf("draw %d differs: %d vs %d", i, x, y)
		}
	}
}

type fixed []float64

func (f *fixed) Float64() float64 {
	v := (*f)[0]
	*f = (*f)[1:]
	return v
}

func (f *fixed) Intn(n int) int { return Intn(f, n) }

func TestIntnFloorsDraw(t *testing.T) {
	src := &fixed{0, 0.49, 0.5, 0.999999}
	want := []int{0, 0, 1, 1}
	for i, w := range want {
		if got := src.Intn(2); got != w {
			t.Fatalf("draw %d: got %d, want %d", i, got, w)
		}
	}
}
