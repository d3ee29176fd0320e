package summary

import (
	"slices"
	"testing"
)

func TestMedianStep(t *testing.T) {
	cases := []struct {
		times []int64
		want  int64
	}{
		{nil, 0},
		{[]int64{5}, 0},
		{[]int64{0, 100, 200, 300, 500}, 100},
		{[]int64{500, 0, 300, 100, 200}, 100},
		{[]int64{0, 10, 30}, 15},
		{[]int64{0, 1637, 3275, 4912}, 1637},
	}
	for _, c := range cases {
		if got := MedianStep(c.times); got != c.want {
			t.Errorf("MedianStep(%v) = %d, want %d", c.times, got, c.want)
		}
	}
}

func TestMissingTimes(t *testing.T) {
	cases := []struct {
		name  string
		times []int64
		step  int64
		tol   int64
		want  []int64
	}{
		{"single gap at end", []int64{0, 100, 200, 300, 500}, 100, 1, []int64{400}},
		{"no gaps", []int64{0, 100, 200}, 100, 1, nil},
		{"jitter within tolerance", []int64{0, 101, 201}, 100, 1, nil},
		{"wide gap", []int64{0, 100, 450}, 100, 1, []int64{200, 300, 400}},
		{"uneven gap rounds up", []int64{0, 250}, 100, 1, []int64{100, 200}},
		{"unsorted input", []int64{500, 0, 100}, 100, 1, []int64{200, 300, 400}},
		{"zero step", []int64{0, 100}, 0, 1, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := MissingTimes(c.times, c.step, c.tol)
			if !slices.Equal(got, c.want) {
				t.Errorf("MissingTimes() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestMissingTimes_OnlyInsideGaps(t *testing.T) {
	step := int64(100)
	times := []int64{0, 100, 100 + step, 100 + 2*step, 500}
	got := MissingTimes(times, MedianStep(times), 1)
	if !slices.Equal(got, []int64{400}) {
		t.Fatalf("got %v, want [400]", got)
	}
	for _, m := range got {
		if m <= 100+2*step || m >= 500 {
			t.Errorf("missing time %d outside the gap", m)
		}
	}
}
