package summary

import (
	"math"
	"testing"

	"github.com/mwiater/psdsummary/internal/chains"
)

func TestSummarizeWindow(t *testing.T) {
	data := &chains.WindowData{
		Time:    300,
		Axis:    []float64{0.001, 0.002, 0.003},
		Dropped: []float64{0.002},
		Chains:  5,
		Matrices: []chains.Matrix{
			{
				Channel: "x",
				Freqs:   []float64{0.001, 0.003},
				Samples: [][]float64{
					{5, 1, 4, 2, 3},
					{10, 10, 10, 10, 10},
				},
			},
			{
				Channel: "y",
				Freqs:   []float64{0.001, 0.003},
				Samples: [][]float64{
					{1, 2, 3, 4, 100},
					{math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()},
				},
			},
		},
	}
	ws := SummarizeWindow(data)
	if ws.Time != 300 || len(ws.Records) != 2 || ws.Dropped != 1 || ws.Chains != 5 {
		t.Fatalf("unexpected summary header: %+v", ws)
	}
	// x@0.002 and y@0.002 were dropped, y@0.003 is all NaN
	if ws.NoSamples != 3 {
		t.Errorf("NoSamples = %d, want 3", ws.NoSamples)
	}

	x := ws.Records[0]
	if x[0].Status != StatusObserved || x[0].Median != 3 {
		t.Errorf("x@0.001 = %+v", x[0])
	}
	if x[0].CI50Lo != 1 || x[0].CI50Hi != 3 {
		t.Errorf("x@0.001 50%% = [%v, %v], want [1, 3]", x[0].CI50Lo, x[0].CI50Hi)
	}
	if x[0].CI90Lo != 1 || x[0].CI90Hi != 5 {
		t.Errorf("x@0.001 90%% = [%v, %v], want [1, 5]", x[0].CI90Lo, x[0].CI90Hi)
	}
	if x[1].Status != StatusNoSamples || x[1].Freq != 0.002 || x[1].Time != 300 {
		t.Errorf("x@0.002 = %+v", x[1])
	}
	if x[2].Median != 10 || x[2].CI90Lo != 10 || x[2].CI90Hi != 10 {
		t.Errorf("x@0.003 = %+v", x[2])
	}

	y := ws.Records[1]
	if y[0].Channel != "y" || y[0].Median != 3 || y[0].CI90Hi != 100 {
		t.Errorf("y@0.001 = %+v", y[0])
	}
	if y[0].CI50Lo != 1 || y[0].CI50Hi != 3 {
		t.Errorf("y@0.001 50%% = [%v, %v]", y[0].CI50Lo, y[0].CI50Hi)
	}
	if !y[2].Missing() || y[2].Status != StatusNoSamples {
		t.Errorf("y@0.003 should be missing, got %+v", y[2])
	}
}

func TestSummarizeSamples_EvenCountMedian(t *testing.T) {
	st, ok := summarizeSamples([]float64{4, 1, 3, 2})
	if !ok {
		t.Fatal("expected stats")
	}
	if st.Median != 2.5 {
		t.Errorf("Median = %v, want 2.5", st.Median)
	}
	// two samples per window, all widths equal, so the lowest pair wins
	if st.CI50Lo != 1 || st.CI50Hi != 2 {
		t.Errorf("50%% = [%v, %v], want [1, 2]", st.CI50Lo, st.CI50Hi)
	}
}

func TestRecord_MedianValue(t *testing.T) {
	obs := Record{Status: StatusObserved, Stats: Stats{Median: 0}}
	if obs.MedianValue() != 0 {
		t.Errorf("observed zero median should stay zero")
	}
	miss := Record{Status: StatusMissingTime}
	if !math.IsNaN(miss.MedianValue()) {
		t.Errorf("missing record should render as NaN")
	}
	if StatusMissingTime.String() != "missing-time" || Status(9).String() != "unknown" {
		t.Errorf("unexpected Status strings")
	}
}
