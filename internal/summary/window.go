package summary

import (
	"math"
	"slices"

	"github.com/montanaflynn/stats"

	"github.com/mwiater/psdsummary/internal/chains"
	"github.com/mwiater/psdsummary/internal/hpd"
)

// WindowSummary is the output of SummarizeWindow. Channels[c] pairs with
// Records[c], and Records[c][i] belongs to Axis[i].
type WindowSummary struct {
	Time      int64
	Axis      []float64
	Channels  []string
	Records   [][]Record
	NoSamples int
	Dropped   int
	Chains    int
}

// SummarizeWindow computes the median and both credible intervals for every
// (channel, frequency) of one window. Frequencies without a usable sample get
// a StatusNoSamples record instead of statistics.
func SummarizeWindow(data *chains.WindowData) WindowSummary {
	ws := WindowSummary{
		Time:     data.Time,
		Axis:     data.Axis,
		Channels: make([]string, len(data.Matrices)),
		Records:  make([][]Record, len(data.Matrices)),
		Dropped:  len(data.Dropped),
		Chains:   data.Chains,
	}
	for c, m := range data.Matrices {
		ws.Channels[c] = m.Channel
		recs := make([]Record, len(data.Axis))
		row := 0
		for i, f := range data.Axis {
			rec := Record{Key: Key{Channel: m.Channel, Time: data.Time, Freq: f}, Status: StatusNoSamples}
			// surviving rows are a subsequence of the axis
			if row < len(m.Freqs) && m.Freqs[row] == f {
				if st, ok := summarizeSamples(m.Samples[row]); ok {
					rec.Status = StatusObserved
					rec.Stats = st
				}
				row++
			}
			if rec.Status == StatusNoSamples {
				ws.NoSamples++
			}
			recs[i] = rec
		}
		ws.Records[c] = recs
	}
	return ws
}

// summarizeSamples returns false when no finite sample remains.
func summarizeSamples(samples []float64) (Stats, bool) {
	sorted := make([]float64, 0, len(samples))
	for _, v := range samples {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return Stats{}, false
	}
	slices.Sort(sorted)

	med, err := stats.Median(sorted)
	if err != nil {
		return Stats{}, false
	}
	var st Stats
	st.Median = med
	st.CI50Lo, st.CI50Hi = hpd.IntervalSorted(sorted, hpd.Mass50)
	st.CI90Lo, st.CI90Hi = hpd.IntervalSorted(sorted, hpd.Mass90)
	return st, true
}
