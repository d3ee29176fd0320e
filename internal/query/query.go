// internal/query/query.go
// Package: query
//
// Package query slices and looks up values in a loaded run summary. Every
// function is read-only over the table.
package query

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/montanaflynn/stats"

	"github.com/mwiater/psdsummary/internal/summary"
)

var (
	ErrUnknownTime      = errors.New("time not in index")
	ErrUnknownFrequency = errors.New("frequency not in index")
	ErrUnknownChannel   = errors.New("channel not in index")
	ErrEmptyAxis        = errors.New("empty axis")
)

func channelIndex(t *summary.Table, channel string) (int, error) {
	i := slices.Index(t.Channels, channel)
	if i < 0 {
		return 0, fmt.Errorf("%q: %w", channel, ErrUnknownChannel)
	}
	return i, nil
}

// SliceByTime returns every channel and frequency at time, ordered by
// (channel, frequency). Missing-marked times are returned like any other.
func SliceByTime(t *summary.Table, time int64) ([]summary.Record, error) {
	ti, ok := slices.BinarySearch(t.Times, time)
	if !ok {
		return nil, fmt.Errorf("%d: %w", time, ErrUnknownTime)
	}
	out := make([]summary.Record, 0, len(t.Channels)*len(t.Freqs))
	for ci := range t.Channels {
		start := t.Index(ci, ti, 0)
		out = append(out, t.Records[start:start+len(t.Freqs)]...)
	}
	return out, nil
}

// SliceByFrequency returns every channel and time at freq, ordered by
// (channel, time). freq must match an axis value exactly.
func SliceByFrequency(t *summary.Table, freq float64) ([]summary.Record, error) {
	fi, ok := slices.BinarySearch(t.Freqs, freq)
	if !ok {
		return nil, fmt.Errorf("%g: %w", freq, ErrUnknownFrequency)
	}
	out := make([]summary.Record, 0, len(t.Channels)*len(t.Times))
	for ci := range t.Channels {
		for ti := range t.Times {
			out = append(out, t.At(ci, ti, fi))
		}
	}
	return out, nil
}

// NearestIndex maps approx onto an evenly spaced axis of n values spanning
// [lo, hi] and clamps to the ends.
func NearestIndex(approx, lo, hi float64, n int) int {
	span := hi - lo
	if n <= 1 || span <= 0 {
		return 0
	}
	idx := int(math.Round(approx / span * float64(n)))
	return min(max(idx, 0), n-1)
}

// NearestFrequency returns the axis frequency closest to approx, assuming an
// evenly spaced axis.
func NearestFrequency(t *summary.Table, approx float64) (float64, error) {
	if len(t.Freqs) == 0 {
		return 0, fmt.Errorf("frequency: %w", ErrEmptyAxis)
	}
	i := NearestIndex(approx, t.Freqs[0], t.Freqs[len(t.Freqs)-1], len(t.Freqs))
	return t.Freqs[i], nil
}

// NearestTime returns the indexed time closest to approx using the same
// interpolation over the time axis.
func NearestTime(t *summary.Table, approx int64) (int64, error) {
	if len(t.Times) == 0 {
		return 0, fmt.Errorf("time: %w", ErrEmptyAxis)
	}
	lo, hi := t.Times[0], t.Times[len(t.Times)-1]
	i := NearestIndex(float64(approx-lo), 0, float64(hi-lo), len(t.Times))
	return t.Times[i], nil
}

// ChannelRecords returns the contiguous block of records for channel,
// ordered by (time, frequency). The slice aliases the table.
func ChannelRecords(t *summary.Table, channel string) ([]summary.Record, error) {
	ci, err := channelIndex(t, channel)
	if err != nil {
		return nil, err
	}
	return t.Records[t.Index(ci, 0, 0):t.Index(ci+1, 0, 0)], nil
}

// Grid is a frequency by time matrix of medians for one channel.
type Grid struct {
	Channel string
	Freqs   []float64
	Times   []int64
	// Values[fi][ti]; NaN where the record is missing.
	Values [][]float64
}

// ToWide pivots one channel into a Grid with frequencies as rows and times
// as columns.
func ToWide(t *summary.Table, channel string) (Grid, error) {
	block, err := ChannelRecords(t, channel)
	if err != nil {
		return Grid{}, err
	}
	g := Grid{
		Channel: channel,
		Freqs:   slices.Clone(t.Freqs),
		Times:   slices.Clone(t.Times),
		Values:  make([][]float64, len(t.Freqs)),
	}
	nf := len(t.Freqs)
	for fi := range g.Values {
		row := make([]float64, len(t.Times))
		for ti := range row {
			row[ti] = block[ti*nf+fi].MedianValue()
		}
		g.Values[fi] = row
	}
	return g, nil
}

// AggregateMedian returns, per frequency, the median over time of the
// non-missing medians of channel. Frequencies without any are NaN.
func AggregateMedian(t *summary.Table, channel string) ([]float64, error) {
	block, err := ChannelRecords(t, channel)
	if err != nil {
		return nil, err
	}
	nf := len(t.Freqs)
	out := make([]float64, nf)
	vals := make(stats.Float64Data, 0, len(t.Times))
	for fi := range out {
		vals = vals[:0]
		for ti := range t.Times {
			r := block[ti*nf+fi]
			if r.Missing() || math.IsNaN(r.Median) {
				continue
			}
			vals = append(vals, r.Median)
		}
		m, err := vals.Median()
		if err != nil {
			m = math.NaN()
		}
		out[fi] = m
	}
	return out, nil
}

// Interval is the band drawn around a median.
type Interval struct {
	Lo, Hi float64
}

// Series is a channel's statistics at one frequency across every time.
// Missing records are NaN.
type Series struct {
	Channel string
	Freq    float64
	Times   []int64
	Median  []float64
	CI50    []Interval
	CI90    []Interval
}

// FrequencySeries extracts the time series of channel at the exact axis
// frequency freq.
func FrequencySeries(t *summary.Table, channel string, freq float64) (Series, error) {
	ci, err := channelIndex(t, channel)
	if err != nil {
		return Series{}, err
	}
	fi, ok := slices.BinarySearch(t.Freqs, freq)
	if !ok {
		return Series{}, fmt.Errorf("%g: %w", freq, ErrUnknownFrequency)
	}
	s := Series{
		Channel: channel,
		Freq:    freq,
		Times:   slices.Clone(t.Times),
		Median:  make([]float64, len(t.Times)),
		CI50:    make([]Interval, len(t.Times)),
		CI90:    make([]Interval, len(t.Times)),
	}
	for ti := range t.Times {
		s.Median[ti], s.CI50[ti], s.CI90[ti] = bands(t.At(ci, ti, fi))
	}
	return s, nil
}

// Spectrum is a channel's statistics at one time across every frequency.
// Missing records are NaN.
type Spectrum struct {
	Channel string
	Time    int64
	Freqs   []float64
	Median  []float64
	CI50    []Interval
	CI90    []Interval
}

// SpectrumAt extracts the spectrum of channel at the indexed time.
func SpectrumAt(t *summary.Table, channel string, time int64) (Spectrum, error) {
	ci, err := channelIndex(t, channel)
	if err != nil {
		return Spectrum{}, err
	}
	ti, ok := slices.BinarySearch(t.Times, time)
	if !ok {
		return Spectrum{}, fmt.Errorf("%d: %w", time, ErrUnknownTime)
	}
	s := Spectrum{
		Channel: channel,
		Time:    time,
		Freqs:   slices.Clone(t.Freqs),
		Median:  make([]float64, len(t.Freqs)),
		CI50:    make([]Interval, len(t.Freqs)),
		CI90:    make([]Interval, len(t.Freqs)),
	}
	for fi := range t.Freqs {
		s.Median[fi], s.CI50[fi], s.CI90[fi] = bands(t.At(ci, ti, fi))
	}
	return s, nil
}

func bands(r summary.Record) (float64, Interval, Interval) {
	if r.Missing() {
		nan := math.NaN()
		return nan, Interval{nan, nan}, Interval{nan, nan}
	}
	return r.Median, Interval{r.CI50Lo, r.CI50Hi}, Interval{r.CI90Lo, r.CI90Hi}
}
