// internal/summary/types.go
// Package: summary
package summary

import (
	"math"
	"time"
)

// Status tags a record. Anything other than StatusObserved is the missing
// marker; it is kept apart from the statistic values so a legitimate zero or
// NaN statistic is never confused with absent data.
type Status uint8

const (
	// StatusObserved records hold statistics computed from samples.
	StatusObserved Status = iota
	// StatusMissingTime records fill a time the run skipped.
	StatusMissingTime
	// StatusNoSamples records had every sample dropped by the sentinel rule.
	StatusNoSamples
)

func (s Status) String() string {
	switch s {
	case StatusObserved:
		return "observed"
	case StatusMissingTime:
		return "missing-time"
	case StatusNoSamples:
		return "no-samples"
	default:
		return "unknown"
	}
}

// Key identifies a record.
type Key struct {
	Channel string
	Time    int64 // GPS seconds
	Freq    float64
}

// Stats are the five summary statistics of one (channel, time, frequency).
type Stats struct {
	Median float64
	CI50Lo float64
	CI50Hi float64
	CI90Lo float64
	CI90Hi float64
}

// Record is one row of the run summary table.
type Record struct {
	Key
	Status Status
	Stats
}

// Missing reports whether r carries the missing marker.
func (r Record) Missing() bool { return r.Status != StatusObserved }

// MedianValue returns the median, or NaN for a missing record. Intended for
// rendering, where NaN is the conventional hole.
func (r Record) MedianValue() float64 {
	if r.Missing() {
		return math.NaN()
	}
	return r.Median
}

// Table is the full, rectangular summary of a run. Records are ordered by
// (channel, time, frequency) and there is exactly one per combination of
// Channels, Times and Freqs.
type Table struct {
	Run      string
	Channels []string  // ascending
	Times    []int64   // ascending, observed and missing
	Freqs    []float64 // ascending
	Missing  []int64   // synthesized times, ascending
	Records  []Record
	Created  time.Time
}

// Index returns the position of (channel ci, time ti, frequency fi) in Records.
func (t *Table) Index(ci, ti, fi int) int {
	return (ci*len(t.Times)+ti)*len(t.Freqs) + fi
}

// At returns the record for the given axis positions.
func (t *Table) At(ci, ti, fi int) Record {
	return t.Records[t.Index(ci, ti, fi)]
}

// Len is the number of records the axes imply.
func (t *Table) Len() int {
	return len(t.Channels) * len(t.Times) * len(t.Freqs)
}

// IsMissingTime reports whether tm was synthesized to fill a gap.
func (t *Table) IsMissingTime(tm int64) bool {
	for _, m := range t.Missing {
		if m == tm {
			return true
		}
	}
	return false
}

// Window is one time window of a run.
type Window struct {
	Dir  string
	Time int64
}

// Plan is everything the builder needs to know about a run.
type Plan struct {
	Name     string
	Channels []string
	Windows  []Window
}

// Report describes a finished build.
type Report struct {
	Run             string        `json:"run"`
	Windows         int           `json:"windows"`
	Chains          int           `json:"max_chains"`
	Step            int64         `json:"step_seconds"`
	MissingTimes    []int64       `json:"missing_times"`
	FillerRecords   int           `json:"filler_records"`
	NoSampleRecords int           `json:"no_sample_records"`
	DroppedRows     int           `json:"dropped_rows"`
	Records         int           `json:"records"`
	Elapsed         time.Duration `json:"elapsed"`
	Path            string        `json:"path,omitempty"`
}
