// internal/summary/builder.go
// Package: summary
package summary

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mwiater/psdsummary/internal/chains"
)

var (
	ErrNoWindows     = errors.New("run has no time windows")
	ErrDuplicateTime = errors.New("duplicate window time")
	ErrAxisMismatch  = errors.New("frequency axis differs between windows")
)

// Options configures Build.
type Options struct {
	// Workers bounds the windows summarized concurrently; <= 0 means NumCPU.
	Workers int
	// GapTolerance is the slack in seconds before a spacing counts as a gap.
	GapTolerance int64
	Import       chains.Options
	Logger       *zerolog.Logger
	// Progress, if set, is called from worker goroutines after each window.
	Progress func(done, total int)
}

// Saver persists a finished table.
type Saver interface {
	Save(ctx context.Context, path string, t *Table) error
}

// Builder builds a run summary and hands it to Store exactly once.
type Builder struct {
	Store   Saver
	Options Options
}

// Run builds the summary for plan and saves it to path. Nothing is written
// when the build fails or ctx is cancelled.
func (b Builder) Run(ctx context.Context, plan Plan, path string) (Report, error) {
	if b.Store == nil {
		return Report{}, errors.New("builder has no store")
	}
	table, rep, err := Build(ctx, plan, b.Options)
	if err != nil {
		return rep, err
	}
	if err := ctx.Err(); err != nil {
		return rep, err
	}
	if err := b.Store.Save(ctx, path, table); err != nil {
		return rep, fmt.Errorf("save summary for %s: %w", plan.Name, err)
	}
	rep.Path = path
	return rep, nil
}

// Build summarizes every window of plan and assembles the gap-filled table.
// A window that fails to import aborts the whole build.
func Build(ctx context.Context, plan Plan, opts Options) (*Table, Report, error) {
	start := time.Now()
	rep := Report{Run: plan.Name}
	if len(plan.Windows) == 0 {
		return nil, rep, fmt.Errorf("run %s: %w", plan.Name, ErrNoWindows)
	}
	if len(plan.Channels) == 0 {
		return nil, rep, fmt.Errorf("run %s: no channels", plan.Name)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	log := opts.Logger
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	imp := opts.Import
	imp.Channels = plan.Channels

	times := make([]int64, len(plan.Windows))
	for i, w := range plan.Windows {
		times[i] = w.Time
	}
	sortedTimes := slices.Clone(times)
	slices.Sort(sortedTimes)
	for i := 1; i < len(sortedTimes); i++ {
		if sortedTimes[i] == sortedTimes[i-1] {
			return nil, rep, fmt.Errorf("run %s: time %d: %w", plan.Name, sortedTimes[i], ErrDuplicateTime)
		}
	}

	// Phase 1: one task per window. Each task owns its result slot.
	results := make([]WindowSummary, len(plan.Windows))
	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, w := range plan.Windows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := chains.ImportWindow(w.Dir, w.Time, imp)
			if err != nil {
				return fmt.Errorf("run %s: window %d: %w", plan.Name, w.Time, err)
			}
			results[i] = SummarizeWindow(data)
			n := int(done.Add(1))
			log.Debug().Str("run", plan.Name).Int64("time", w.Time).
				Int("chains", data.Chains).Int("dropped", len(data.Dropped)).Msg("window summarized")
			if opts.Progress != nil {
				opts.Progress(n, len(plan.Windows))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, rep, err
	}
	if err := ctx.Err(); err != nil {
		return nil, rep, err
	}

	// Phase 2: axes first, then every record straight into its final slot.
	step := MedianStep(times)
	missing := MissingTimes(times, step, opts.GapTolerance)
	table, err := assemble(plan, results, sortedTimes, missing)
	if err != nil {
		return nil, rep, err
	}

	rep.Windows = len(plan.Windows)
	rep.Step = step
	rep.MissingTimes = missing
	rep.FillerRecords = len(missing) * len(table.Channels) * len(table.Freqs)
	for _, r := range results {
		rep.NoSampleRecords += r.NoSamples
		rep.DroppedRows += r.Dropped
		rep.Chains = max(rep.Chains, r.Chains)
	}
	rep.Records = len(table.Records)
	rep.Elapsed = time.Since(start)
	log.Info().Str("run", plan.Name).Int("windows", rep.Windows).Int64("step", step).
		Int("missing_times", len(missing)).Int("no_sample_records", rep.NoSampleRecords).
		Dur("elapsed", rep.Elapsed).Msg("run summarized")
	return table, rep, nil
}

// assemble lays out the rectangular table. Channel order is by name; the
// frequency axis must be identical across windows.
func assemble(plan Plan, results []WindowSummary, observed, missing []int64) (*Table, error) {
	axis := results[0].Axis
	for _, r := range results[1:] {
		if !slices.Equal(r.Axis, axis) {
			return nil, fmt.Errorf("run %s: window %d has %d bins, window %d has %d: %w",
				plan.Name, results[0].Time, len(axis), r.Time, len(r.Axis), ErrAxisMismatch)
		}
	}

	channels := slices.Clone(plan.Channels)
	slices.Sort(channels)
	allTimes := make([]int64, 0, len(observed)+len(missing))
	allTimes = append(allTimes, observed...)
	allTimes = append(allTimes, missing...)
	slices.Sort(allTimes)

	t := &Table{
		Run:      plan.Name,
		Channels: channels,
		Times:    allTimes,
		Freqs:    slices.Clone(axis),
		Missing:  slices.Clone(missing),
		Created:  time.Now().UTC(),
	}
	t.Records = make([]Record, t.Len())

	chanIdx := make(map[string]int, len(channels))
	for i, c := range channels {
		chanIdx[c] = i
	}
	timeIdx := make(map[int64]int, len(allTimes))
	for i, tm := range allTimes {
		timeIdx[tm] = i
	}

	for _, r := range results {
		ti := timeIdx[r.Time]
		for c, name := range r.Channels {
			ci := chanIdx[name]
			copy(t.Records[t.Index(ci, ti, 0):t.Index(ci, ti, len(axis))], r.Records[c])
		}
	}
	for _, tm := range missing {
		ti := timeIdx[tm]
		for ci, name := range channels {
			for fi, f := range t.Freqs {
				t.Records[t.Index(ci, ti, fi)] = Record{
					Key:    Key{Channel: name, Time: tm, Freq: f},
					Status: StatusMissingTime,
				}
			}
		}
	}
	return t, nil
}
