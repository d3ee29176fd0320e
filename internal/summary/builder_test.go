package summary

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/mwiater/psdsummary/internal/chains"
)

type fakeSaver struct {
	mu    sync.Mutex
	calls int
	path  string
	table *Table
	err   error
}

func (f *fakeSaver) Save(ctx context.Context, path string, t *Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.path = path
	f.table = t
	return f.err
}

// writeWindow writes chain files for one window; rows[chain] is the file body.
func writeWindow(t *testing.T, root string, gps int64, rows []string) Window {
	t.Helper()
	dir := filepath.Join(root, chains.WindowDirName(gps))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for i, body := range rows {
		p := filepath.Join(dir, fmt.Sprintf("%s%d", chains.FilePrefix, i))
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return Window{Dir: dir, Time: gps}
}

func TestBuild_TwoWindowsTwoChannelsThreeFreqs(t *testing.T) {
	root := t.TempDir()
	// columns: frequency, b, a
	w1 := writeWindow(t, root, 1000, []string{
		"0.001 0.3 0.03\n0.002 0.6 0.06\n0.003 0.9 0.09\n",
		"0.001 0.1 0.01\n0.002 0.4 0.04\n0.003 0.7 0.07\n",
		"0.001 0.2 0.02\n0.002 0.5 0.05\n0.003 0.8 0.08\n",
	})
	w2 := writeWindow(t, root, 2000, []string{
		"0.001 1.3 1.03\n0.002 1.6 1.06\n0.003 1.9 1.09\n",
		"0.001 1.1 1.01\n0.002 1.4 1.04\n0.003 1.7 1.07\n",
		"0.001 1.2 1.02\n0.002 1.5 1.05\n0.003 1.8 1.08\n",
	})
	plan := Plan{Name: "run_e2e", Channels: []string{"b", "a"}, Windows: []Window{w2, w1}}

	var progressCalls int
	var mu sync.Mutex
	table, rep, err := Build(context.Background(), plan, Options{
		Workers:      2,
		GapTolerance: 1,
		Import:       chains.Options{Precision: 5},
		Progress: func(done, total int) {
			mu.Lock()
			progressCalls++
			mu.Unlock()
			if total != 2 || done < 1 || done > 2 {
				t.Errorf("progress(%d, %d)", done, total)
			}
		},
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(table.Records) != 12 || table.Len() != 12 {
		t.Fatalf("got %d records, want 12", len(table.Records))
	}
	if progressCalls != 2 {
		t.Errorf("progress called %d times", progressCalls)
	}
	if !slices.Equal(table.Channels, []string{"a", "b"}) {
		t.Errorf("Channels = %v", table.Channels)
	}
	if !slices.Equal(table.Times, []int64{1000, 2000}) || len(table.Missing) != 0 {
		t.Errorf("Times = %v Missing = %v", table.Times, table.Missing)
	}
	if rep.Windows != 2 || rep.Step != 1000 || rep.FillerRecords != 0 || rep.Records != 12 || rep.Chains != 3 {
		t.Errorf("unexpected report: %+v", rep)
	}

	want := map[Key]float64{
		{"a", 1000, 0.001}: 0.02, {"a", 1000, 0.002}: 0.05, {"a", 1000, 0.003}: 0.08,
		{"b", 1000, 0.001}: 0.2, {"b", 1000, 0.002}: 0.5, {"b", 1000, 0.003}: 0.8,
		{"a", 2000, 0.001}: 1.02, {"a", 2000, 0.002}: 1.05, {"a", 2000, 0.003}: 1.08,
		{"b", 2000, 0.001}: 1.2, {"b", 2000, 0.002}: 1.5, {"b", 2000, 0.003}: 1.8,
	}
	for i, r := range table.Records {
		if r.Missing() {
			t.Errorf("record %d unexpectedly missing: %+v", i, r)
			continue
		}
		if r.Median != want[r.Key] {
			t.Errorf("median %+v = %v, want %v", r.Key, r.Median, want[r.Key])
		}
		if i > 0 && !keyLess(table.Records[i-1].Key, r.Key) {
			t.Errorf("records out of order at %d: %+v then %+v", i, table.Records[i-1].Key, r.Key)
		}
	}
}

func keyLess(a, b Key) bool {
	if a.Channel != b.Channel {
		return a.Channel < b.Channel
	}
	if a.Time != b.Time {
		return a.Time < b.Time
	}
	return a.Freq < b.Freq
}

func TestBuild_FillsGapsRectangular(t *testing.T) {
	root := t.TempDir()
	runDir, err := chains.WriteSyntheticRun(root, chains.SyntheticRun{
		Start: 0, Step: 100, Windows: 6, Skip: []int{4},
		Chains: 5, Channels: 3, Freqs: 4, FreqStep: 0.001,
		SentinelRows: map[int][]int{1: {2}}, Seed: 9,
	})
	if err != nil {
		t.Fatal(err)
	}
	var windows []Window
	for _, gps := range []int64{0, 100, 200, 300, 500} {
		windows = append(windows, Window{Dir: filepath.Join(runDir, chains.WindowDirName(gps)), Time: gps})
	}
	plan := Plan{Name: "gappy", Channels: []string{"x", "y", "z"}, Windows: windows}

	table, rep, err := Build(context.Background(), plan, Options{Workers: 3, GapTolerance: 1, Import: chains.Options{Precision: 5}})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if !slices.Equal(table.Times, []int64{0, 100, 200, 300, 400, 500}) {
		t.Fatalf("Times = %v", table.Times)
	}
	if !slices.Equal(rep.MissingTimes, []int64{400}) || !table.IsMissingTime(400) || table.IsMissingTime(300) {
		t.Fatalf("missing = %v / %v", rep.MissingTimes, table.Missing)
	}
	if rep.FillerRecords != 3*4 {
		t.Errorf("FillerRecords = %d", rep.FillerRecords)
	}
	if rep.NoSampleRecords != 3 || rep.DroppedRows != 1 {
		t.Errorf("NoSampleRecords = %d DroppedRows = %d", rep.NoSampleRecords, rep.DroppedRows)
	}
	if len(table.Records) != 3*6*4 {
		t.Fatalf("len(Records) = %d", len(table.Records))
	}

	// every channel sees the same (time, freq) grid, in order
	for ci, ch := range table.Channels {
		for ti, tm := range table.Times {
			for fi, f := range table.Freqs {
				r := table.At(ci, ti, fi)
				if r.Channel != ch || r.Time != tm || r.Freq != f {
					t.Fatalf("slot (%d,%d,%d) holds %+v", ci, ti, fi, r.Key)
				}
				switch {
				case tm == 400:
					if r.Status != StatusMissingTime {
						t.Errorf("%+v should be a missing-time filler", r.Key)
					}
				case tm == 100 && fi == 2:
					if r.Status != StatusNoSamples {
						t.Errorf("%+v should have no samples", r.Key)
					}
				default:
					if r.Status != StatusObserved || r.Median <= 0 {
						t.Errorf("%+v should be observed, got %+v", r.Key, r)
					}
				}
			}
		}
	}
}

func TestBuild_Errors(t *testing.T) {
	good := []string{"0.001 0.1 0.1\n0.002 0.1 0.1\n"}

	t.Run("no windows", func(t *testing.T) {
		_, _, err := Build(context.Background(), Plan{Name: "r", Channels: []string{"x"}}, Options{})
		if !errors.Is(err, ErrNoWindows) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("duplicate time", func(t *testing.T) {
		root := t.TempDir()
		w := writeWindow(t, root, 10, good)
		_, _, err := Build(context.Background(), Plan{Name: "r", Channels: []string{"x", "y"}, Windows: []Window{w, w}}, Options{})
		if !errors.Is(err, ErrDuplicateTime) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("axis mismatch across windows", func(t *testing.T) {
		root := t.TempDir()
		w1 := writeWindow(t, root, 10, good)
		w2 := writeWindow(t, root, 20, []string{"0.001 0.1 0.1\n"})
		_, _, err := Build(context.Background(), Plan{Name: "r", Channels: []string{"x", "y"}, Windows: []Window{w1, w2}}, Options{})
		if !errors.Is(err, ErrAxisMismatch) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("malformed window aborts with context", func(t *testing.T) {
		root := t.TempDir()
		w1 := writeWindow(t, root, 10, good)
		w2 := writeWindow(t, root, 20, []string{"0.001 0.1\n"})
		_, _, err := Build(context.Background(), Plan{Name: "run_bad", Channels: []string{"x", "y"}, Windows: []Window{w1, w2}}, Options{Workers: 1})
		if !errors.Is(err, chains.ErrMalformedSample) {
			t.Fatalf("got %v", err)
		}
		if !strings.Contains(err.Error(), "run_bad") || !strings.Contains(err.Error(), "window 20") {
			t.Errorf("error lacks run/window context: %v", err)
		}
	})

	t.Run("missing window directory", func(t *testing.T) {
		root := t.TempDir()
		w1 := writeWindow(t, root, 10, good)
		w2 := Window{Dir: filepath.Join(root, "vanished"), Time: 20}
		_, _, err := Build(context.Background(), Plan{Name: "r", Channels: []string{"x", "y"}, Windows: []Window{w1, w2}}, Options{})
		if !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("got %v", err)
		}
	})
}

func TestBuilderRun_SavesOnceOnSuccess(t *testing.T) {
	root := t.TempDir()
	w := writeWindow(t, root, 10, []string{"0.001 0.1 0.2\n", "0.001 0.3 0.4\n", "0.001 0.5 0.6\n"})
	saver := &fakeSaver{}
	b := Builder{Store: saver, Options: Options{Import: chains.Options{Precision: 5}}}

	rep, err := b.Run(context.Background(), Plan{Name: "r", Channels: []string{"x", "y"}, Windows: []Window{w}}, "out/psd.db")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if saver.calls != 1 || saver.path != "out/psd.db" || rep.Path != "out/psd.db" {
		t.Fatalf("saver calls=%d path=%q report path=%q", saver.calls, saver.path, rep.Path)
	}
	if got := saver.table.Records[0].Median; got != 0.3 {
		t.Errorf("x median = %v, want 0.3", got)
	}
	if rep.Step != 0 || len(rep.MissingTimes) != 0 {
		t.Errorf("single window should have no step or gaps: %+v", rep)
	}
}

func TestBuilderRun_NothingSavedOnFailure(t *testing.T) {
	root := t.TempDir()
	good := writeWindow(t, root, 10, []string{"0.001 0.1 0.2\n"})
	bad := writeWindow(t, root, 20, []string{"0.001 x 0.2\n"})
	saver := &fakeSaver{}
	b := Builder{Store: saver}

	if _, err := b.Run(context.Background(), Plan{Name: "r", Channels: []string{"x", "y"}, Windows: []Window{good, bad}}, "p"); err == nil {
		t.Fatal("expected error")
	}
	if saver.calls != 0 {
		t.Errorf("Save called %d times after a failed build", saver.calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Run(ctx, Plan{Name: "r", Channels: []string{"x", "y"}, Windows: []Window{good}}, "p")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if saver.calls != 0 {
		t.Errorf("Save called after cancellation")
	}
}

func TestBuilderRun_SaveErrorSurfaces(t *testing.T) {
	root := t.TempDir()
	w := writeWindow(t, root, 10, []string{"0.001 0.1 0.2\n"})
	boom := errors.New("disk full")
	b := Builder{Store: &fakeSaver{err: boom}}
	_, err := b.Run(context.Background(), Plan{Name: "r", Channels: []string{"x", "y"}, Windows: []Window{w}}, "p")
	if !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	if _, err := (Builder{}).Run(context.Background(), Plan{}, "p"); err == nil {
		t.Error("expected error without a store")
	}
}
