// internal/runinfo/runinfo.go
// Package: runinfo
//
// Package runinfo describes a run on disk: where its windows live, their GPS
// times, and where its summary and plots are written.
package runinfo

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mwiater/psdsummary/internal/config"
	"github.com/mwiater/psdsummary/internal/query"
	"github.com/mwiater/psdsummary/internal/summary"
)

var (
	ErrRunNotFound = errors.New("run not found")
	ErrEmptyRun    = errors.New("run has no time windows")
	ErrNoTime      = errors.New("directory name has no GPS time")
)

const secondsPerDay = 60 * 60 * 24

// Run is one observation campaign under <data_root>/<mode>/<name>.
type Run struct {
	Path string
	Mode string
	Name string
	// TimeDirs and Times are parallel and ascending by time.
	TimeDirs []string
	Times    []int64
	Channels []string

	OutputDir   string
	SummaryDir  string
	PlotDir     string
	SummaryFile string
}

// TimeFromDir returns the GPS time encoded in the trailing digits of a
// window directory's base name, e.g. run_1159724832 -> 1159724832.
func TimeFromDir(dir string) (int64, error) {
	base := filepath.Base(filepath.Clean(dir))
	trimmed := strings.TrimRight(base, "0123456789")
	digits := base[len(trimmed):]
	if digits == "" {
		return 0, fmt.Errorf("%s: %w", base, ErrNoTime)
	}
	gps, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", base, err)
	}
	return gps, nil
}

// Open reads the run at path. Subdirectories without a trailing GPS time are
// ignored.
func Open(path string, cfg config.Config) (*Run, error) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", path, ErrRunNotFound)
	}
	clean := filepath.Clean(path)
	r := &Run{
		Path:     clean,
		Name:     filepath.Base(clean),
		Mode:     filepath.Base(filepath.Dir(clean)),
		Channels: slices.Clone(cfg.Channels),
	}
	r.OutputDir = filepath.Join(cfg.OutRoot, r.Mode, r.Name)
	r.SummaryDir = filepath.Join(r.OutputDir, "summaries")
	r.PlotDir = filepath.Join(r.OutputDir, "plots")
	r.SummaryFile = filepath.Join(r.SummaryDir, cfg.SummaryFile)

	entries, err := os.ReadDir(clean)
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", clean, err)
	}
	type window struct {
		dir string
		gps int64
	}
	var windows []window
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		gps, err := TimeFromDir(e.Name())
		if err != nil {
			continue
		}
		windows = append(windows, window{filepath.Join(clean, e.Name()), gps})
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("%s: %w", clean, ErrEmptyRun)
	}
	slices.SortFunc(windows, func(a, b window) int {
		if c := cmp.Compare(a.gps, b.gps); c != 0 {
			return c
		}
		return strings.Compare(a.dir, b.dir)
	})
	for _, w := range windows {
		r.TimeDirs = append(r.TimeDirs, w.dir)
		r.Times = append(r.Times, w.gps)
	}
	return r, nil
}

// OpenAll opens every path concurrently and returns the runs that exist, in
// input order. Missing or empty runs are logged and skipped.
func OpenAll(paths []string, cfg config.Config, log *zerolog.Logger) []*Run {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	runs := make([]*Run, len(paths))
	var wg sync.WaitGroup
	for i, p := range paths {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			r, err := Open(p, cfg)
			if err != nil {
				log.Warn().Err(err).Str("path", p).Msg("skipping run")
				return
			}
			runs[i] = r
		}(i, p)
	}
	wg.Wait()
	return slices.DeleteFunc(runs, func(r *Run) bool { return r == nil })
}

// Discover lists every <dataRoot>/<mode>/<name> directory, sorted.
func Discover(dataRoot string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dataRoot, "*", "*"))
	if err != nil {
		return nil, err
	}
	var runs []string
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.IsDir() {
			runs = append(runs, m)
		}
	}
	slices.Sort(runs)
	return runs, nil
}

// Plan converts the run into builder input.
func (r *Run) Plan() summary.Plan {
	p := summary.Plan{Name: r.Name, Channels: slices.Clone(r.Channels)}
	for i, d := range r.TimeDirs {
		p.Windows = append(p.Windows, summary.Window{Dir: d, Time: r.Times[i]})
	}
	return p
}

// EnsureDirs creates the summary and plot directories.
func (r *Run) EnsureDirs() error {
	for _, d := range []string{r.SummaryDir, r.PlotDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}

// Start is the first window's GPS time.
func (r *Run) Start() int64 { return r.Times[0] }

// Step is the median spacing of the run's windows.
func (r *Run) Step() int64 { return summary.MedianStep(r.Times) }

// MissingTimes lists the times the run skipped.
func (r *Run) MissingTimes(tol int64) []int64 {
	return summary.MissingTimes(r.Times, r.Step(), tol)
}

// DaysElapsed converts a GPS time to days since the run started.
func (r *Run) DaysElapsed(gps int64) float64 {
	return float64(gps-r.Start()) / secondsPerDay
}

// GPSFromDay converts days since the run started back to a GPS time,
// truncated to the second.
func (r *Run) GPSFromDay(day float64) int64 {
	return int64(secondsPerDay*day + float64(r.Start()))
}

// NearestTime maps an approximate GPS time onto the run's window times.
func (r *Run) NearestTime(approx int64) int64 {
	lo, hi := r.Start(), r.Times[len(r.Times)-1]
	i := query.NearestIndex(float64(approx-lo), 0, float64(hi-lo), len(r.Times))
	return r.Times[i]
}

// ISODate formats gps as a UTC date.
func (r *Run) ISODate(gps int64) string { return ISODate(gps) }

// StartDate is the ISO date of the first window.
func (r *Run) StartDate() string { return ISODate(r.Start()) }

// ISODate formats gps as "2006-01-02 15:04:05.000" UTC.
func ISODate(gps int64) string {
	return GPSToUTC(gps).Format("2006-01-02 15:04:05.000")
}

var gpsEpoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

// leapSeconds are the UTC instants at which a leap second took effect after
// the GPS epoch.
var leapSeconds = []time.Time{
	time.Date(1981, time.July, 1, 0, 0, 0, 0, time.UTC),
	time.Date(1982, time.July, 1, 0, 0, 0, 0, time.UTC),
	time.Date(1983, time.July, 1, 0, 0, 0, 0, time.UTC),
	time.Date(1985, time.July, 1, 0, 0, 0, 0, time.UTC),
	time.Date(1988, time.January, 1, 0, 0, 0, 0, time.UTC),
	time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC),
	time.Date(1991, time.January, 1, 0, 0, 0, 0, time.UTC),
	time.Date(1992, time.July, 1, 0, 0, 0, 0, time.UTC),
	time.Date(1993, time.July, 1, 0, 0, 0, 0, time.UTC),
	time.Date(1994, time.July, 1, 0, 0, 0, 0, time.UTC),
	time.Date(1996, time.January, 1, 0, 0, 0, 0, time.UTC),
	time.Date(1997, time.July, 1, 0, 0, 0, 0, time.UTC),
	time.Date(1999, time.January, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2006, time.January, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2009, time.January, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2012, time.July, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2015, time.July, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2017, time.January, 1, 0, 0, 0, 0, time.UTC),
}

// GPSToUTC converts GPS seconds to UTC. The inserted second itself maps onto
// the following midnight.
func GPSToUTC(gps int64) time.Time {
	offset := int64(0)
	for i, l := range leapSeconds {
		// GPS time at which leap i is in effect: its UTC distance from the
		// epoch plus the i+1 leaps counted so far.
		if gps >= int64(l.Sub(gpsEpoch)/time.Second)+int64(i+1) {
			offset++
		}
	}
	return gpsEpoch.Add(time.Duration(gps-offset) * time.Second)
}
