// cmd/psdsummary/query.go
package psdsummary

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mwiater/psdsummary/internal/runinfo"
	"github.com/mwiater/psdsummary/internal/store"
	"github.com/mwiater/psdsummary/internal/summary"
)

var (
	runPath      string
	queryChannel string
	useNearest   bool
)

// queryCmd groups the read-only lookups over a saved summary.
var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Group commands for querying a saved summary",
	Long:  `The 'query' command groups subcommands that read a run's saved summary table and print slices of it. It performs no action on its own.`,
}

func init() {
	pf := queryCmd.PersistentFlags()
	pf.StringVar(&runPath, "run", "", "run directory, or <mode>/<name> below the data root")
	pf.StringVar(&queryChannel, "channel", "", "restrict output to one channel")
	queryCmd.MarkPersistentFlagRequired("run")
	rootCmd.AddCommand(queryCmd)
}

// openRun resolves a run given as a path or as <mode>/<name> below the data root.
func openRun(name string) (*runinfo.Run, error) {
	if name == "" {
		return nil, errors.New("--run is required")
	}
	if _, err := os.Stat(name); err != nil && !filepath.IsAbs(name) {
		if alt := filepath.Join(cfg.DataRoot, name); alt != name {
			if _, err := os.Stat(alt); err == nil {
				name = alt
			}
		}
	}
	return runinfo.Open(name, cfg)
}

// loadSummary opens the run and loads its saved table.
func loadSummary(cmd *cobra.Command, name string) (*runinfo.Run, *summary.Table, error) {
	r, err := openRun(name)
	if err != nil {
		return nil, nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	t, err := store.Load(ctx, r.SummaryFile)
	if err != nil {
		return nil, nil, fmt.Errorf("run %s: %w (run 'psdsummary summarize' first)", r.Name, err)
	}
	log.Debug().Str("run", r.Name).Int("records", len(t.Records)).Msg("summary loaded")
	return r, t, nil
}

// channels returns the channels selected by --channel.
func channels(t *summary.Table) []string {
	if queryChannel == "" {
		return t.Channels
	}
	return []string{queryChannel}
}

func keepChannel(ch string) bool {
	return queryChannel == "" || queryChannel == ch
}

func fmtStat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// recordRow renders the statistic columns of r; missing records show their
// status instead.
func recordRow(r summary.Record) []string {
	if r.Missing() {
		return []string{r.Status.String(), "-", "-", "-", "-", "-"}
	}
	return []string{
		r.Status.String(),
		fmtStat(r.Median),
		fmtStat(r.CI50Lo), fmtStat(r.CI50Hi),
		fmtStat(r.CI90Lo), fmtStat(r.CI90Hi),
	}
}

var statHeaders = []string{"status", "median", "ci50 lo", "ci50 hi", "ci90 lo", "ci90 hi"}
