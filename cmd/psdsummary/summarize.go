// cmd/psdsummary/summarize.go
package psdsummary

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/k0kubun/pp"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/mwiater/psdsummary/cli"
	"github.com/mwiater/psdsummary/internal/chains"
	"github.com/mwiater/psdsummary/internal/runinfo"
	"github.com/mwiater/psdsummary/internal/store"
	"github.com/mwiater/psdsummary/internal/summary"
)

var (
	overwriteAll bool
	keepAll      bool
	noProgress   bool
)

// summarizeCmd implements 'summarize', which builds and saves the summary
// table of each run.
var summarizeCmd = &cobra.Command{
	Use:   "summarize [run paths...]",
	Short: "Build the summary table of one or more runs",
	Long: `The 'summarize' command reads every time window of each run, computes the
median and 50%/90% credible intervals per channel and frequency, fills skipped
times with missing records and saves the table under
<out_root>/<mode>/<name>/summaries. Without arguments every <data_root>/<mode>/<name>
run is summarized. Run paths that do not exist are reported and skipped.`,
	RunE: runSummarize,
}

func init() {
	f := summarizeCmd.Flags()
	f.BoolVar(&overwriteAll, "overwrite-all", false, "replace existing summaries without asking")
	f.BoolVar(&keepAll, "keep-all", false, "skip runs that already have a summary")
	f.BoolVar(&noProgress, "no-progress", false, "never draw the progress view")
	f.Int("workers", 0, "windows summarized concurrently (default from config)")
	v.BindPFlag("workers", f.Lookup("workers"))
	rootCmd.AddCommand(summarizeCmd)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	if overwriteAll && keepAll {
		return errors.New("--overwrite-all and --keep-all are mutually exclusive")
	}
	paths := args
	if len(paths) == 0 {
		found, err := runinfo.Discover(cfg.DataRoot)
		if err != nil {
			return err
		}
		paths = found
	}
	runs := runinfo.OpenAll(paths, cfg, log)
	if len(runs) == 0 {
		return fmt.Errorf("no runs found under %s", cfg.DataRoot)
	}
	if cfg.Debug {
		plans := make([]summary.Plan, len(runs))
		for i, r := range runs {
			plans[i] = r.Plan()
		}
		pp.Fprintln(cmd.ErrOrStderr(), plans)
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, r := range runs {
		if store.Exists(r.SummaryFile) {
			switch {
			case keepAll:
				log.Info().Str("run", r.Name).Str("path", r.SummaryFile).Msg("summary exists, keeping it")
				continue
			case !overwriteAll:
				prompt := fmt.Sprintf("Summary %s already exists. Overwrite?", r.SummaryFile)
				if !cli.Confirm(cmd.InOrStdin(), out, prompt) {
					log.Info().Str("run", r.Name).Msg("skipped")
					continue
				}
			}
		}
		rep, err := summarizeRun(cmd, r)
		if err != nil {
			failed++
			log.Error().Err(err).Str("run", r.Name).Msg("summarize failed")
			fmt.Fprintln(out, cli.RenderError(r.Name, err))
			if errors.Is(err, context.Canceled) {
				return err
			}
			continue
		}
		fmt.Fprintln(out, cli.RenderReport(rep))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(runs))
	}
	return nil
}

func summarizeRun(cmd *cobra.Command, r *runinfo.Run) (summary.Report, error) {
	if err := r.EnsureDirs(); err != nil {
		return summary.Report{}, err
	}
	b := summary.Builder{
		Store: store.Store{Log: log},
		Options: summary.Options{
			Workers:      cfg.Workers,
			GapTolerance: cfg.GapTolerance,
			Logger:       log,
			Import: chains.Options{
				Precision:      cfg.Precision,
				Sentinel:       cfg.Sentinel,
				ExpectedChains: cfg.ExpectedChains,
			},
		},
	}
	job := func(ctx context.Context, progress func(done, total int)) (summary.Report, error) {
		b.Options.Progress = progress
		return b.Run(ctx, r.Plan(), r.SummaryFile)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if showProgress(cmd) {
		return cli.RunWithProgress(ctx, cmd.InOrStdin(), cmd.ErrOrStderr(), r.Name, job)
	}
	return job(ctx, nil)
}

// showProgress is true only when stderr is the process's own terminal.
func showProgress(cmd *cobra.Command) bool {
	if noProgress || cmd.ErrOrStderr() != os.Stderr {
		return false
	}
	return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
}
