// cmd/psdsummary/list_runs.go
package psdsummary

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mwiater/psdsummary/cli"
	"github.com/mwiater/psdsummary/internal/runinfo"
	"github.com/mwiater/psdsummary/internal/store"
)

// listRunsCmd implements 'list runs', which shows every run under the data
// root together with the state of its summary.
var listRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List runs under the data root and their summaries",
	Long:  `The 'runs' subcommand lists every <data_root>/<mode>/<name> run with its window count, start date, window spacing, skipped times and whether a summary has been saved.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := runinfo.Discover(cfg.DataRoot)
		if err != nil {
			return err
		}
		runs := runinfo.OpenAll(paths, cfg, log)
		if len(runs) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No runs under %s\n", cfg.DataRoot)
			return nil
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			rows = append(rows, []string{
				r.Mode,
				r.Name,
				strconv.Itoa(len(r.Times)),
				r.StartDate(),
				strconv.FormatInt(r.Step(), 10),
				strconv.Itoa(len(r.MissingTimes(cfg.GapTolerance))),
				summaryState(ctx, r.SummaryFile),
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable(
			[]string{"mode", "run", "windows", "start (UTC)", "step (s)", "skipped", "summary"}, rows))
		return nil
	},
}

func init() {
	listCmd.AddCommand(listRunsCmd)
}

func summaryState(ctx context.Context, path string) string {
	if !store.Exists(path) {
		return "-"
	}
	m, err := store.ReadMeta(ctx, path)
	if err != nil {
		return "unreadable: " + err.Error()
	}
	return m.Created.Format("2006-01-02 15:04")
}
