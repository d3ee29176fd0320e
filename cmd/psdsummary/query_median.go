// cmd/psdsummary/query_median.go
package psdsummary

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mwiater/psdsummary/cli"
	"github.com/mwiater/psdsummary/internal/query"
)

// queryMedianCmd implements 'query median', the median spectrum over time.
var queryMedianCmd = &cobra.Command{
	Use:   "median",
	Short: "Print the median over time of each channel's spectrum",
	Long:  `The 'median' subcommand prints, per frequency, the median over all observed times of the per-time medians of each selected channel. Missing records are ignored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, t, err := loadSummary(cmd, runPath)
		if err != nil {
			return err
		}
		chs := channels(t)
		cols := make([][]float64, len(chs))
		for i, ch := range chs {
			if cols[i], err = query.AggregateMedian(t, ch); err != nil {
				return err
			}
		}
		rows := make([][]string, len(t.Freqs))
		for fi, f := range t.Freqs {
			row := []string{strconv.FormatFloat(f, 'f', -1, 64)}
			for i := range chs {
				row = append(row, fmtStat(cols[i][fi]))
			}
			rows[fi] = row
		}
		fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable(append([]string{"freq (Hz)"}, chs...), rows))
		return nil
	},
}

func init() {
	queryCmd.AddCommand(queryMedianCmd)
}
