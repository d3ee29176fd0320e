// cmd/psdsummary/query_time.go
package psdsummary

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mwiater/psdsummary/cli"
	"github.com/mwiater/psdsummary/internal/query"
	"github.com/mwiater/psdsummary/internal/runinfo"
)

// queryTimeCmd implements 'query time <gps>'.
var queryTimeCmd = &cobra.Command{
	Use:   "time <gps>",
	Short: "Print every channel and frequency at one GPS time",
	Long:  `The 'time' subcommand prints the summary records of every channel and frequency at the given GPS time. With --nearest the closest indexed time is used instead of requiring an exact match.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gps, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid GPS time %q: %w", args[0], err)
		}
		_, t, err := loadSummary(cmd, runPath)
		if err != nil {
			return err
		}
		if useNearest {
			if gps, err = query.NearestTime(t, gps); err != nil {
				return err
			}
		}
		recs, err := query.SliceByTime(t, gps)
		if err != nil {
			return err
		}
		var rows [][]string
		for _, r := range recs {
			if !keepChannel(r.Channel) {
				continue
			}
			rows = append(rows, append([]string{r.Channel, strconv.FormatFloat(r.Freq, 'f', -1, 64)}, recordRow(r)...))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "GPS %d (%s UTC)\n", gps, runinfo.ISODate(gps))
		fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable(append([]string{"channel", "freq (Hz)"}, statHeaders...), rows))
		return nil
	},
}

func init() {
	queryTimeCmd.Flags().BoolVar(&useNearest, "nearest", false, "snap to the closest indexed time")
	queryCmd.AddCommand(queryTimeCmd)
}
