// cmd/psdsummary/query_freq.go
package psdsummary

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mwiater/psdsummary/cli"
	"github.com/mwiater/psdsummary/internal/query"
)

var freqNearest bool

// queryFreqCmd implements 'query freq <hz>'.
var queryFreqCmd = &cobra.Command{
	Use:   "freq <hz>",
	Short: "Print every channel and time at one frequency",
	Long:  `The 'freq' subcommand prints the summary records of every channel and time at the given frequency. With --nearest the closest bin of the frequency axis is used instead of requiring an exact match.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		freq, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid frequency %q: %w", args[0], err)
		}
		_, t, err := loadSummary(cmd, runPath)
		if err != nil {
			return err
		}
		if freqNearest {
			if freq, err = query.NearestFrequency(t, freq); err != nil {
				return err
			}
		}
		recs, err := query.SliceByFrequency(t, freq)
		if err != nil {
			return err
		}
		var rows [][]string
		for _, r := range recs {
			if !keepChannel(r.Channel) {
				continue
			}
			rows = append(rows, append([]string{r.Channel, strconv.FormatInt(r.Time, 10)}, recordRow(r)...))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Hz\n", strconv.FormatFloat(freq, 'f', -1, 64))
		fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable(append([]string{"channel", "gps"}, statHeaders...), rows))
		return nil
	},
}

func init() {
	queryFreqCmd.Flags().BoolVar(&freqNearest, "nearest", false, "snap to the closest frequency bin")
	queryCmd.AddCommand(queryFreqCmd)
}
