// cmd/psdsummary/query_wide.go
package psdsummary

import (
	"encoding/csv"
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mwiater/psdsummary/internal/query"
)

// queryWideCmd implements 'query wide', a CSV pivot of one channel.
var queryWideCmd = &cobra.Command{
	Use:   "wide",
	Short: "Write one channel's medians as a frequency by time CSV",
	Long:  `The 'wide' subcommand pivots the medians of the channel chosen with --channel into a CSV grid with one row per frequency and one column per GPS time. Missing records are written as NaN.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if queryChannel == "" {
			return errors.New("--channel is required")
		}
		_, t, err := loadSummary(cmd, runPath)
		if err != nil {
			return err
		}
		g, err := query.ToWide(t, queryChannel)
		if err != nil {
			return err
		}
		w := csv.NewWriter(cmd.OutOrStdout())
		header := []string{"freq"}
		for _, tm := range g.Times {
			header = append(header, strconv.FormatInt(tm, 10))
		}
		if err := w.Write(header); err != nil {
			return err
		}
		for fi, f := range g.Freqs {
			row := []string{strconv.FormatFloat(f, 'f', -1, 64)}
			for _, v := range g.Values[fi] {
				row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	},
}

func init() {
	queryCmd.AddCommand(queryWideCmd)
}
