// cmd/psdsummary/list_impacts.go
package psdsummary

import (
	"fmt"
	"math"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mwiater/psdsummary/cli"
	"github.com/mwiater/psdsummary/internal/impacts"
)

var impactsFrom, impactsTo float64

// listImpactsCmd implements 'list impacts', which prints the impacts file.
var listImpactsCmd = &cobra.Command{
	Use:   "impacts",
	Short: "List micrometeoroid impacts from the impacts file",
	Long:  `The 'impacts' subcommand prints the rows of the configured impacts file, optionally restricted to a GPS time range with --from and --to.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := impacts.Load(cfg.ImpactsFile)
		if err != nil {
			return err
		}
		lo, hi := math.Inf(-1), math.Inf(1)
		if cmd.Flags().Changed("from") {
			lo = impactsFrom
		}
		if cmd.Flags().Changed("to") {
			hi = impactsTo
		}
		list = list.Between(lo, hi)
		rows := make([][]string, 0, len(list))
		for _, imp := range list {
			rows = append(rows, []string{
				imp.Date,
				formatValue(imp.GPS, 0),
				formatValue(imp.PMed, 3),
				fmt.Sprintf("[%s, %s]", formatValue(imp.PCILo, 3), formatValue(imp.PCIHi, 3)),
				orNA(imp.Face),
				orNA(imp.Local),
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable(
			[]string{"date", "gps", "p_med", "p_ci", "face", "local"}, rows))
		fmt.Fprintf(cmd.OutOrStdout(), "%d impacts\n", len(list))
		return nil
	},
}

func init() {
	listImpactsCmd.Flags().Float64Var(&impactsFrom, "from", 0, "earliest GPS time")
	listImpactsCmd.Flags().Float64Var(&impactsTo, "to", 0, "latest GPS time")
	listCmd.AddCommand(listImpactsCmd)
}

func orNA(s string) string {
	if s == "" {
		return impacts.NA
	}
	return s
}

// formatValue prints v with prec decimals, or the na token for NaN.
func formatValue(v float64, prec int) string {
	if math.IsNaN(v) {
		return impacts.NA
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}
