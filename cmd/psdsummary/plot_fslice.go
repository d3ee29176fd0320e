// cmd/psdsummary/plot_fslice.go
package psdsummary

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mwiater/psdsummary/internal/query"
	"github.com/mwiater/psdsummary/internal/render"
	"github.com/mwiater/psdsummary/internal/summary"
)

// defaultSlices is the number of frequencies drawn when none are given.
const defaultSlices = 4

// plotFsliceCmd implements 'plot fslice [hz...]'.
var plotFsliceCmd = &cobra.Command{
	Use:   "fslice [hz...]",
	Short: "Plot PSD against time at chosen frequencies",
	Long: `The 'fslice' subcommand draws, for each channel, one panel per requested
frequency showing the median PSD and its 50% and 90% credible intervals
against days elapsed since the start of the run. Impacts from the impacts file
are marked along the bottom of each panel. Without arguments a few evenly
spaced frequencies are drawn.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, t, err := loadSummary(cmd, plotRun)
		if err != nil {
			return err
		}
		freqs, err := sliceFreqs(t, args)
		if err != nil {
			return err
		}
		if err := r.EnsureDirs(); err != nil {
			return err
		}
		imps := loadImpacts()
		for _, ch := range plotChannels(t.Channels) {
			series := make([]query.Series, 0, len(freqs))
			for _, f := range freqs {
				s, err := query.FrequencySeries(t, ch, f)
				if err != nil {
					return err
				}
				series = append(series, s)
			}
			path := plotPath(r, "fslice", ch)
			opts := plotOptions(r, fmt.Sprintf("%s: channel %s", r.Name, ch))
			if err := writePNG(path, func(f *os.File) error {
				return render.FrequencySlices(f, opts, series, imps)
			}); err != nil {
				return fmt.Errorf("plot %s: %w", ch, err)
			}
			log.Info().Str("run", r.Name).Str("channel", ch).Str("path", path).Msg("frequency slices written")
			fmt.Fprintln(cmd.OutOrStdout(), path)
		}
		return nil
	},
}

func init() {
	plotCmd.AddCommand(plotFsliceCmd)
}

// sliceFreqs parses the requested frequencies, or picks evenly spaced bins.
func sliceFreqs(t *summary.Table, args []string) ([]float64, error) {
	if len(args) == 0 {
		n := min(defaultSlices, len(t.Freqs))
		out := make([]float64, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, t.Freqs[i*len(t.Freqs)/n])
		}
		return out, nil
	}
	out := make([]float64, 0, len(args))
	for _, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid frequency %q: %w", a, err)
		}
		if plotNearest {
			if f, err = query.NearestFrequency(t, f); err != nil {
				return nil, err
			}
		}
		out = append(out, f)
	}
	return out, nil
}
