// cmd/psdsummary/plot_tslice.go
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

// plotTsliceCmd implements 'plot tslice [gps...]'.
var plotTsliceCmd = &cobra.Command{
	Use:   "tslice [gps...]",
	Short: "Plot the PSD spectrum at chosen GPS times",
	Long: `The 'tslice' subcommand draws, for each channel, one log-log panel per
requested GPS time showing the median spectrum with its 50% and 90% credible
intervals. Without arguments a few evenly spaced times are drawn.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, t, err := loadSummary(cmd, plotRun)
		if err != nil {
			return err
		}
		times, err := sliceTimes(t, args)
		if err != nil {
			return err
		}
		if err := r.EnsureDirs(); err != nil {
			return err
		}
		for _, ch := range plotChannels(t.Channels) {
			spectra := make([]query.Spectrum, 0, len(times))
			for _, tm := range times {
				s, err := query.SpectrumAt(t, ch, tm)
				if err != nil {
					return err
				}
				spectra = append(spectra, s)
			}
			path := plotPath(r, "tslice", ch)
			opts := plotOptions(r, fmt.Sprintf("%s: channel %s", r.Name, ch))
			if err := writePNG(path, func(f *os.File) error {
				return render.TimeSlices(f, opts, spectra)
			}); err != nil {
				return fmt.Errorf("plot %s: %w", ch, err)
			}
			log.Info().Str("run", r.Name).Str("channel", ch).Str("path", path).Msg("time slices written")
			fmt.Fprintln(cmd.OutOrStdout(), path)
		}
		return nil
	},
}

func init() {
	plotCmd.AddCommand(plotTsliceCmd)
}

// sliceTimes parses the requested GPS times, or picks evenly spaced ones.
func sliceTimes(t *summary.Table, args []string) ([]int64, error) {
	if len(args) == 0 {
		n := min(defaultSlices, len(t.Times))
		out := make([]int64, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, t.Times[i*len(t.Times)/n])
		}
		return out, nil
	}
	out := make([]int64, 0, len(args))
	for _, a := range args {
		gps, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid GPS time %q: %w", a, err)
		}
		if plotNearest {
			if gps, err = query.NearestTime(t, gps); err != nil {
				return nil, err
			}
		}
		out = append(out, gps)
	}
	return out, nil
}
