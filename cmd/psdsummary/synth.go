// cmd/psdsummary/synth.go
package psdsummary

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwiater/psdsummary/internal/chains"
)

var synth chains.SyntheticRun

// synthCmd implements 'synth', which writes a generated run for demos.
var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Write a synthetic run below the data root",
	Long: `The 'synth' command writes a generated run as <data_root>/<mode>/<name>/<window>/psd.dat.N
with one data column per configured channel. Windows listed with --skip are left
out so the run has gaps to fill.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := synth
		s.Channels = len(cfg.Channels)
		dir, err := chains.WriteSyntheticRun(cfg.DataRoot, s)
		if err != nil {
			return err
		}
		log.Info().Str("path", dir).Int("windows", s.Windows-len(s.Skip)).Int("chains", s.Chains).Msg("synthetic run written")
		fmt.Fprintln(cmd.OutOrStdout(), dir)
		return nil
	},
}

func init() {
	f := synthCmd.Flags()
	f.StringVar(&synth.Mode, "mode", "synth", "mode directory of the run")
	f.StringVar(&synth.Name, "name", "run_synth", "run directory name")
	f.Int64Var(&synth.Start, "start", 1159724832, "GPS time of the first window")
	f.Int64Var(&synth.Step, "step", 1637, "seconds between windows")
	f.IntVar(&synth.Windows, "windows", 24, "number of windows, including skipped ones")
	f.IntSliceVar(&synth.Skip, "skip", nil, "window indices to leave out")
	f.IntVar(&synth.Chains, "chains", 50, "chain files per window")
	f.IntVar(&synth.Freqs, "freqs", 64, "frequency bins per chain file")
	f.Float64Var(&synth.FreqStep, "freq-step", 1e-3, "bin spacing in Hz")
	f.Uint64Var(&synth.Seed, "seed", 1, "random seed")
	rootCmd.AddCommand(synthCmd)
}
