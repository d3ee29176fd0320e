// cmd/psdsummary/plot.go
package psdsummary

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mwiater/psdsummary/internal/impacts"
	"github.com/mwiater/psdsummary/internal/render"
	"github.com/mwiater/psdsummary/internal/runinfo"
)

var (
	plotRun     string
	plotChannel string
	plotWidth   int
	plotHeight  int
	plotNearest bool
)

// plotCmd groups the chart commands.
var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Group commands for plotting a saved summary",
	Long:  `The 'plot' command groups subcommands that draw PNG charts from a run's saved summary into <out_root>/<mode>/<name>/plots. It performs no action on its own.`,
}

func init() {
	pf := plotCmd.PersistentFlags()
	pf.StringVar(&plotRun, "run", "", "run directory, or <mode>/<name> below the data root")
	pf.StringVar(&plotChannel, "channel", "", "plot only this channel (default every channel)")
	pf.IntVar(&plotWidth, "width", render.DefaultPanelWidth, "panel width in pixels")
	pf.IntVar(&plotHeight, "height", render.DefaultPanelHeight, "panel height in pixels")
	pf.BoolVar(&plotNearest, "nearest", true, "snap requested values to the closest indexed value")
	plotCmd.MarkPersistentFlagRequired("run")
	rootCmd.AddCommand(plotCmd)
}

// writePNG creates path and hands it to draw.
func writePNG(path string, draw func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := draw(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// loadImpacts reads the configured impacts file. A missing file means no
// impacts.
func loadImpacts() impacts.List {
	list, err := impacts.Load(cfg.ImpactsFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", cfg.ImpactsFile).Msg("ignoring impacts file")
		}
		return nil
	}
	return list
}

func plotOptions(r *runinfo.Run, title string) render.Options {
	return render.Options{
		Title:       title,
		PanelWidth:  plotWidth,
		PanelHeight: plotHeight,
		Start:       r.Start(),
		StartLabel:  r.StartDate(),
	}
}

func plotPath(r *runinfo.Run, kind, channel string) string {
	return filepath.Join(r.PlotDir, fmt.Sprintf("%s_%s_%s.png", r.Name, kind, channel))
}

func plotChannels(all []string) []string {
	if plotChannel == "" {
		return all
	}
	return []string{plotChannel}
}
