// cmd/psdsummary/root.go
package psdsummary

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwiater/psdsummary/internal/config"
	"github.com/mwiater/psdsummary/internal/logging"
)

var (
	cfgFile string
	v       = viper.New()

	// cfg and log are resolved once per invocation in PersistentPreRunE and
	// handed to every component explicitly.
	cfg config.Config
	log *zerolog.Logger = logging.Nop()
)

// rootCmd is the base Cobra command. All subcommands are attached to it.
var rootCmd = &cobra.Command{
	Use:   "psdsummary",
	Short: "Summarize and explore per-run PSD posterior samples",
	Long: `psdsummary turns the raw per-chain PSD samples of a run into one summary
table (median and 50%/90% credible intervals per channel, time and frequency),
stores it as a single SQLite file, and queries and plots it.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root Cobra command and all registered subcommands.
// SIGINT and SIGTERM cancel the command's context so an interrupted build
// cleans up before the process exits. It prints any returned error and exits
// with a non-zero status code on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./psdsummary.yaml or $HOME/.config/psdsummary/psdsummary.yaml)")
	pf.String("data-root", config.DefaultDataRoot, "directory holding <mode>/<name> runs")
	pf.String("out-root", config.DefaultOutRoot, "directory receiving summaries and plots")
	pf.String("log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")
	pf.Bool("debug", false, "debug logging and a dump of the resolved run plans")

	v.BindPFlag("data_root", pf.Lookup("data-root"))
	v.BindPFlag("out_root", pf.Lookup("out-root"))
	v.BindPFlag("log_level", pf.Lookup("log-level"))
	v.BindPFlag("debug", pf.Lookup("debug"))
	config.Defaults(v)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if err := config.ReadFile(v, cfgFile); err != nil {
		return err
	}
	c, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg = c
	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	log = logging.New(cmd.ErrOrStderr(), level)
	log.Debug().Str("config", v.ConfigFileUsed()).Str("data_root", cfg.DataRoot).
		Str("out_root", cfg.OutRoot).Strs("channels", cfg.Channels).Msg("configuration loaded")
	return nil
}
