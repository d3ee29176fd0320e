// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Default values applied by Defaults. They mirror the instrument layout the
// summaries were first produced for.
var (
	DefaultChannels = []string{"x", "y", "z", "θ", "η", "ϕ"}
)

const (
	DefaultDataRoot     = "data"
	DefaultOutRoot      = "out"
	DefaultPrecision    = 5
	DefaultSentinel     = 2.0
	DefaultGapTolerance = 1
	DefaultSummaryFile  = "psd.db"
	DefaultImpactsFile  = "impacts.dat"
	DefaultLogLevel     = "info"
	EnvPrefix           = "PSDSUMMARY"
)

// Config is the resolved run configuration. It is built once per command
// invocation and passed explicitly to every component.
type Config struct {
	// DataRoot holds runs laid out as <mode>/<name>/<window>/psd.dat.N.
	DataRoot string `mapstructure:"data_root"`
	// OutRoot receives <mode>/<name>/summaries and <mode>/<name>/plots.
	OutRoot string `mapstructure:"out_root"`
	// Channels lists the instrument axes in raw-file column order.
	Channels []string `mapstructure:"channels"`
	// Precision is the number of decimals frequencies are rounded to.
	Precision int `mapstructure:"precision"`
	// Sentinel marks an invalid row when the first data column reaches it.
	Sentinel float64 `mapstructure:"sentinel"`
	// ExpectedChains, when positive, is the exact chain count every window must have.
	ExpectedChains int `mapstructure:"expected_chains"`
	// Workers bounds the number of windows summarized concurrently.
	Workers int `mapstructure:"workers"`
	// GapTolerance is the slack in seconds before a spacing counts as a gap.
	GapTolerance int64 `mapstructure:"gap_tolerance"`
	// SummaryFile is the artifact name inside the summaries directory.
	SummaryFile string `mapstructure:"summary_file"`
	// ImpactsFile is the optional impacts table.
	ImpactsFile string `mapstructure:"impacts_file"`
	LogLevel    string `mapstructure:"log_level"`
	Debug       bool   `mapstructure:"debug"`
}

// Defaults registers every key with its default value on v.
func Defaults(v *viper.Viper) {
	v.SetDefault("data_root", DefaultDataRoot)
	v.SetDefault("out_root", DefaultOutRoot)
	v.SetDefault("channels", DefaultChannels)
	v.SetDefault("precision", DefaultPrecision)
	v.SetDefault("sentinel", DefaultSentinel)
	v.SetDefault("expected_chains", 0)
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("gap_tolerance", DefaultGapTolerance)
	v.SetDefault("summary_file", DefaultSummaryFile)
	v.SetDefault("impacts_file", DefaultImpactsFile)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("debug", false)
}

// ReadFile points v at an explicit config file, or searches the working
// directory and $HOME/.config/psdsummary for psdsummary.yaml. A missing
// config file is not an error; defaults and environment still apply.
func ReadFile(v *viper.Viper, path string) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("psdsummary")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/psdsummary")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("could not read config file: %w", err)
	}
	return nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("could not decode config: %w", err)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if len(c.Channels) == 0 {
		return errors.New("config must contain at least one channel")
	}
	seen := make(map[string]struct{}, len(c.Channels))
	for _, ch := range c.Channels {
		if strings.TrimSpace(ch) == "" {
			return errors.New("channel names must not be empty")
		}
		if _, dup := seen[ch]; dup {
			return fmt.Errorf("duplicate channel %q", ch)
		}
		seen[ch] = struct{}{}
	}
	if c.Precision < 1 || c.Precision > 12 {
		return fmt.Errorf("precision must be between 1 and 12, got %d", c.Precision)
	}
	if c.Sentinel <= 0 {
		return fmt.Errorf("sentinel must be positive, got %g", c.Sentinel)
	}
	if c.ExpectedChains < 0 {
		return fmt.Errorf("expected_chains must not be negative, got %d", c.ExpectedChains)
	}
	if c.GapTolerance < 0 {
		return fmt.Errorf("gap_tolerance must not be negative, got %d", c.GapTolerance)
	}
	if c.SummaryFile == "" {
		return errors.New("summary_file must not be empty")
	}
	return nil
}
