// Package config reads .watchrun.yaml: the runtime settings through viper
// (Load) and the tasks and watch groups through yaml.v3 (ParseTaskfile).
//
// A setting given as a flag beats WATCHRUN_* in the environment, which beats
// the file, which beats the built-in default.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Log levels accepted by --log-level.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Log formats accepted by --log-format.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// DefaultDebounce is how long a watch group waits for changes to settle.
const DefaultDebounce = 500 * time.Millisecond

var (
	logLevels  = []string{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError}
	logFormats = []string{LogFormatText, LogFormatJSON}
)

// fileName is looked up in the working directory and in ~/.config/watchrun.
const fileName = ".watchrun"

// Config holds the settings every watchrun command shares.
type Config struct {
	LogLevel  string `mapstructure:"log-level" json:"logLevel"`
	LogFormat string `mapstructure:"log-format" json:"logFormat"`
	NoColor   bool   `mapstructure:"no-color" json:"noColor"`

	// Quiet hides task progress and raises the log level to error.
	Quiet bool `mapstructure:"quiet" json:"quiet"`

	Debounce time.Duration `mapstructure:"debounce" json:"debounce"`

	// ConfigFile is the .watchrun.yaml that Load picked up, empty if none.
	ConfigFile string `mapstructure:"-" json:"-"`
}

// Default is the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		LogLevel:  LogLevelInfo,
		LogFormat: LogFormatText,
		NoColor:   false,
		Quiet:     false,
		Debounce:  DefaultDebounce,
	}
}

// Validate rejects unknown log settings and a non-positive debounce.
func (c *Config) Validate() error {
	if !slices.Contains(logLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level %q: must be one of %s", c.LogLevel, strings.Join(logLevels, ", "))
	}

	if !slices.Contains(logFormats, c.LogFormat) {
		return fmt.Errorf("invalid log format %q: must be one of %s", c.LogFormat, strings.Join(logFormats, ", "))
	}

	if c.Debounce <= 0 {
		return fmt.Errorf("invalid debounce %s: must be greater than zero", c.Debounce)
	}

	return nil
}

// EffectiveLogLevel is LogLevel, or "error" under --quiet.
func (c *Config) EffectiveLogLevel() string {
	if c.Quiet {
		return LogLevelError
	}

	return c.LogLevel
}

// Root returns the directory task paths and watch globs are relative to:
// the directory of the config file, or the working directory when no file
// was found.
func (c *Config) Root() (string, error) {
	if c.ConfigFile != "" {
		return filepath.Abs(filepath.Dir(c.ConfigFile))
	}

	return os.Getwd()
}

// Load resolves the Config for cmd. configFile, when set, must exist;
// otherwise .watchrun.yaml is optional. Each call builds its own viper
// instance.
func Load(cmd *cobra.Command, configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	configureEnv(v)

	if err := configureFile(v, configFile); err != nil {
		return nil, err
	}

	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log-level", LogLevelInfo)
	v.SetDefault("log-format", LogFormatText)
	v.SetDefault("no-color", false)
	v.SetDefault("quiet", false)
	v.SetDefault("debounce", DefaultDebounce)
}

func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("WATCHRUN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

func configureFile(v *viper.Viper, configFile string) error {
	v.SetConfigType("yaml")

	if configFile != "" {
		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %q: %w", configFile, err)
		}

		return nil
	}

	v.SetConfigName(fileName)
	v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "watchrun"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}

		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// bindFlags binds cmd's local flags and the persistent flags of cmd and
// every ancestor.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	for c := cmd; c != nil; c = c.Parent() {
		if err := v.BindPFlags(c.PersistentFlags()); err != nil {
			return fmt.Errorf("binding persistent flags: %w", err)
		}
	}

	return nil
}

type ctxKey struct{}

// NewContext attaches cfg to ctx for the command handlers.
func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext returns the Config attached by NewContext, or Default.
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(ctxKey{}).(*Config); ok {
		return cfg
	}

	return Default()
}
