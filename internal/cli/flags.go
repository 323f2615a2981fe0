package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/watchrun/internal/config"
)

// Output formats understood by listing commands.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// registerGlobalFlags adds the persistent flags shared by every subcommand.
// Their names match the config keys so viper can bind them directly.
func registerGlobalFlags(cmd *cobra.Command, cfgFile *string) {
	pf := cmd.PersistentFlags()
	pf.StringVar(cfgFile, "config", "", "config file (default: .watchrun.yaml)")
	pf.String("log-level", config.LogLevelInfo, "log level: debug, info, warn, error")
	pf.String("log-format", config.LogFormatText, "log format: text, json")
	pf.Bool("no-color", false, "disable colored output")
	pf.BoolP("quiet", "q", false, "suppress non-essential output")
}

// registerDebounceFlag adds --debounce to commands that may enter watch mode.
func registerDebounceFlag(cmd *cobra.Command) {
	cmd.Flags().Duration("debounce", config.DefaultDebounce, "quiet period before a watch group is triggered")
}

// registerFormatFlag adds --output/-o for table, json or yaml rendering.
func registerFormatFlag(cmd *cobra.Command, format *string) {
	cmd.Flags().StringVarP(format, "output", "o", formatTable, "output format: table, json, yaml")
}

func checkFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	default:
		return &ExitError{Code: 2, Err: fmt.Errorf("unknown format %q: expected table, json, yaml", format)}
	}
}
