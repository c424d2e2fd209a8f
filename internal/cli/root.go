// Package cli implements the eetest command: a reference engine and a
// scenario-driven service manager speaking the execution engine protocol.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/blockberries/eeproxy/internal/config"
	"github.com/blockberries/eeproxy/internal/logging"
)

// RootOptions holds global flags for all commands, plus the config and
// logger resolved from them before any subcommand runs.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	Config config.Config
	Log    zerolog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the eetest CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "eetest",
		Short: "Execution engine protocol tester",
		Long: `eetest runs either end of the execution engine protocol.

The engine command connects a built-in handler to a service manager.
The manager command listens for an engine and drives it through a
YAML scenario. The run command does both in one process.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.resolve(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "TOML config file")

	cmd.AddCommand(NewEngineCommand(opts))
	cmd.AddCommand(NewManagerCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))

	return cmd
}

// resolve loads the config file, if any, and builds the logger. Logs go
// to stderr so JSON reports on stdout stay parseable.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	o.Config = config.Default()
	if o.ConfigPath != "" {
		cfg, err := config.Load(o.ConfigPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "load config", err)
		}
		o.Config = cfg
	}

	level := o.Config.LogLevel
	if o.Verbose {
		level = "debug"
	}
	o.Log = logging.New("eetest", cmd.ErrOrStderr(), logging.Config{
		Level:   level,
		NoColor: o.Config.NoColor,
	})
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
