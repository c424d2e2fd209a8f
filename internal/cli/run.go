package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/blockberries/eeproxy/codec"
	"github.com/blockberries/eeproxy/local"
	"github.com/blockberries/eeproxy/manager"
	"github.com/blockberries/eeproxy/session"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Scenario string
	Handler  string
	DB       string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario against an in-process engine",
		Long: `Run a scenario against a built-in handler connected through an
in-process channel. No socket is involved.

Example:
  eetest run --scenario counter.yaml --handler counter`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInProcess(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "scenario YAML file")
	cmd.Flags().StringVar(&opts.Handler, "handler", "", "handler to serve: sample|counter (overrides config)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite database file (overrides config)")
	_ = cmd.MarkFlagRequired("scenario")

	return cmd
}

func runInProcess(cmd *cobra.Command, opts *RunOptions) error {
	cfg := opts.Config
	if cmd.Flags().Changed("handler") {
		cfg.Handler = opts.Handler
	}
	if cmd.Flags().Changed("db") {
		cfg.DB = opts.DB
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}

	sc, err := LoadScenario(opts.Scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, "load scenario", err)
	}
	h, err := newHandler(cfg.Handler, opts.Log)
	if err != nil {
		return WrapExitError(ExitCommandError, "select handler", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
	defer cancel()

	reg := codec.New()
	b, err := openBackend(ctx, cfg, sc, reg)
	if err != nil {
		return WrapExitError(ExitCommandError, "open backend", err)
	}
	defer b.close()

	engineEnd, managerEnd := local.Pipe()
	sess := session.New(engineEnd, h, session.WithRegistry(reg), session.WithLogger(opts.Log))
	served := make(chan error, 1)
	go func() {
		served <- sess.Run(ctx, session.DefaultVersion(cfg.EngineType))
	}()

	conn := manager.NewConn(managerEnd, manager.WithRegistry(reg), manager.WithLogger(opts.Log))
	report, err := runScenario(ctx, conn, sc, b, opts.Log)
	err = errors.Join(err, conn.Close(), <-served)
	if err != nil {
		return WrapExitError(ExitCommandError, "run scenario", err)
	}
	return finish(OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}, report)
}
