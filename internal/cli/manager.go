package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blockberries/eeproxy"
	"github.com/blockberries/eeproxy/codec"
	eegrpc "github.com/blockberries/eeproxy/grpc"
	"github.com/blockberries/eeproxy/manager"
)

// ManagerOptions holds flags for the manager command.
type ManagerOptions struct {
	*RootOptions
	Socket   string
	Scenario string
	DB       string
}

// NewManagerCommand creates the manager command.
func NewManagerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ManagerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "manager",
		Short: "Drive one engine through a scenario",
		Long: `Listen on a unix socket, wait for one engine to connect, run every
invocation of the scenario against it and print the results.

State lives in memory unless --db names a SQLite file.

Example:
  eetest manager --socket /tmp/ee.socket --scenario counter.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManager(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Socket, "socket", "", "socket path to listen on (overrides config)")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "scenario YAML file")
	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite database file (overrides config)")
	_ = cmd.MarkFlagRequired("scenario")

	return cmd
}

type outcome struct {
	report Report
	err    error
}

func runManager(cmd *cobra.Command, opts *ManagerOptions) error {
	cfg := opts.Config
	if cmd.Flags().Changed("socket") {
		cfg.Socket = opts.Socket
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

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	reg := codec.New()
	b, err := openBackend(ctx, cfg, sc, reg)
	if err != nil {
		return WrapExitError(ExitCommandError, "open backend", err)
	}
	defer b.close()

	lis, err := eegrpc.Listen(cfg.Socket)
	if err != nil {
		return WrapExitError(ExitCommandError, "listen", err)
	}

	log := opts.Log.With().Str("scenario", sc.Name).Logger()
	done := make(chan outcome, 1)
	var accepted atomic.Bool
	srv := eegrpc.NewServer(func(_ context.Context, ch eeproxy.Channel) error {
		if !accepted.CompareAndSwap(false, true) {
			log.Warn().Msg("engine_rejected")
			return fmt.Errorf("manager: scenario already running")
		}
		conn := manager.NewConn(ch, manager.WithRegistry(reg), manager.WithLogger(log))
		report, err := runScenario(ctx, conn, sc, b, log)
		done <- outcome{report: report, err: errors.Join(err, conn.Close())}
		return nil
	})
	go func() {
		if err := srv.Serve(lis); err != nil {
			log.Debug().Err(err).Msg("server_stopped")
		}
	}()
	defer srv.Stop()

	log.Info().Str("socket", cfg.Socket).Msg("manager_listening")

	select {
	case <-ctx.Done():
		return WrapExitError(ExitCommandError, "waiting for engine", ctx.Err())
	case o := <-done:
		if o.err != nil {
			return WrapExitError(ExitCommandError, "run scenario", o.err)
		}
		return finish(OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}, o.report)
	}
}
