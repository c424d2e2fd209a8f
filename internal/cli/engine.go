package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	eegrpc "github.com/blockberries/eeproxy/grpc"
	"github.com/blockberries/eeproxy/session"
)

// EngineOptions holds flags for the engine command.
type EngineOptions struct {
	*RootOptions
	Socket     string
	Handler    string
	EngineType string
}

// NewEngineCommand creates the engine command.
func NewEngineCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EngineOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "engine",
		Short: "Serve a built-in handler to a service manager",
		Long: `Connect to the service manager on a unix socket and serve
invocations with a built-in handler until the manager closes the session.

Example:
  eetest engine --socket /tmp/ee.socket --handler counter`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Socket, "socket", "", "manager socket path (overrides config)")
	cmd.Flags().StringVar(&opts.Handler, "handler", "", "handler to serve: sample|counter (overrides config)")
	cmd.Flags().StringVar(&opts.EngineType, "type", "", "engine type sent in the handshake (overrides config)")

	return cmd
}

func runEngine(cmd *cobra.Command, opts *EngineOptions) error {
	cfg := opts.Config
	if cmd.Flags().Changed("socket") {
		cfg.Socket = opts.Socket
	}
	if cmd.Flags().Changed("handler") {
		cfg.Handler = opts.Handler
	}
	if cmd.Flags().Changed("type") {
		cfg.EngineType = opts.EngineType
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}

	log := opts.Log.With().Str("handler", cfg.Handler).Logger()
	h, err := newHandler(cfg.Handler, log)
	if err != nil {
		return WrapExitError(ExitCommandError, "select handler", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	client, err := eegrpc.Dial(dialCtx, cfg.Socket)
	cancel()
	if err != nil {
		return WrapExitError(ExitCommandError, "connect to manager", err)
	}

	s := session.New(client, h, session.WithLogger(log))
	defer s.Close()

	err = s.Run(ctx, session.DefaultVersion(cfg.EngineType))
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("engine_interrupted")
		return nil
	}
	if err != nil {
		return WrapExitError(ExitFailure, "session", err)
	}
	return nil
}
