package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/eeproxy/example/sample"
	eegrpc "github.com/blockberries/eeproxy/grpc"
	"github.com/blockberries/eeproxy/session"
)

func TestManagerCommandOverSocket(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "ee.sock")

	engineDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client, err := eegrpc.Dial(ctx, socket)
		if err != nil {
			engineDone <- err
			return
		}
		s := session.New(client, sample.New(zerolog.Nop()))
		defer s.Close()
		engineDone <- s.Run(ctx, session.DefaultVersion("go"))
	}()

	out, err := execute(t, "manager", "--socket", socket, "--scenario", "testdata/sample.yaml", "--format", "json")
	require.NoError(t, err)

	r := decodeReport(t, out)
	assert.Equal(t, "sample", r.Scenario)
	require.Len(t, r.Results, 2)
	for _, res := range r.Results {
		assert.Equal(t, "Success", res.Status)
		assert.Equal(t, "10", res.Used)
	}
	assert.Equal(t, 2, r.Events)

	select {
	case err := <-engineDone:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("engine did not stop after the manager closed the session")
	}
}

func TestManagerCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	sub, _, err := cmd.Find([]string{"manager"})
	require.NoError(t, err)

	for _, name := range []string{"socket", "scenario", "db"} {
		assert.NotNil(t, sub.Flags().Lookup(name), "missing --%s", name)
	}
}

func TestEngineCommandRejectsUnknownHandler(t *testing.T) {
	_, err := execute(t, "engine", "--handler", "dex")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
