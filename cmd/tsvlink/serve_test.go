package main

import (
	"bytes"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lucaterre/tsvlink/pkg/linking"
)

func TestServeCommand_Exists(t *testing.T) {
	// Verify serve command is registered
	cmd, _, err := rootCmd.Find([]string{"serve"})
	assert.NoError(t, err)
	assert.NotNil(t, cmd)
	assert.Equal(t, "serve", cmd.Name())
}

func TestServeCommand_ShutsDownOnSignal(t *testing.T) {
	// Keep SIGINT from killing the test binary in the window before
	// runServe installs its own handler.
	guard := make(chan os.Signal, 1)
	signal.Notify(guard, syscall.SIGINT)
	defer signal.Stop(guard)

	// Reset flags for test
	serveAddr = "127.0.0.1:0"
	serveAPIBase = linking.DefaultBaseURL
	serveLanguage = linking.DefaultLanguage
	serveCache = ""
	serveWorkers = 1

	// Capture output
	out := &bytes.Buffer{}
	testCmd := &cobra.Command{}
	testCmd.SetOut(out)
	testCmd.SetErr(out)

	done := make(chan error, 1)
	go func() {
		done <- runServe(testCmd, []string{})
	}()

	// Give the listener and the signal handler time to come up
	time.Sleep(500 * time.Millisecond)

	// Deliver the shutdown signal
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(20 * time.Second):
		t.Fatal("command did not exit in time")
	}
}
