package main

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCommandRegistered(t *testing.T) {
	var found bool
	for _, c := range rootCmd.Commands() {
		if c.Name() == "serve" {
			found = true
			assert.NotNil(t, c.Flags().Lookup("port"), "serve must expose --port")
		}
	}
	require.True(t, found, "serve must be registered on the root command")
}

func TestAllCommandsRegistered(t *testing.T) {
	registered := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}
	for _, name := range []string{"ingest", "analyze", "uploads", "migrate", "serve"} {
		assert.True(t, registered[name], "command %s must be registered", name)
	}
}

func TestShutdownAfterSignalContextCanceled(t *testing.T) {
	// The signal context is already canceled when shutdown starts; draining
	// must still complete rather than aborting with the canceled context.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := &http.Server{Addr: "127.0.0.1:0"}
	shutdownOnSignal(ctx, srv)

	assert.ErrorIs(t, srv.ListenAndServe(), http.ErrServerClosed)
}
