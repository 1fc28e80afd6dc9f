package api

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer() *APIServer {
	return NewAPIServer(ServerOptions{ListenAddr: "127.0.0.1:0", Registry: prometheus.NewRegistry()})
}

func waitRun(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}
}

func TestShutdownBeforeRunStopsServer(t *testing.T) {
	s := newTestServer()
	require.NoError(t, s.Shutdown(context.Background()))

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	waitRun(t, done)
}

func TestShutdownConcurrentWithRun(t *testing.T) {
	s := newTestServer()

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	waitRun(t, done)
}
