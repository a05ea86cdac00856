// ABOUTME: Tests for Run, the blocking entry point of the control node
// ABOUTME: Covers listener failure and shutdown on context cancellation

package gateway

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ListenFailure(t *testing.T) {
	gw := newTestGateway(t)
	gw.listen = func(int) (net.Listener, error) {
		return nil, errors.New("address in use")
	}

	err := gw.Run(context.Background())
	require.ErrorIs(t, err, ErrNotRunning)
}

func TestRun_StopsOnCancel(t *testing.T) {
	gw := newTestGateway(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx) }()

	require.Eventually(t, gw.Running, 2*time.Second, 10*time.Millisecond)

	conn, err := net.Dial("tcp", gw.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, gw.Running())
}
