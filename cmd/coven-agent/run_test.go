// ABOUTME: Tests for stdin forwarding in the agent binary
// ABOUTME: Uses a recording send function in place of a live uplink

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-control/internal/uplink"
)

func TestForwardLines(t *testing.T) {
	var sent []string
	send := func(s string) error {
		sent = append(sent, s)
		return nil
	}

	err := forwardLines(context.Background(), strings.NewReader("hello\n\nworld\n"), send, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "world"}, sent)
}

func TestForwardLines_ReportsSendErrors(t *testing.T) {
	color.NoColor = true
	calls := 0
	send := func(s string) error {
		calls++
		if calls == 1 {
			return uplink.ErrNotReady
		}
		return errors.New("broken pipe")
	}

	var errOut bytes.Buffer
	err := forwardLines(context.Background(), strings.NewReader("one\ntwo\n"), send, &errOut)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, errOut.String(), "not connected yet")
	assert.Contains(t, errOut.String(), "send failed: broken pipe")
}

func TestForwardLines_StopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- forwardLines(ctx, pr, func(string) error { return nil }, io.Discard)
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("forwardLines did not return after cancel")
	}
}
