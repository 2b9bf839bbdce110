//go:build unix

package pty

import (
	"context"
	"testing"
	"time"

	"github.com/codecore/codecore/internal/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_StreamsOutputAndExit(t *testing.T) {
	bus := eventbus.New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	run, err := Start(ctx, "call-1", []string{"/bin/echo", "hello"}, t.TempDir(), Size{Rows: 24, Cols: 80}, bus, nil)
	require.NoError(t, err)
	require.Equal(t, "call-1", run.CallID)

	var sawChunk, sawExit bool
	deadline := time.After(3 * time.Second)
	for !sawExit {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for terminal exit")
		default:
		}
		msg, ok := bus.Next()
		if !ok {
			break
		}
		switch m := msg.(type) {
		case eventbus.TerminalChunk:
			if m.CallID == "call-1" {
				sawChunk = true
			}
		case eventbus.TerminalExit:
			if m.CallID == "call-1" {
				sawExit = true
				assert.Equal(t, 0, m.ExitCode)
			}
		}
	}
	assert.True(t, sawChunk)
}

func TestRun_ResizeDoesNotBlock(t *testing.T) {
	bus := eventbus.New()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	run, err := Start(ctx, "call-2", []string{"/bin/sleep", "0.2"}, t.TempDir(), Size{Rows: 24, Cols: 80}, bus, nil)
	require.NoError(t, err)

	run.Resize(Size{Rows: 30, Cols: 100})
	run.Resize(Size{Rows: 40, Cols: 120})

	for {
		msg, ok := bus.Next()
		if !ok {
			return
		}
		if exit, ok := msg.(eventbus.TerminalExit); ok && exit.CallID == "call-2" {
			return
		}
	}
}
