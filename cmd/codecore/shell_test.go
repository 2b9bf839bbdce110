package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecore/codecore/internal/commands"
	"github.com/codecore/codecore/internal/eventbus"
	"github.com/codecore/codecore/internal/session"
)

func newTestSessionAndRegistry(t *testing.T) (*session.Session, *commands.Registry) {
	t.Helper()
	sess := session.New(t.TempDir(), session.ApprovalUnlessTrusted, session.SandboxPolicy{Mode: session.SandboxWorkspaceWrite}, nil, slog.Default())
	registry := commands.NewRegistry(slog.Default())
	registerShellCommands(registry, sess, eventbus.New(), slog.Default(), nil, nil)
	return sess, registry
}

func TestShellCommand_RunsAllowedCommandAndRecordsHistory(t *testing.T) {
	_, registry := newTestSessionAndRegistry(t)

	result, err := registry.Execute(context.Background(), &commands.Invocation{Name: "shell", Args: "echo hello", RawText: "/shell echo hello"})
	require.NoError(t, err)
	assert.Contains(t, result.Text, "hello")
}

func TestShellCommand_RejectsUnderNeverApproval(t *testing.T) {
	sess := session.New(t.TempDir(), session.ApprovalNever, session.SandboxPolicy{Mode: session.SandboxReadOnly}, nil, slog.Default())
	registry := commands.NewRegistry(slog.Default())
	registerShellCommands(registry, sess, eventbus.New(), slog.Default(), nil, nil)

	result, err := registry.Execute(context.Background(), &commands.Invocation{Name: "shell", Args: "echo hi", RawText: "/shell echo hi"})
	require.NoError(t, err)
	assert.Contains(t, result.Text, "Rejected")
}

func TestTermCommand_StartsPTYBackedRun(t *testing.T) {
	_, registry := newTestSessionAndRegistry(t)

	result, err := registry.Execute(context.Background(), &commands.Invocation{Name: "term", Args: "echo hi", RawText: "/term echo hi"})
	require.NoError(t, err)
	assert.Contains(t, result.Text, "Started")
}
