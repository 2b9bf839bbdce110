package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTUIRegistry() *Registry {
	r := NewRegistry(nil)
	RegisterBuiltins(r)
	RegisterTUIBuiltins(r)
	return r
}

func TestDispatch_NonCommandTextPassesThrough(t *testing.T) {
	d := NewDispatcher(newTUIRegistry())
	got := d.Dispatch(context.Background(), "just chatting")
	assert.False(t, got.IsCommand)
}

func TestDispatch_UnknownCommandProducesNotice(t *testing.T) {
	d := NewDispatcher(newTUIRegistry())
	got := d.Dispatch(context.Background(), "/bogus")
	require.True(t, got.IsCommand)
	assert.Contains(t, got.Notice, "Unknown command")
}

func TestDispatch_UnavailableCommandProducesNotice(t *testing.T) {
	r := newTUIRegistry()
	require.NoError(t, r.Register(&Command{
		Name:      "gated",
		Available: func() bool { return false },
		Handler:   func(context.Context, *Invocation) (*Result, error) { return &Result{}, nil },
	}))

	d := NewDispatcher(r)
	got := d.Dispatch(context.Background(), "/gated")
	require.True(t, got.IsCommand)
	assert.Contains(t, got.Notice, "not available in this build")
}

func TestDispatch_QuitAndExitAreAliases(t *testing.T) {
	d := NewDispatcher(newTUIRegistry())

	quit := d.Dispatch(context.Background(), "/quit")
	require.True(t, quit.IsCommand)
	assert.Equal(t, "quit", quit.Name)

	exit := d.Dispatch(context.Background(), "/exit")
	require.True(t, exit.IsCommand)
	assert.Equal(t, "quit", exit.Name)
}

func TestDispatch_PromptExpandingCommandReturnsFullPrompt(t *testing.T) {
	d := NewDispatcher(newTUIRegistry())
	got := d.Dispatch(context.Background(), "/plan add dark mode")
	require.True(t, got.IsCommand)
	assert.Contains(t, got.Prompt, "add dark mode")
	assert.Equal(t, "plan", got.Name)
}

func TestDispatch_OrdinaryCommandReturnsResult(t *testing.T) {
	d := NewDispatcher(newTUIRegistry())
	got := d.Dispatch(context.Background(), "/theme dracula")
	require.True(t, got.IsCommand)
	require.NotNil(t, got.Result)
	assert.Equal(t, "Theme changed to: dracula", got.Result.Text)
}
