package bridge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffective_DefaultsOnly(t *testing.T) {
	eff := Effective(WorkspaceOverride{}, SessionOverride{})
	assert.Equal(t, []string{"errors"}, eff.Levels)
	assert.Equal(t, "off", eff.LLMFilter)
	assert.ElementsMatch(t, []string{"console", "error", "pageview", "screenshot", "control"}, eff.Capabilities)
}

func TestEffective_WorkspaceReplacesNonEmptyFields(t *testing.T) {
	ws := WorkspaceOverride{Levels: []string{"warn", "info"}}
	eff := Effective(ws, SessionOverride{})
	assert.Equal(t, []string{"info", "warn"}, eff.Levels)
	// capabilities untouched since workspace didn't set them
	assert.ElementsMatch(t, []string{"console", "error", "pageview", "screenshot", "control"}, eff.Capabilities)
}

func TestEffective_SessionOverrideWinsOutrightIncludingClearing(t *testing.T) {
	ws := WorkspaceOverride{Levels: []string{"warn"}, Capabilities: []string{"console"}}
	session := SessionOverride{Set: true, Levels: nil, Capabilities: nil, LLMFilter: ""}

	eff := Effective(ws, session)
	assert.Empty(t, eff.Levels)
	assert.Empty(t, eff.Capabilities)
}

func TestEffective_IdempotentUnderReorder(t *testing.T) {
	a := Effective(WorkspaceOverride{Levels: []string{"WARN", "Info"}}, SessionOverride{})
	b := Effective(WorkspaceOverride{Levels: []string{"info", "warn"}}, SessionOverride{})
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestSubscription_FingerprintStableAcrossSerialize(t *testing.T) {
	sub := Effective(WorkspaceOverride{Levels: []string{"errors", "warn"}}, SessionOverride{})
	before := sub.Fingerprint()

	ws := WorkspaceOverride{Levels: sub.Levels, Capabilities: sub.Capabilities, LLMFilter: sub.LLMFilter}
	after := Effective(ws, SessionOverride{}).Fingerprint()

	assert.Equal(t, before, after)
}

func TestLoadWorkspaceOverride_AcceptsLLMFilterAlias(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, subscriptionFileName), []byte(`{"llm_filter":"minimal"}`), 0o644))

	override, err := LoadWorkspaceOverride(dir)
	require.NoError(t, err)
	assert.Equal(t, "minimal", override.LLMFilter)
}

func TestLoadWorkspaceOverride_MissingFileIsNotError(t *testing.T) {
	override, err := LoadWorkspaceOverride(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, WorkspaceOverride{}, override)
}
