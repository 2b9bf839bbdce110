package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHomeDir_PrefersCodeHome(t *testing.T) {
	t.Setenv("CODE_HOME", "/tmp/code-home-a")
	t.Setenv("CODEX_HOME", "/tmp/code-home-b")

	dir, err := HomeDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/code-home-a", dir)
}

func TestHomeDir_FallsBackToCodexHome(t *testing.T) {
	t.Setenv("CODE_HOME", "")
	t.Setenv("CODEX_HOME", "/tmp/code-home-b")

	dir, err := HomeDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/code-home-b", dir)
}

func TestSaveAndLoadHome_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	h := &Home{
		Model: "claude-sonnet",
		Projects: map[string]ProjectSetting{
			"/home/user/project": {TrustLevel: "trusted", ApprovalPolicy: "auto"},
		},
		MCPServers: map[string]MCPServerEntry{
			"filesystem": {Command: "npx", Args: []string{"-y", "mcp-server-fs"}},
		},
	}

	require.NoError(t, SaveHome(path, h))

	got, err := decodeHomeFile(path)
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet", got.Model)
	assert.Equal(t, "trusted", got.Projects["/home/user/project"].TrustLevel)
	assert.Equal(t, "npx", got.MCPServers["filesystem"].Command)
}

func TestDecodeHomeFile_RejectsInvalidServerName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[mcp_servers.\"bad name\"]\ncommand = \"x\"\n"), 0o644))

	_, err := decodeHomeFile(path)
	assert.Error(t, err)
}

func TestLoadHome_MissingFileReturnsEmptyHome(t *testing.T) {
	t.Setenv("CODE_HOME", t.TempDir())
	t.Setenv("CODEX_HOME", "")

	h, path, err := LoadHome()
	require.NoError(t, err)
	assert.Equal(t, &Home{}, h)
	assert.Contains(t, path, "config.toml")
}

func TestSaveHome_WritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	require.NoError(t, SaveHome(path, &Home{Model: "a"}))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	// Only the final file should remain, no leftover temp file.
	assert.Len(t, entries, 1)
	assert.Equal(t, "config.toml", entries[0].Name())
}
