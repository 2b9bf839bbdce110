package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecore/codecore/internal/commands"
	"github.com/codecore/codecore/internal/mcp"
	"github.com/codecore/codecore/internal/session"
)

func fakeMCPHTTPServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int64  `json:"id"`
			Method string `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var result json.RawMessage
		switch req.Method {
		case "initialize":
			result = json.RawMessage(`{"protocolVersion":"2024-11-05","serverInfo":{"name":"fake","version":"1.0"}}`)
		case "tools/list":
			result = json.RawMessage(`{"tools":[{"name":"echo","description":"echo input back"}]}`)
		case "tools/call":
			result = json.RawMessage(`{"content":[{"type":"text","text":"ok"}]}`)
		default:
			result = json.RawMessage(`{}`)
		}
		json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
}

func newTestToolRegistry(t *testing.T) (*commands.Registry, *mcp.Manager) {
	t.Helper()
	srv := fakeMCPHTTPServer(t)
	t.Cleanup(srv.Close)

	manager := mcp.NewManager(slog.Default())
	errs := manager.Start(context.Background(), []mcp.ServerConfig{{Name: "web", URL: srv.URL}})
	require.Empty(t, errs)

	sess := session.New(t.TempDir(), session.ApprovalUnlessTrusted, session.SandboxPolicy{Mode: session.SandboxWorkspaceWrite}, nil, slog.Default())
	registry := commands.NewRegistry(slog.Default())
	registerToolCommand(registry, sess, manager, slog.Default())
	return registry, manager
}

func TestToolsCommand_ListsConnectedServerTools(t *testing.T) {
	registry, _ := newTestToolRegistry(t)

	result, err := registry.Execute(context.Background(), &commands.Invocation{Name: "tools", RawText: "/tools"})
	require.NoError(t, err)
	assert.Contains(t, result.Text, "web__echo")
}

func TestToolCommand_InvokesQualifiedTool(t *testing.T) {
	registry, _ := newTestToolRegistry(t)

	result, err := registry.Execute(context.Background(), &commands.Invocation{
		Name: "tool", Args: `web__echo {"text":"hi"}`, RawText: `/tool web__echo {"text":"hi"}`,
	})
	require.NoError(t, err)
	assert.Contains(t, result.Text, "ok")
}

func TestToolCommand_UnknownToolReportsError(t *testing.T) {
	registry, _ := newTestToolRegistry(t)

	result, err := registry.Execute(context.Background(), &commands.Invocation{
		Name: "tool", Args: "nonexistent__tool", RawText: "/tool nonexistent__tool",
	})
	require.NoError(t, err)
	assert.Contains(t, result.Text, "No such MCP tool")
}
