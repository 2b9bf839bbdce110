package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQualifyToolName_NoCollision(t *testing.T) {
	seen := map[string]bool{}
	name, ok := qualifyToolName("fs", "read_file", seen)
	require.True(t, ok)
	assert.Equal(t, "fs__read_file", name)
}

func TestQualifyToolName_CollisionAppendsSuffix(t *testing.T) {
	seen := map[string]bool{}
	// "fs!" + "__" + "b" and "fs_" + "__" + "b" both sanitize to "fs___b"
	// despite differing raw names, so the second must get a SHA1 suffix.
	first, ok := qualifyToolName("fs!", "b", seen)
	require.True(t, ok)
	assert.Equal(t, "fs___b", first)

	second, ok := qualifyToolName("fs_", "b", seen)
	require.True(t, ok)

	assert.NotEqual(t, first, second)
	assert.Contains(t, second, "fs___b_")
}

func TestQualifyToolName_DuplicateRawNameDropped(t *testing.T) {
	seen := map[string]bool{}
	_, ok := qualifyToolName("fs", "read_file", seen)
	require.True(t, ok)

	_, ok = qualifyToolName("fs", "read_file", seen)
	assert.False(t, ok, "an identical raw name must be dropped rather than re-suffixed forever")
}

func TestSanitizeName_TruncatesAndReplacesInvalidChars(t *testing.T) {
	raw := "weather api!!" + string(make([]byte, 80))
	got := sanitizeName(raw)
	assert.LessOrEqual(t, len(got), 64)
	assert.NotContains(t, got, "!")
}

// fakeHTTPServer returns an httptest server implementing the minimum MCP
// surface a Client needs: initialize, tools/list, and tools/call returning
// one text and one image content block.
func fakeHTTPServer(t *testing.T, bearerRequired string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bearerRequired != "" && r.Header.Get("Authorization") != "Bearer "+bearerRequired {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req JSONRPCRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var result json.RawMessage
		switch req.Method {
		case "initialize":
			result, _ = json.Marshal(InitializeResult{
				ProtocolVersion: protocolVersion,
				ServerInfo:      ServerInfo{Name: "fake", Version: "1.0"},
			})
		case "tools/list":
			result, _ = json.Marshal(ListToolsResult{Tools: []Tool{{Name: "search", Description: "search the web"}}})
		case "tools/call":
			result, _ = json.Marshal(ToolCallResult{Content: []ToolResultContent{
				{Type: "text", Text: "found 3 results"},
				{Type: "image", MimeType: "image/png", Data: base64.StdEncoding.EncodeToString([]byte("fake-png-bytes"))},
			}})
		default:
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage("{}")})
			return
		}

		json.NewEncoder(w).Encode(JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
	}))
}

func TestManager_StartCollectsPerServerErrorsWithoutAborting(t *testing.T) {
	srv := fakeHTTPServer(t, "")
	defer srv.Close()

	mgr := NewManager(nil)
	errs := mgr.Start(context.Background(), []ServerConfig{
		{Name: "broken"}, // no Command, no URL -> stdio with empty command fails
		{Name: "good", URL: srv.URL},
	})

	require.Len(t, errs, 1)
	assert.Equal(t, "broken", errs[0].Server)

	tools := mgr.Tools()
	require.Len(t, tools, 1)
	assert.Equal(t, "good__search", tools[0].QualifiedName)
}

func TestManager_CallToolTranslatesImageContent(t *testing.T) {
	srv := fakeHTTPServer(t, "secret-token")
	defer srv.Close()

	mgr := NewManager(nil)
	errs := mgr.Start(context.Background(), []ServerConfig{
		{Name: "web", URL: srv.URL, BearerToken: "secret-token", StartupTimeout: 2 * time.Second},
	})
	require.Empty(t, errs)

	payload, images, err := mgr.CallTool(context.Background(), "web__search", json.RawMessage(`{"q":"go"}`))
	require.NoError(t, err)
	assert.True(t, payload.Success)
	require.Len(t, images, 1)
	assert.Equal(t, "image/png", images[0].MimeType)
}

func TestManager_CallToolUnknownName(t *testing.T) {
	mgr := NewManager(nil)
	_, _, err := mgr.CallTool(context.Background(), "nonexistent__tool", nil)
	assert.Error(t, err)
}
