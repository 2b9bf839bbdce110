package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStdioServerScript is a /bin/sh line-at-a-time JSON-RPC responder good
// enough to drive Client.connect's initialize + tools/list round trip
// without a real MCP server binary in the test environment.
const fakeStdioServerScript = `
while IFS= read -r line; do
  id=$(printf '%s' "$line" | sed -n 's/.*"id":\([0-9]*\).*/\1/p')
  method=$(printf '%s' "$line" | sed -n 's/.*"method":"\([^"]*\)".*/\1/p')
  case "$method" in
    initialize)
      printf '{"jsonrpc":"2.0","id":%s,"result":{"protocolVersion":"2024-11-05","serverInfo":{"name":"shtest","version":"0.0.1"}}}\n' "$id"
      ;;
    tools/list)
      printf '{"jsonrpc":"2.0","id":%s,"result":{"tools":[{"name":"ping"}]}}\n' "$id"
      ;;
  esac
done
`

func TestClient_ConnectOverStdio(t *testing.T) {
	cfg := ServerConfig{
		Name:           "shtest",
		Command:        "/bin/sh",
		Args:           []string{"-c", fakeStdioServerScript},
		StartupTimeout: 3 * time.Second,
	}
	client := newClient(cfg, nil)
	defer client.close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := client.connect(ctx)
	require.NoError(t, err)

	assert.Equal(t, "shtest", client.ServerInfo().Name)
	require.Len(t, client.Tools(), 1)
	assert.Equal(t, "ping", client.Tools()[0].Name)
}

func TestStdioTransport_ConnectRequiresCommand(t *testing.T) {
	transport := newStdioTransport(ServerConfig{Name: "nocmd"}, nil)
	err := transport.connect(context.Background())
	assert.Error(t, err)
}
