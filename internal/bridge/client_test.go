package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// fakeBridgeHost mimics enough of the bridge host protocol to drive a
// Client through Authenticated -> Subscribed -> Streaming, then sends
// three error-level event frames, matching spec.md §8 scenario 2
// ("starved bridge reaches host").
func fakeBridgeHost(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var auth Frame
		require.NoError(t, conn.ReadJSON(&auth))
		require.Equal(t, FrameAuth, auth.Type)
		require.NoError(t, conn.WriteJSON(Frame{Type: FrameAuthSuccess}))

		var sub Frame
		require.NoError(t, conn.ReadJSON(&sub))
		require.Equal(t, FrameSubscribe, sub.Type)
		require.NoError(t, conn.WriteJSON(Frame{Type: FrameSubscribeAck}))

		for i := 0; i < 3; i++ {
			_ = conn.WriteJSON(Frame{Type: FrameEvent, Level: "error", Message: "boom"})
		}

		// Keep the connection open until the test tears it down.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestClient_ReachesStreamingAndBatchesErrorEvents(t *testing.T) {
	server := fakeBridgeHost(t)
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	dir := t.TempDir()
	writeMetadata(t, dir, Target{URL: wsURL, Secret: "s3cr3t", HeartbeatAt: time.Now().UnixMilli()})

	c := NewClient(dir, nil)
	c.dialer = func(url string) (*websocket.Conn, error) {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		return conn, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	select {
	case batch := <-c.Batches():
		require.NotEmpty(t, batch)
		assert.True(t, batch[0].ErrorBorne)
		assert.Contains(t, batch[0].Summary, "boom")
	case <-time.After(4 * time.Second):
		t.Fatal("expected a batch of bridge events before timeout")
	}

	cancel()
	<-done
}
