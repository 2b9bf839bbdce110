package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// httpTransport posts each JSON-RPC call to a single streamable HTTP
// endpoint, grounded on the teacher's internal/mcp/transport_http.go
// minus its SSE notification listener: spec.md §4.3.3 only names
// "streamable HTTP with optional bearer token" for request/response tool
// calls, not server-initiated push.
type httpTransport struct {
	cfg    ServerConfig
	client *http.Client
	nextID atomic.Int64
}

func newHTTPTransport(cfg ServerConfig, _ *slog.Logger) *httpTransport {
	return &httpTransport{cfg: cfg, client: &http.Client{}}
}

func (t *httpTransport) connect(ctx context.Context) error {
	if t.cfg.URL == "" {
		return fmt.Errorf("mcp server %s: url is required for streamable_http transport", t.cfg.Name)
	}
	return nil
}

func (t *httpTransport) close() error { return nil }

func (t *httpTransport) do(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if t.cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+t.cfg.BearerToken)
	}
	return t.client.Do(req)
}

func (t *httpTransport) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	req := JSONRPCRequest{JSONRPC: "2.0", ID: t.nextID.Add(1), Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		req.Params = raw
	}
	body, _ := json.Marshal(req)

	resp, err := t.do(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mcp server %s: http %d: %s", t.cfg.Name, resp.StatusCode, string(data))
	}

	var rpcResp JSONRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("mcp error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}

func (t *httpTransport) notify(ctx context.Context, method string, params any) error {
	notif := JSONRPCNotification{JSONRPC: "2.0", Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		notif.Params = raw
	}
	body, _ := json.Marshal(notif)
	resp, err := t.do(ctx, body)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	resp.Body.Close()
	return nil
}
