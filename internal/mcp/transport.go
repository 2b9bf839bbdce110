package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
)

// transport is the wire-level half of a server connection: request/reply
// and fire-and-forget notification, nothing else. Server-initiated
// sampling requests (the teacher's bridge.go) aren't part of spec.md
// §4.3.3 and are left out.
type transport interface {
	connect(ctx context.Context) error
	close() error
	call(ctx context.Context, method string, params any) (json.RawMessage, error)
	notify(ctx context.Context, method string, params any) error
}

// newTransport picks stdio or streamable HTTP from which ServerConfig
// fields are populated (spec.md §4.3.3).
func newTransport(cfg ServerConfig, logger *slog.Logger) transport {
	if cfg.transportType() == TransportHTTP {
		return newHTTPTransport(cfg, logger)
	}
	return newStdioTransport(cfg, logger)
}
