package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Client owns one server's transport, its cached tool list, and server
// identity once the initialize handshake completes.
type Client struct {
	cfg       ServerConfig
	transport transport
	logger    *slog.Logger

	mu         sync.RWMutex
	tools      []Tool
	serverInfo ServerInfo
}

func newClient(cfg ServerConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:       cfg,
		transport: newTransport(cfg, logger),
		logger:    logger.With("mcp_server", cfg.Name),
	}
}

// connect spawns the transport, runs the initialize handshake with the
// fixed protocol version, and lists the server's tools — all bounded by
// the server's startup timeout (spec.md §4.3.3).
func (c *Client) connect(ctx context.Context) error {
	timeout := c.cfg.StartupTimeout
	if timeout <= 0 {
		timeout = DefaultStartupTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.transport.connect(ctx); err != nil {
		return fmt.Errorf("transport connect: %w", err)
	}

	result, err := c.transport.call(ctx, "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": clientName, "version": clientVersion},
	})
	if err != nil {
		c.transport.close()
		return fmt.Errorf("initialize: %w", err)
	}

	var init InitializeResult
	if err := json.Unmarshal(result, &init); err != nil {
		c.transport.close()
		return fmt.Errorf("parse initialize result: %w", err)
	}
	c.mu.Lock()
	c.serverInfo = init.ServerInfo
	c.mu.Unlock()

	if err := c.transport.notify(ctx, "notifications/initialized", nil); err != nil {
		c.logger.Warn("failed to send initialized notification", "error", err)
	}

	if err := c.refreshTools(ctx); err != nil {
		c.logger.Warn("failed to list tools", "error", err)
	}

	c.logger.Info("connected to mcp server",
		"name", c.serverInfo.Name, "version", c.serverInfo.Version, "protocol", init.ProtocolVersion, "tools", len(c.Tools()))
	return nil
}

func (c *Client) refreshTools(ctx context.Context) error {
	result, err := c.transport.call(ctx, "tools/list", nil)
	if err != nil {
		return err
	}
	var list ListToolsResult
	if err := json.Unmarshal(result, &list); err != nil {
		return fmt.Errorf("parse tools/list result: %w", err)
	}
	c.mu.Lock()
	c.tools = list.Tools
	c.mu.Unlock()
	return nil
}

// Tools returns the cached tool roster from the last successful
// tools/list call.
func (c *Client) Tools() []Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Tool(nil), c.tools...)
}

// ServerInfo returns the identity the server reported in initialize.
func (c *Client) ServerInfo() ServerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

func (c *Client) close() error {
	return c.transport.close()
}

// callTool invokes name with arguments, bounded by the server's per-call
// tool timeout (or callTimeout when positive, for a caller-supplied
// override per spec.md §4.3.3: "optional override per call").
func (c *Client) callTool(ctx context.Context, name string, arguments json.RawMessage, callTimeout time.Duration) (*ToolCallResult, error) {
	timeout := c.cfg.ToolTimeout
	if callTimeout > 0 {
		timeout = callTimeout
	}
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := c.transport.call(ctx, "tools/call", CallToolParams{Name: name, Arguments: arguments})
	if err != nil {
		return nil, err
	}
	var callResult ToolCallResult
	if err := json.Unmarshal(result, &callResult); err != nil {
		return nil, fmt.Errorf("parse tools/call result: %w", err)
	}
	return &callResult, nil
}
