package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/codecore/codecore/internal/session"
)

// nameDelim is the fully-qualified tool-name separator (spec.md §4.3.3).
const nameDelim = "__"

var invalidNameChar = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// qualifyToolName builds the `server__tool` name the model sees,
// sanitizing either half and disambiguating collisions with a SHA1
// suffix of the raw (pre-sanitization) name, per spec.md §4.3.3. seen
// also records each raw name, so an identical raw name is dropped.
func qualifyToolName(server, tool string, seen map[string]bool) (string, bool) {
	raw := server + nameDelim + tool
	rawKey := "raw:" + raw // ':' never survives sanitizeName, so no clash
	if seen[rawKey] {
		// Identical raw name already registered; drop this one (log only).
		return "", false
	}
	seen[rawKey] = true
	qualified := sanitizeName(raw)
	if !seen[qualified] {
		seen[qualified] = true
		return qualified, true
	}
	withSuffix := qualified + "_" + session.ToolNameSuffix(raw)
	if seen[withSuffix] {
		return "", false
	}
	seen[withSuffix] = true
	return withSuffix, true
}

func sanitizeName(raw string) string {
	s := invalidNameChar.ReplaceAllString(raw, "_")
	if len(s) > 64 {
		s = s[:64]
	}
	return s
}

// StartupError records one server's failure to connect; the manager
// collects these without aborting the others (spec.md §4.3.3).
type StartupError struct {
	Server string
	Err    error
}

func (e StartupError) Error() string { return fmt.Sprintf("mcp server %s: %v", e.Server, e.Err) }

// ToolBinding is a qualified tool name resolved back to its owning
// server and the tool's original (unqualified) name.
type ToolBinding struct {
	QualifiedName string
	Server        string
	ToolName      string
	Tool          Tool
}

// Manager owns every connected server's Client and the qualified-name
// routing table used to dispatch tools/call, grounded on the teacher's
// internal/mcp/manager.go.
type Manager struct {
	logger *slog.Logger

	mu       sync.RWMutex
	clients  map[string]*Client
	bindings map[string]ToolBinding
}

// NewManager creates an empty Manager; call Start to spawn configured
// servers.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:   logger.With("component", "mcp"),
		clients:  map[string]*Client{},
		bindings: map[string]ToolBinding{},
	}
}

// Start connects to every configured server concurrently. Each server's
// failure is collected into the returned slice rather than aborting the
// others (spec.md §4.3.3); a server that connects but fails tools/list
// keeps an empty tool roster rather than being dropped.
func (m *Manager) Start(ctx context.Context, servers []ServerConfig) []StartupError {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		errs   []StartupError
		ready  = map[string]*Client{}
	)

	for _, cfg := range servers {
		wg.Add(1)
		go func(cfg ServerConfig) {
			defer wg.Done()
			client := newClient(cfg, m.logger)
			if err := client.connect(ctx); err != nil {
				mu.Lock()
				errs = append(errs, StartupError{Server: cfg.Name, Err: err})
				mu.Unlock()
				return
			}
			mu.Lock()
			ready[cfg.Name] = client
			mu.Unlock()
		}(cfg)
	}
	wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	for name, client := range ready {
		m.clients[name] = client
		for _, tool := range client.Tools() {
			qualified, ok := qualifyToolName(name, tool.Name, seen)
			if !ok {
				m.logger.Warn("dropping mcp tool with duplicate raw name", "server", name, "tool", tool.Name)
				continue
			}
			m.bindings[qualified] = ToolBinding{QualifiedName: qualified, Server: name, ToolName: tool.Name, Tool: tool}
		}
	}
	return errs
}

// Stop disconnects every connected server.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, client := range m.clients {
		if err := client.close(); err != nil {
			m.logger.Warn("failed to close mcp server", "server", name, "error", err)
		}
	}
	m.clients = map[string]*Client{}
	m.bindings = map[string]ToolBinding{}
}

// Tools returns every qualified tool binding across all connected
// servers, for exposing to the model's tool roster.
func (m *Manager) Tools() []ToolBinding {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ToolBinding, 0, len(m.bindings))
	for _, b := range m.bindings {
		out = append(out, b)
	}
	return out
}

// Lookup resolves a qualified tool name to its binding.
func (m *Manager) Lookup(qualifiedName string) (ToolBinding, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bindings[qualifiedName]
	return b, ok
}

// CallTool invokes qualifiedName on its owning server and translates the
// result into a FunctionCallOutputPayload plus any image content blocks
// (spec.md §4.3.3: "Image-bearing tool results synthesize an ImageRecord
// in history instead of text").
func (m *Manager) CallTool(ctx context.Context, qualifiedName string, arguments json.RawMessage) (FunctionCallOutputPayload, []ToolResultContent, error) {
	binding, ok := m.Lookup(qualifiedName)
	if !ok {
		return FunctionCallOutputPayload{}, nil, fmt.Errorf("mcp tool %q not found", qualifiedName)
	}
	m.mu.RLock()
	client, ok := m.clients[binding.Server]
	m.mu.RUnlock()
	if !ok {
		return FunctionCallOutputPayload{}, nil, fmt.Errorf("mcp server %q not connected", binding.Server)
	}

	result, err := client.callTool(ctx, binding.ToolName, arguments, 0)
	if err != nil {
		return FunctionCallOutputPayload{Success: false}, nil, err
	}

	var images []ToolResultContent
	textBlocks := make([]ToolResultContent, 0, len(result.Content))
	for _, block := range result.Content {
		if block.Type == "image" {
			images = append(images, block)
			continue
		}
		textBlocks = append(textBlocks, block)
	}
	text, marshalErr := json.Marshal(textBlocks)
	if marshalErr != nil {
		text = []byte(`[]`)
	}

	return FunctionCallOutputPayload{Content: text, Success: !result.IsError}, images, nil
}
