package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/codecore/codecore/internal/commands"
	"github.com/codecore/codecore/internal/coreerr"
	"github.com/codecore/codecore/internal/mcp"
	"github.com/codecore/codecore/internal/session"
)

// registerToolCommand wires the MCP tool-call half of the Tool & Exec
// Orchestrator (spec.md §4.3.3) into the TUI's slash-command surface:
// /tool <qualified-name> [json-args] invokes one already-connected MCP
// server's tool and folds the result into the transcript as a ToolCall
// record, synthesizing an Image record per image content block.
func registerToolCommand(registry *commands.Registry, sess *session.Session, manager *mcp.Manager, logger *slog.Logger) {
	mustRegister := func(cmd *commands.Command) {
		if err := registry.Register(cmd); err != nil {
			panic(fmt.Sprintf("failed to register builtin command %q: %v", cmd.Name, err))
		}
	}

	mustRegister(&commands.Command{
		Name:        "tool",
		Description: "Call an MCP tool by its qualified name (see /tools for the roster)",
		Usage:       "/tool <server__tool> [json-arguments]",
		AcceptsArgs: true,
		Category:    "mcp",
		Source:      "builtin",
		Handler:     toolHandler(sess, manager, logger),
	})

	mustRegister(&commands.Command{
		Name:        "tools",
		Description: "List tools exposed by connected MCP servers",
		Category:    "mcp",
		Source:      "builtin",
		Handler:     toolsListHandler(manager),
	})
}

func toolsListHandler(manager *mcp.Manager) commands.CommandHandler {
	return func(ctx context.Context, inv *commands.Invocation) (*commands.Result, error) {
		bindings := manager.Tools()
		if len(bindings) == 0 {
			return &commands.Result{Text: "No MCP tools available (no servers connected)."}, nil
		}
		var b strings.Builder
		for _, binding := range bindings {
			fmt.Fprintf(&b, "%s — %s\n", binding.QualifiedName, binding.Tool.Description)
		}
		return &commands.Result{Text: strings.TrimRight(b.String(), "\n")}, nil
	}
}

func toolHandler(sess *session.Session, manager *mcp.Manager, logger *slog.Logger) commands.CommandHandler {
	return func(ctx context.Context, inv *commands.Invocation) (*commands.Result, error) {
		name, argsJSON, _ := strings.Cut(strings.TrimSpace(inv.Args), " ")
		if name == "" {
			return &commands.Result{Text: "Usage: /tool <server__tool> [json-arguments]"}, nil
		}

		binding, ok := manager.Lookup(name)
		if !ok {
			return &commands.Result{Text: fmt.Sprintf("No such MCP tool %q. Try /tools for the roster.", name)}, nil
		}

		var rawArgs json.RawMessage
		argsJSON = strings.TrimSpace(argsJSON)
		if argsJSON != "" {
			if !json.Valid([]byte(argsJSON)) {
				return &commands.Result{Text: "Arguments must be valid JSON."}, nil
			}
			rawArgs = json.RawMessage(argsJSON)
		}

		callID := uuid.NewString()
		order := sess.NextOrder()
		histID := sess.RegisterToolCallBegin(callID, binding.Server, binding.ToolName, order)

		payload, images, err := manager.CallTool(ctx, name, rawArgs)
		if err != nil {
			coreErr := coreerr.New(coreerr.KindTransport, err)
			sess.FinalizeToolCallEnd(histID, coreErr.Error(), true)
			return &commands.Result{Text: fmt.Sprintf("Tool call failed: %v", coreErr)}, nil
		}

		sess.FinalizeToolCallEnd(histID, string(payload.Content), !payload.Success)
		for _, img := range images {
			data, decodeErr := base64.StdEncoding.DecodeString(img.Data)
			if decodeErr != nil {
				logger.Warn("mcp image result had invalid base64 data", "tool", name, "error", decodeErr)
				continue
			}
			sess.AppendImage(sess.NextOrder(), img.MimeType, data, img.Text)
		}

		text := string(payload.Content)
		if len(images) > 0 {
			text = fmt.Sprintf("%s (%d image result(s) attached)", text, len(images))
		}
		return &commands.Result{Text: text, Data: map[string]any{"success": payload.Success}}, nil
	}
}
