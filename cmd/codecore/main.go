// Package main provides the CLI entry point for codecore, a terminal
// coding assistant that coordinates a human, a remote LLM agent, a
// sandboxed shell, a browser-automation bridge, and pluggable tool
// servers behind a single concurrent event engine (spec.md §4).
//
// # Basic Usage
//
// Start an interactive session in the current directory:
//
//	codecore run
//
// Manage registered MCP servers:
//
//	codecore mcp list
//	codecore mcp add filesystem -- npx -y mcp-server-fs
//
// # Environment Variables
//
//   - CODE_HOME / CODEX_HOME: override the settings directory (spec.md §6.3)
//   - CODECORE_LOG_LEVEL: log level for the root logger
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/codecore/codecore/internal/bridge"
	"github.com/codecore/codecore/internal/commands"
	"github.com/codecore/codecore/internal/config"
	"github.com/codecore/codecore/internal/eventbus"
	"github.com/codecore/codecore/internal/mcp"
	"github.com/codecore/codecore/internal/observability"
	"github.com/codecore/codecore/internal/session"
	"github.com/codecore/codecore/internal/tui"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := observability.NewLogger(observability.LogConfig{
		Level:  os.Getenv("CODECORE_LOG_LEVEL"),
		Format: "json",
		Output: os.Stderr,
	})
	slog.SetDefault(logger)

	rootCmd := buildRootCmd(logger)
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd(logger *slog.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "codecore",
		Short: "codecore - terminal coding assistant",
		Long: `codecore runs a remote LLM agent against a sandboxed shell,
a browser-automation bridge, and pluggable MCP tool servers, all
coordinated through a two-priority event bus and a debounced render
pipeline.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildRunCmd(logger),
		buildMcpCmd(),
	)

	return rootCmd
}

// noopRedrawer satisfies tui.Redrawer until a real terminal renderer is
// wired in; Redraw is invoked by the frame timer on every debounced tick.
type noopRedrawer struct{}

func (noopRedrawer) Redraw() error { return nil }

// lineBuffer accumulates KeyEvent/Paste messages into a single line of
// input text, submitted on Enter. It is the composer's minimal stand-in
// until a real scrollback-aware text area is wired in.
type lineBuffer struct {
	buf strings.Builder
}

func newLineBuffer() *lineBuffer { return &lineBuffer{} }

// Apply feeds one bus message into the buffer. It returns the accumulated
// text and true once Enter submits it; other messages are absorbed and
// return ("", false).
func (l *lineBuffer) Apply(msg eventbus.Message) (string, bool) {
	switch m := msg.(type) {
	case eventbus.Paste:
		l.buf.WriteString(m.Text)
	case eventbus.KeyEvent:
		switch {
		case m.Code == "enter":
			text := l.buf.String()
			l.buf.Reset()
			return text, true
		case m.Code == "backspace":
			s := l.buf.String()
			if len(s) > 0 {
				l.buf.Reset()
				l.buf.WriteString(s[:len(s)-1])
			}
		case m.Ctrl || m.Alt:
			// Control chords (other than the handled ones above) don't
			// insert text.
		case m.Rune != 0:
			l.buf.WriteRune(m.Rune)
		}
	}
	return "", false
}

// buildRunCmd wires the session, event bus, command dispatcher, and TUI
// event loop together and drives them until the user exits (spec.md §4.6).
func buildRunCmd(logger *slog.Logger) *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start an interactive session in the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}

			bus := eventbus.New()
			sandbox := session.SandboxPolicy{Mode: session.SandboxWorkspaceWrite}
			sess := session.New(cwd, session.ApprovalUnlessTrusted, sandbox, nil, logger)
			if model != "" {
				logger.Info("session started", "model", model, "cwd", sess.Cwd)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			metrics := observability.NewMetrics(nil)
			tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{ServiceName: "codecore", ServiceVersion: version})
			defer func() {
				if err := shutdownTracer(context.Background()); err != nil {
					logger.Debug("tracer shutdown", "error", err)
				}
			}()
			go pollBusStats(ctx, bus, metrics)

			registry := commands.NewRegistry(logger)
			commands.RegisterBuiltins(registry)
			commands.RegisterTUIBuiltins(registry)
			registerShellCommands(registry, sess, bus, logger, metrics, tracer)

			mcpManager := mcp.NewManager(logger)
			if home, _, err := config.LoadHome(); err != nil {
				logger.Warn("failed to load settings for MCP servers", "error", err)
			} else if servers := mcpServerConfigs(home); len(servers) > 0 {
				for _, startupErr := range mcpManager.Start(ctx, servers) {
					logger.Warn("mcp server failed to start", "server", startupErr.Server, "error", startupErr.Err)
				}
			}
			defer mcpManager.Stop()
			registerToolCommand(registry, sess, mcpManager, logger)

			dispatcher := commands.NewDispatcher(registry)

			loop := tui.NewLoop(bus, noopRedrawer{}, logger)
			loop.History = sess.History
			loop.Cache.Metrics = metrics
			stopSig := tui.NotifyOnSIGTERM(bus)
			defer stopSig()

			bridgeClient := bridge.NewClient(cwd, logger)
			bridgeClient.Metrics = metrics
			go bridgeClient.Run(ctx)
			go forwardBridgeBatches(ctx, bridgeClient, sess)

			nudges := session.NewNudgeScheduler(sess, bus, logger)
			if err := nudges.Start(); err != nil {
				logger.Warn("time-budget nudge scheduler failed to start", "error", err)
			} else {
				defer nudges.Stop()
			}

			reader := tui.NewInputReader(os.Stdin, bus)
			go func() {
				if err := reader.Run(); err != nil {
					logger.Debug("input reader stopped", "error", err)
				}
			}()

			line := newLineBuffer()
			loop.Handler = func(msg eventbus.Message) {
				text, submitted := line.Apply(msg)
				if !submitted {
					return
				}
				dispatched := dispatcher.Dispatch(ctx, text)
				switch {
				case dispatched.Notice != "":
					logger.Warn("command", "notice", dispatched.Notice)
				case dispatched.Prompt != "":
					logger.Info("expanded prompt submitted", "command", dispatched.Name)
				case dispatched.IsCommand:
					if dispatched.Result != nil && dispatched.Result.Text != "" {
						logger.Info("command executed", "command", dispatched.Name, "result", dispatched.Result.Text)
					} else {
						logger.Info("command executed", "command", dispatched.Name)
					}
				default:
					sess.StartPendingOnlyTurnIfIdle(ctx)
				}
			}

			loop.Run(ctx)
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "Model identifier to use for this session")
	return cmd
}

// pollBusStats samples bus's cumulative counters every second and folds the
// deltas into metrics, exporting the event bus's internal starvation-guard
// bookkeeping as Prometheus series (spec.md §4.7) without the bus itself
// depending on the metrics package.
func pollBusStats(ctx context.Context, bus *eventbus.Bus, metrics *observability.Metrics) {
	var prevHigh, prevBulk, prevForced int64
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := bus.Stats()
			metrics.ObserveBusStats(stats.HighEnqueued, stats.BulkEnqueued, stats.BulkForced, &prevHigh, &prevBulk, &prevForced)
		}
	}
}
