package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/codecore/codecore/internal/bridge"
	"github.com/codecore/codecore/internal/commands"
	"github.com/codecore/codecore/internal/coreerr"
	"github.com/codecore/codecore/internal/eventbus"
	"github.com/codecore/codecore/internal/exec"
	"github.com/codecore/codecore/internal/history"
	"github.com/codecore/codecore/internal/observability"
	"github.com/codecore/codecore/internal/pty"
	"github.com/codecore/codecore/internal/session"
)

// registerShellCommands wires the Tool & Exec Orchestrator (spec.md §4.3)
// and the PTY-backed interactive terminal (spec.md §4.3.4) into the TUI's
// slash-command surface: /shell runs one command to completion under the
// session's sandbox gate, /term hands a command a real pseudo-terminal and
// streams its output onto bus as TerminalChunk/TerminalExit events. metrics
// and tracer are optional (nil-safe) observability hooks per spec.md §4.7.
func registerShellCommands(registry *commands.Registry, sess *session.Session, bus *eventbus.Bus, logger *slog.Logger, metrics *observability.Metrics, tracer *observability.Tracer) {
	gate := exec.NewGate()
	runner := exec.NewRunner(logger)
	runner.Metrics = metrics
	runner.Tracer = tracer

	mustRegister := func(cmd *commands.Command) {
		if err := registry.Register(cmd); err != nil {
			panic(fmt.Sprintf("failed to register builtin command %q: %v", cmd.Name, err))
		}
	}

	mustRegister(&commands.Command{
		Name:        "shell",
		Aliases:     []string{"sh", "exec"},
		Description: "Run a shell command under the session's approval and sandbox policy",
		Usage:       "/shell <command> (resubmit as /shell confirm:<command> once asked)",
		AcceptsArgs: true,
		Category:    "exec",
		Source:      "builtin",
		Handler:     shellHandler(sess, gate, runner),
	})

	mustRegister(&commands.Command{
		Name:        "term",
		Description: "Run a command under a pseudo-terminal, streaming its output inline",
		Usage:       "/term <command>",
		AcceptsArgs: true,
		Category:    "exec",
		Source:      "builtin",
		Handler:     termHandler(sess, bus, logger),
	})
}

// shellHandler runs commandLine to completion, gated by the session's
// approval/sandbox policy, and folds its end classification (spec.md §7)
// into the history record once the run finishes.
func shellHandler(sess *session.Session, gate *exec.Gate, runner *exec.Runner) commands.CommandHandler {
	return func(ctx context.Context, inv *commands.Invocation) (*commands.Result, error) {
		line, confirmed := exec.IsConfirmed(inv.Args)
		line = strings.TrimSpace(line)
		if line == "" {
			return &commands.Result{Text: "Usage: /shell <command>"}, nil
		}

		decision := gate.Evaluate(sess.ApprovalPolicy(), sess.SandboxPolicy(), line, false, confirmed)
		switch decision.Outcome {
		case exec.OutcomeReject:
			err := exec.ClassifyDecision(decision)
			kind, _ := coreerr.KindOf(err)
			return &commands.Result{Text: fmt.Sprintf("Rejected (%s): %s", kind, decision.Reason)}, nil
		case exec.OutcomeAskUser:
			reason := decision.Reason
			if reason == "" {
				reason = "approval policy requires confirmation"
			}
			return &commands.Result{Text: fmt.Sprintf("Needs confirmation (%s). Resubmit as: /shell confirm:%s", reason, line)}, nil
		}

		argv := strings.Fields(line)
		callID := uuid.NewString()
		order := sess.NextOrder()
		meta, histID := sess.RegisterExecBegin(callID, inv.RawText, argv, sess.Cwd, order)

		sink := &exec.StreamSink{CallID: callID}
		end := runner.Run(ctx, exec.Params{Command: argv, Cwd: sess.Cwd}, exec.InvokeArgs{SandboxType: decision.SandboxType}, meta, sink)

		status := history.ExecSuccess
		switch {
		case end.TimedOut:
			status = history.ExecTimeout
		case end.ExitCode != 0:
			status = history.ExecFailed
		}
		sess.FinalizeExecEnd(histID, callID, status, end.ExitCode, end.Stdout, end.Stderr)

		if kind, classified := exec.ClassifyEnd(end); classified {
			sess.Logger.Warn("shell command ended abnormally", "command", line, "kind", kind, "exit_code", end.ExitCode)
		}

		text := strings.TrimSpace(end.Stdout)
		if end.Stderr != "" {
			text = strings.TrimSpace(text + "\n" + end.Stderr)
		}
		if text == "" {
			text = fmt.Sprintf("(exit %d, no output)", end.ExitCode)
		}
		return &commands.Result{Text: text, Data: map[string]any{"exit_code": end.ExitCode}}, nil
	}
}

// termHandler starts commandLine under a fresh PTY. Output and exit are
// streamed onto bus as TerminalChunk/TerminalExit; the handler returns
// immediately once the child is spawned rather than waiting for it to
// finish.
func termHandler(sess *session.Session, bus *eventbus.Bus, logger *slog.Logger) commands.CommandHandler {
	return func(ctx context.Context, inv *commands.Invocation) (*commands.Result, error) {
		line := strings.TrimSpace(inv.Args)
		if line == "" {
			return &commands.Result{Text: "Usage: /term <command>"}, nil
		}

		argv := strings.Fields(line)
		callID := uuid.NewString()
		size := pty.Size{Rows: 24, Cols: 80}
		if _, err := pty.Start(ctx, callID, argv, sess.Cwd, size, bus, logger); err != nil {
			return &commands.Result{Text: fmt.Sprintf("Failed to start terminal: %v", err)}, nil
		}

		return &commands.Result{Text: fmt.Sprintf("Started %s under a pseudo-terminal (call %s).", line, callID)}, nil
	}
}

// forwardBridgeBatches drains client's flushed batches for the lifetime of
// ctx, folding each into the session's background-notice history path
// (spec.md §4.4.3/§4.2).
func forwardBridgeBatches(ctx context.Context, client *bridge.Client, sess *session.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-client.Batches():
			if !ok {
				return
			}
			for _, ev := range batch {
				sess.RecordBridgeEvent(ev.Summary, ev.ErrorBorne)
			}
		}
	}
}
