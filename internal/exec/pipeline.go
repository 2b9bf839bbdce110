package exec

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/codecore/codecore/internal/history"
	"github.com/codecore/codecore/internal/observability"
)

// timeoutExitCode (128+64) is the conventional pre-remap timeout status.
// runOnce does not report it: after the SIGKILL-on-timeout the wait
// observes 128+9, and runOnce replaces that with remappedTimeoutExitCode.
const timeoutExitCode = 128 + 64

// remappedTimeoutExitCode is the exit code surfaced to history once a
// timeout has been detected.
const remappedTimeoutExitCode = 124

// cancelledExitCode is used for both explicit user cancellation and
// drop-guard synthetic End emission.
const cancelledExitCode = 130

// Hook fires before or after a privileged operation (ToolBefore/After,
// FileBeforeWrite/After). Errors from Before hooks abort the operation;
// errors from After hooks are logged only.
type Hook func(ctx context.Context, event HookEvent) error

// HookEvent is the JSON-able payload passed to hooks (spec.md §4.3.5).
type HookEvent struct {
	Type     string // "ToolBefore", "ToolAfter", "FileBeforeWrite", "FileAfterWrite"
	CallID   string
	Cwd      string
	Command  []string
	Stdout   string // truncated to ~2KiB, After only
	Stderr   string // truncated to ~2KiB, After only
	ExitCode *int   // After only
}

const hookPayloadTruncateBytes = 2 * 1024

func truncateForHook(s string) string {
	if len(s) <= hookPayloadTruncateBytes {
		return s
	}
	return s[:hookPayloadTruncateBytes] + "…"
}

// Runner executes Params under policy gating, emitting paired Begin/End
// events with streamed output deltas and guaranteeing an End is always
// produced even on abnormal termination.
type Runner struct {
	Logger   *slog.Logger
	Before   Hook // optional
	After    Hook // optional

	// Metrics and Tracer are optional observability hooks (spec.md §4.7:
	// "OTel span per exec call plus a Prometheus histogram
	// exec_duration_seconds"). Both are nil-safe no-ops when unset.
	Metrics *observability.Metrics
	Tracer  *observability.Tracer

	reentrancy sync.Map // guards a hook from triggering its own hooks recursively
}

// NewRunner constructs a Runner with the given logger (nil defaults to
// slog.Default()).
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{Logger: logger.With("component", "exec_runner")}
}

// Run executes params under the given registry entry, streaming events to
// sink.Events (if non-nil) and returning the final EndEvent. The drop guard
// contract is upheld even if ctx is cancelled mid-run: exactly one End is
// always emitted, marking meta.MarkEndEmitted().
func (r *Runner) Run(ctx context.Context, params Params, invoke InvokeArgs, meta *history.RunningExecMeta, sink *StreamSink) EndEvent {
	start := time.Now()

	ctx, span := r.Tracer.Start(ctx, "exec.run", attribute.String("call_id", meta.CallID))
	end := r.run(ctx, params, invoke, meta, sink, start)
	status := "success"
	if end.ExitCode != 0 {
		status = "error"
	}
	if r.Metrics != nil {
		r.Metrics.ExecDuration.WithLabelValues(status).Observe(end.Duration.Seconds())
	}
	span.SetAttributes(attribute.Int("exit_code", end.ExitCode))
	observability.EndWithError(span, nil)
	return end
}

func (r *Runner) run(ctx context.Context, params Params, invoke InvokeArgs, meta *history.RunningExecMeta, sink *StreamSink, start time.Time) EndEvent {
	if sink != nil && sink.Events != nil {
		sink.Events <- BeginEvent{CallID: meta.CallID, Command: params.Command, Cwd: params.Cwd, ParsedCmd: params.Command}
	}

	if r.Before != nil {
		if !r.reentrant(meta.CallID) {
			if err := r.Before(ctx, HookEvent{Type: "ToolBefore", CallID: meta.CallID, Cwd: params.Cwd, Command: params.Command}); err != nil {
				return r.finalizeOnce(meta, EndEvent{CallID: meta.CallID, ExitCode: 1, Stderr: err.Error(), Duration: time.Since(start)}, sink)
			}
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if d := params.Timeout(); d > 0 {
		var timeoutCancel context.CancelFunc
		runCtx, timeoutCancel = context.WithTimeout(runCtx, d)
		defer timeoutCancel()
	}

	go r.watchCancelFlag(runCtx, cancel, meta)

	end := r.runOnce(runCtx, params, invoke, meta, sink, start)
	end = r.finalizeOnce(meta, end, sink)

	if r.After != nil && !r.reentrant(meta.CallID) {
		exitCode := end.ExitCode
		if err := r.After(ctx, HookEvent{
			Type: "ToolAfter", CallID: meta.CallID, Cwd: params.Cwd, Command: params.Command,
			Stdout: truncateForHook(end.Stdout), Stderr: truncateForHook(end.Stderr), ExitCode: &exitCode,
		}); err != nil && r.Logger != nil {
			r.Logger.Warn("after hook failed", "call_id", meta.CallID, "error", err)
		}
	}

	return end
}

func (r *Runner) watchCancelFlag(ctx context.Context, cancel context.CancelFunc, meta *history.RunningExecMeta) {
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if meta.Cancelled() {
				cancel()
				return
			}
		}
	}
}

func (r *Runner) reentrant(callID string) bool {
	_, loaded := r.reentrancy.LoadOrStore(callID, true)
	defer r.reentrancy.Delete(callID)
	return loaded
}

// runOnce spawns the child, streams output, and waits. It never panics on
// ctx cancellation; instead it returns the best EndEvent it can construct.
func (r *Runner) runOnce(ctx context.Context, params Params, invoke InvokeArgs, meta *history.RunningExecMeta, sink *StreamSink, start time.Time) EndEvent {
	if len(params.Command) == 0 {
		return EndEvent{CallID: meta.CallID, ExitCode: 1, Stderr: "empty command", Duration: time.Since(start)}
	}

	cmd := exec.CommandContext(ctx, params.Command[0], params.Command[1:]...)
	cmd.Dir = params.Cwd
	cmd.Env = mergeEnv(os.Environ(), params.Env)
	setProcessGroup(cmd)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return EndEvent{CallID: meta.CallID, ExitCode: 1, Stderr: err.Error(), Duration: time.Since(start)}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return EndEvent{CallID: meta.CallID, ExitCode: 1, Stderr: err.Error(), Duration: time.Since(start)}
	}

	if err := cmd.Start(); err != nil {
		return EndEvent{CallID: meta.CallID, ExitCode: 1, Stderr: err.Error(), Duration: time.Since(start)}
	}

	var stdoutCap, stderrCap, combinedCap Capture
	var deltaBudget DeltaBudget
	var spoolFiles *spoolWriters
	if sink != nil && sink.SpoolDir != "" {
		spoolFiles = openSpoolWriters(sink.SpoolDir)
		defer spoolFiles.Close()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go r.readStream(&wg, "stdout", stdoutPipe, &stdoutCap, &combinedCap, &deltaBudget, meta.CallID, sink, spoolFiles)
	go r.readStream(&wg, "stderr", stderrPipe, &stderrCap, &combinedCap, &deltaBudget, meta.CallID, sink, spoolFiles)
	wg.Wait()

	waitErr := cmd.Wait()
	duration := time.Since(start)

	timedOut := ctx.Err() == context.DeadlineExceeded
	exitCode := exitCodeOf(waitErr)
	if timedOut {
		exitCode = remappedTimeoutExitCode
	} else if ctx.Err() == context.Canceled && meta.Cancelled() {
		exitCode = cancelledExitCode
	}

	oomKilled, memMax := probeOOM(cmd)

	return EndEvent{
		CallID: meta.CallID, ExitCode: exitCode,
		Stdout: stdoutCap.String(), Stderr: stderrCap.String(),
		Duration: duration, TimedOut: timedOut,
		OOMKilled: oomKilled, MemoryMaxBytes: memMax,
	}
}

func (r *Runner) readStream(wg *sync.WaitGroup, name string, pipe io.Reader, cap, combined *Capture, budget *DeltaBudget, callID string, sink *StreamSink, spool *spoolWriters) {
	defer wg.Done()

	reader := bufio.NewReaderSize(pipe, 64*1024)
	var pending []byte
	lastFlush := time.Now()

	flush := func(force bool) {
		if len(pending) == 0 {
			return
		}
		if !force && len(pending) < flushThresholdBytes && time.Since(lastFlush) < 200*time.Millisecond {
			return
		}
		if sink != nil && sink.Events != nil && budget.Allow() {
			sink.Events <- OutputDeltaEvent{CallID: callID, Stream: name, Chunk: append([]byte(nil), pending...)}
		}
		pending = pending[:0]
		lastFlush = time.Now()
	}

	buf := make([]byte, 32*1024)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			cap.Write(chunk)
			combined.Write(chunk)
			pending = append(pending, chunk...)
			if spool != nil {
				spool.Write(name, chunk)
			}
			flush(false)
		}
		if err != nil {
			flush(true)
			return
		}
	}
}

// finalizeOnce upholds the drop-guard contract: if meta has not already had
// an End marked, this emits it (real, here) and sends EndEvent on sink.
// Callers that detect abnormal termination (panic-equivalent, cancellation
// observed after runOnce returned) should call DropGuardFinalize instead.
func (r *Runner) finalizeOnce(meta *history.RunningExecMeta, end EndEvent, sink *StreamSink) EndEvent {
	if !meta.MarkEndEmitted() {
		return end
	}
	if sink != nil && sink.Events != nil {
		sink.Events <- end
	}
	return end
}

// DropGuardFinalize emits a synthetic End for meta if one has not already
// been emitted — the scoped-acquisition cleanup path described in
// spec.md §9 ("Drop-based cleanup"). Safe to call unconditionally from a
// deferred cleanup; it is a no-op if an End was already sent.
func DropGuardFinalize(meta *history.RunningExecMeta, sink *StreamSink) {
	if !meta.MarkEndEmitted() {
		return
	}
	stderr := "Command interrupted before completion."
	if meta.Cancelled() {
		stderr = "Command cancelled by user."
	}
	end := EndEvent{CallID: meta.CallID, ExitCode: cancelledExitCode, Stderr: stderr}
	if sink != nil && sink.Events != nil {
		sink.Events <- end
	}
}

func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	out := append([]string(nil), base...)
	for k, v := range overrides {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
		return exitErr.ExitCode()
	}
	return 1
}

func asExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}

type spoolWriters struct {
	mu               sync.Mutex
	stdout, stderr, combined *os.File
}

func openSpoolWriters(dir string) *spoolWriters {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil
	}
	sw := &spoolWriters{}
	sw.stdout, _ = os.Create(filepath.Join(dir, "stdout.log"))
	sw.stderr, _ = os.Create(filepath.Join(dir, "stderr.log"))
	sw.combined, _ = os.Create(filepath.Join(dir, "combined.log"))
	return sw
}

func (s *spoolWriters) Write(stream string, data []byte) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch stream {
	case "stdout":
		if s.stdout != nil {
			s.stdout.Write(data)
		}
	case "stderr":
		if s.stderr != nil {
			s.stderr.Write(data)
		}
	}
	if s.combined != nil {
		s.combined.Write(data)
	}
}

func (s *spoolWriters) Close() {
	if s == nil {
		return
	}
	for _, f := range []*os.File{s.stdout, s.stderr, s.combined} {
		if f != nil {
			f.Close()
		}
	}
}
