// Package pty runs interactive shell commands behind a pseudo-terminal
// so full-screen programs (editors, pagers, REPLs) render correctly
// inline, feeding their output to the Event Bus as it arrives (spec.md
// §4.3.4).
package pty

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	creackpty "github.com/creack/pty"

	"github.com/codecore/codecore/internal/eventbus"
)

// readChunkSize bounds a single read from the PTY master before it is
// forwarded as a TerminalChunk, keeping individual bus messages small
// enough that the high-priority redraw path never waits long behind one.
const readChunkSize = 4096

// Run is the in-process handle Start returns for a command running
// under a PTY. Start launches its reader, resize and wait goroutines,
// which stream TerminalChunk/TerminalExit events for CallID onto the
// bus; Write forwards input synchronously. The command runs
// asynchronously until ctx is canceled or it exits on its own.
type Run struct {
	CallID string
	cmd    *exec.Cmd
	master *os.File

	resizeCh chan Size
}

// Size is a terminal row/column pair.
type Size struct{ Rows, Cols uint16 }

// Start launches command (argv[0], argv[1:]...) under a new PTY of the
// given initial size and begins streaming its output.
func Start(ctx context.Context, callID string, argv []string, cwd string, size Size, bus *eventbus.Bus, logger *slog.Logger) (*Run, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "pty", "call_id", callID)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = cwd

	master, err := creackpty.StartWithSize(cmd, &creackpty.Winsize{Rows: size.Rows, Cols: size.Cols})
	if err != nil {
		return nil, err
	}

	run := &Run{CallID: callID, cmd: cmd, master: master, resizeCh: make(chan Size, 1)}

	go run.readLoop(bus, logger)
	go run.resizeLoop(logger)
	go run.waitTask(bus, logger)

	return run, nil
}

// Write sends bytes to the PTY's master side (keyboard input forwarded
// from the TUI while this run has focus).
func (r *Run) Write(p []byte) (int, error) {
	return r.master.Write(p)
}

// Resize queues a terminal size change to apply to the PTY.
func (r *Run) Resize(size Size) {
	select {
	case r.resizeCh <- size:
	default:
		// Drop if a resize is already queued; only the latest matters.
		select {
		case <-r.resizeCh:
		default:
		}
		r.resizeCh <- size
	}
}

func (r *Run) resizeLoop(logger *slog.Logger) {
	for size := range r.resizeCh {
		if err := creackpty.Setsize(r.master, &creackpty.Winsize{Rows: size.Rows, Cols: size.Cols}); err != nil {
			logger.Warn("pty resize failed", "error", err)
		}
	}
}

func (r *Run) readLoop(bus *eventbus.Bus, logger *slog.Logger) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.master.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			bus.SendBulk(eventbus.TerminalChunk{CallID: r.CallID, Data: chunk})
		}
		if err != nil {
			if err != io.EOF {
				logger.Debug("pty read ended", "error", err)
			}
			return
		}
	}
}

func (r *Run) waitTask(bus *eventbus.Bus, logger *slog.Logger) {
	start := time.Now()
	err := r.cmd.Wait()
	close(r.resizeCh)
	_ = r.master.Close()

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	bus.SendBulk(eventbus.TerminalExit{
		CallID:   r.CallID,
		ExitCode: exitCode,
		Duration: time.Since(start),
	})
}
