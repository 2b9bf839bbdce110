package eventbus

import "time"

// Message is the tagged union of everything that can travel through the
// Event Bus. Concrete variants implement it by providing a stable Kind.
type Message interface {
	// Kind returns the variant's discriminator, used for logging and
	// metrics labels; it is not used for dispatch (callers type-switch on
	// the concrete type).
	Kind() string
}

// Priority selects which of the bus's two queues a message is enqueued on.
type Priority int

const (
	// High carries input and redraw scheduling: keystrokes, resize, paste,
	// focus, mouse, and exit requests. Starved only up to the guard limit.
	High Priority = iota
	// Bulk carries streamed model output and tool results.
	Bulk
)

// KeyEvent is a single keyboard input event.
type KeyEvent struct {
	Rune  rune
	Code  string // named keys: "enter", "esc", "up", "down", "tab", ...
	Ctrl  bool
	Alt   bool
	Shift bool
}

func (KeyEvent) Kind() string { return "key" }

// Paste carries a bracketed-paste payload as a single unit.
type Paste struct{ Text string }

func (Paste) Kind() string { return "paste" }

// Resize reports a terminal size change.
type Resize struct{ Width, Height int }

func (Resize) Kind() string { return "resize" }

// Redraw requests a frame redraw; Reason is used only for diagnostics.
type Redraw struct{ Reason string }

func (Redraw) Kind() string { return "redraw" }

// ModelEvent carries a single streamed event from the remote model client
// (assistant deltas, reasoning deltas, tool call requests, turn lifecycle).
type ModelEvent struct {
	SubmissionID string
	Payload      any
}

func (ModelEvent) Kind() string { return "model_event" }

// TerminalChunk carries PTY output bytes for an inline terminal run.
type TerminalChunk struct {
	CallID string
	Data   []byte
}

func (TerminalChunk) Kind() string { return "terminal_chunk" }

// TerminalExit signals a PTY-backed terminal run finished.
type TerminalExit struct {
	CallID   string
	ExitCode int
	Duration time.Duration
}

func (TerminalExit) Kind() string { return "terminal_exit" }

// Bridge carries a coalesced batch of bridge events up to the session.
type Bridge struct {
	Summary     string
	Level       string
	ErrorBorne  bool
	DroppedMore int
}

func (Bridge) Kind() string { return "bridge" }

// Timer fires a scheduled callback identifier (time-budget nudges, frame
// timer deadlines).
type Timer struct{ ID string }

func (Timer) Kind() string { return "timer" }

// ExitRequest asks the consumer to flush the current frame and return.
type ExitRequest struct{ Graceful bool }

func (ExitRequest) Kind() string { return "exit_request" }

// InsertHistory asks the consumer to splice a history record in directly,
// bypassing the normal streamed-append path (used for synthetic records).
type InsertHistory struct{ RecordID int64 }

func (InsertHistory) Kind() string { return "insert_history" }

// ModelPresetUpdate notifies the consumer that the active model preset
// changed (model name or reasoning effort).
type ModelPresetUpdate struct {
	Model            string
	ReasoningEffort  string
}

func (ModelPresetUpdate) Kind() string { return "model_preset_update" }
