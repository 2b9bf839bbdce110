package tui

import (
	"bufio"
	"io"
	"time"

	"github.com/codecore/codecore/internal/eventbus"
)

// pollMin and pollMax bound the input reader's dynamic poll timeout:
// it tightens toward pollMin while the user is actively typing and
// relaxes toward pollMax when idle (spec.md §4.6: "dynamic 2-10ms
// timeout depending on recent typing activity").
const (
	pollMin           = 2 * time.Millisecond
	pollMax           = 10 * time.Millisecond
	idleBeforeRelease = 250 * time.Millisecond
)

// InputReader decodes a raw terminal byte stream into eventbus
// messages, tracking recent typing activity to size its own poll
// loop. EnhancementFlagsActive mirrors the terminal's kitty-protocol
// key-release reporting; the decoder does not consult it and produces
// no key-release events.
type InputReader struct {
	r                       *bufio.Reader
	bus                     *eventbus.Bus
	lastInput               time.Time
	EnhancementFlagsActive  bool
}

func NewInputReader(r io.Reader, bus *eventbus.Bus) *InputReader {
	return &InputReader{r: bufio.NewReader(r), bus: bus}
}

// CurrentPollInterval reports the reader's current dynamic timeout,
// used by a caller driving its own select loop around Read.
func (ir *InputReader) CurrentPollInterval(now time.Time) time.Duration {
	if now.Sub(ir.lastInput) < idleBeforeRelease {
		return pollMin
	}
	return pollMax
}

// Run decodes from r until it returns an error (typically EOF on
// stdin close), emitting KeyEvent and Paste messages onto the high
// queue; it produces no Resize, mouse or focus events. It is meant to
// run on its own goroutine.
func (ir *InputReader) Run() error {
	for {
		b, err := ir.r.ReadByte()
		if err != nil {
			return err
		}
		ir.lastInput = time.Now()

		if b == 0x1b {
			ir.handleEscape()
			continue
		}
		ir.bus.SendHigh(decodeByteKey(b))
	}
}

func (ir *InputReader) handleEscape() {
	next, err := ir.r.Peek(1)
	if err != nil || len(next) == 0 {
		ir.bus.SendHigh(eventbus.KeyEvent{Code: "esc"})
		return
	}

	if next[0] != '[' && next[0] != 'O' {
		ir.bus.SendHigh(eventbus.KeyEvent{Code: "esc"})
		return
	}
	ir.r.ReadByte() // consume '[' or 'O'

	seq := []byte{}
	for {
		b, err := ir.r.ReadByte()
		if err != nil {
			break
		}
		seq = append(seq, b)
		if (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || b == '~' {
			break
		}
		if len(seq) > 32 {
			break
		}
	}
	if string(seq) == "200~" {
		ir.bus.SendHigh(eventbus.Paste{Text: ir.readBracketedPaste()})
		return
	}
	ir.bus.SendHigh(decodeCSI(seq))
}

// readBracketedPaste consumes bytes until the terminating ESC[201~
// sequence and returns everything in between.
func (ir *InputReader) readBracketedPaste() string {
	var text []byte
	const terminator = "\x1b[201~"
	for {
		b, err := ir.r.ReadByte()
		if err != nil {
			break
		}
		text = append(text, b)
		if len(text) >= len(terminator) && string(text[len(text)-len(terminator):]) == terminator {
			text = text[:len(text)-len(terminator)]
			break
		}
	}
	return string(text)
}

func decodeByteKey(b byte) eventbus.Message {
	switch b {
	case '\r', '\n':
		return eventbus.KeyEvent{Code: "enter"}
	case '\t':
		return eventbus.KeyEvent{Code: "tab"}
	case 0x7f:
		return eventbus.KeyEvent{Code: "backspace"}
	case 0x03:
		return eventbus.KeyEvent{Code: "c", Ctrl: true, Rune: 'c'}
	case 0x14:
		return eventbus.KeyEvent{Code: "t", Ctrl: true, Rune: 't'}
	}
	if b < 0x20 {
		return eventbus.KeyEvent{Code: "ctrl", Ctrl: true, Rune: rune('a' + b - 1)}
	}
	return eventbus.KeyEvent{Rune: rune(b)}
}

func decodeCSI(seq []byte) eventbus.Message {
	if len(seq) == 0 {
		return eventbus.KeyEvent{Code: "esc"}
	}
	switch string(seq) {
	case "A":
		return eventbus.KeyEvent{Code: "up"}
	case "B":
		return eventbus.KeyEvent{Code: "down"}
	case "C":
		return eventbus.KeyEvent{Code: "right"}
	case "D":
		return eventbus.KeyEvent{Code: "left"}
	}
	return eventbus.KeyEvent{Code: "unknown"}
}
