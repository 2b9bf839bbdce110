package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/codecore/codecore/internal/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readOne(t *testing.T, raw string) eventbus.Message {
	t.Helper()
	bus := eventbus.New()
	ir := NewInputReader(strings.NewReader(raw), bus)
	done := make(chan struct{})
	go func() {
		ir.Run()
		close(done)
	}()
	msg, ok := bus.Next()
	require.True(t, ok)
	return msg
}

func TestInputReader_DecodesPlainRune(t *testing.T) {
	msg := readOne(t, "a")
	key, ok := msg.(eventbus.KeyEvent)
	require.True(t, ok)
	assert.Equal(t, 'a', key.Rune)
}

func TestInputReader_DecodesEnterAndTab(t *testing.T) {
	msg := readOne(t, "\r")
	key := msg.(eventbus.KeyEvent)
	assert.Equal(t, "enter", key.Code)

	msg = readOne(t, "\t")
	key = msg.(eventbus.KeyEvent)
	assert.Equal(t, "tab", key.Code)
}

func TestInputReader_DecodesArrowKeys(t *testing.T) {
	msg := readOne(t, "\x1b[A")
	key := msg.(eventbus.KeyEvent)
	assert.Equal(t, "up", key.Code)
}

func TestInputReader_DecodesCtrlT(t *testing.T) {
	msg := readOne(t, string([]byte{0x14}))
	key := msg.(eventbus.KeyEvent)
	assert.True(t, key.Ctrl)
	assert.Equal(t, "t", key.Code)
}

func TestInputReader_DecodesBracketedPaste(t *testing.T) {
	msg := readOne(t, "\x1b[200~hello world\x1b[201~")
	paste, ok := msg.(eventbus.Paste)
	require.True(t, ok)
	assert.Equal(t, "hello world", paste.Text)
}

func TestInputReader_CurrentPollIntervalRelaxesWhenIdle(t *testing.T) {
	ir := NewInputReader(strings.NewReader(""), eventbus.New())
	assert.Equal(t, pollMax, ir.CurrentPollInterval(ir.lastInput.Add(time.Hour)))
}
