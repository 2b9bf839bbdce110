package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAltScreenState_ToggleFlips(t *testing.T) {
	s := NewAltScreenState(true)
	assert.True(t, s.Active())

	s.Toggle()
	assert.False(t, s.Active())

	s.Toggle()
	assert.True(t, s.Active())
}

func TestAltScreenState_OnChangeNotifiesListener(t *testing.T) {
	s := NewAltScreenState(false)
	var last bool
	seen := 0
	s.OnChange(func(active bool) { last = active; seen++ })

	s.Toggle()
	assert.Equal(t, 1, seen)
	assert.True(t, last)
}

func TestAltScreenState_SetToSameValueDoesNotNotify(t *testing.T) {
	s := NewAltScreenState(true)
	seen := 0
	s.OnChange(func(bool) { seen++ })

	s.Set(true)
	assert.Equal(t, 0, seen)

	s.Set(false)
	assert.Equal(t, 1, seen)
}
