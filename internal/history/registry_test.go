package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_BeginEndExactlyOnce(t *testing.T) {
	r := NewRegistry()
	m := r.Register("call-1", "sub-1", OrderMeta{1, 0, 0})
	require.Equal(t, 1, r.Len())

	assert.True(t, m.MarkEndEmitted())
	assert.False(t, m.MarkEndEmitted(), "a second End for the same call_id must be refused")

	r.Unregister("call-1")
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_MarkAllCancelledPropagates(t *testing.T) {
	r := NewRegistry()
	m1 := r.Register("a", "sub", OrderMeta{})
	m2 := r.Register("b", "sub", OrderMeta{})

	r.MarkAllCancelled()

	assert.True(t, m1.Cancelled())
	assert.True(t, m2.Cancelled())
}

func TestRegistry_SnapshotThenFinalizeDrainsRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("a", "sub", OrderMeta{})
	r.Register("b", "sub", OrderMeta{})

	entries := r.Snapshot()
	require.Len(t, entries, 2)
	for _, e := range entries {
		e.MarkEndEmitted()
		r.Unregister(e.CallID)
	}
	assert.Equal(t, 0, r.Len())
}

func TestOrderMeta_LexicographicOrder(t *testing.T) {
	a := OrderMeta{RequestOrdinal: 1, OutputIndex: 0, SequenceNumber: 5}
	b := OrderMeta{RequestOrdinal: 1, OutputIndex: 1, SequenceNumber: 0}
	c := OrderMeta{RequestOrdinal: 2, OutputIndex: 0, SequenceNumber: 0}

	assert.True(t, a.Less(b))
	assert.True(t, b.Less(c))
	assert.False(t, c.Less(a))
	assert.Equal(t, 0, a.Compare(a))
}

func TestStore_AppendPreservesOrder(t *testing.T) {
	s := NewStore()
	s.Append(UserInput{Base: Base{ID: s.NextID(), Order: OrderMeta{1, 0, 0}}, Text: "hi"})
	s.Append(AssistantMessage{Base: Base{ID: s.NextID(), Order: OrderMeta{1, 0, 1}}, Text: "hello"})

	require.True(t, s.IsOrdered())
	assert.Equal(t, 2, s.Len())
}

func TestStore_ReplaceFinalizesStream(t *testing.T) {
	s := NewStore()
	id := s.NextID()
	s.Append(AssistantStream{Base: Base{ID: id, Order: OrderMeta{1, 0, 0}}, TextSoFar: "partial"})

	ok := s.Replace(id, AssistantMessage{Base: Base{ID: id, Order: OrderMeta{1, 0, 0}}, Text: "partial done"})
	require.True(t, ok)

	rec, found := s.Get(id)
	require.True(t, found)
	msg, isMsg := rec.(AssistantMessage)
	require.True(t, isMsg)
	assert.Equal(t, "partial done", msg.Text)
}
