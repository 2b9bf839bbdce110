package render

import (
	"testing"

	"github.com/codecore/codecore/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAssistantPlan_OmitsReasoningWhenHidden(t *testing.T) {
	msg := history.AssistantMessage{Base: history.Base{ID: 1}, Text: "answer", Reasoning: "thinking..."}
	plan := BuildAssistantPlan(msg, 80, 0, false)

	require.Len(t, plan.Sections, 1)
	assert.Equal(t, "answer", plan.Sections[0].Kind)
}

func TestBuildAssistantPlan_IncludesReasoningWhenVisible(t *testing.T) {
	msg := history.AssistantMessage{Base: history.Base{ID: 1}, Text: "answer", Reasoning: "thinking..."}
	plan := BuildAssistantPlan(msg, 80, 0, true)

	require.Len(t, plan.Sections, 2)
	assert.Equal(t, "reasoning", plan.Sections[0].Kind)
	assert.Equal(t, "answer", plan.Sections[1].Kind)
}

func TestAssistantLayoutCache_InvalidateOnConfigChange(t *testing.T) {
	c := NewAssistantLayoutCache()
	msg := history.AssistantMessage{Base: history.Base{ID: 1}, Text: "answer"}
	plan := BuildAssistantPlan(msg, 80, 0, false)
	c.Put(plan)

	c.Invalidate(100, 0, false)

	_, ok := c.Get(plan.Key)
	assert.False(t, ok)
}

func TestAssistantLayoutCache_InvalidateRecord(t *testing.T) {
	c := NewAssistantLayoutCache()
	msg1 := history.AssistantMessage{Base: history.Base{ID: 1}, Text: "a"}
	msg2 := history.AssistantMessage{Base: history.Base{ID: 2}, Text: "b"}
	plan1 := BuildAssistantPlan(msg1, 80, 0, false)
	plan2 := BuildAssistantPlan(msg2, 80, 0, false)
	c.Put(plan1)
	c.Put(plan2)

	c.InvalidateRecord(1)

	_, ok := c.Get(plan1.Key)
	assert.False(t, ok)
	_, ok = c.Get(plan2.Key)
	assert.True(t, ok)
}

func TestAssistantPlan_TotalRowsSumsSections(t *testing.T) {
	msg := history.AssistantMessage{Base: history.Base{ID: 1}, Text: "one two three four five", Reasoning: "thinking here"}
	plan := BuildAssistantPlan(msg, 10, 0, true)

	sum := 0
	for _, s := range plan.Sections {
		sum += len(s.Layout.Rows)
	}
	assert.Equal(t, sum, plan.TotalRows())
}
