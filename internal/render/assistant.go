package render

import "github.com/codecore/codecore/internal/history"

// AssistantSection is one visually distinct block within an assistant
// reply: either the reasoning preamble or the final answer body, split
// at section breaks the same way the model's own output is split.
type AssistantSection struct {
	Kind   string // "reasoning" or "answer"
	Layout CachedLayout
}

// AssistantPlan is the cached, section-aware layout of a finalized
// assistant message. It is shared by reference across frames until one
// of its inputs (text, width, theme epoch, reasoning visibility)
// changes (spec.md §4.5: "AssistantLayoutCache ... shared by reference
// until inputs change").
type AssistantPlan struct {
	Key      Key
	Sections []AssistantSection
}

func (p AssistantPlan) TotalRows() int {
	n := 0
	for _, s := range p.Sections {
		n += len(s.Layout.Rows)
	}
	return n
}

// AssistantLayoutCache caches AssistantPlans separately from the
// generic layout cache since assistant messages carry a reasoning
// block that can be toggled independently of width or theme.
type AssistantLayoutCache struct {
	plans map[Key]AssistantPlan
}

func NewAssistantLayoutCache() *AssistantLayoutCache {
	return &AssistantLayoutCache{plans: make(map[Key]AssistantPlan)}
}

func (c *AssistantLayoutCache) Get(key Key) (AssistantPlan, bool) {
	plan, ok := c.plans[key]
	return plan, ok
}

func (c *AssistantLayoutCache) Put(plan AssistantPlan) {
	c.plans[plan.Key] = plan
}

// Invalidate drops cached plans whose key no longer matches the given
// configuration, mirroring Cache.Reconfigure's rule for the generic
// layout cache.
func (c *AssistantLayoutCache) Invalidate(width, themeEpoch int, reasoningVisible bool) {
	for key := range c.plans {
		if key.Width != width || key.ThemeEpoch != themeEpoch || key.ReasoningVisible != reasoningVisible {
			delete(c.plans, key)
		}
	}
}

func (c *AssistantLayoutCache) InvalidateRecord(id history.ID) {
	for key := range c.plans {
		if key.HistoryID == id {
			delete(c.plans, key)
		}
	}
}

// BuildAssistantPlan wraps an assistant message's reasoning (when
// visible) and answer text into a section-aware plan at the given
// width/epoch.
func BuildAssistantPlan(msg history.AssistantMessage, width, themeEpoch int, reasoningVisible bool) AssistantPlan {
	key := Key{HistoryID: msg.HistoryID(), Width: width, ThemeEpoch: themeEpoch, ReasoningVisible: reasoningVisible}
	var sections []AssistantSection
	if reasoningVisible && msg.Reasoning != "" {
		sections = append(sections, AssistantSection{Kind: "reasoning", Layout: LayoutText(msg.Reasoning, width)})
	}
	sections = append(sections, AssistantSection{Kind: "answer", Layout: LayoutText(msg.Text, width)})
	return AssistantPlan{Key: key, Sections: sections}
}
