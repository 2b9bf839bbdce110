package render

import "github.com/codecore/codecore/internal/history"

// Viewport describes the visible window over the scrollback: the
// absolute row offset of its top edge and its height in rows.
type Viewport struct {
	Top    int
	Height int
}

// RequestKind selects which layout source a RenderRequest prefers.
type RequestKind int

const (
	// RequestAuto lets the visibility pass choose the cheapest
	// available source: assistant plan, then cached layout, then
	// cached height, then a custom desired height, then fallback wrap.
	RequestAuto RequestKind = iota
	// RequestDesiredHeight reserves exactly DesiredHeight rows without
	// requiring a computed layout (e.g. a live PTY pane).
	RequestDesiredHeight
)

// RenderRequest asks the visibility pass to account for one record at
// a given row, optionally overriding the layout source.
type RenderRequest struct {
	ID            history.ID
	Kind          RequestKind
	DesiredHeight int
}

// VisibleCell is one row-accounted slice of a record within the
// viewport: which record it belongs to, its absolute row offset, and
// the cells to draw (nil for height-only sources, which reserve rows
// without a layout). Rows outside the viewport are counted for
// scrolling but not emitted.
type VisibleCell struct {
	ID     history.ID
	Row    int
	Cells  Row
	Source string // "assistant_plan" | "cache" | "cached_height" | "desired_height" | "fallback"
}

// Visibility computes the VisibleCells for a viewport given a render
// cache, an assistant layout cache, and an ordered set of requests
// (one per history record, in document order). It chooses the cheapest
// available layout source per spec.md §4.5's visibility pass, and
// accumulates each record's absolute row offset as it walks the
// requests; it does not consult the cache's prefix-sum table.
type Visibility struct {
	Cache     *Cache
	Assistant *AssistantLayoutCache
}

func NewVisibility(cache *Cache, assistant *AssistantLayoutCache) *Visibility {
	return &Visibility{Cache: cache, Assistant: assistant}
}

// Compute walks requests in order, accumulating absolute row offsets,
// and returns only the VisibleCells intersecting viewport.
func (v *Visibility) Compute(viewport Viewport, requests []RenderRequest, width, themeEpoch int, reasoningVisible bool) []VisibleCell {
	var out []VisibleCell
	row := 0
	bottom := viewport.Top + viewport.Height

	for _, req := range requests {
		key := Key{HistoryID: req.ID, Width: width, ThemeEpoch: themeEpoch, ReasoningVisible: reasoningVisible}

		if req.Kind == RequestDesiredHeight {
			row = appendDesiredHeight(&out, req, row, viewport.Top, bottom)
			continue
		}

		if plan, ok := v.Assistant.Get(key); ok {
			row = appendAssistantPlan(&out, plan, row, viewport.Top, bottom)
			continue
		}

		if layout, ok := v.Cache.Get(key); ok {
			row = appendLayout(&out, req.ID, layout, "cache", row, viewport.Top, bottom)
			continue
		}

		if h, ok := v.Cache.Height(key); ok {
			row = appendHeight(&out, req.ID, int(h), "cached_height", row, viewport.Top, bottom)
			continue
		}

		if req.DesiredHeight > 0 {
			row = appendDesiredHeight(&out, req, row, viewport.Top, bottom)
			continue
		}

		if lines, ok := v.Cache.Fallback(req.ID); ok {
			rows := make([]Row, len(lines))
			for i, l := range lines {
				rows[i] = Row{{Text: l}}
			}
			row = appendLayout(&out, req.ID, CachedLayout{WrappedLines: lines, Rows: rows}, "fallback", row, viewport.Top, bottom)
			continue
		}

		// Nothing cached at all: account for a single blank row so
		// scrolling stays consistent until a real layout is computed.
		row = appendHeight(&out, req.ID, 1, "fallback", row, viewport.Top, bottom)
	}

	return out
}

func appendLayout(out *[]VisibleCell, id history.ID, layout CachedLayout, source string, row, top, bottom int) int {
	for _, r := range layout.Rows {
		if row >= top && row < bottom {
			*out = append(*out, VisibleCell{ID: id, Row: row, Cells: r, Source: source})
		}
		row++
	}
	return row
}

func appendAssistantPlan(out *[]VisibleCell, plan AssistantPlan, row, top, bottom int) int {
	for _, section := range plan.Sections {
		row = appendLayout(out, plan.Key.HistoryID, section.Layout, "assistant_plan", row, top, bottom)
	}
	return row
}

func appendHeight(out *[]VisibleCell, id history.ID, height int, source string, row, top, bottom int) int {
	for i := 0; i < height; i++ {
		if row >= top && row < bottom {
			*out = append(*out, VisibleCell{ID: id, Row: row, Source: source})
		}
		row++
	}
	return row
}

func appendDesiredHeight(out *[]VisibleCell, req RenderRequest, row, top, bottom int) int {
	return appendHeight(out, req.ID, req.DesiredHeight, "desired_height", row, top, bottom)
}
