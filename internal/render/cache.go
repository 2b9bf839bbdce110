// Package render amortizes the cost of wrapping, styling, and
// row-accounting for chat history across frames (spec.md §4.5).
package render

import (
	"sync"

	"github.com/codecore/codecore/internal/history"
	"github.com/codecore/codecore/internal/observability"
)

// Cell is one grapheme-run within a wrapped row. It carries text only,
// no styling (theme styles live in internal/tui), since the spec only
// requires row accounting, not a rich cell model.
type Cell struct {
	Text string
}

// Row is one visual line of wrapped cells.
type Row []Cell

// CachedLayout is the wrapped, row-accounted form of a history record
// at a given width/theme/visibility combination.
type CachedLayout struct {
	WrappedLines []string
	Rows         []Row
}

// Key identifies one cache entry: a record at a specific rendering
// configuration (spec.md §4.5: "(HistoryId, width, theme_epoch,
// reasoning_visible)").
type Key struct {
	HistoryID        history.ID
	Width            int
	ThemeEpoch       int
	ReasoningVisible bool
}

// Range is an inclusive-exclusive row interval, used for inter-cell
// spacing and the bottom spacer so the viewport never lands on an
// empty line while scrolling.
type Range struct {
	Start, End int
}

// Cache holds the layout, height, and fallback caches plus the
// prefix-sum row table used for O(log n) scroll positioning.
type Cache struct {
	mu sync.Mutex

	layouts  map[Key]CachedLayout
	heights  map[Key]uint16
	fallback map[history.ID][]string

	prefixSums        []uint16 // prefixSums[i] = total rows in [0, i)
	order             []history.ID
	spacingRanges     []Range
	bottomSpacerRange Range

	width            int
	themeEpoch       int
	reasoningVisible bool

	// Metrics is an optional (nil-safe) observability hook for
	// render_cache_hit_total / render_cache_miss_total (spec.md §4.7).
	Metrics *observability.Metrics
}

// New returns an empty render cache.
func New() *Cache {
	return &Cache{
		layouts:  make(map[Key]CachedLayout),
		heights:  make(map[Key]uint16),
		fallback: make(map[history.ID][]string),
	}
}

// Get returns the cached layout for key, if present.
func (c *Cache) Get(key Key) (CachedLayout, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	layout, ok := c.layouts[key]
	if c.Metrics != nil {
		if ok {
			c.Metrics.RenderCacheHit.Inc()
		} else {
			c.Metrics.RenderCacheMiss.Inc()
		}
	}
	return layout, ok
}

// Put stores a layout and its row height for key.
func (c *Cache) Put(key Key, layout CachedLayout) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layouts[key] = layout
	c.heights[key] = uint16(len(layout.Rows))
}

// Height returns the cached row height for key, if present.
func (c *Cache) Height(key Key) (uint16, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.heights[key]
	return h, ok
}

// Fallback returns the legacy-shape cached lines for a record, used
// when no structured layout has been computed.
func (c *Cache) Fallback(id history.ID) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines, ok := c.fallback[id]
	return lines, ok
}

// SetFallback stores legacy-shape lines for a record.
func (c *Cache) SetFallback(id history.ID, lines []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fallback[id] = lines
}

// Reconfigure applies the invalidation rules for a width, theme epoch,
// or reasoning-visibility change (spec.md §4.5 "Invalidation rules").
// Entries whose key no longer matches the new configuration are
// dropped; the prefix-sum table is cleared since every row accounting
// became void.
func (c *Cache) Reconfigure(width, themeEpoch int, reasoningVisible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	widthChanged := width != c.width
	epochOrVisibilityChanged := themeEpoch != c.themeEpoch || reasoningVisible != c.reasoningVisible
	if !widthChanged && !epochOrVisibilityChanged {
		return
	}

	c.width = width
	c.themeEpoch = themeEpoch
	c.reasoningVisible = reasoningVisible

	for key := range c.layouts {
		if key.Width != width || key.ThemeEpoch != themeEpoch || key.ReasoningVisible != reasoningVisible {
			delete(c.layouts, key)
			delete(c.heights, key)
		}
	}

	c.prefixSums = nil
	c.order = nil
	c.spacingRanges = nil
	c.bottomSpacerRange = Range{}
}

// InvalidateRecord drops every cache entry for a single record id
// (spec.md §4.5: "record id change: drop all entries for that id").
func (c *Cache) InvalidateRecord(id history.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.layouts {
		if key.HistoryID == id {
			delete(c.layouts, key)
			delete(c.heights, key)
		}
	}
	delete(c.fallback, id)

	c.prefixSums = nil
	c.order = nil
}

// AppendRow extends the prefix-sum table in O(1) for a single new
// record appended at the end of history, per the spec's append fast
// path: "the existing prefix is extended with (spacing, new_height)
// without rebuilding earlier entries."
func (c *Cache) AppendRow(id history.ID, height uint16, spacing uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.prefixSums) == 0 {
		c.prefixSums = []uint16{0}
	}
	total := c.prefixSums[len(c.prefixSums)-1]

	if spacing > 0 {
		c.spacingRanges = append(c.spacingRanges, Range{Start: int(total), End: int(total + spacing)})
		total += spacing
	}

	rowStart := total
	total += height
	c.prefixSums = append(c.prefixSums, total)
	c.order = append(c.order, id)
	c.bottomSpacerRange = Range{Start: int(total), End: int(total) + 1}
	_ = rowStart
}

// TotalRows returns the total row count tracked by the prefix-sum
// table, or 0 if it hasn't been built yet.
func (c *Cache) TotalRows() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.prefixSums) == 0 {
		return 0
	}
	return int(c.prefixSums[len(c.prefixSums)-1])
}

// RowForOffset finds the history index whose row range contains the
// given absolute row offset, via binary search over the prefix-sum
// table (O(log n) scrolling per spec.md §4.5).
func (c *Cache) RowForOffset(offset int) (history.ID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.prefixSums) < 2 {
		return 0, false
	}

	lo, hi := 0, len(c.order)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if int(c.prefixSums[mid+1]) <= offset {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < 0 || lo >= len(c.order) {
		return 0, false
	}
	return c.order[lo], true
}
