package highlight

import (
	"sync"

	"github.com/evidia/srex/internal/model"
)

// Context holds the currently active highlights for one render surface. It
// is an explicit object handed to the rendering layer, not process-wide
// state, so it can be exercised without a UI harness.
//
// Each zoom or scale change begins a new render generation. A render started
// under an older generation must check Commit's return and discard its
// output instead of painting over the newer render.
type Context struct {
	mu         sync.Mutex
	generation uint64
	width      float64
	height     float64
	active     []model.SourceLocation
}

// NewContext returns an empty highlight context.
func NewContext() *Context {
	return &Context{}
}

// BeginRender records a new rendered page size and returns the generation
// token for the render about to start. Any in-flight render holding an older
// token becomes stale.
func (c *Context) BeginRender(width, height float64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.width = width
	c.height = height
	return c.generation
}

// Commit reports whether a render holding the given generation token is
// still current. Stale renders must drop their output.
func (c *Context) Commit(generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return generation == c.generation
}

// SetHighlights replaces the active highlight set.
func (c *Context) SetHighlights(locs []model.SourceLocation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = append([]model.SourceLocation(nil), locs...)
}

// Clear resets the active highlight set.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = nil
}

// Active returns a copy of the active highlight set.
func (c *Context) Active() []model.SourceLocation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.SourceLocation(nil), c.active...)
}

// Rects maps the active highlights for a page onto the current render size.
// Rects is recomputed from normalized coordinates on every call; nothing
// pixel-based is cached across scale changes.
func (c *Context) Rects(page int) []PixelRect {
	c.mu.Lock()
	defer c.mu.Unlock()

	var rects []PixelRect
	for _, loc := range c.active {
		if loc.Page != page {
			continue
		}
		rects = append(rects, Map(loc, c.width, c.height))
	}
	return rects
}
