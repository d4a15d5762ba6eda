package layout

// Cursor tracks the vertical write position on the current page, in mm from
// the top edge.
type Cursor struct {
	y     float64
	top   float64
	limit float64
	page  int
}

// NewCursor starts on the first page at the top margin. A line may start at
// any position up to and including limit.
func NewCursor(top, limit float64) *Cursor {
	return &Cursor{y: top, top: top, limit: limit}
}

func (c *Cursor) Y() float64 {
	return c.y
}

// Page is the zero-based index of the current page.
func (c *Cursor) Page() int {
	return c.page
}

// ShouldBreak reports whether the cursor has crossed the bottom limit.
func (c *Cursor) ShouldBreak() bool {
	return c.y > c.limit
}

func (c *Cursor) Advance(height float64) {
	c.y += height
}

// NewPage moves to the top margin of the next page.
func (c *Cursor) NewPage() {
	c.page++
	c.y = c.top
}

// BreakIfNeeded starts a new page when the cursor is past the limit and
// reports whether it did.
func (c *Cursor) BreakIfNeeded() bool {
	if !c.ShouldBreak() {
		return false
	}
	c.NewPage()
	return true
}
