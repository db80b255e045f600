package highlight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidia/srex/internal/model"
)

func TestMap_FullPage(t *testing.T) {
	t.Parallel()

	loc := model.SourceLocation{Page: 1, X0: 0, Y0: 0, X1: 1, Y1: 1}
	r := Map(loc, 612, 792)
	assert.Equal(t, PixelRect{Left: 0, Top: 0, Width: 612, Height: 792}, r)
}

func TestMap_QuarterInset(t *testing.T) {
	t.Parallel()

	loc := model.SourceLocation{Page: 2, X0: 0.25, Y0: 0.25, X1: 0.75, Y1: 0.75}
	r := Map(loc, 400, 800)
	assert.Equal(t, PixelRect{Left: 100, Top: 200, Width: 200, Height: 400}, r)
}

func TestMap_PointCitationGetsFloor(t *testing.T) {
	t.Parallel()

	loc := model.SourceLocation{Page: 1, X0: 0.5, Y0: 0.5, X1: 0.5, Y1: 0.5}
	r := Map(loc, 1000, 1000)
	assert.Equal(t, 500.0, r.Left)
	assert.Equal(t, 500.0, r.Top)
	assert.Equal(t, MinHighlightPx, r.Width)
	assert.Equal(t, MinHighlightPx, r.Height)

	// Stored coordinates untouched.
	assert.Equal(t, 0.5, loc.X0)
	assert.Equal(t, 0.5, loc.X1)
}

func TestMap_InvalidCoordinatesClampToZeroArea(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		loc  model.SourceLocation
	}{
		{"inverted x", model.SourceLocation{Page: 1, X0: 0.8, X1: 0.2, Y0: 0.1, Y1: 0.3}},
		{"negative coords", model.SourceLocation{Page: 1, X0: -0.5, X1: 0.2, Y0: 0.1, Y1: 0.3}},
		{"above one", model.SourceLocation{Page: 1, X0: 0.1, X1: 1.4, Y0: 0.1, Y1: 0.3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := Map(tt.loc, 400, 800)
			assert.Equal(t, 0.0, r.Width)
			assert.Equal(t, 0.0, r.Height)
			assert.GreaterOrEqual(t, r.Left, 0.0)
			assert.LessOrEqual(t, r.Left, 400.0)
		})
	}
}

func TestMap_ScaleChangeRecomputes(t *testing.T) {
	t.Parallel()

	loc := model.SourceLocation{Page: 1, X0: 0.1, Y0: 0.1, X1: 0.3, Y1: 0.2}
	at1x := Map(loc, 612, 792)
	at2x := Map(loc, 1224, 1584)
	assert.InDelta(t, at1x.Left*2, at2x.Left, 1e-9)
	assert.InDelta(t, at1x.Width*2, at2x.Width, 1e-9)
}

func TestContext_StaleRenderDiscarded(t *testing.T) {
	t.Parallel()

	c := NewContext()
	gen1 := c.BeginRender(612, 792)

	// Zoom happens while gen1's render is in flight.
	gen2 := c.BeginRender(1224, 1584)

	assert.False(t, c.Commit(gen1))
	assert.True(t, c.Commit(gen2))
}

func TestContext_RectsFilterByPage(t *testing.T) {
	t.Parallel()

	c := NewContext()
	c.BeginRender(1000, 1000)
	c.SetHighlights([]model.SourceLocation{
		{Page: 1, X0: 0, Y0: 0, X1: 0.5, Y1: 0.5, Text: "first"},
		{Page: 2, X0: 0.1, Y0: 0.1, X1: 0.2, Y1: 0.2, Text: "second"},
	})

	rects := c.Rects(1)
	require.Len(t, rects, 1)
	assert.Equal(t, 500.0, rects[0].Width)

	assert.Len(t, c.Rects(3), 0)
}

func TestContext_Clear(t *testing.T) {
	t.Parallel()

	c := NewContext()
	c.SetHighlights([]model.SourceLocation{{Page: 1, X1: 1, Y1: 1}})
	require.Len(t, c.Active(), 1)

	c.Clear()
	assert.Empty(t, c.Active())
	assert.Empty(t, c.Rects(1))
}
