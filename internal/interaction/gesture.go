package interaction

import (
	"math"
	"slices"

	"github.com/Epistemic-Technology/pdfed/internal/annotation"
	"github.com/Epistemic-Technology/pdfed/internal/geom"
)

// lineThickness is the bounds height of underline and strikethrough marks.
const lineThickness = 2

// build derives the annotation the current gesture would create, or nil when
// the gesture is below the minimum size. Freehand strokes only need two
// points; underline and strikethrough marks need the minimum width.
func (m *Machine) build() *annotation.Annotation {
	if m.tool == ToolDraw {
		if len(m.path) < 2 {
			return nil
		}
		return annotation.New(m.pageNum, geom.Rect{}, &annotation.DrawData{
			Points:      slices.Clone(m.path),
			Color:       m.opts.Color,
			StrokeWidth: m.opts.StrokeWidth,
		})
	}

	r := geom.RectFromCorners(m.start, m.current)
	if r.Width < m.opts.MinGesture && r.Height < m.opts.MinGesture {
		return nil
	}
	switch m.tool {
	case ToolHighlight:
		return annotation.New(m.pageNum, r, &annotation.HighlightData{Color: m.opts.HighlightColor, Opacity: m.opts.Opacity})
	case ToolUnderline:
		if r.Width < m.opts.MinGesture {
			return nil
		}
		r = geom.Rect{X: r.X, Y: math.Max(m.start.Y, m.current.Y), Width: r.Width, Height: lineThickness}
		return annotation.New(m.pageNum, r, &annotation.UnderlineData{Color: m.opts.Color})
	case ToolStrikethrough:
		if r.Width < m.opts.MinGesture {
			return nil
		}
		r = geom.Rect{X: r.X, Y: (m.start.Y + m.current.Y) / 2, Width: r.Width, Height: lineThickness}
		return annotation.New(m.pageNum, r, &annotation.StrikethroughData{Color: m.opts.Color})
	case ToolShapes:
		return annotation.New(m.pageNum, r, &annotation.ShapeData{Color: m.opts.Color, StrokeWidth: m.opts.StrokeWidth})
	case ToolRedact:
		return annotation.New(m.pageNum, r, &annotation.RedactData{Fill: m.opts.RedactFill, Pattern: m.opts.RedactPattern})
	}
	return nil
}

// resizeBounds moves the edges named by handle by (dx, dy). Each edge stops
// where the box would become narrower than minSize, or than the starting
// size when that is already smaller.
func resizeBounds(b geom.Rect, h Handle, dx, dy, minSize float64) geom.Rect {
	left, top, right, bottom := b.X, b.Y, b.Right(), b.Bottom()
	minW, minH := math.Min(minSize, b.Width), math.Min(minSize, b.Height)
	switch h {
	case HandleTopLeft, HandleTopRight:
		top = math.Min(top+dy, bottom-minH)
	case HandleBottomLeft, HandleBottomRight:
		bottom = math.Max(bottom+dy, top+minH)
	}
	switch h {
	case HandleTopLeft, HandleBottomLeft:
		left = math.Min(left+dx, right-minW)
	case HandleTopRight, HandleBottomRight:
		right = math.Max(right+dx, left+minW)
	}
	return geom.Rect{X: left, Y: top, Width: right - left, Height: bottom - top}
}
