// Package coords converts between the editor's coordinate spaces:
//
//   - screen: viewport pixels from the top-left of the visible viewport
//   - document: screen plus the viewer's scroll offset
//   - page: pixels from the top-left of one page surface (annotation storage)
//   - PDF: points at 72dpi, unscaled, origin at the page's bottom-left
//
// Lookups that find nothing report false; they never fail.
package coords

import (
	"github.com/Epistemic-Technology/pdfed/internal/canvas"
	"github.com/Epistemic-Technology/pdfed/internal/geom"
	"github.com/Epistemic-Technology/pdfed/internal/viewport"
)

// Mapper resolves points against the surfaces of a registry.
type Mapper struct {
	registry *canvas.Registry
	viewer   viewport.Viewer
}

func NewMapper(registry *canvas.Registry, viewer viewport.Viewer) *Mapper {
	return &Mapper{registry: registry, viewer: viewer}
}

// PageFromScreen finds the page under a screen point. In multi-page mode the
// first surface containing the point wins and a miss reports false. In
// fallback mode every point resolves to page 1. While no surface is
// registered, before discovery or while every page container is still too
// small, the point is taken as raw offsets on page 1.
func (m *Mapper) PageFromScreen(p geom.ScreenPoint) (geom.PageLocation, bool) {
	if fb := m.registry.Fallback(); fb != nil {
		return locate(fb, p), true
	}
	surfaces := m.registry.Surfaces()
	if len(surfaces) == 0 {
		return geom.PageLocation{PageNum: 1, Point: geom.PagePoint{X: p.X, Y: p.Y}}, true
	}
	for _, s := range surfaces {
		if s.Rect.Contains(p.X, p.Y) {
			return locate(s, p), true
		}
	}
	return geom.PageLocation{}, false
}

func locate(s *canvas.Surface, p geom.ScreenPoint) geom.PageLocation {
	return geom.PageLocation{
		PageNum: s.PageNum,
		Point:   geom.PagePoint{X: p.X - s.Rect.X, Y: p.Y - s.Rect.Y},
	}
}

// PageFromScreenOn expresses a screen point relative to a given page's
// surface, even when the point lies outside it.
func (m *Mapper) PageFromScreenOn(pageNum int, p geom.ScreenPoint) (geom.PagePoint, bool) {
	s, ok := m.surfaceFor(pageNum)
	if !ok {
		return geom.PagePoint{}, false
	}
	return locate(s, p).Point, true
}

// ScreenFromPage is the inverse of PageFromScreen, used to place host UI such
// as a text input next to a page-relative annotation.
func (m *Mapper) ScreenFromPage(pageNum int, p geom.PagePoint) (geom.ScreenPoint, bool) {
	s, ok := m.surfaceFor(pageNum)
	if !ok {
		return geom.ScreenPoint{}, false
	}
	return geom.ScreenPoint{X: p.X + s.Rect.X, Y: p.Y + s.Rect.Y}, true
}

// ScreenRectFromPage maps a page-relative rectangle to screen pixels.
func (m *Mapper) ScreenRectFromPage(pageNum int, r geom.Rect) (geom.Rect, bool) {
	tl, ok := m.ScreenFromPage(pageNum, geom.PagePoint{X: r.X, Y: r.Y})
	if !ok {
		return geom.Rect{}, false
	}
	return geom.Rect{X: tl.X, Y: tl.Y, Width: r.Width, Height: r.Height}, true
}

func (m *Mapper) surfaceFor(pageNum int) (*canvas.Surface, bool) {
	if s, ok := m.registry.Surface(pageNum); ok {
		return s, true
	}
	if fb := m.registry.Fallback(); fb != nil {
		return fb, true
	}
	return nil, false
}

// DocumentFromScreen adds the current scroll offset.
func (m *Mapper) DocumentFromScreen(p geom.ScreenPoint) geom.DocumentPoint {
	sx, sy := m.viewer.ScrollOffset()
	return geom.DocumentPoint{X: p.X + sx, Y: p.Y + sy}
}

// ScreenFromDocument subtracts the current scroll offset.
func (m *Mapper) ScreenFromDocument(p geom.DocumentPoint) geom.ScreenPoint {
	sx, sy := m.viewer.ScrollOffset()
	return geom.ScreenPoint{X: p.X - sx, Y: p.Y - sy}
}

// ToDocumentUnits converts an on-screen page length to document points by
// dividing out the render scale. A non-positive scale is treated as 1.
func ToDocumentUnits(v, scale float64) float64 {
	if scale <= 0 {
		return v
	}
	return v / scale
}

// PageToPDF converts a page-relative pixel point to PDF user space for a page
// of the given height in points.
func PageToPDF(p geom.PagePoint, scale, pageHeight float64) geom.PDFPoint {
	return geom.PDFPoint{
		X: ToDocumentUnits(p.X, scale),
		Y: pageHeight - ToDocumentUnits(p.Y, scale),
	}
}

// RectToPDF converts a page-relative pixel rectangle to PDF user space. The
// result's X and Y are the bottom-left corner.
func RectToPDF(r geom.Rect, scale, pageHeight float64) geom.Rect {
	r = r.Normalize()
	return geom.Rect{
		X:      ToDocumentUnits(r.X, scale),
		Y:      pageHeight - ToDocumentUnits(r.Bottom(), scale),
		Width:  ToDocumentUnits(r.Width, scale),
		Height: ToDocumentUnits(r.Height, scale),
	}
}
