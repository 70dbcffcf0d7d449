// Package viewport models the document viewer that page surfaces are
// discovered in. A Viewer reports its page container elements in screen
// coordinates together with its scroll state; Layout is a virtual paginated
// viewer used by the server and by tests.
package viewport

import (
	"fmt"

	"github.com/Epistemic-Technology/pdfed/internal/geom"
)

// PageElement is a page container as placed on screen.
type PageElement struct {
	PageNum int
	Rect    geom.Rect
}

// Viewer is the read-only view of the host's document viewer.
type Viewer interface {
	// PageElements returns the discoverable page containers in page order.
	// A viewer without per-page containers returns nil.
	PageElements() []PageElement
	ScrollOffset() (x, y float64)
	// ScrollExtent is the size of the whole scrollable document in pixels.
	ScrollExtent() (width, height float64)
	ViewportSize() (width, height float64)
	DevicePixelRatio() float64
}

// Mode selects how Layout exposes its pages.
type Mode string

const (
	// ModePaginated exposes one element per page.
	ModePaginated Mode = "paginated"
	// ModeNative exposes no page elements, like a browser's built-in viewer.
	ModeNative Mode = "native"
)

// ParseMode maps unknown values to paginated.
func ParseMode(s string) Mode {
	if Mode(s) == ModeNative {
		return ModeNative
	}
	return ModePaginated
}

// Options configures a Layout.
type Options struct {
	Scale          float64
	Gap            float64
	Margin         float64
	ViewportWidth  float64
	ViewportHeight float64
	DPR            float64
	Mode           Mode
}

// Layout stacks pages vertically at the render scale, each centered
// horizontally in the scrollable area.
type Layout struct {
	pages    []geom.Size
	opts     Options
	scrollX  float64
	scrollY  float64
	rendered int
}

// NewLayout creates a layout over page sizes given in PDF points. All pages
// start out rendered.
func NewLayout(pages []geom.Size, opts Options) *Layout {
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	if opts.DPR <= 0 {
		opts.DPR = 1
	}
	if opts.Mode == "" {
		opts.Mode = ModePaginated
	}
	l := &Layout{opts: opts}
	l.SetPages(pages)
	return l
}

// SetPages replaces the page list after a page mutation. Scroll position is
// clamped to the new extent.
func (l *Layout) SetPages(pages []geom.Size) {
	l.pages = append([]geom.Size(nil), pages...)
	l.rendered = len(pages)
	l.clampScroll()
}

// SetRenderedPages marks only the first n pages as rendered. Unrendered pages
// report a zero height, as a viewer still populating its containers would.
func (l *Layout) SetRenderedPages(n int) {
	l.rendered = min(max(n, 0), len(l.pages))
}

func (l *Layout) SetScale(scale float64) error {
	if scale <= 0 {
		return fmt.Errorf("invalid scale %v", scale)
	}
	l.opts.Scale = scale
	l.clampScroll()
	return nil
}

func (l *Layout) Scale() float64 { return l.opts.Scale }

func (l *Layout) Mode() Mode { return l.opts.Mode }

func (l *Layout) SetDevicePixelRatio(dpr float64) {
	if dpr > 0 {
		l.opts.DPR = dpr
	}
}

// Resize changes the viewport size.
func (l *Layout) Resize(width, height float64) {
	l.opts.ViewportWidth = max(width, 0)
	l.opts.ViewportHeight = max(height, 0)
	l.clampScroll()
}

// ScrollTo sets the scroll offset, clamped to the scrollable range.
func (l *Layout) ScrollTo(x, y float64) {
	l.scrollX, l.scrollY = x, y
	l.clampScroll()
}

func (l *Layout) clampScroll() {
	w, h := l.ScrollExtent()
	l.scrollX = min(max(l.scrollX, 0), max(w-l.opts.ViewportWidth, 0))
	l.scrollY = min(max(l.scrollY, 0), max(h-l.opts.ViewportHeight, 0))
}

// PageCount returns the number of pages in the layout.
func (l *Layout) PageCount() int { return len(l.pages) }

// PageSizePixels returns a page's size at the render scale.
func (l *Layout) PageSizePixels(pageNum int) (geom.Size, bool) {
	if pageNum < 1 || pageNum > len(l.pages) {
		return geom.Size{}, false
	}
	p := l.pages[pageNum-1]
	return geom.Size{Width: p.Width * l.opts.Scale, Height: p.Height * l.opts.Scale}, true
}

// documentRect returns the page's rectangle in document-absolute pixels.
func (l *Layout) documentRect(index int, extentWidth float64) geom.Rect {
	y := l.opts.Margin
	for i := range index {
		y += l.pages[i].Height*l.opts.Scale + l.opts.Gap
	}
	p := l.pages[index]
	w, h := p.Width*l.opts.Scale, p.Height*l.opts.Scale
	return geom.Rect{X: (extentWidth - w) / 2, Y: y, Width: w, Height: h}
}

// PageOrigin returns the top-left corner of a page in document pixels. It is
// known in native mode too, where no page element is exposed.
func (l *Layout) PageOrigin(pageNum int) (geom.DocumentPoint, bool) {
	if pageNum < 1 || pageNum > len(l.pages) {
		return geom.DocumentPoint{}, false
	}
	extentWidth, _ := l.ScrollExtent()
	r := l.documentRect(pageNum-1, extentWidth)
	return geom.DocumentPoint{X: r.X, Y: r.Y}, true
}

func (l *Layout) PageElements() []PageElement {
	if l.opts.Mode == ModeNative {
		return nil
	}
	extentWidth, _ := l.ScrollExtent()
	elements := make([]PageElement, 0, len(l.pages))
	for i := range l.pages {
		r := l.documentRect(i, extentWidth).Translate(-l.scrollX, -l.scrollY)
		if i >= l.rendered {
			r.Height = 0
		}
		elements = append(elements, PageElement{PageNum: i + 1, Rect: r})
	}
	return elements
}

func (l *Layout) ScrollOffset() (float64, float64) { return l.scrollX, l.scrollY }

func (l *Layout) ScrollExtent() (float64, float64) {
	var maxWidth, height float64
	for i, p := range l.pages {
		maxWidth = max(maxWidth, p.Width*l.opts.Scale)
		height += p.Height * l.opts.Scale
		if i > 0 {
			height += l.opts.Gap
		}
	}
	width := max(maxWidth+2*l.opts.Margin, l.opts.ViewportWidth)
	return width, height + 2*l.opts.Margin
}

func (l *Layout) ViewportSize() (float64, float64) {
	return l.opts.ViewportWidth, l.opts.ViewportHeight
}

func (l *Layout) DevicePixelRatio() float64 { return l.opts.DPR }
