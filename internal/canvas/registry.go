// Package canvas owns the page-keyed drawing surfaces that annotations are
// painted on, and discovers them from the viewer's page containers.
//
// The registry operates in one of two modes. In multi-page mode there is one
// surface per discovered page container. In fallback mode, used when the
// viewer exposes no page containers, a single surface keyed to page 1 spans
// the whole scrollable document. A registry moves from fallback to
// multi-page when containers appear, and never back.
package canvas

import (
	"context"
	"image"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/Epistemic-Technology/pdfed/internal/geom"
	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/viewport"
)

// Mode is the observable outcome of page discovery.
type Mode int

const (
	ModeUndiscovered Mode = iota
	ModeMultiPage
	ModeFallback
)

func (m Mode) String() string {
	switch m {
	case ModeMultiPage:
		return "multi-page"
	case ModeFallback:
		return "fallback"
	default:
		return "undiscovered"
	}
}

// Options tunes discovery.
type Options struct {
	// MinPageHeight is the pixel floor below which a container is treated as
	// not yet rendered and skipped for this cycle.
	MinPageHeight float64
	MaxAttempts   int
	Interval      time.Duration
	// Locker, when set, is held for each discovery attempt made by
	// DiscoverWithRetry so attempts serialize with the owner's other work.
	Locker sync.Locker
}

// DefaultOptions mirrors the viewer's usual population time.
func DefaultOptions() Options {
	return Options{MinPageHeight: 50, MaxAttempts: 20, Interval: 250 * time.Millisecond}
}

// Surface is a page's drawing surface and its on-screen placement.
type Surface struct {
	PageNum int
	// Rect is the surface's placement in screen pixels.
	Rect geom.Rect
	// Image is the backing store, sized Rect × DPR.
	Image *image.RGBA
	DPR   float64
	// Global marks the fallback surface spanning the whole document.
	Global bool
}

// Clear resets every pixel to transparent.
func (s *Surface) Clear() {
	clear(s.Image.Pix)
}

func (s *Surface) fit(rect geom.Rect, dpr float64) {
	s.Rect, s.DPR = rect, dpr
	w := int(math.Ceil(rect.Width * dpr))
	h := int(math.Ceil(rect.Height * dpr))
	if s.Image != nil && s.Image.Rect.Dx() == w && s.Image.Rect.Dy() == h {
		return
	}
	s.Image = image.NewRGBA(image.Rect(0, 0, w, h))
}

// Outcome reports how a discovery run ended.
type Outcome struct {
	Mode     Mode
	Attempts int
}

// Registry maps page numbers to surfaces.
type Registry struct {
	viewer   viewport.Viewer
	opts     Options
	log      logger.Logger
	mode     Mode
	surfaces map[int]*Surface
	pending  int
	settled  bool
	onResize func()
}

// NewRegistry creates an empty registry over a viewer. Nothing is discovered
// until Discover or DiscoverWithRetry is called.
func NewRegistry(v viewport.Viewer, opts Options, log logger.Logger) *Registry {
	def := DefaultOptions()
	if opts.MinPageHeight <= 0 {
		opts.MinPageHeight = def.MinPageHeight
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.Interval <= 0 {
		opts.Interval = def.Interval
	}
	return &Registry{
		viewer:   v,
		opts:     opts,
		log:      log,
		surfaces: make(map[int]*Surface),
	}
}

// OnResize registers the hook ResizeAll calls after recomputing surfaces,
// normally a full repaint.
func (r *Registry) OnResize(fn func()) { r.onResize = fn }

func (r *Registry) Mode() Mode { return r.mode }

// Confirmed reports whether discovery has nothing left to do: multi-page mode
// with every container backed by a surface.
func (r *Registry) Confirmed() bool {
	return r.mode == ModeMultiPage && r.pending == 0
}

// Discover runs one discovery pass and returns the resulting mode.
func (r *Registry) Discover() Mode {
	if r.settled && r.mode == ModeFallback {
		r.placeFallback(r.surfaces[1])
		return r.mode
	}
	elements := r.viewer.PageElements()
	if len(elements) == 0 {
		if r.mode != ModeMultiPage && r.Fallback() == nil {
			r.createFallback()
		} else if r.mode == ModeFallback {
			r.placeFallback(r.surfaces[1])
		}
		return r.mode
	}

	if fb := r.Fallback(); fb != nil {
		r.log.Info("page containers found, replacing fallback surface")
		delete(r.surfaces, 1)
	}
	r.mode = ModeMultiPage

	dpr := r.viewer.DevicePixelRatio()
	seen := make(map[int]bool, len(elements))
	r.pending = 0
	for _, el := range elements {
		seen[el.PageNum] = true
		if el.Rect.Height < r.opts.MinPageHeight {
			r.log.Debug("page %d container too small (%.1fpx), retrying later", el.PageNum, el.Rect.Height)
			r.pending++
			delete(r.surfaces, el.PageNum)
			continue
		}
		s, ok := r.surfaces[el.PageNum]
		if !ok {
			s = &Surface{PageNum: el.PageNum}
			r.surfaces[el.PageNum] = s
		}
		s.fit(el.Rect, dpr)
	}
	for pageNum := range r.surfaces {
		if !seen[pageNum] {
			delete(r.surfaces, pageNum)
		}
	}
	return r.mode
}

func (r *Registry) createFallback() {
	s := &Surface{PageNum: 1, Global: true}
	r.placeFallback(s)
	r.surfaces = map[int]*Surface{1: s}
	r.mode = ModeFallback
	r.pending = 0
	r.log.Info("no page containers found, using global fallback surface")
}

func (r *Registry) placeFallback(s *Surface) {
	sx, sy := r.viewer.ScrollOffset()
	w, h := r.viewer.ScrollExtent()
	s.fit(geom.Rect{X: -sx, Y: -sy, Width: w, Height: h}, r.viewer.DevicePixelRatio())
}

// DiscoverWithRetry runs discovery passes at a fixed interval until
// multi-page mode is confirmed, the attempt budget is spent or ctx ends. A
// run that ends without multi-page mode leaves the registry in fallback for
// the rest of the session.
func (r *Registry) DiscoverWithRetry(ctx context.Context) Outcome {
	var out Outcome
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		out.Attempts++
		done := r.attempt()
		if done {
			break
		}
		if out.Attempts >= r.opts.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			out.Mode = r.lockedMode()
			return out
		case <-ticker.C:
		}
	}

	r.lock()
	defer r.unlock()
	out.Mode = r.mode
	if r.mode != ModeMultiPage {
		if r.Fallback() == nil {
			r.createFallback()
		}
		r.settled = true
		out.Mode = r.mode
	}
	r.log.Info("page discovery finished after %d attempt(s): %s", out.Attempts, out.Mode)
	return out
}

func (r *Registry) attempt() bool {
	r.lock()
	defer r.unlock()
	if r.settled {
		return true
	}
	r.Discover()
	if r.onResize != nil {
		r.onResize()
	}
	return r.Confirmed()
}

func (r *Registry) lockedMode() Mode {
	r.lock()
	defer r.unlock()
	return r.mode
}

func (r *Registry) lock() {
	if r.opts.Locker != nil {
		r.opts.Locker.Lock()
	}
}

func (r *Registry) unlock() {
	if r.opts.Locker != nil {
		r.opts.Locker.Unlock()
	}
}

// Settled reports whether a retry run has finished without finding pages.
func (r *Registry) Settled() bool { return r.settled }

// Surface returns the surface for a page.
func (r *Registry) Surface(pageNum int) (*Surface, bool) {
	s, ok := r.surfaces[pageNum]
	return s, ok
}

// Fallback returns the global surface, or nil in multi-page mode.
func (r *Registry) Fallback() *Surface {
	if s, ok := r.surfaces[1]; ok && s.Global {
		return s
	}
	return nil
}

// Surfaces returns every surface ordered by page number.
func (r *Registry) Surfaces() []*Surface {
	out := make([]*Surface, 0, len(r.surfaces))
	for _, s := range r.surfaces {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *Surface) int { return a.PageNum - b.PageNum })
	return out
}

// Sync refreshes on-screen placements after a scroll without touching the
// backing stores.
func (r *Registry) Sync() {
	if fb := r.Fallback(); fb != nil {
		sx, sy := r.viewer.ScrollOffset()
		fb.Rect.X, fb.Rect.Y = -sx, -sy
		return
	}
	for _, el := range r.viewer.PageElements() {
		if s, ok := r.surfaces[el.PageNum]; ok {
			s.Rect.X, s.Rect.Y = el.Rect.X, el.Rect.Y
		}
	}
}

// ResizeAll recomputes every surface against its container's current size
// and device pixel ratio, then fires the repaint hook. Calling it repeatedly
// without viewer changes leaves the surfaces unchanged.
func (r *Registry) ResizeAll() {
	r.Discover()
	if r.onResize != nil {
		r.onResize()
	}
}

// Reset drops every surface and rediscovers from scratch, for use after the
// page structure changed. A settled fallback registry stays in fallback.
func (r *Registry) Reset() Mode {
	r.surfaces = make(map[int]*Surface)
	r.pending = 0
	switch {
	case r.mode == ModeFallback && r.settled:
		r.createFallback()
	case r.mode == ModeFallback:
		r.mode = ModeUndiscovered
		r.Discover()
	default:
		r.Discover()
	}
	return r.mode
}
