// Package render keeps pixels and the saved document consistent with the
// annotation model.
//
// The Engine owns the annotation collection. Every mutation goes through its
// small API and repaints every surface from scratch: clear, paint each
// annotation of the page in insertion order, then the selection decoration.
// Save resets the document collaborator to its original bytes and replays
// every annotation exactly once, so saving is idempotent and removed
// annotations simply are not replayed.
package render

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Epistemic-Technology/pdfed/internal/annotation"
	"github.com/Epistemic-Technology/pdfed/internal/canvas"
	"github.com/Epistemic-Technology/pdfed/internal/geom"
	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/pdfdoc"
)

var ErrNotFound = errors.New("render: annotation not found")

// SurfaceSource supplies the surfaces to repaint.
type SurfaceSource interface {
	Surfaces() []*canvas.Surface
}

// Engine owns the annotation model.
type Engine struct {
	surfaces      SurfaceSource
	painter       *Painter
	log           logger.Logger
	annotations   []*annotation.Annotation
	undone        []*annotation.Annotation
	selected      annotation.ID
	preview       *annotation.Annotation
	showSelection bool
	watermark     *pdfdoc.Watermark
	headerFooter  *pdfdoc.HeaderFooter
	scale         float64
	pageCount     int
	repaints      int
}

func NewEngine(surfaces SurfaceSource, log logger.Logger) *Engine {
	return &Engine{
		surfaces:      surfaces,
		painter:       NewPainter(),
		log:           log,
		showSelection: true,
		scale:         1,
	}
}

// SetScale records the render scale used to preview overlays on surfaces.
func (e *Engine) SetScale(scale float64) {
	if scale > 0 {
		e.scale = scale
	}
}

// SetPageCount records the page total shown by header/footer previews.
func (e *Engine) SetPageCount(n int) { e.pageCount = n }

// SetSelectionVisible toggles the selection decoration, which is only shown
// while the select tool is active.
func (e *Engine) SetSelectionVisible(visible bool) {
	if e.showSelection == visible {
		return
	}
	e.showSelection = visible
	e.Repaint()
}

// Add appends an annotation to the top of the z-order.
func (e *Engine) Add(a *annotation.Annotation) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if e.index(a.ID) >= 0 {
		return fmt.Errorf("%s: %w", a.ID, annotation.ErrDuplicateID)
	}
	e.annotations = append(e.annotations, a.Clone())
	e.undone = nil
	e.Repaint()
	return nil
}

// Remove deletes an annotation and returns it.
func (e *Engine) Remove(id annotation.ID) (*annotation.Annotation, bool) {
	i := e.index(id)
	if i < 0 {
		return nil, false
	}
	a := e.annotations[i]
	e.annotations = slices.Delete(e.annotations, i, i+1)
	if e.selected == id {
		e.selected = ""
	}
	e.Repaint()
	return a.Clone(), true
}

// Update applies fn to a copy of the annotation and stores the result. The
// id and type may not change.
func (e *Engine) Update(id annotation.ID, fn func(*annotation.Annotation)) error {
	i := e.index(id)
	if i < 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	orig := e.annotations[i]
	next := orig.Clone()
	fn(next)
	if next.ID != orig.ID || next.Type() != orig.Type() {
		return fmt.Errorf("annotation %s: id and type are immutable", id)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	e.annotations[i] = next
	e.Repaint()
	return nil
}

// Reorder moves an annotation to position index in the z-order, clamped to
// the collection.
func (e *Engine) Reorder(id annotation.ID, index int) error {
	i := e.index(id)
	if i < 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	a := e.annotations[i]
	e.annotations = slices.Delete(e.annotations, i, i+1)
	index = min(max(index, 0), len(e.annotations))
	e.annotations = slices.Insert(e.annotations, index, a)
	e.Repaint()
	return nil
}

// Undo removes the most recently added annotation.
func (e *Engine) Undo() (*annotation.Annotation, bool) {
	if len(e.annotations) == 0 {
		return nil, false
	}
	last := e.annotations[len(e.annotations)-1]
	e.annotations = e.annotations[:len(e.annotations)-1]
	e.undone = append(e.undone, last)
	if e.selected == last.ID {
		e.selected = ""
	}
	e.Repaint()
	return last.Clone(), true
}

// Redo restores the most recently undone annotation. Any Add in between
// clears the redo history.
func (e *Engine) Redo() (*annotation.Annotation, bool) {
	if len(e.undone) == 0 {
		return nil, false
	}
	a := e.undone[len(e.undone)-1]
	e.undone = e.undone[:len(e.undone)-1]
	e.annotations = append(e.annotations, a)
	e.Repaint()
	return a.Clone(), true
}

// SetPreview shows an in-progress annotation above the model without adding
// it. Nil removes the preview.
func (e *Engine) SetPreview(a *annotation.Annotation) {
	if a == nil && e.preview == nil {
		return
	}
	e.preview = a
	e.Repaint()
}

// Clear removes every annotation.
func (e *Engine) Clear() {
	e.annotations = nil
	e.undone = nil
	e.selected = ""
	e.Repaint()
}

// Annotations returns copies of every annotation in z-order.
func (e *Engine) Annotations() []*annotation.Annotation {
	out := make([]*annotation.Annotation, len(e.annotations))
	for i, a := range e.annotations {
		out[i] = a.Clone()
	}
	return out
}

func (e *Engine) Len() int { return len(e.annotations) }

// OnPage returns copies of a page's annotations in z-order.
func (e *Engine) OnPage(pageNum int) []*annotation.Annotation {
	var out []*annotation.Annotation
	for _, a := range e.annotations {
		if a.PageNum == pageNum {
			out = append(out, a.Clone())
		}
	}
	return out
}

// Find returns a copy of one annotation.
func (e *Engine) Find(id annotation.ID) (*annotation.Annotation, bool) {
	i := e.index(id)
	if i < 0 {
		return nil, false
	}
	return e.annotations[i].Clone(), true
}

// HitTest returns the topmost annotation on a page whose bounds, grown by
// tolerance, contain p. Later annotations win ties.
func (e *Engine) HitTest(pageNum int, p geom.PagePoint, tolerance float64) (*annotation.Annotation, bool) {
	for _, a := range slices.Backward(e.annotations) {
		if a.PageNum == pageNum && a.Bounds.Normalize().Inflate(tolerance).Contains(p.X, p.Y) {
			return a.Clone(), true
		}
	}
	return nil, false
}

// Select marks an annotation as selected. An empty id deselects.
func (e *Engine) Select(id annotation.ID) bool {
	if id != "" && e.index(id) < 0 {
		return false
	}
	if e.selected != id {
		e.selected = id
		e.Repaint()
	}
	return true
}

// Selected returns a copy of the selected annotation.
func (e *Engine) Selected() (*annotation.Annotation, bool) {
	if e.selected == "" {
		return nil, false
	}
	return e.Find(e.selected)
}

// RemapPages rewrites page numbers after a page structure change. mapping
// returns the new page number, or false when the page was deleted; the
// annotations of deleted pages are dropped and their ids returned.
func (e *Engine) RemapPages(mapping func(oldPage int) (int, bool)) []annotation.ID {
	var dropped []annotation.ID
	kept := e.annotations[:0]
	for _, a := range e.annotations {
		newPage, ok := mapping(a.PageNum)
		if !ok {
			dropped = append(dropped, a.ID)
			if e.selected == a.ID {
				e.selected = ""
			}
			continue
		}
		a.PageNum = newPage
		kept = append(kept, a)
	}
	e.annotations = kept
	e.undone = nil
	if len(dropped) > 0 {
		e.log.Info("dropped %d annotation(s) from deleted pages", len(dropped))
	}
	e.Repaint()
	return dropped
}

// Rescale converts every annotation to a new render scale. factor is the
// new scale divided by the old one.
func (e *Engine) Rescale(factor float64) {
	if factor <= 0 || factor == 1 {
		return
	}
	for _, a := range e.annotations {
		a.Scale(factor)
	}
	for _, a := range e.undone {
		a.Scale(factor)
	}
	e.Repaint()
}

// SetWatermark previews a watermark on every surface and replays it on save.
// A nil watermark removes it.
func (e *Engine) SetWatermark(w *pdfdoc.Watermark) {
	e.watermark = w
	e.Repaint()
}

func (e *Engine) Watermark() *pdfdoc.Watermark { return e.watermark }

// SetHeaderFooter previews header and footer text and replays it on save.
func (e *Engine) SetHeaderFooter(h *pdfdoc.HeaderFooter) {
	e.headerFooter = h
	e.Repaint()
}

func (e *Engine) HeaderFooter() *pdfdoc.HeaderFooter { return e.headerFooter }

// Repaint redraws every surface from the model.
func (e *Engine) Repaint() {
	e.repaints++
	if e.surfaces == nil {
		return
	}
	for _, s := range e.surfaces.Surfaces() {
		if s.Image == nil {
			continue
		}
		s.Clear()
		for _, a := range e.annotations {
			if a.PageNum == s.PageNum {
				e.painter.Paint(s, a)
			}
		}
		if e.showSelection && e.selected != "" {
			if i := e.index(e.selected); i >= 0 && e.annotations[i].PageNum == s.PageNum {
				e.painter.Selection(s, e.annotations[i].Bounds)
			}
		}
		if e.watermark != nil {
			e.painter.Watermark(s, *e.watermark, e.scale)
		}
		if e.headerFooter != nil {
			e.painter.HeaderFooter(s, *e.headerFooter, e.scale, max(e.pageCount, 1))
		}
	}
}

// Repaints counts full repaints, for observers that need to know a repaint
// happened.
func (e *Engine) Repaints() int { return e.repaints }

func (e *Engine) index(id annotation.ID) int {
	return slices.IndexFunc(e.annotations, func(a *annotation.Annotation) bool { return a.ID == id })
}
