// Package session wires one editing session: the document collaborator, a
// virtual viewer, the page canvas registry, the coordinate mapper, the
// render engine and the interaction machine.
//
// A session mutex serializes every call so the core keeps its
// single-threaded semantics while MCP requests arrive concurrently.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Epistemic-Technology/pdfed/internal/annotation"
	"github.com/Epistemic-Technology/pdfed/internal/canvas"
	"github.com/Epistemic-Technology/pdfed/internal/coords"
	"github.com/Epistemic-Technology/pdfed/internal/geom"
	"github.com/Epistemic-Technology/pdfed/internal/interaction"
	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/ocr"
	"github.com/Epistemic-Technology/pdfed/internal/pdfdoc"
	"github.com/Epistemic-Technology/pdfed/internal/render"
	"github.com/Epistemic-Technology/pdfed/internal/viewport"
	"github.com/Epistemic-Technology/pdfed/models"
)

var (
	ErrNotFound        = errors.New("session: not found")
	ErrLastPage        = errors.New("session: cannot delete the last page")
	ErrInvalidOrder    = errors.New("session: page order must list every page once")
	ErrNoSurface       = errors.New("session: no surface for page")
	ErrOCRUnavailable  = errors.New("session: text recognition is not configured")
	ErrNoAnnotation    = errors.New("session: annotation not found")
	ErrInvalidArgument = errors.New("session: invalid argument")
)

// Options configure a new session.
type Options struct {
	Viewer        viewport.Options
	Canvas        canvas.Options
	Interaction   interaction.Options
	ResizeDelay   time.Duration
	MinConfidence float64
}

// Session is one open document being edited.
type Session struct {
	ID         string
	DocumentID string
	Title      string

	mu           sync.Mutex
	doc          *pdfdoc.Document
	layout       *viewport.Layout
	registry     *canvas.Registry
	mapper       *coords.Mapper
	engine       *render.Engine
	machine      *interaction.Machine
	resize       *canvas.Debouncer
	ocr          *ocr.Service
	opts         Options
	formValues   map[string]string
	textLayers   map[int]*ocr.TextLayer
	cancel       context.CancelFunc
	restructured bool
	discovered   chan canvas.Outcome
	log          logger.Logger
}

// New opens data and builds a session around it. Load failures are returned
// unchanged since nothing can be edited without a document. ocrSvc may be
// nil.
func New(id, documentID string, data []byte, opts Options, ocrSvc *ocr.Service, log logger.Logger) (*Session, error) {
	doc, err := pdfdoc.Open(data, log.Named("pdfdoc"))
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:         id,
		DocumentID: documentID,
		doc:        doc,
		ocr:        ocrSvc,
		opts:       opts,
		textLayers: make(map[int]*ocr.TextLayer),
		discovered: make(chan canvas.Outcome, 1),
		log:        log,
	}
	copts := opts.Canvas
	copts.Locker = &s.mu

	s.layout = viewport.NewLayout(doc.PageSizes(), opts.Viewer)
	s.registry = canvas.NewRegistry(s.layout, copts, log.Named("canvas"))
	s.engine = render.NewEngine(s.registry, log.Named("render"))
	s.engine.SetScale(s.layout.Scale())
	s.engine.SetPageCount(doc.PageCount())
	s.registry.OnResize(s.engine.Repaint)
	s.mapper = coords.NewMapper(s.registry, s.layout)
	s.machine = interaction.NewMachine(s.mapper, s.engine, opts.Interaction, log.Named("interaction"))
	s.resize = canvas.NewDebouncer(opts.ResizeDelay)
	return s, nil
}

// Start runs one discovery pass right away, then keeps retrying in the
// background until pages are confirmed or the attempt budget is spent.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	s.registry.Discover()
	s.engine.Repaint()
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	go func() {
		s.discovered <- s.registry.DiscoverWithRetry(ctx)
	}()
}

// WaitDiscovery blocks until the background discovery run has finished.
func (s *Session) WaitDiscovery(ctx context.Context) (canvas.Outcome, error) {
	select {
	case out := <-s.discovered:
		s.discovered <- out
		return out, nil
	case <-ctx.Done():
		return canvas.Outcome{}, ctx.Err()
	}
}

// Close stops background work.
func (s *Session) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.resize.Stop()
}

func (s *Session) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.PageCount()
}

// pointer runs a machine handler and returns the events it produced.
func (s *Session) pointer(fn func(geom.ScreenPoint), p geom.ScreenPoint) []interaction.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(p)
	return s.machine.DrainEvents()
}

func (s *Session) PointerDown(p geom.ScreenPoint) []interaction.Event {
	return s.pointer(s.machine.PointerDown, p)
}

func (s *Session) PointerMove(p geom.ScreenPoint) []interaction.Event {
	return s.pointer(s.machine.PointerMove, p)
}

func (s *Session) PointerUp(p geom.ScreenPoint) []interaction.Event {
	return s.pointer(s.machine.PointerUp, p)
}

func (s *Session) DoubleClick(p geom.ScreenPoint) []interaction.Event {
	return s.pointer(s.machine.DoubleClick, p)
}

// SetTool switches the active tool, cancelling any gesture in flight.
func (s *Session) SetTool(name string) ([]interaction.Event, error) {
	t, err := interaction.ParseTool(name)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.SetTool(t)
	return s.machine.DrainEvents(), nil
}

func (s *Session) Tool() interaction.Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Tool()
}

func (s *Session) Options() interaction.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Options()
}

// SetOptions replaces the tool defaults used for new annotations.
func (s *Session) SetOptions(o interaction.Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.SetOptions(o)
}

// CommitText completes the open text or comment widget.
func (s *Session) CommitText(c interaction.TextCommit) (*annotation.Annotation, []interaction.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.machine.CommitText(c)
	return a, s.machine.DrainEvents(), err
}

// CancelText closes the open widget, restoring an annotation being edited.
func (s *Session) CancelText() []interaction.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.CancelText()
	return s.machine.DrainEvents()
}

// PlaceImage adds an image, signature or stamp at a screen position.
func (s *Session) PlaceImage(data []byte, kind annotation.ImageKind, at *geom.ScreenPoint) (*annotation.Annotation, []interaction.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.machine.PlaceImage(data, kind, at)
	return a, s.machine.DrainEvents(), err
}

// Undo removes the most recently added annotation.
func (s *Session) Undo() (*annotation.Annotation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Undo()
}

// Redo restores the most recently undone annotation.
func (s *Session) Redo() (*annotation.Annotation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Redo()
}

// Remove deletes an annotation by id.
func (s *Session) Remove(id annotation.ID) (*annotation.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.engine.Remove(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNoAnnotation)
	}
	return a, nil
}

// Reorder moves an annotation to a z-order index.
func (s *Session) Reorder(id annotation.ID, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Reorder(id, index)
}

// Clear removes every annotation.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Clear()
}

// Annotations returns copies of every annotation in z-order, optionally
// limited to one page.
func (s *Session) Annotations(pageNum int) []*annotation.Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pageNum > 0 {
		return s.engine.OnPage(pageNum)
	}
	return s.engine.Annotations()
}

// Select selects an annotation by id; an empty id clears the selection.
func (s *Session) Select(id annotation.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Select(id)
}

// Selected returns the selected annotation, if any.
func (s *Session) Selected() (*annotation.Annotation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Selected()
}

// Scroll moves the viewport and refreshes surface placements.
func (s *Session) Scroll(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layout.ScrollTo(x, y)
	s.registry.Sync()
}

// Zoom changes the render scale. Annotations are converted to the new scale
// so they stay attached to the same content.
func (s *Session) Zoom(scale float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.layout.Scale()
	if err := s.layout.SetScale(scale); err != nil {
		return err
	}
	s.machine.SetTool(s.machine.Tool())
	s.engine.Rescale(scale / old)
	s.engine.SetScale(scale)
	for page, layer := range s.textLayers {
		s.textLayers[page] = rescaleLayer(layer, scale/old)
	}
	s.registry.ResizeAll()
	return nil
}

// ResizeViewport records a new viewport size and device pixel ratio. Surface
// backing stores are rebuilt once the burst of resizes settles; placements
// are refreshed at once.
func (s *Session) ResizeViewport(width, height, dpr float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layout.Resize(width, height)
	if dpr > 0 {
		s.layout.SetDevicePixelRatio(dpr)
	}
	s.registry.Sync()
	s.resize.Trigger(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.registry.ResizeAll()
	})
}

// SetRenderedPages reports how many pages the host viewer has rendered so
// far; unrendered pages are skipped by discovery until they appear.
func (s *Session) SetRenderedPages(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layout.SetRenderedPages(n)
	s.registry.ResizeAll()
}

// FlushResize applies a pending debounced resize now.
func (s *Session) FlushResize() { s.resize.Flush() }

// RotatePage rotates one page by a multiple of 90 degrees. Annotations on
// it keep their page-relative geometry.
func (s *Session) RotatePage(pageNum, degrees int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.doc.PageCount()
	if pageNum < 1 || pageNum > n {
		return fmt.Errorf("page %d of %d: %w", pageNum, n, pdfdoc.ErrPageOutOfRange)
	}
	muts := identity(n)
	muts[pageNum-1].Rotation = degrees
	return s.mutatePages(muts)
}

// DeletePage removes a page and drops its annotations. The last page cannot
// be deleted.
func (s *Session) DeletePage(pageNum int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.doc.PageCount()
	if pageNum < 1 || pageNum > n {
		return fmt.Errorf("page %d of %d: %w", pageNum, n, pdfdoc.ErrPageOutOfRange)
	}
	if n == 1 {
		return ErrLastPage
	}
	muts := slices.DeleteFunc(identity(n), func(m pdfdoc.PageMutation) bool { return m.OriginalIndex == pageNum })
	return s.mutatePages(muts)
}

// ReorderPages puts the pages in a new order; order lists every current page
// number exactly once. Annotations travel with their pages.
func (s *Session) ReorderPages(order []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.doc.PageCount()
	if len(order) != n {
		return fmt.Errorf("%d entries for %d pages: %w", len(order), n, ErrInvalidOrder)
	}
	seen := make(map[int]bool, n)
	muts := make([]pdfdoc.PageMutation, n)
	for i, p := range order {
		if p < 1 || p > n || seen[p] {
			return fmt.Errorf("entry %d (%d): %w", i+1, p, ErrInvalidOrder)
		}
		seen[p] = true
		muts[i] = pdfdoc.PageMutation{OriginalIndex: p}
	}
	return s.mutatePages(muts)
}

// MutatePages applies an explicit page list: one entry per resulting page,
// naming its current page number and a rotation. Pages not listed are
// deleted along with their annotations.
func (s *Session) MutatePages(muts []pdfdoc.PageMutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutatePages(muts)
}

func identity(n int) []pdfdoc.PageMutation {
	muts := make([]pdfdoc.PageMutation, n)
	for i := range muts {
		muts[i] = pdfdoc.PageMutation{OriginalIndex: i + 1}
	}
	return muts
}

// mutatePages restructures the document and rebuilds everything derived from
// the page structure. Annotations follow the first resulting page taken from
// their page; annotations of deleted pages are dropped.
func (s *Session) mutatePages(muts []pdfdoc.PageMutation) error {
	if s.machine.InputOpen() {
		s.machine.CancelText()
	}
	s.machine.SetTool(s.machine.Tool())

	if err := s.doc.ApplyPageMutations(muts); err != nil {
		return err
	}

	newPage := make(map[int]int, len(muts))
	for i, m := range muts {
		if _, ok := newPage[m.OriginalIndex]; !ok {
			newPage[m.OriginalIndex] = i + 1
		}
	}

	s.layout.SetPages(s.doc.PageSizes())
	s.engine.SetPageCount(s.doc.PageCount())
	mode := s.registry.Reset()
	dropped := s.engine.RemapPages(func(old int) (int, bool) {
		// A fallback surface holds every annotation on page 1.
		if mode == canvas.ModeFallback {
			return 1, true
		}
		p, ok := newPage[old]
		return p, ok
	})

	layers := make(map[int]*ocr.TextLayer, len(s.textLayers))
	for old, layer := range s.textLayers {
		if p, ok := newPage[old]; ok && muts[p-1].Rotation%360 == 0 {
			layer.PageNum = p
			layers[p] = layer
		}
	}
	s.textLayers = layers
	s.restructured = true

	s.log.Info("session %s: %d page(s) after restructure, %d annotation(s) dropped", s.ID, s.doc.PageCount(), len(dropped))
	return nil
}

// SetWatermark previews a watermark and replays it on save; nil removes it.
func (s *Session) SetWatermark(w *pdfdoc.Watermark) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.SetWatermark(w)
}

// SetHeaderFooter previews header and footer bands; nil removes them.
func (s *Session) SetHeaderFooter(h *pdfdoc.HeaderFooter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.SetHeaderFooter(h)
}

// SetFormValues merges form field values persisted on save. An empty value
// clears the field's entry.
func (s *Session) SetFormValues(values map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.formValues == nil {
		s.formValues = make(map[string]string)
	}
	for k, v := range values {
		if v == "" {
			delete(s.formValues, k)
			continue
		}
		s.formValues[k] = v
	}
}

// Save resets the document to its original bytes, replays every annotation
// and overlay and returns the serialized result.
func (s *Session) Save() ([]byte, render.ReplayReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	opts := render.SaveOptions{
		Scale:      s.layout.Scale(),
		FormValues: maps.Clone(s.formValues),
	}
	if origin, ok := s.fallbackOrigin(); ok {
		opts.Origin = origin
	}
	return s.engine.Save(s.doc, opts)
}

// fallbackOrigin locates page 1's top-left on the global fallback surface.
// Annotations drawn in fallback mode are relative to that surface.
func (s *Session) fallbackOrigin() (geom.PagePoint, bool) {
	surf := s.registry.Fallback()
	if surf == nil {
		return geom.PagePoint{}, false
	}
	origin, ok := s.layout.PageOrigin(1)
	if !ok {
		return geom.PagePoint{}, false
	}
	at := s.mapper.ScreenFromDocument(origin)
	return geom.PagePoint{X: at.X - surf.Rect.X, Y: at.Y - surf.Rect.Y}, true
}

// Protect saves and encrypts the result.
func (s *Session) Protect(userPW, ownerPW string) ([]byte, render.ReplayReport, error) {
	data, report, err := s.Save()
	if err != nil {
		return nil, report, err
	}
	enc, err := pdfdoc.Encrypt(data, userPW, ownerPW)
	if err != nil {
		return nil, report, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return enc, report, nil
}

// ExtractPage returns one page of the original document as its own PDF.
func (s *Session) ExtractPage(pageNum int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.ExtractPage(pageNum)
}

// SurfacePNG encodes a page surface. Pending resizes are applied first.
func (s *Session) SurfacePNG(pageNum int) ([]byte, error) {
	s.resize.Flush()
	s.mu.Lock()
	defer s.mu.Unlock()
	surf, ok := s.registry.Surface(pageNum)
	if !ok || surf.Image == nil {
		return nil, fmt.Errorf("page %d: %w", pageNum, ErrNoSurface)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, surf.Image); err != nil {
		return nil, fmt.Errorf("encoding surface: %w", err)
	}
	return buf.Bytes(), nil
}

// Recognize runs text recognition on a page and keeps the resulting text
// layer. image is the rendered page as PNG; when empty, the largest image
// embedded on the page is used. The session is not locked while the engine
// runs.
func (s *Session) Recognize(ctx context.Context, pageNum int, image []byte) (*ocr.TextLayer, bool, error) {
	if s.ocr == nil {
		return nil, false, ErrOCRUnavailable
	}

	s.mu.Lock()
	size, ok := s.layout.PageSizePixels(pageNum)
	if !ok {
		n := s.doc.PageCount()
		s.mu.Unlock()
		return nil, false, fmt.Errorf("page %d of %d: %w", pageNum, n, pdfdoc.ErrPageOutOfRange)
	}
	restructured := s.restructured
	var err error
	if len(image) == 0 {
		image, err = s.doc.PageImage(pageNum)
	}
	s.mu.Unlock()
	if err != nil {
		return nil, false, err
	}

	docID := s.DocumentID
	if restructured {
		// Cached results are keyed by original page numbers.
		docID = ""
	}
	result, cached, err := s.ocr.Recognize(ctx, docID, pageNum, image)
	if err != nil {
		return nil, false, err
	}

	layer := ocr.NewTextLayer(result, size, s.opts.MinConfidence)
	s.mu.Lock()
	s.textLayers[pageNum] = layer
	s.mu.Unlock()
	return layer, cached, nil
}

// OCREngine names the recognition engine, or "" when none is configured.
func (s *Session) OCREngine() string {
	if s.ocr == nil {
		return ""
	}
	return s.ocr.Engine()
}

// TextLayer returns the last recognition result of a page.
func (s *Session) TextLayer(pageNum int) (*ocr.TextLayer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.textLayers[pageNum]
	return l, ok
}

func rescaleLayer(l *ocr.TextLayer, factor float64) *ocr.TextLayer {
	out := &ocr.TextLayer{PageNum: l.PageNum, Scale: l.Scale * factor, Words: slices.Clone(l.Words)}
	for i := range out.Words {
		out.Words[i].Bounds = out.Words[i].Bounds.Scale(factor)
		out.Words[i].FontSize *= factor
	}
	return out
}

// DrainEvents returns events not yet handed to the host.
func (s *Session) DrainEvents() []interaction.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.DrainEvents()
}

// ViewState summarizes the viewer, pages and registered surfaces.
func (s *Session) ViewState() models.ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	sx, sy := s.layout.ScrollOffset()
	vw, vh := s.layout.ViewportSize()
	st := models.ViewState{
		Mode:           s.registry.Mode().String(),
		Scale:          s.layout.Scale(),
		ScrollX:        sx,
		ScrollY:        sy,
		ViewportWidth:  vw,
		ViewportHeight: vh,
		DPR:            s.layout.DevicePixelRatio(),
		Tool:           string(s.machine.Tool()),
		State:          s.machine.State().String(),
	}
	for i, size := range s.doc.PageSizes() {
		px, _ := s.layout.PageSizePixels(i + 1)
		st.Pages = append(st.Pages, models.PageInfo{
			PageNum:      i + 1,
			WidthPoints:  size.Width,
			HeightPoints: size.Height,
			WidthPixels:  px.Width,
			HeightPixels: px.Height,
		})
	}
	for _, surf := range s.registry.Surfaces() {
		st.Surfaces = append(st.Surfaces, models.SurfaceInfo{
			PageNum: surf.PageNum,
			X:       surf.Rect.X,
			Y:       surf.Rect.Y,
			Width:   surf.Rect.Width,
			Height:  surf.Rect.Height,
			Global:  surf.Global,
		})
	}
	return st
}
