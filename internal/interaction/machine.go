// Package interaction turns pointer events into annotation model mutations.
//
// A Machine has two orthogonal axes: the active Tool and the gesture State.
// Each pointer event type has a single dispatch method that switches on both.
// Pointer handlers never block; everything that needs the host (text entry,
// choosing an image) is requested through an Event and completed later by
// CommitText or PlaceImage.
package interaction

import (
	"math"

	"github.com/Epistemic-Technology/pdfed/internal/annotation"
	"github.com/Epistemic-Technology/pdfed/internal/geom"
	"github.com/Epistemic-Technology/pdfed/internal/logger"
)

// Locator resolves screen points to pages. *coords.Mapper implements it.
type Locator interface {
	PageFromScreen(p geom.ScreenPoint) (geom.PageLocation, bool)
	PageFromScreenOn(pageNum int, p geom.ScreenPoint) (geom.PagePoint, bool)
	ScreenFromPage(pageNum int, p geom.PagePoint) (geom.ScreenPoint, bool)
}

// Model is the annotation collection the machine mutates. *render.Engine
// implements it.
type Model interface {
	Add(a *annotation.Annotation) error
	Remove(id annotation.ID) (*annotation.Annotation, bool)
	Update(id annotation.ID, fn func(*annotation.Annotation)) error
	Find(id annotation.ID) (*annotation.Annotation, bool)
	HitTest(pageNum int, p geom.PagePoint, tolerance float64) (*annotation.Annotation, bool)
	Select(id annotation.ID) bool
	Selected() (*annotation.Annotation, bool)
	SetSelectionVisible(visible bool)
	SetPreview(a *annotation.Annotation)
}

// EventKind names a notification for the host.
type EventKind string

const (
	TextInputRequested    EventKind = "text_input_requested"
	CommentInputRequested EventKind = "comment_input_requested"
	EditRequested         EventKind = "edit_requested"
	ImageRequested        EventKind = "image_requested"
	AnnotationCreated     EventKind = "annotation_created"
	AnnotationChanged     EventKind = "annotation_changed"
)

// Event tells the host something happened or that it must show a widget.
// Screen is where the widget should appear.
type Event struct {
	Kind       EventKind              `json:"kind"`
	PageNum    int                    `json:"page_num,omitempty"`
	At         geom.PagePoint         `json:"at"`
	Screen     geom.ScreenPoint       `json:"screen"`
	Annotation *annotation.Annotation `json:"annotation,omitempty"`
}

// input is an open text or comment widget.
type input struct {
	kind    annotation.Type
	pageNum int
	at      geom.PagePoint
	editing *annotation.Annotation
}

type Machine struct {
	loc   Locator
	model Model
	log   logger.Logger
	opts  Options
	tool  Tool
	state State

	pageNum int
	start   geom.PagePoint
	current geom.PagePoint
	path    []geom.PagePoint

	target      annotation.ID
	dragOffset  geom.PagePoint
	handle      Handle
	startBounds geom.Rect
	startPoint  geom.PagePoint

	input       *input
	imageTarget *geom.PageLocation
	events      []Event
}

// NewMachine starts in select mode with no gesture.
func NewMachine(loc Locator, model Model, opts Options, log logger.Logger) *Machine {
	m := &Machine{
		loc:   loc,
		model: model,
		log:   log,
		opts:  opts.withDefaults(),
		tool:  ToolSelect,
	}
	model.SetSelectionVisible(true)
	return m
}

func (m *Machine) Tool() Tool       { return m.tool }
func (m *Machine) State() State     { return m.state }
func (m *Machine) Options() Options { return m.opts }
func (m *Machine) InputOpen() bool  { return m.input != nil }

// SetOptions replaces tool defaults and thresholds; zero thresholds fall
// back to defaults.
func (m *Machine) SetOptions(o Options) { m.opts = o.withDefaults() }

// SetTool switches tools. An in-flight gesture is cancelled: a drawing is
// discarded, a drag or resize keeps what was already applied. Leaving
// select clears the selection.
func (m *Machine) SetTool(t Tool) {
	if m.state != StateIdle {
		m.log.Debug("tool changed to %s mid-gesture, cancelling %s", t, m.state)
		m.cancelGesture()
	}
	if t == m.tool {
		return
	}
	if m.tool == ToolSelect {
		m.model.Select("")
	}
	m.tool = t
	m.model.SetSelectionVisible(t == ToolSelect)
}

func (m *Machine) cancelGesture() {
	switch m.state {
	case StateDrawingNew:
		m.model.SetPreview(nil)
	case StateDragging, StateResizing:
		m.emitChanged(m.target)
	}
	m.reset()
}

func (m *Machine) reset() {
	m.state = StateIdle
	m.path = nil
	m.target = ""
	m.handle = HandleNone
}

// DrainEvents returns and clears pending events.
func (m *Machine) DrainEvents() []Event {
	ev := m.events
	m.events = nil
	return ev
}

func (m *Machine) emit(e Event) {
	if e.PageNum > 0 {
		if s, ok := m.loc.ScreenFromPage(e.PageNum, e.At); ok {
			e.Screen = s
		}
	}
	m.events = append(m.events, e)
}

func (m *Machine) emitChanged(id annotation.ID) {
	if a, ok := m.model.Find(id); ok {
		m.emit(Event{Kind: AnnotationChanged, PageNum: a.PageNum, At: topLeft(a.Bounds), Annotation: a})
	}
}

func topLeft(r geom.Rect) geom.PagePoint { return geom.PagePoint{X: r.X, Y: r.Y} }

// PointerDown starts a gesture. A point outside every page deselects.
func (m *Machine) PointerDown(p geom.ScreenPoint) {
	if m.state != StateIdle {
		m.cancelGesture()
	}
	if m.tool == ToolSelect && m.beginResize(p) {
		return
	}
	loc, ok := m.loc.PageFromScreen(p)
	if !ok {
		if m.tool == ToolSelect {
			m.model.Select("")
		}
		return
	}

	switch m.tool {
	case ToolSelect:
		hit, ok := m.model.HitTest(loc.PageNum, loc.Point, m.opts.HitTolerance)
		if !ok {
			m.model.Select("")
			return
		}
		m.model.Select(hit.ID)
		m.state = StateDragging
		m.target = hit.ID
		m.pageNum = hit.PageNum
		m.dragOffset = geom.PagePoint{X: loc.Point.X - hit.Bounds.X, Y: loc.Point.Y - hit.Bounds.Y}
		return
	case ToolText, ToolComment:
		want := annotation.TypeText
		if m.tool == ToolComment {
			want = annotation.TypeComment
		}
		if hit, ok := m.model.HitTest(loc.PageNum, loc.Point, m.opts.HitTolerance); ok && hit.Type() == want {
			m.edit(hit)
			return
		}
	case ToolImage:
		m.imageTarget = &loc
		m.emit(Event{Kind: ImageRequested, PageNum: loc.PageNum, At: loc.Point})
		return
	}

	m.state = StateDrawingNew
	m.pageNum = loc.PageNum
	m.start, m.current = loc.Point, loc.Point
	m.path = []geom.PagePoint{loc.Point}
}

// beginResize starts a resize when p is on a handle of the selection.
func (m *Machine) beginResize(p geom.ScreenPoint) bool {
	sel, ok := m.model.Selected()
	if !ok {
		return false
	}
	pt, ok := m.loc.PageFromScreenOn(sel.PageNum, p)
	if !ok {
		return false
	}
	h := m.handleAt(pt, sel.Bounds)
	if h == HandleNone {
		return false
	}
	m.state = StateResizing
	m.target = sel.ID
	m.handle = h
	m.pageNum = sel.PageNum
	m.startBounds = sel.Bounds.Normalize()
	m.startPoint = pt
	return true
}

// handleAt hit-tests the four corner handles drawn around bounds.
func (m *Machine) handleAt(p geom.PagePoint, bounds geom.Rect) Handle {
	b := bounds.Normalize().Inflate(m.opts.HandlePadding)
	corners := []struct {
		h    Handle
		x, y float64
	}{
		{HandleTopLeft, b.X, b.Y},
		{HandleTopRight, b.Right(), b.Y},
		{HandleBottomLeft, b.X, b.Bottom()},
		{HandleBottomRight, b.Right(), b.Bottom()},
	}
	for _, c := range corners {
		if math.Abs(p.X-c.x) <= m.opts.HandleTolerance && math.Abs(p.Y-c.y) <= m.opts.HandleTolerance {
			return c.h
		}
	}
	return HandleNone
}

// PointerMove updates the active gesture. It is a no-op when idle.
func (m *Machine) PointerMove(p geom.ScreenPoint) {
	switch m.state {
	case StateDrawingNew:
		pt, ok := m.loc.PageFromScreenOn(m.pageNum, p)
		if !ok {
			return
		}
		m.current = pt
		m.path = append(m.path, pt)
		m.model.SetPreview(m.build())
	case StateDragging:
		m.drag(p)
	case StateResizing:
		pt, ok := m.loc.PageFromScreenOn(m.pageNum, p)
		if !ok {
			return
		}
		bounds := resizeBounds(m.startBounds, m.handle, pt.X-m.startPoint.X, pt.Y-m.startPoint.Y, m.opts.MinResize)
		if err := m.model.Update(m.target, func(a *annotation.Annotation) { a.Resize(bounds) }); err != nil {
			m.log.Warn("resize %s: %v", m.target, err)
			m.reset()
		}
	}
}

// drag moves the target under the pointer, switching page as soon as the
// pointer is over another page.
func (m *Machine) drag(p geom.ScreenPoint) {
	pageNum := m.pageNum
	pt, ok := geom.PagePoint{}, false
	if loc, hit := m.loc.PageFromScreen(p); hit {
		pageNum, pt, ok = loc.PageNum, loc.Point, true
	} else {
		pt, ok = m.loc.PageFromScreenOn(m.pageNum, p)
	}
	if !ok {
		return
	}
	if pageNum != m.pageNum {
		m.log.Debug("annotation %s moved from page %d to %d", m.target, m.pageNum, pageNum)
		m.pageNum = pageNum
	}
	x, y := pt.X-m.dragOffset.X, pt.Y-m.dragOffset.Y
	err := m.model.Update(m.target, func(a *annotation.Annotation) {
		a.PageNum = pageNum
		a.MoveTo(x, y)
	})
	if err != nil {
		m.log.Warn("drag %s: %v", m.target, err)
		m.reset()
	}
}

// PointerUp finishes the gesture.
func (m *Machine) PointerUp(p geom.ScreenPoint) {
	switch m.state {
	case StateDragging, StateResizing:
		m.PointerMove(p)
		m.emitChanged(m.target)
		m.reset()
	case StateDrawingNew:
		if pt, ok := m.loc.PageFromScreenOn(m.pageNum, p); ok && pt != m.current {
			m.current = pt
			m.path = append(m.path, pt)
		}
		m.model.SetPreview(nil)
		m.finish()
		m.reset()
	}
}

func (m *Machine) finish() {
	switch m.tool {
	case ToolText:
		m.openInput(annotation.TypeText, m.pageNum, m.start, nil)
		return
	case ToolComment:
		m.openInput(annotation.TypeComment, m.pageNum, m.start, nil)
		return
	}
	a := m.build()
	if a == nil {
		m.log.Debug("%s gesture too small, discarded", m.tool)
		return
	}
	if err := m.model.Add(a); err != nil {
		m.log.Error("adding %s annotation: %v", a.Type(), err)
		return
	}
	m.emit(Event{Kind: AnnotationCreated, PageNum: a.PageNum, At: topLeft(a.Bounds), Annotation: a})
}

// DoubleClick opens the editor for a text or comment annotation under p in
// any tool.
func (m *Machine) DoubleClick(p geom.ScreenPoint) {
	if m.state != StateIdle {
		m.cancelGesture()
	}
	loc, ok := m.loc.PageFromScreen(p)
	if !ok {
		return
	}
	hit, ok := m.model.HitTest(loc.PageNum, loc.Point, m.opts.HitTolerance)
	if !ok {
		return
	}
	if t := hit.Type(); t == annotation.TypeText || t == annotation.TypeComment {
		m.edit(hit)
	}
}

// edit removes a while its editor is open so it is not drawn twice.
func (m *Machine) edit(a *annotation.Annotation) {
	m.model.Remove(a.ID)
	m.openInput(a.Type(), a.PageNum, topLeft(a.Bounds), a)
}

func (m *Machine) openInput(kind annotation.Type, pageNum int, at geom.PagePoint, editing *annotation.Annotation) {
	if m.input != nil {
		m.CancelText()
	}
	m.input = &input{kind: kind, pageNum: pageNum, at: at, editing: editing}
	ev := Event{PageNum: pageNum, At: at, Annotation: editing}
	switch {
	case editing != nil:
		ev.Kind = EditRequested
	case kind == annotation.TypeComment:
		ev.Kind = CommentInputRequested
	default:
		ev.Kind = TextInputRequested
	}
	m.emit(ev)
}
