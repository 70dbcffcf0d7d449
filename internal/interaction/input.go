package interaction

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/Epistemic-Technology/pdfed/internal/annotation"
	"github.com/Epistemic-Technology/pdfed/internal/geom"
	"github.com/Epistemic-Technology/pdfed/internal/render"
)

// TextCommit is what the host's input widget reports back.
type TextCommit struct {
	Text string
	// Style overrides the tool defaults for text. Its Text field is ignored.
	Style *annotation.TextData
	// Position moves the annotation to the widget's final screen position.
	Position *geom.ScreenPoint
}

// CommitText creates or updates the annotation for the open widget. Empty
// text discards it, which deletes an annotation that was being edited.
func (m *Machine) CommitText(c TextCommit) (*annotation.Annotation, error) {
	in := m.input
	if in == nil {
		return nil, ErrNoInput
	}
	m.input = nil

	if strings.TrimSpace(c.Text) == "" {
		if in.editing != nil {
			m.log.Info("removed %s annotation %s with empty text", in.kind, in.editing.ID)
		}
		return nil, nil
	}

	pageNum, at := in.pageNum, in.at
	if c.Position != nil {
		if loc, ok := m.loc.PageFromScreen(*c.Position); ok {
			pageNum, at = loc.PageNum, loc.Point
		}
	}

	var a *annotation.Annotation
	switch in.kind {
	case annotation.TypeComment:
		size := m.opts.CommentIconSize
		a = annotation.New(pageNum, geom.Rect{X: at.X, Y: at.Y, Width: size, Height: size}, &annotation.CommentData{Text: c.Text})
	default:
		data := m.textStyle(in, c.Style)
		data.Text = c.Text
		w, h := render.MeasureText(data.Text, data.FontSize)
		a = annotation.New(pageNum, geom.Rect{X: at.X, Y: at.Y, Width: w, Height: h}, data)
	}

	kind := AnnotationCreated
	if in.editing != nil {
		a.ID = in.editing.ID
		kind = AnnotationChanged
	}
	if err := m.model.Add(a); err != nil {
		return nil, fmt.Errorf("adding %s annotation: %w", a.Type(), err)
	}
	m.emit(Event{Kind: kind, PageNum: a.PageNum, At: at, Annotation: a})
	return a, nil
}

// textStyle picks the style for a committed text: the widget's, else the
// edited annotation's, else the tool defaults.
func (m *Machine) textStyle(in *input, style *annotation.TextData) *annotation.TextData {
	var data annotation.TextData
	switch {
	case style != nil:
		data = *style
		if style.Background != nil {
			bg := *style.Background
			data.Background = &bg
		}
	case in.editing != nil:
		if prev, ok := in.editing.Data.(*annotation.TextData); ok {
			data = *prev
		}
	default:
		data = annotation.TextData{FontSize: m.opts.FontSize, Color: m.opts.Color}
	}
	if data.FontSize <= 0 {
		data.FontSize = m.opts.FontSize
	}
	return &data
}

// CancelText closes the widget. An annotation that was being edited is
// restored unchanged.
func (m *Machine) CancelText() {
	in := m.input
	if in == nil {
		return
	}
	m.input = nil
	if in.editing != nil {
		if err := m.model.Add(in.editing); err != nil {
			m.log.Error("restoring %s: %v", in.editing.ID, err)
		}
	}
}

// PlaceImage adds an image annotation scaled down to fit the maximum image
// size. It lands at at, else where the image tool was last clicked, else
// 100px into the page under the viewport origin. The new image is selected.
func (m *Machine) PlaceImage(data []byte, kind annotation.ImageKind, at *geom.ScreenPoint) (*annotation.Annotation, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unsupported image: %w", err)
	}
	w, h := fitWithin(float64(cfg.Width), float64(cfg.Height), m.opts.MaxImageSize)

	loc, ok := geom.PageLocation{}, false
	switch {
	case at != nil:
		loc, ok = m.loc.PageFromScreen(*at)
	case m.imageTarget != nil:
		loc, ok = *m.imageTarget, true
	}
	if !ok {
		loc, ok = m.loc.PageFromScreen(geom.ScreenPoint{X: 100, Y: 100})
	}
	if !ok {
		loc = geom.PageLocation{PageNum: 1, Point: geom.PagePoint{X: 100, Y: 100}}
	}
	m.imageTarget = nil

	if kind == "" {
		kind = annotation.ImageKindImage
	}
	a := annotation.New(loc.PageNum, geom.Rect{X: loc.Point.X, Y: loc.Point.Y, Width: w, Height: h},
		&annotation.ImageData{Bytes: bytes.Clone(data), Kind: kind})
	if err := m.model.Add(a); err != nil {
		return nil, err
	}
	m.model.Select(a.ID)
	m.emit(Event{Kind: AnnotationCreated, PageNum: a.PageNum, At: loc.Point, Annotation: a})
	return a, nil
}

// fitWithin scales (w, h) down, keeping the aspect ratio, so neither side
// exceeds limit.
func fitWithin(w, h, limit float64) (float64, float64) {
	if w <= limit && h <= limit {
		return w, h
	}
	ratio := w / h
	if w > h {
		return limit, limit / ratio
	}
	return limit * ratio, limit
}
