// Package annotation defines the annotation record and its type-specific
// payloads.
//
// An Annotation's type is carried by its payload: every payload variant
// implements Data and reports exactly one Type, so the type of an annotation
// cannot change after creation. Bounds are page-relative pixels. For freehand
// strokes the point sequence is authoritative and Bounds is derived from it.
package annotation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Epistemic-Technology/pdfed/internal/geom"
)

// Type identifies an annotation variant.
type Type string

const (
	TypeHighlight     Type = "highlight"
	TypeUnderline     Type = "underline"
	TypeStrikethrough Type = "strikethrough"
	TypeDraw          Type = "draw"
	TypeShapes        Type = "shapes"
	TypeRedact        Type = "redact"
	TypeText          Type = "text"
	TypeImage         Type = "image"
	TypeComment       Type = "comment"
)

var (
	ErrDuplicateID = errors.New("annotation: duplicate id")
	ErrUnknownType = errors.New("annotation: unknown type")
)

// ID uniquely identifies an annotation within a document. IDs are never reused.
type ID string

// NewID generates a fresh annotation id.
func NewID() ID {
	return ID("ann_" + strings.ReplaceAll(uuid.New().String(), "-", ""))
}

// Data is the type-specific payload of an annotation. The set of
// implementations is closed to this package.
type Data interface {
	Type() Type
	clone() Data
}

// Annotation is a single mark owned by one page.
type Annotation struct {
	ID      ID
	PageNum int
	Bounds  geom.Rect
	Data    Data
}

// New creates an annotation with a fresh id. For draw payloads the bounds are
// recomputed from the stroke points.
func New(pageNum int, bounds geom.Rect, data Data) *Annotation {
	a := &Annotation{ID: NewID(), PageNum: pageNum, Bounds: bounds, Data: data}
	if d, ok := data.(*DrawData); ok {
		a.Bounds = geom.BoundsOf(d.Points)
	}
	return a
}

// Type returns the annotation's variant.
func (a *Annotation) Type() Type {
	if a.Data == nil {
		return ""
	}
	return a.Data.Type()
}

// Clone returns a deep copy.
func (a *Annotation) Clone() *Annotation {
	c := *a
	if a.Data != nil {
		c.Data = a.Data.clone()
	}
	return &c
}

// Translate moves the annotation by (dx, dy) page pixels. Freehand strokes
// move every point, not just the bounding box.
func (a *Annotation) Translate(dx, dy float64) {
	a.Bounds = a.Bounds.Translate(dx, dy)
	if d, ok := a.Data.(*DrawData); ok {
		for i := range d.Points {
			d.Points[i].X += dx
			d.Points[i].Y += dy
		}
	}
}

// MoveTo places the top-left corner of the bounds at (x, y).
func (a *Annotation) MoveTo(x, y float64) {
	a.Translate(x-a.Bounds.X, y-a.Bounds.Y)
}

// Resize replaces the bounds. Freehand strokes are scaled into the new box so
// the derived bounds stay consistent with the points.
func (a *Annotation) Resize(bounds geom.Rect) {
	old := a.Bounds
	a.Bounds = bounds
	d, ok := a.Data.(*DrawData)
	if !ok {
		return
	}
	sx, sy := 1.0, 1.0
	if old.Width > 0 {
		sx = bounds.Width / old.Width
	}
	if old.Height > 0 {
		sy = bounds.Height / old.Height
	}
	for i, p := range d.Points {
		d.Points[i] = geom.PagePoint{
			X: bounds.X + (p.X-old.X)*sx,
			Y: bounds.Y + (p.Y-old.Y)*sy,
		}
	}
}

// Scale multiplies the geometry by factor about the page origin, for a change
// of render scale. Stroke widths and font sizes scale with it.
func (a *Annotation) Scale(factor float64) {
	a.Bounds = a.Bounds.Scale(factor)
	switch d := a.Data.(type) {
	case *DrawData:
		for i := range d.Points {
			d.Points[i].X *= factor
			d.Points[i].Y *= factor
		}
		d.StrokeWidth *= factor
	case *ShapeData:
		d.StrokeWidth *= factor
	case *TextData:
		d.FontSize *= factor
	}
}

type wireAnnotation struct {
	ID      ID        `json:"id"`
	Type    Type      `json:"type"`
	PageNum int       `json:"page_num"`
	Bounds  geom.Rect `json:"bounds"`
	Data    Data      `json:"data"`
}

// MarshalJSON encodes the annotation with an explicit type tag.
func (a *Annotation) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireAnnotation{
		ID:      a.ID,
		Type:    a.Type(),
		PageNum: a.PageNum,
		Bounds:  a.Bounds,
		Data:    a.Data,
	})
}

// Validate checks the structural invariants of an annotation.
func (a *Annotation) Validate() error {
	if a.ID == "" {
		return errors.New("annotation: empty id")
	}
	if a.PageNum < 1 {
		return fmt.Errorf("annotation %s: invalid page number %d", a.ID, a.PageNum)
	}
	if a.Data == nil {
		return fmt.Errorf("annotation %s: %w", a.ID, ErrUnknownType)
	}
	return nil
}
