package render

import (
	"fmt"

	"github.com/Epistemic-Technology/pdfed/internal/annotation"
	"github.com/Epistemic-Technology/pdfed/internal/coords"
	"github.com/Epistemic-Technology/pdfed/internal/geom"
	"github.com/Epistemic-Technology/pdfed/internal/pdfdoc"
)

// Document is the mutation side of a loaded PDF. Coordinates are PDF user
// space; *pdfdoc.Document implements it.
type Document interface {
	Reset() error
	PageSize(pageNum int) (geom.Size, bool)
	DrawText(pageNum int, text string, at geom.PDFPoint, style pdfdoc.TextStyle) error
	DrawRect(pageNum int, r geom.Rect, style pdfdoc.RectStyle) error
	DrawLine(pageNum int, from, to geom.PDFPoint, style pdfdoc.LineStyle) error
	DrawPath(pageNum int, points []geom.PDFPoint, style pdfdoc.LineStyle) error
	DrawImage(pageNum int, data []byte, r geom.Rect) error
	DrawNote(pageNum int, text string, r geom.Rect) error
	ApplyWatermark(w pdfdoc.Watermark) error
	ApplyHeaderFooter(h pdfdoc.HeaderFooter) error
	FillForm(values map[string]string) error
	Serialize() ([]byte, error)
}

var _ Document = (*pdfdoc.Document)(nil)

const defaultHighlightOpacity = 0.3

type SaveOptions struct {
	// Scale is the render scale annotations were drawn at.
	Scale      float64
	FormValues map[string]string
	// Origin is where page 1's top-left sits on the global fallback
	// surface. It is subtracted from every annotation before replay and is
	// zero in multi-page mode.
	Origin geom.PagePoint
}

// ReplayFailure records an annotation that could not be written.
type ReplayFailure struct {
	ID   annotation.ID   `json:"id"`
	Type annotation.Type `json:"type"`
	Err  string          `json:"error"`
}

type ReplayReport struct {
	Applied int             `json:"applied"`
	Failed  []ReplayFailure `json:"failed,omitempty"`
}

// Save resets doc to its original bytes, replays every annotation once in
// z-order, applies overlays and form values, and serializes. A failing
// annotation is logged and skipped; a failing reset or serialize fails the
// save.
func (e *Engine) Save(doc Document, opts SaveOptions) ([]byte, ReplayReport, error) {
	var report ReplayReport
	if err := doc.Reset(); err != nil {
		return nil, report, fmt.Errorf("resetting document: %w", err)
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = e.scale
	}

	for _, a := range e.annotations {
		if opts.Origin != (geom.PagePoint{}) {
			a = a.Clone()
			a.Translate(-opts.Origin.X, -opts.Origin.Y)
		}
		if err := replay(doc, a, scale); err != nil {
			e.log.Warn("skipping annotation %s (%s): %v", a.ID, a.Type(), err)
			report.Failed = append(report.Failed, ReplayFailure{ID: a.ID, Type: a.Type(), Err: err.Error()})
			continue
		}
		report.Applied++
	}

	if e.watermark != nil {
		if err := doc.ApplyWatermark(*e.watermark); err != nil {
			e.log.Warn("skipping watermark: %v", err)
		}
	}
	if e.headerFooter != nil {
		if err := doc.ApplyHeaderFooter(*e.headerFooter); err != nil {
			e.log.Warn("skipping header/footer: %v", err)
		}
	}
	if len(opts.FormValues) > 0 {
		if err := doc.FillForm(opts.FormValues); err != nil {
			e.log.Warn("skipping form values: %v", err)
		}
	}

	out, err := doc.Serialize()
	if err != nil {
		return nil, report, fmt.Errorf("serializing document: %w", err)
	}
	e.log.Info("saved %d annotation(s), %d skipped, %d bytes", report.Applied, len(report.Failed), len(out))
	return out, report, nil
}

// replay issues exactly one drawing call for a.
func replay(doc Document, a *annotation.Annotation, scale float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	size, ok := doc.PageSize(a.PageNum)
	if !ok {
		return fmt.Errorf("page %d: %w", a.PageNum, pdfdoc.ErrPageOutOfRange)
	}
	h := size.Height
	bounds := a.Bounds.Normalize()
	rect := coords.RectToPDF(bounds, scale, h)
	units := func(v float64) float64 { return coords.ToDocumentUnits(v, scale) }

	switch d := a.Data.(type) {
	case *annotation.HighlightData:
		opacity := d.Opacity
		if opacity == 0 {
			opacity = defaultHighlightOpacity
		}
		fill := d.Color
		return doc.DrawRect(a.PageNum, rect, pdfdoc.RectStyle{Fill: &fill, Opacity: opacity})
	case *annotation.UnderlineData:
		return midline(doc, a.PageNum, bounds, d.Color, scale, h)
	case *annotation.StrikethroughData:
		return midline(doc, a.PageNum, bounds, d.Color, scale, h)
	case *annotation.DrawData:
		pts := make([]geom.PDFPoint, len(d.Points))
		for i, p := range d.Points {
			pts[i] = coords.PageToPDF(p, scale, h)
		}
		return doc.DrawPath(a.PageNum, pts, pdfdoc.LineStyle{Color: d.Color, Thickness: units(d.StrokeWidth), Opacity: 1})
	case *annotation.ShapeData:
		border := d.Color
		return doc.DrawRect(a.PageNum, rect, pdfdoc.RectStyle{Border: &border, BorderWidth: units(d.StrokeWidth)})
	case *annotation.RedactData:
		fill := d.Fill
		return doc.DrawRect(a.PageNum, rect, pdfdoc.RectStyle{Fill: &fill, Opacity: 1})
	case *annotation.TextData:
		at := coords.PageToPDF(geom.PagePoint{X: bounds.X, Y: bounds.Y}, scale, h)
		return doc.DrawText(a.PageNum, d.Text, at, pdfdoc.TextStyle{
			Size:       units(d.FontSize),
			Color:      d.Color,
			Background: d.Background,
			Bold:       d.Bold,
			Italic:     d.Italic,
			Underline:  d.Underline,
			Strike:     d.Strike,
		})
	case *annotation.ImageData:
		return doc.DrawImage(a.PageNum, d.Bytes, rect)
	case *annotation.CommentData:
		return doc.DrawNote(a.PageNum, d.Text, rect)
	}
	return fmt.Errorf("%T: %w", a.Data, annotation.ErrUnknownType)
}

func midline(doc Document, pageNum int, bounds geom.Rect, c annotation.Color, scale, pageHeight float64) error {
	_, y := bounds.Center()
	from := coords.PageToPDF(geom.PagePoint{X: bounds.X, Y: y}, scale, pageHeight)
	to := coords.PageToPDF(geom.PagePoint{X: bounds.Right(), Y: y}, scale, pageHeight)
	return doc.DrawLine(pageNum, from, to, pdfdoc.LineStyle{
		Color:     c,
		Thickness: coords.ToDocumentUnits(2, scale),
		Opacity:   1,
	})
}
