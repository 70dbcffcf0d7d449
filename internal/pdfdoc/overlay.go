package pdfdoc

import (
	"bytes"
	"fmt"
	"image"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/Epistemic-Technology/pdfed/internal/annotation"
	"github.com/Epistemic-Technology/pdfed/internal/geom"
)

// Helvetica ascent as a fraction of the font size.
const ascent = 0.8

var noteColor = annotation.Color{R: 0xf2, G: 0xc9, B: 0x4c}

// buildOverlay renders the drawing calls of one page onto a transparent page
// of the same size. gofpdf measures y from the top, so every PDF-space
// coordinate is flipped against the page height.
func buildOverlay(size geom.Size, ops []drawOp, stamp time.Time) ([]byte, error) {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: size.Width, Ht: size.Height},
	})
	pdf.SetCreationDate(stamp)
	pdf.SetModificationDate(stamp)
	pdf.SetCatalogSort(true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	o := overlay{pdf: pdf, height: size.Height, tr: tr}
	for i, op := range ops {
		switch op.kind {
		case opText:
			o.text(op)
		case opRect:
			o.rect(op)
		case opLine, opPath:
			o.path(op)
		case opImage:
			o.image(i, op)
		case opNote:
			o.note(op)
		}
		if pdf.Err() {
			return nil, pdf.Error()
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type overlay struct {
	pdf    *gofpdf.Fpdf
	height float64
	tr     func(string) string
}

func (o overlay) top(y, h float64) float64 { return o.height - y - h }

func setFill(pdf *gofpdf.Fpdf, c annotation.Color) {
	pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
}

func setDraw(pdf *gofpdf.Fpdf, c annotation.Color) {
	pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
}

func alpha(v float64) float64 {
	if v <= 0 || v > 1 {
		return 1
	}
	return v
}

func (o overlay) rect(op drawOp) {
	r, st := op.rect, op.rectStyle
	y := o.top(r.Y, r.Height)
	if st.Fill != nil {
		setFill(o.pdf, *st.Fill)
		o.pdf.SetAlpha(alpha(st.Opacity), "Normal")
		o.pdf.Rect(r.X, y, r.Width, r.Height, "F")
		o.pdf.SetAlpha(1, "Normal")
	}
	if st.Border != nil && st.BorderWidth > 0 {
		setDraw(o.pdf, *st.Border)
		o.pdf.SetLineWidth(st.BorderWidth)
		o.pdf.Rect(r.X, y, r.Width, r.Height, "D")
	}
}

func (o overlay) path(op drawOp) {
	st := op.lineStyle
	setDraw(o.pdf, st.Color)
	o.pdf.SetLineWidth(st.Thickness)
	o.pdf.SetLineCapStyle("round")
	o.pdf.SetLineJoinStyle("round")
	o.pdf.SetAlpha(alpha(st.Opacity), "Normal")
	o.pdf.MoveTo(op.points[0].X, o.height-op.points[0].Y)
	for _, p := range op.points[1:] {
		o.pdf.LineTo(p.X, o.height-p.Y)
	}
	o.pdf.DrawPath("D")
	o.pdf.SetAlpha(1, "Normal")
}

func fontStyle(st TextStyle) string {
	var s string
	if st.Bold {
		s += "B"
	}
	if st.Italic {
		s += "I"
	}
	if st.Underline {
		s += "U"
	}
	if st.Strike {
		s += "S"
	}
	return s
}

func (o overlay) text(op drawOp) {
	st := op.textStyle
	o.pdf.SetFont("Helvetica", fontStyle(st), st.Size)
	txt := o.tr(op.text)
	top := o.height - op.at.Y
	if st.Background != nil {
		setFill(o.pdf, *st.Background)
		o.pdf.Rect(op.at.X, top, o.pdf.GetStringWidth(txt), st.Size*1.2, "F")
	}
	o.pdf.SetTextColor(int(st.Color.R), int(st.Color.G), int(st.Color.B))
	o.pdf.Text(op.at.X, top+st.Size*ascent, txt)
}

func (o overlay) image(i int, op drawOp) {
	_, format, err := image.DecodeConfig(bytes.NewReader(op.image))
	if err != nil {
		o.pdf.SetError(err)
		return
	}
	imageType := "PNG"
	if format == "jpeg" {
		imageType = "JPG"
	}
	name := fmt.Sprintf("image_%d", i)
	opts := gofpdf.ImageOptions{ImageType: imageType}
	o.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(op.image))
	r := op.rect
	o.pdf.ImageOptions(name, r.X, o.top(r.Y, r.Height), r.Width, r.Height, false, opts, 0, "")
}

func (o overlay) note(op drawOp) {
	r := op.rect
	y := o.top(r.Y, r.Height)
	setFill(o.pdf, noteColor)
	o.pdf.Rect(r.X, y, r.Width, r.Height, "F")
	setFill(o.pdf, annotation.Color{R: 0x3c, G: 0x3c, B: 0x43})
	o.pdf.SetAlpha(0.4, "Normal")
	for i, frac := range []float64{0.5, 0.5, 0.31} {
		o.pdf.Rect(r.X+r.Width/4, y+r.Height*(0.31+0.16*float64(i)), r.Width*frac, r.Height/16, "F")
	}
	o.pdf.SetAlpha(1, "Normal")
	if op.text == "" {
		return
	}
	size := max(r.Height/4, 6)
	o.pdf.SetFont("Helvetica", "", size)
	o.pdf.SetTextColor(0x33, 0x33, 0x33)
	o.pdf.Text(r.X, y+r.Height+size, o.tr(op.text))
}
