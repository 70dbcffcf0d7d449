package render

import (
	"bytes"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/Epistemic-Technology/pdfed/internal/annotation"
	"github.com/Epistemic-Technology/pdfed/internal/canvas"
	"github.com/Epistemic-Technology/pdfed/internal/geom"
	"github.com/Epistemic-Technology/pdfed/internal/pdfdoc"
)

const (
	// SelectionPadding is the gap between an annotation and its selection box.
	SelectionPadding = 6
	handleRadius     = 5
	lineHeight       = 1.2
	italicShear      = 0.2
)

var (
	selectionColor = color.NRGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff}
	noteTop        = annotation.Color{R: 0xff, G: 0xe8, B: 0x68}
	noteBottom     = annotation.Color{R: 0xf2, G: 0xc9, B: 0x4c}
	noteLines      = color.NRGBA{R: 60, G: 60, B: 67, A: 102}
)

// MeasureText returns the size in page pixels of text drawn at fontSize.
func MeasureText(text string, fontSize float64) (width, height float64) {
	face := basicfont.Face7x13
	lines := strings.Split(text, "\n")
	scale := fontSize / float64(face.Height)
	for _, line := range lines {
		w := float64(font.MeasureString(face, line).Ceil()) * scale
		width = max(width, w)
	}
	return width, float64(len(lines)) * fontSize * lineHeight
}

type cachedImage struct {
	sum uint64
	img image.Image
}

// Painter rasterizes annotations onto surfaces. Coordinates are page pixels
// and are multiplied by the surface's device pixel ratio.
type Painter struct {
	z      *vector.Rasterizer
	images map[annotation.ID]cachedImage
}

func NewPainter() *Painter {
	return &Painter{
		z:      vector.NewRasterizer(0, 0),
		images: make(map[annotation.ID]cachedImage),
	}
}

type pt struct{ x, y float64 }

// fillPolygon fills a closed polygon given in device pixels, clipped to clip.
func (p *Painter) fillPolygon(dst *image.RGBA, pts []pt, c color.Color, clip image.Rectangle) {
	if len(pts) < 3 {
		return
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, q := range pts {
		minX, minY = math.Min(minX, q.x), math.Min(minY, q.y)
		maxX, maxY = math.Max(maxX, q.x), math.Max(maxY, q.y)
	}
	b := image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX)), int(math.Ceil(maxY)))
	b = b.Intersect(clip).Intersect(dst.Bounds())
	if b.Empty() {
		return
	}
	ox, oy := float64(b.Min.X), float64(b.Min.Y)
	p.z.Reset(b.Dx(), b.Dy())
	p.z.MoveTo(float32(pts[0].x-ox), float32(pts[0].y-oy))
	for _, q := range pts[1:] {
		p.z.LineTo(float32(q.x-ox), float32(q.y-oy))
	}
	p.z.ClosePath()
	p.z.Draw(dst, b, image.NewUniform(c), image.Point{})
}

func (p *Painter) fillRect(dst *image.RGBA, r geom.Rect, c color.Color, clip image.Rectangle) {
	r = r.Normalize()
	p.fillPolygon(dst, []pt{
		{r.X, r.Y}, {r.Right(), r.Y}, {r.Right(), r.Bottom()}, {r.X, r.Bottom()},
	}, c, clip)
}

func (p *Painter) strokeRect(dst *image.RGBA, r geom.Rect, width float64, c color.Color) {
	r = r.Normalize()
	h := width / 2
	clip := dst.Bounds()
	p.fillRect(dst, geom.Rect{X: r.X - h, Y: r.Y - h, Width: r.Width + width, Height: width}, c, clip)
	p.fillRect(dst, geom.Rect{X: r.X - h, Y: r.Bottom() - h, Width: r.Width + width, Height: width}, c, clip)
	p.fillRect(dst, geom.Rect{X: r.X - h, Y: r.Y + h, Width: width, Height: r.Height - width}, c, clip)
	p.fillRect(dst, geom.Rect{X: r.Right() - h, Y: r.Y + h, Width: width, Height: r.Height - width}, c, clip)
}

func (p *Painter) segment(dst *image.RGBA, a, b pt, width float64, c color.Color, clip image.Rectangle) {
	dx, dy := b.x-a.x, b.y-a.y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return
	}
	nx, ny := -dy/l*width/2, dx/l*width/2
	p.fillPolygon(dst, []pt{
		{a.x + nx, a.y + ny}, {b.x + nx, b.y + ny}, {b.x - nx, b.y - ny}, {a.x - nx, a.y - ny},
	}, c, clip)
}

func (p *Painter) disc(dst *image.RGBA, center pt, radius float64, c color.Color) {
	const sides = 16
	pts := make([]pt, sides)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / sides
		pts[i] = pt{center.x + radius*math.Cos(a), center.y + radius*math.Sin(a)}
	}
	p.fillPolygon(dst, pts, c, dst.Bounds())
}

// polyline strokes a path with round joins and caps.
func (p *Painter) polyline(dst *image.RGBA, pts []pt, width float64, c color.Color) {
	for i := 1; i < len(pts); i++ {
		p.segment(dst, pts[i-1], pts[i], width, c, dst.Bounds())
	}
	if width > 2 {
		for _, q := range pts {
			p.disc(dst, q, width/2, c)
		}
	}
}

func device(r geom.Rect, dpr float64) geom.Rect { return r.Scale(dpr) }

func surfaceDPR(s *canvas.Surface) float64 {
	if s.DPR <= 0 {
		return 1
	}
	return s.DPR
}

func devicePt(q geom.PagePoint, dpr float64) pt { return pt{q.X * dpr, q.Y * dpr} }

// Paint draws one annotation onto its page surface.
func (p *Painter) Paint(s *canvas.Surface, a *annotation.Annotation) {
	dst, dpr := s.Image, surfaceDPR(s)
	b := device(a.Bounds.Normalize(), dpr)
	switch d := a.Data.(type) {
	case *annotation.HighlightData:
		p.fillRect(dst, b, d.Color.NRGBA(d.Opacity), dst.Bounds())
	case *annotation.UnderlineData:
		p.bandLine(dst, b, 2*dpr, d.Color.NRGBA(1))
	case *annotation.StrikethroughData:
		p.bandLine(dst, b, 2*dpr, d.Color.NRGBA(1))
	case *annotation.DrawData:
		if len(d.Points) < 2 {
			return
		}
		pts := make([]pt, len(d.Points))
		for i, q := range d.Points {
			pts[i] = devicePt(q, dpr)
		}
		p.polyline(dst, pts, d.StrokeWidth*dpr, d.Color.NRGBA(1))
	case *annotation.ShapeData:
		p.strokeRect(dst, b, d.StrokeWidth*dpr, d.Color.NRGBA(1))
	case *annotation.RedactData:
		p.redact(dst, b, d, dpr)
	case *annotation.TextData:
		p.text(dst, b, d, dpr)
	case *annotation.ImageData:
		p.image(dst, b, a.ID, d)
	case *annotation.CommentData:
		p.note(dst, b, dpr)
	}
}

// bandLine draws a horizontal rule through the middle of a thin band.
func (p *Painter) bandLine(dst *image.RGBA, b geom.Rect, width float64, c color.Color) {
	_, y := b.Center()
	p.segment(dst, pt{b.X, y}, pt{b.Right(), y}, width, c, dst.Bounds())
}

func (p *Painter) redact(dst *image.RGBA, b geom.Rect, d *annotation.RedactData, dpr float64) {
	clip := image.Rect(int(b.X), int(b.Y), int(math.Ceil(b.Right())), int(math.Ceil(b.Bottom())))
	p.fillRect(dst, b, d.Fill.NRGBA(1), dst.Bounds())
	if d.Pattern == annotation.RedactSolid || d.Pattern == "" {
		return
	}
	stripe := color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0x40}
	step := 10 * dpr
	for off := -b.Height; off < b.Width; off += step {
		p.segment(dst, pt{b.X + off, b.Bottom()}, pt{b.X + off + b.Height, b.Y}, 2*dpr, stripe, clip)
		if d.Pattern == annotation.RedactCrosshatch {
			p.segment(dst, pt{b.X + off, b.Y}, pt{b.X + off + b.Height, b.Bottom()}, 2*dpr, stripe, clip)
		}
	}
}

// drawString renders one line of text with its top-left at (x, y) in device
// pixels, scaled to size device pixels.
func (p *Painter) drawString(dst *image.RGBA, x, y, size float64, s string, c color.Color, bold, italic bool) float64 {
	face := basicfont.Face7x13
	w := font.MeasureString(face, s).Ceil() + 1
	if w <= 1 || size <= 0 {
		return 0
	}
	tmp := image.NewRGBA(image.Rect(0, 0, w, face.Height))
	d := font.Drawer{Dst: tmp, Src: image.NewUniform(c), Face: face, Dot: fixed.P(0, face.Ascent)}
	d.DrawString(s)
	if bold {
		d.Dot = fixed.P(1, face.Ascent)
		d.DrawString(s)
	}
	k := size / float64(face.Height)
	shear := 0.0
	if italic {
		shear = italicShear
	}
	// src (sx, sy) -> dst (k*sx - shear*k*sy + x + shear*size, k*sy + y)
	m := f64.Aff3{k, -shear * k, x + shear*size, 0, k, y}
	xdraw.ApproxBiLinear.Transform(dst, m, tmp, tmp.Bounds(), xdraw.Over, nil)
	return float64(w) * k
}

func (p *Painter) text(dst *image.RGBA, b geom.Rect, d *annotation.TextData, dpr float64) {
	if d.Background != nil {
		p.fillRect(dst, b, d.Background.NRGBA(1), dst.Bounds())
	}
	size := d.FontSize * dpr
	c := d.Color.NRGBA(1)
	for i, line := range strings.Split(d.Text, "\n") {
		top := b.Y + float64(i)*size*lineHeight
		w := p.drawString(dst, b.X, top, size, line, c, d.Bold, d.Italic)
		if d.Underline {
			p.segment(dst, pt{b.X, top + size}, pt{b.X + w, top + size}, dpr, c, dst.Bounds())
		}
		if d.Strike {
			p.segment(dst, pt{b.X, top + size/2}, pt{b.X + w, top + size/2}, dpr, c, dst.Bounds())
		}
	}
}

func (p *Painter) image(dst *image.RGBA, b geom.Rect, id annotation.ID, d *annotation.ImageData) {
	h := fnv.New64a()
	h.Write(d.Bytes)
	sum := h.Sum64()
	cached, ok := p.images[id]
	if !ok || cached.sum != sum {
		img, _, err := image.Decode(bytes.NewReader(d.Bytes))
		if err != nil {
			return
		}
		cached = cachedImage{sum: sum, img: img}
		p.images[id] = cached
	}
	dr := image.Rect(int(b.X), int(b.Y), int(math.Round(b.Right())), int(math.Round(b.Bottom())))
	xdraw.ApproxBiLinear.Scale(dst, dr, cached.img, cached.img.Bounds(), draw.Over, nil)
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
}

func (p *Painter) note(dst *image.RGBA, b geom.Rect, dpr float64) {
	rows := max(int(b.Height), 1)
	for i := range rows {
		t := float64(i) / float64(rows)
		c := annotation.Color{
			R: lerp(noteTop.R, noteBottom.R, t),
			G: lerp(noteTop.G, noteBottom.G, t),
			B: lerp(noteTop.B, noteBottom.B, t),
		}
		p.fillRect(dst, geom.Rect{X: b.X, Y: b.Y + float64(i), Width: b.Width, Height: 1}, c.NRGBA(1), dst.Bounds())
	}
	u := b.Width / 32
	for i, w := range []float64{16, 16, 10} {
		line := geom.Rect{X: b.X + 8*u, Y: b.Y + (10+5*float64(i))*u, Width: w * u, Height: 2 * u}
		p.fillRect(dst, line, noteLines, dst.Bounds())
	}
}

// Selection draws the selection box and its four corner handles around
// bounds given in page pixels.
func (p *Painter) Selection(s *canvas.Surface, bounds geom.Rect) {
	dpr := surfaceDPR(s)
	box := device(bounds.Normalize().Inflate(SelectionPadding), dpr)
	p.fillRect(s.Image, box, color.NRGBA{R: selectionColor.R, G: selectionColor.G, B: selectionColor.B, A: 0x14}, s.Image.Bounds())
	p.strokeRect(s.Image, box, dpr, selectionColor)
	for _, c := range []pt{{box.X, box.Y}, {box.Right(), box.Y}, {box.X, box.Bottom()}, {box.Right(), box.Bottom()}} {
		p.disc(s.Image, c, handleRadius*dpr, selectionColor)
		p.disc(s.Image, c, (handleRadius-1.5)*dpr, color.White)
	}
}

// Watermark previews a text watermark, centered on the surface, or tiled.
func (p *Painter) Watermark(s *canvas.Surface, w pdfdoc.Watermark, scale float64) {
	if w.Text == "" {
		return
	}
	size := w.FontSize * scale * surfaceDPR(s)
	tw, th := MeasureText(w.Text, size)
	c := w.Color.NRGBA(w.Opacity)
	bounds := s.Image.Bounds()
	italic := w.Position != pdfdoc.WatermarkCenter
	if w.Position == pdfdoc.WatermarkTile {
		for row := range 3 {
			for col := range 3 {
				x := float64(bounds.Dx())*(float64(col)*2+1)/6 - tw/2
				y := float64(bounds.Dy())*(float64(row)*2+1)/6 - th/2
				p.drawString(s.Image, x, y, size, w.Text, c, false, italic)
			}
		}
		return
	}
	x := (float64(bounds.Dx()) - tw) / 2
	y := (float64(bounds.Dy()) - th) / 2
	p.drawString(s.Image, x, y, size, w.Text, c, false, italic)
}

// HeaderFooter previews header and footer bands on a page surface.
func (p *Painter) HeaderFooter(s *canvas.Surface, h pdfdoc.HeaderFooter, scale float64, total int) {
	dpr := surfaceDPR(s)
	size := h.FontSize * scale * dpr
	margin := h.Margin * scale * dpr
	width := float64(s.Image.Bounds().Dx())
	height := float64(s.Image.Bounds().Dy())
	c := h.Color.NRGBA(1)
	band := func(b pdfdoc.Band, y float64) {
		if !b.Enabled {
			return
		}
		for i, slot := range []string{b.Left, b.Center, b.Right} {
			text := pdfdoc.Expand(slot, s.PageNum, total)
			if text == "" {
				continue
			}
			tw, _ := MeasureText(text, size)
			x := margin
			switch i {
			case 1:
				x = (width - tw) / 2
			case 2:
				x = width - margin - tw
			}
			p.drawString(s.Image, x, y, size, text, c, false, false)
		}
	}
	band(h.Header, margin)
	band(h.Footer, height-margin-size)
}
