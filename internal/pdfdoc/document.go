// Package pdfdoc is the document rendering and mutation provider. It keeps
// the pristine bytes of the loaded PDF, records drawing calls made in PDF
// user space (points, origin bottom-left) and only touches the bytes when the
// document is serialized: form values are filled, the recorded drawing is
// built into per-page overlay pages and stamped on top, then whole-document
// watermark and header/footer stamps are applied.
package pdfdoc

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Epistemic-Technology/pdfed/internal/geom"
	"github.com/Epistemic-Technology/pdfed/internal/logger"
)

type opKind int

const (
	opText opKind = iota
	opRect
	opLine
	opPath
	opImage
	opNote
)

// drawOp is one recorded drawing call.
type drawOp struct {
	kind      opKind
	page      int
	text      string
	at        geom.PDFPoint
	rect      geom.Rect
	points    []geom.PDFPoint
	image     []byte
	textStyle TextStyle
	rectStyle RectStyle
	lineStyle LineStyle
}

// Document is a loaded PDF plus the mutations pending for the next save.
type Document struct {
	original     []byte
	pages        []geom.Size
	ops          []drawOp
	watermark    *Watermark
	headerFooter *HeaderFooter
	formValues   map[string]string
	// stamp dates every save of this document.
	stamp time.Time
	log   logger.Logger
}

func newConf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Open validates data and reads its page dimensions. A document that fails
// to load cannot be edited, so the error is returned as is.
func Open(data []byte, log logger.Logger) (*Document, error) {
	d := &Document{log: log, stamp: time.Now().UTC().Truncate(time.Second)}
	if err := d.load(data); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Document) load(data []byte) error {
	if len(data) == 0 {
		return ErrNoDocument
	}
	if err := api.Validate(bytes.NewReader(data), newConf()); err != nil {
		return fmt.Errorf("invalid PDF: %w", err)
	}
	dims, err := api.PageDims(bytes.NewReader(data), newConf())
	if err != nil {
		return fmt.Errorf("failed to read page dimensions: %w", err)
	}
	pages := make([]geom.Size, len(dims))
	for i, dim := range dims {
		pages[i] = geom.Size{Width: dim.Width, Height: dim.Height}
	}
	d.original = slices.Clone(data)
	d.pages = pages
	return nil
}

// Original returns the pristine bytes the document resets to.
func (d *Document) Original() []byte { return d.original }

func (d *Document) PageCount() int { return len(d.pages) }

// PageSize returns a page's size in points.
func (d *Document) PageSize(pageNum int) (geom.Size, bool) {
	if pageNum < 1 || pageNum > len(d.pages) {
		return geom.Size{}, false
	}
	return d.pages[pageNum-1], true
}

// PageSizes returns every page size in points, in page order.
func (d *Document) PageSizes() []geom.Size { return slices.Clone(d.pages) }

// PendingOps reports how many drawing calls the next save will apply.
func (d *Document) PendingOps() int { return len(d.ops) }

// Reset discards every recorded mutation, returning to the original bytes.
func (d *Document) Reset() error {
	if d.original == nil {
		return ErrNoDocument
	}
	d.ops = nil
	d.watermark = nil
	d.headerFooter = nil
	d.formValues = nil
	return nil
}

func (d *Document) record(o drawOp) error {
	if d.original == nil {
		return ErrNoDocument
	}
	if o.page < 1 || o.page > len(d.pages) {
		return fmt.Errorf("page %d of %d: %w", o.page, len(d.pages), ErrPageOutOfRange)
	}
	d.ops = append(d.ops, o)
	return nil
}

// DrawText draws text whose box has its top-left corner at `at`.
func (d *Document) DrawText(pageNum int, text string, at geom.PDFPoint, style TextStyle) error {
	if style.Size <= 0 {
		return fmt.Errorf("invalid font size %v", style.Size)
	}
	return d.record(drawOp{kind: opText, page: pageNum, text: text, at: at, textStyle: style})
}

// DrawRect draws a rectangle whose X and Y are its bottom-left corner.
func (d *Document) DrawRect(pageNum int, r geom.Rect, style RectStyle) error {
	return d.record(drawOp{kind: opRect, page: pageNum, rect: r.Normalize(), rectStyle: style})
}

func (d *Document) DrawLine(pageNum int, from, to geom.PDFPoint, style LineStyle) error {
	return d.record(drawOp{kind: opLine, page: pageNum, points: []geom.PDFPoint{from, to}, lineStyle: style})
}

// DrawPath strokes a polyline through points.
func (d *Document) DrawPath(pageNum int, points []geom.PDFPoint, style LineStyle) error {
	if len(points) < 2 {
		return fmt.Errorf("path needs at least 2 points, got %d", len(points))
	}
	return d.record(drawOp{kind: opPath, page: pageNum, points: slices.Clone(points), lineStyle: style})
}

// DrawImage places a PNG or JPEG into r (bottom-left origin).
func (d *Document) DrawImage(pageNum int, data []byte, r geom.Rect) error {
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("unsupported image: %w", err)
	}
	return d.record(drawOp{kind: opImage, page: pageNum, image: data, rect: r.Normalize()})
}

// DrawNote draws a sticky-note icon in r with its text beneath it.
func (d *Document) DrawNote(pageNum int, text string, r geom.Rect) error {
	return d.record(drawOp{kind: opNote, page: pageNum, text: text, rect: r.Normalize()})
}

// ApplyWatermark stamps w on the next save.
func (d *Document) ApplyWatermark(w Watermark) error {
	if w.Text == "" {
		return fmt.Errorf("watermark text is empty")
	}
	if w.FontSize <= 0 {
		w.FontSize = DefaultWatermark().FontSize
	}
	d.watermark = &w
	return nil
}

// ApplyHeaderFooter stamps h on the next save.
func (d *Document) ApplyHeaderFooter(h HeaderFooter) error {
	if h.FontSize <= 0 {
		h.FontSize = DefaultHeaderFooter().FontSize
	}
	d.headerFooter = &h
	return nil
}

// FillForm sets AcroForm text field values by field name or id.
func (d *Document) FillForm(values map[string]string) error {
	if d.original == nil {
		return ErrNoDocument
	}
	d.formValues = values
	return nil
}

// Serialize produces the output bytes. It never changes the original.
func (d *Document) Serialize() ([]byte, error) {
	if d.original == nil {
		return nil, ErrNoDocument
	}
	if len(d.ops) == 0 && d.watermark == nil && d.headerFooter == nil && len(d.formValues) == 0 {
		return slices.Clone(d.original), nil
	}

	dir, err := os.MkdirTemp("", "pdfed-save-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(dir)

	current := filepath.Join(dir, "document.pdf")
	if err := os.WriteFile(current, d.original, 0o600); err != nil {
		return nil, err
	}

	if len(d.formValues) > 0 {
		if err := fillForm(dir, current, d.formValues); err != nil {
			return nil, err
		}
	}
	if err := d.stampOverlays(dir, current); err != nil {
		return nil, err
	}
	if d.watermark != nil {
		if err := stampWatermark(current, *d.watermark); err != nil {
			return nil, err
		}
	}
	if d.headerFooter != nil {
		if err := stampHeaderFooter(current, *d.headerFooter); err != nil {
			return nil, err
		}
	}
	out, err := os.ReadFile(current)
	if err != nil {
		return nil, err
	}
	return pinVolatile(out, d.original, d.stamp), nil
}

// stampOverlays builds one overlay page per annotated page and stamps it
// on top of that page.
func (d *Document) stampOverlays(dir, current string) error {
	byPage := make(map[int][]drawOp)
	for _, o := range d.ops {
		byPage[o.page] = append(byPage[o.page], o)
	}
	pageNums := make([]int, 0, len(byPage))
	for p := range byPage {
		pageNums = append(pageNums, p)
	}
	slices.Sort(pageNums)

	for _, pageNum := range pageNums {
		size := d.pages[pageNum-1]
		overlay, err := buildOverlay(size, byPage[pageNum], d.stamp)
		if err != nil {
			return fmt.Errorf("building overlay for page %d: %w", pageNum, err)
		}
		overlayPath := filepath.Join(dir, fmt.Sprintf("overlay_%d.pdf", pageNum))
		if err := os.WriteFile(overlayPath, overlay, 0o600); err != nil {
			return err
		}
		if err := api.AddPDFWatermarksFile(
			current, "", []string{strconv.Itoa(pageNum)}, true,
			overlayPath, "pos:c, scale:1 rel, rotation:0", newConf(),
		); err != nil {
			return fmt.Errorf("stamping overlay on page %d: %w", pageNum, err)
		}
		d.log.Debug("stamped %d drawing call(s) on page %d", len(byPage[pageNum]), pageNum)
	}
	return nil
}

// ExtractPage returns a single page as a standalone PDF.
func (d *Document) ExtractPage(pageNum int) ([]byte, error) {
	if d.original == nil {
		return nil, ErrNoDocument
	}
	if pageNum < 1 || pageNum > len(d.pages) {
		return nil, fmt.Errorf("page %d of %d: %w", pageNum, len(d.pages), ErrPageOutOfRange)
	}
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(d.original), newConf())
	if err != nil {
		return nil, err
	}
	r, err := api.ExtractPage(ctx, pageNum)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
