package pdfdoc

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jung-kurt/gofpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/Epistemic-Technology/pdfed/internal/annotation"
	"github.com/Epistemic-Technology/pdfed/internal/geom"
	"github.com/Epistemic-Technology/pdfed/internal/logger"
)

// samplePDF builds a document with one page per size, each page labeled
// with its number.
func samplePDF(t *testing.T, sizes ...geom.Size) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "pt", "Letter", "")
	pdf.SetFont("Helvetica", "", 12)
	for i, s := range sizes {
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: s.Width, Ht: s.Height})
		pdf.Text(40, 40, "page "+string(rune('1'+i)))
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("building sample PDF: %v", err)
	}
	return buf.Bytes()
}

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(1, 1, color.NRGBA{R: 0xff, A: 0xff})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

var (
	letter = geom.Size{Width: 612, Height: 792}
	a5     = geom.Size{Width: 420, Height: 595}
)

func openSample(t *testing.T, sizes ...geom.Size) *Document {
	t.Helper()
	doc, err := Open(samplePDF(t, sizes...), logger.NewNoOpLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return doc
}

func TestOpenReadsPageSizes(t *testing.T) {
	doc := openSample(t, letter, a5)
	if diff := cmp.Diff([]geom.Size{letter, a5}, doc.PageSizes()); diff != "" {
		t.Errorf("PageSizes() mismatch (-want +got):\n%s", diff)
	}
	if _, ok := doc.PageSize(3); ok {
		t.Error("PageSize(3) should miss")
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	if _, err := Open([]byte("not a pdf"), logger.NewNoOpLogger()); err == nil {
		t.Error("Open() should fail on garbage")
	}
	if _, err := Open(nil, logger.NewNoOpLogger()); !errors.Is(err, ErrNoDocument) {
		t.Errorf("Open(nil) error = %v, want ErrNoDocument", err)
	}
}

func TestDrawOutOfRange(t *testing.T) {
	doc := openSample(t, letter)
	err := doc.DrawRect(2, geom.Rect{Width: 10, Height: 10}, RectStyle{})
	if !errors.Is(err, ErrPageOutOfRange) {
		t.Errorf("DrawRect() error = %v, want ErrPageOutOfRange", err)
	}
	if err := doc.DrawPath(1, []geom.PDFPoint{{X: 1, Y: 1}}, LineStyle{}); err == nil {
		t.Error("DrawPath() with one point should fail")
	}
	if err := doc.DrawImage(1, []byte("nope"), geom.Rect{Width: 5, Height: 5}); err == nil {
		t.Error("DrawImage() with undecodable bytes should fail")
	}
}

func TestSerializeWithoutChangesReturnsOriginal(t *testing.T) {
	doc := openSample(t, letter)
	out, err := doc.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if !bytes.Equal(out, doc.Original()) {
		t.Error("Serialize() without changes should return the original bytes")
	}
}

func TestSerializeStampsDrawing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping PDF stamping in short mode")
	}
	doc := openSample(t, letter, a5)
	yellow := annotation.Yellow
	black := annotation.Black

	calls := []error{
		doc.DrawRect(1, geom.Rect{X: 50, Y: 700, Width: 100, Height: 40}, RectStyle{Fill: &yellow, Opacity: 0.5}),
		doc.DrawRect(2, geom.Rect{X: 10, Y: 10, Width: 30, Height: 30}, RectStyle{Border: &black, BorderWidth: 1}),
		doc.DrawLine(1, geom.PDFPoint{X: 10, Y: 10}, geom.PDFPoint{X: 200, Y: 10}, LineStyle{Color: black, Thickness: 1.3}),
		doc.DrawPath(2, []geom.PDFPoint{{X: 5, Y: 5}, {X: 50, Y: 60}, {X: 90, Y: 20}}, LineStyle{Color: black, Thickness: 2}),
		doc.DrawText(1, "Reviewed", geom.PDFPoint{X: 72, Y: 720}, TextStyle{Size: 12, Color: black, Bold: true}),
		doc.DrawImage(1, samplePNG(t), geom.Rect{X: 300, Y: 300, Width: 40, Height: 40}),
		doc.DrawNote(2, "check this", geom.Rect{X: 100, Y: 100, Width: 21, Height: 21}),
	}
	for i, err := range calls {
		if err != nil {
			t.Fatalf("call %d error = %v", i, err)
		}
	}
	if err := doc.ApplyWatermark(DefaultWatermark()); err != nil {
		t.Fatal(err)
	}
	if err := doc.ApplyHeaderFooter(DefaultHeaderFooter()); err != nil {
		t.Fatal(err)
	}

	out, err := doc.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if err := api.Validate(bytes.NewReader(out), newConf()); err != nil {
		t.Fatalf("output does not validate: %v", err)
	}
	n, err := api.PageCount(bytes.NewReader(out), newConf())
	if err != nil || n != 2 {
		t.Errorf("PageCount() = %d, %v, want 2", n, err)
	}
}

func TestSerializeIsRepeatable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping PDF stamping in short mode")
	}
	doc := openSample(t, letter)
	yellow := annotation.Yellow

	save := func() []byte {
		t.Helper()
		if err := doc.Reset(); err != nil {
			t.Fatal(err)
		}
		if err := doc.DrawRect(1, geom.Rect{X: 50, Y: 700, Width: 100, Height: 40}, RectStyle{Fill: &yellow, Opacity: 0.5}); err != nil {
			t.Fatal(err)
		}
		if err := doc.ApplyWatermark(DefaultWatermark()); err != nil {
			t.Fatal(err)
		}
		out, err := doc.Serialize()
		if err != nil {
			t.Fatalf("Serialize() error = %v", err)
		}
		return out
	}

	first := save()
	// Cross a second boundary so clock-derived values would change.
	time.Sleep(1100 * time.Millisecond)
	second := save()

	if !bytes.Equal(first, second) {
		i := 0
		for i < len(first) && i < len(second) && first[i] == second[i] {
			i++
		}
		t.Fatalf("two saves differ at byte %d (lengths %d and %d)", i, len(first), len(second))
	}
	if err := api.Validate(bytes.NewReader(first), newConf()); err != nil {
		t.Fatalf("output does not validate: %v", err)
	}
}

func TestResetDiscardsMutations(t *testing.T) {
	doc := openSample(t, letter)
	_ = doc.DrawRect(1, geom.Rect{Width: 10, Height: 10}, RectStyle{})
	_ = doc.ApplyWatermark(DefaultWatermark())

	if err := doc.Reset(); err != nil {
		t.Fatal(err)
	}
	if doc.PendingOps() != 0 {
		t.Errorf("PendingOps() = %d after Reset", doc.PendingOps())
	}
	out, err := doc.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, doc.Original()) {
		t.Error("Serialize() after Reset should equal the original")
	}
}

func TestApplyPageMutations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping page restructuring in short mode")
	}
	doc := openSample(t, letter, a5, letter)

	err := doc.ApplyPageMutations([]PageMutation{
		{OriginalIndex: 2},
		{OriginalIndex: 1, Rotation: 90},
	})
	if err != nil {
		t.Fatalf("ApplyPageMutations() error = %v", err)
	}
	if doc.PageCount() != 2 {
		t.Fatalf("PageCount() = %d, want 2", doc.PageCount())
	}
	if got, _ := doc.PageSize(1); got != a5 {
		t.Errorf("page 1 size = %+v, want A5 %+v", got, a5)
	}
}

func TestApplyPageMutationsValidates(t *testing.T) {
	doc := openSample(t, letter)
	if err := doc.ApplyPageMutations([]PageMutation{{OriginalIndex: 1, Rotation: 45}}); !errors.Is(err, ErrInvalidRotation) {
		t.Errorf("error = %v, want ErrInvalidRotation", err)
	}
	if err := doc.ApplyPageMutations([]PageMutation{{OriginalIndex: 4}}); !errors.Is(err, ErrPageOutOfRange) {
		t.Errorf("error = %v, want ErrPageOutOfRange", err)
	}
	if err := doc.ApplyPageMutations(nil); err == nil {
		t.Error("removing every page should fail")
	}
}

func TestNormalizeRotation(t *testing.T) {
	tests := map[int]int{0: 0, 90: 90, -90: 270, 450: 90, 360: 0}
	for in, want := range tests {
		got, err := NormalizeRotation(in)
		if err != nil || got != want {
			t.Errorf("NormalizeRotation(%d) = %d, %v, want %d", in, got, err, want)
		}
	}
}

func TestExtractPage(t *testing.T) {
	doc := openSample(t, letter, a5)
	page, err := doc.ExtractPage(2)
	if err != nil {
		t.Fatalf("ExtractPage() error = %v", err)
	}
	extracted, err := Open(page, logger.NewNoOpLogger())
	if err != nil {
		t.Fatalf("extracted page does not open: %v", err)
	}
	if diff := cmp.Diff([]geom.Size{a5}, extracted.PageSizes()); diff != "" {
		t.Errorf("extracted sizes mismatch (-want +got):\n%s", diff)
	}
}

func TestEncrypt(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping encryption in short mode")
	}
	doc := openSample(t, letter)
	out, err := Encrypt(doc.Original(), "user", "owner")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if bytes.Equal(out, doc.Original()) {
		t.Error("encrypted output should differ")
	}
	if _, err := Encrypt(doc.Original(), "", ""); err == nil {
		t.Error("Encrypt() without passwords should fail")
	}
}

func TestPageImage(t *testing.T) {
	pdf := gofpdf.New("P", "pt", "Letter", "")
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("scan", opts, bytes.NewReader(samplePNG(t)))
	pdf.AddPage()
	pdf.ImageOptions("scan", 0, 0, 612, 792, false, opts, 0, "")
	pdf.AddPage()
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatal(err)
	}
	doc, err := Open(buf.Bytes(), logger.NewNoOpLogger())
	if err != nil {
		t.Fatal(err)
	}

	data, err := doc.PageImage(1)
	if err != nil {
		t.Fatalf("PageImage(1) error = %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("PageImage(1) is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 4 {
		t.Errorf("image bounds = %v, want 4x4", b)
	}

	if _, err := doc.PageImage(2); !errors.Is(err, ErrNoPageImage) {
		t.Errorf("PageImage(2) error = %v", err)
	}
	if _, err := doc.PageImage(3); !errors.Is(err, ErrPageOutOfRange) {
		t.Errorf("PageImage(3) error = %v", err)
	}
}
