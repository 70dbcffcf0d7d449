package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Epistemic-Technology/pdfed/internal/annotation"
	"github.com/Epistemic-Technology/pdfed/internal/canvas"
	"github.com/Epistemic-Technology/pdfed/internal/geom"
	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/pdfdoc"
)

type staticSurfaces []*canvas.Surface

func (s staticSurfaces) Surfaces() []*canvas.Surface { return s }

func newSurface(pageNum int, w, h int) *canvas.Surface {
	return &canvas.Surface{
		PageNum: pageNum,
		Rect:    geom.Rect{Width: float64(w), Height: float64(h)},
		Image:   image.NewRGBA(image.Rect(0, 0, w, h)),
		DPR:     1,
	}
}

// recordingDoc logs every call made by Save.
type recordingDoc struct {
	calls   []string
	rects   []geom.Rect
	failFor int
	pages   map[int]geom.Size
}

func newRecordingDoc() *recordingDoc {
	return &recordingDoc{pages: map[int]geom.Size{1: {Width: 612, Height: 792}, 2: {Width: 612, Height: 792}}}
}

func (d *recordingDoc) record(format string, args ...any) error {
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
	if d.failFor > 0 && len(d.calls) == d.failFor {
		return errors.New("boom")
	}
	return nil
}

func (d *recordingDoc) Reset() error { d.calls = nil; d.rects = nil; return nil }
func (d *recordingDoc) PageSize(n int) (geom.Size, bool) {
	s, ok := d.pages[n]
	return s, ok
}
func (d *recordingDoc) DrawText(n int, text string, at geom.PDFPoint, st pdfdoc.TextStyle) error {
	return d.record("text p%d %q at (%.1f,%.1f) size %.1f", n, text, at.X, at.Y, st.Size)
}
func (d *recordingDoc) DrawRect(n int, r geom.Rect, st pdfdoc.RectStyle) error {
	d.rects = append(d.rects, r)
	return d.record("rect p%d fill=%v border=%v", n, st.Fill != nil, st.Border != nil)
}
func (d *recordingDoc) DrawLine(n int, from, to geom.PDFPoint, st pdfdoc.LineStyle) error {
	return d.record("line p%d (%.1f,%.1f)-(%.1f,%.1f)", n, from.X, from.Y, to.X, to.Y)
}
func (d *recordingDoc) DrawPath(n int, pts []geom.PDFPoint, st pdfdoc.LineStyle) error {
	return d.record("path p%d %d points", n, len(pts))
}
func (d *recordingDoc) DrawImage(n int, data []byte, r geom.Rect) error {
	return d.record("image p%d", n)
}
func (d *recordingDoc) DrawNote(n int, text string, r geom.Rect) error {
	return d.record("note p%d %q", n, text)
}
func (d *recordingDoc) ApplyWatermark(w pdfdoc.Watermark) error {
	return d.record("watermark %q", w.Text)
}
func (d *recordingDoc) ApplyHeaderFooter(h pdfdoc.HeaderFooter) error {
	return d.record("headerfooter")
}
func (d *recordingDoc) FillForm(values map[string]string) error {
	return d.record("form %d", len(values))
}
func (d *recordingDoc) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	for _, c := range d.calls {
		buf.WriteString(c)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func highlight(page int, r geom.Rect) *annotation.Annotation {
	return annotation.New(page, r, &annotation.HighlightData{Color: annotation.Yellow, Opacity: 0.5})
}

func TestHighlightSaveScenario(t *testing.T) {
	e := NewEngine(staticSurfaces{newSurface(1, 918, 1188)}, logger.NewNoOpLogger())
	e.SetScale(1.5)
	a := highlight(1, geom.RectFromCorners(geom.PagePoint{X: 50, Y: 50}, geom.PagePoint{X: 150, Y: 90}))
	if err := e.Add(a); err != nil {
		t.Fatal(err)
	}
	got := e.Annotations()
	if len(got) != 1 || got[0].Type() != annotation.TypeHighlight {
		t.Fatalf("Annotations() = %v", got)
	}
	if diff := cmp.Diff(geom.Rect{X: 50, Y: 50, Width: 100, Height: 40}, got[0].Bounds); diff != "" {
		t.Errorf("bounds mismatch (-want +got):\n%s", diff)
	}

	doc := newRecordingDoc()
	_, report, err := e.Save(doc, SaveOptions{})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if report.Applied != 1 || len(doc.rects) != 1 || len(doc.calls) != 1 {
		t.Fatalf("calls = %v, report = %+v", doc.calls, report)
	}
	// 50/1.5, 792 - 90/1.5, 100/1.5, 40/1.5
	want := geom.Rect{X: 50 / 1.5, Y: 792 - 60, Width: 100 / 1.5, Height: 40 / 1.5}
	r := doc.rects[0]
	for _, pair := range [][2]float64{{r.X, want.X}, {r.Y, want.Y}, {r.Width, want.Width}, {r.Height, want.Height}} {
		if !geom.ApproxEqual(pair[0], pair[1], 1e-9) {
			t.Errorf("DrawRect(%+v), want %+v", r, want)
			break
		}
	}
}

func TestSaveIsIdempotent(t *testing.T) {
	e := NewEngine(nil, logger.NewNoOpLogger())
	_ = e.Add(highlight(1, geom.Rect{X: 1, Y: 1, Width: 10, Height: 10}))
	_ = e.Add(annotation.New(2, geom.Rect{}, &annotation.DrawData{
		Points: []geom.PagePoint{{X: 0, Y: 0}, {X: 5, Y: 5}, {X: 9, Y: 2}}, StrokeWidth: 2,
	}))
	e.SetWatermark(&pdfdoc.Watermark{Text: "DRAFT"})

	doc := newRecordingDoc()
	first, _, err := e.Save(doc, SaveOptions{Scale: 1})
	if err != nil {
		t.Fatal(err)
	}
	second, _, err := e.Save(doc, SaveOptions{Scale: 1})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("saves differ:\n%s\n---\n%s", first, second)
	}
	want := []string{"rect p1 fill=true border=false", "path p2 3 points", `watermark "DRAFT"`}
	if diff := cmp.Diff(want, doc.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveSubtractsFallbackOrigin(t *testing.T) {
	e := NewEngine(nil, logger.NewNoOpLogger())
	e.SetScale(1)
	// Drawn on a fallback surface where page 1 starts at x=250.
	_ = e.Add(highlight(1, geom.Rect{X: 300, Y: 50, Width: 100, Height: 40}))
	_ = e.Add(annotation.New(1, geom.Rect{}, &annotation.DrawData{
		Points: []geom.PagePoint{{X: 260, Y: 10}, {X: 280, Y: 30}}, StrokeWidth: 1,
	}))

	doc := newRecordingDoc()
	if _, _, err := e.Save(doc, SaveOptions{Scale: 1, Origin: geom.PagePoint{X: 250}}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]geom.Rect{{X: 50, Y: 792 - 90, Width: 100, Height: 40}}, doc.rects); diff != "" {
		t.Errorf("DrawRect mismatch (-want +got):\n%s", diff)
	}
	got := e.Annotations()
	if got[0].Bounds.X != 300 {
		t.Errorf("stored bounds changed to %+v", got[0].Bounds)
	}
	if pts := got[1].Data.(*annotation.DrawData).Points; pts[0].X != 260 {
		t.Errorf("stored stroke changed to %+v", pts)
	}
}

func TestUndoRemovesLastAndRepaints(t *testing.T) {
	e := NewEngine(staticSurfaces{newSurface(1, 200, 200)}, logger.NewNoOpLogger())
	_ = e.Add(highlight(1, geom.Rect{X: 50, Y: 50, Width: 100, Height: 40}))
	before := e.Repaints()

	if _, ok := e.Undo(); !ok {
		t.Fatal("Undo() found nothing")
	}
	if e.Len() != 0 {
		t.Errorf("Len() = %d after undo", e.Len())
	}
	if e.Repaints() != before+1 {
		t.Errorf("Repaints() = %d, want %d", e.Repaints(), before+1)
	}
	if _, ok := e.Undo(); ok {
		t.Error("Undo() on empty model should report false")
	}
	if _, ok := e.Redo(); !ok || e.Len() != 1 {
		t.Error("Redo() should restore the annotation")
	}
}

func TestZOrderHitTest(t *testing.T) {
	e := NewEngine(nil, logger.NewNoOpLogger())
	var ids []annotation.ID
	for i := range 3 {
		a := highlight(1, geom.Rect{X: float64(i * 10), Y: 0, Width: 50, Height: 50})
		ids = append(ids, a.ID)
		_ = e.Add(a)
	}
	p := geom.PagePoint{X: 25, Y: 25}
	if got, _ := e.HitTest(1, p, 0); got.ID != ids[2] {
		t.Errorf("HitTest() = %s, want C %s", got.ID, ids[2])
	}
	e.Remove(ids[2])
	if got, _ := e.HitTest(1, p, 0); got.ID != ids[1] {
		t.Errorf("HitTest() after removal = %s, want B %s", got.ID, ids[1])
	}
	if _, ok := e.HitTest(2, p, 0); ok {
		t.Error("HitTest() on another page should miss")
	}
}

func TestSaveSkipsFailingAnnotation(t *testing.T) {
	e := NewEngine(nil, logger.NewNoOpLogger())
	bad := highlight(1, geom.Rect{Width: 10, Height: 10})
	_ = e.Add(bad)
	_ = e.Add(highlight(1, geom.Rect{Width: 20, Height: 20}))
	_ = e.Add(annotation.New(9, geom.Rect{Width: 5, Height: 5}, &annotation.CommentData{Text: "orphan"}))

	doc := newRecordingDoc()
	doc.failFor = 1
	_, report, err := e.Save(doc, SaveOptions{Scale: 1})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if report.Applied != 1 || len(report.Failed) != 2 {
		t.Fatalf("report = %+v", report)
	}
	if report.Failed[0].ID != bad.ID {
		t.Errorf("first failure = %s, want %s", report.Failed[0].ID, bad.ID)
	}
}

func TestUnderlineReplaysMidline(t *testing.T) {
	e := NewEngine(nil, logger.NewNoOpLogger())
	_ = e.Add(annotation.New(1, geom.Rect{X: 10, Y: 100, Width: 80, Height: 2}, &annotation.UnderlineData{}))
	doc := newRecordingDoc()
	if _, _, err := e.Save(doc, SaveOptions{Scale: 1}); err != nil {
		t.Fatal(err)
	}
	want := []string{"line p1 (10.0,691.0)-(90.0,691.0)"}
	if diff := cmp.Diff(want, doc.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestRemapPagesDropsDeleted(t *testing.T) {
	e := NewEngine(nil, logger.NewNoOpLogger())
	a1 := highlight(1, geom.Rect{Width: 5, Height: 5})
	a2 := highlight(2, geom.Rect{Width: 5, Height: 5})
	a3 := highlight(3, geom.Rect{Width: 5, Height: 5})
	for _, a := range []*annotation.Annotation{a1, a2, a3} {
		_ = e.Add(a)
	}
	// delete page 2, then page 3 becomes page 2
	dropped := e.RemapPages(func(old int) (int, bool) {
		switch old {
		case 2:
			return 0, false
		case 3:
			return 2, true
		}
		return old, true
	})
	if diff := cmp.Diff([]annotation.ID{a2.ID}, dropped); diff != "" {
		t.Errorf("dropped mismatch (-want +got):\n%s", diff)
	}
	if got, _ := e.Find(a3.ID); got.PageNum != 2 {
		t.Errorf("a3 page = %d, want 2", got.PageNum)
	}
}

func TestUpdateKeepsIdentity(t *testing.T) {
	e := NewEngine(nil, logger.NewNoOpLogger())
	a := highlight(1, geom.Rect{Width: 5, Height: 5})
	_ = e.Add(a)
	if err := e.Update(a.ID, func(x *annotation.Annotation) { x.MoveTo(30, 40) }); err != nil {
		t.Fatal(err)
	}
	if got, _ := e.Find(a.ID); got.Bounds.X != 30 || got.Bounds.Y != 40 {
		t.Errorf("bounds = %+v", got.Bounds)
	}
	err := e.Update(a.ID, func(x *annotation.Annotation) { x.Data = &annotation.CommentData{} })
	if err == nil {
		t.Error("changing the type should fail")
	}
	if err := e.Update("missing", func(*annotation.Annotation) {}); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if err := e.Add(a); !errors.Is(err, annotation.ErrDuplicateID) {
		t.Errorf("duplicate Add() error = %v", err)
	}
}

func TestRepaintPaintsOnlyOwnPage(t *testing.T) {
	s1, s2 := newSurface(1, 100, 100), newSurface(2, 100, 100)
	e := NewEngine(staticSurfaces{s1, s2}, logger.NewNoOpLogger())
	_ = e.Add(annotation.New(1, geom.Rect{X: 10, Y: 10, Width: 30, Height: 30},
		&annotation.RedactData{Fill: annotation.Black, Pattern: annotation.RedactSolid}))

	if got := s1.Image.RGBAAt(20, 20); got.A != 0xff {
		t.Errorf("page 1 pixel = %v, want opaque", got)
	}
	if got := s2.Image.RGBAAt(20, 20); got.A != 0 {
		t.Errorf("page 2 pixel = %v, want transparent", got)
	}
	e.Clear()
	if got := s1.Image.RGBAAt(20, 20); got.A != 0 {
		t.Errorf("pixel after Clear() = %v, want transparent", got)
	}
}

func TestRescale(t *testing.T) {
	e := NewEngine(nil, logger.NewNoOpLogger())
	stroke := annotation.New(1, geom.Rect{}, &annotation.DrawData{
		Points:      []geom.PagePoint{{X: 10, Y: 10}, {X: 20, Y: 30}},
		StrokeWidth: 2,
	})
	text := annotation.New(1, geom.Rect{X: 4, Y: 8, Width: 40, Height: 16}, &annotation.TextData{Text: "a", FontSize: 16})
	for _, a := range []*annotation.Annotation{stroke, text} {
		if err := e.Add(a); err != nil {
			t.Fatal(err)
		}
	}

	e.Rescale(2)

	gotStroke, _ := e.Find(stroke.ID)
	d := gotStroke.Data.(*annotation.DrawData)
	if diff := cmp.Diff([]geom.PagePoint{{X: 20, Y: 20}, {X: 40, Y: 60}}, d.Points); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
	if d.StrokeWidth != 4 {
		t.Errorf("StrokeWidth = %v", d.StrokeWidth)
	}
	gotText, _ := e.Find(text.ID)
	if diff := cmp.Diff(geom.Rect{X: 8, Y: 16, Width: 80, Height: 32}, gotText.Bounds); diff != "" {
		t.Errorf("bounds mismatch (-want +got):\n%s", diff)
	}
	if fs := gotText.Data.(*annotation.TextData).FontSize; fs != 32 {
		t.Errorf("FontSize = %v", fs)
	}
}
