package coords

import (
	"math/rand/v2"
	"testing"

	"github.com/Epistemic-Technology/pdfed/internal/canvas"
	"github.com/Epistemic-Technology/pdfed/internal/geom"
	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/viewport"
)

const eps = 1e-9

func newLayout(mode viewport.Mode, pages int) *viewport.Layout {
	sizes := make([]geom.Size, pages)
	for i := range sizes {
		sizes[i] = geom.Size{Width: 612, Height: 792}
	}
	return viewport.NewLayout(sizes, viewport.Options{
		Scale: 1.5, Gap: 16, ViewportWidth: 1280, ViewportHeight: 800, DPR: 1, Mode: mode,
	})
}

func newMapper(t *testing.T, layout *viewport.Layout) (*Mapper, *canvas.Registry) {
	t.Helper()
	reg := canvas.NewRegistry(layout, canvas.DefaultOptions(), logger.NewNoOpLogger())
	reg.Discover()
	return NewMapper(reg, layout), reg
}

func TestRoundTripOnRegisteredPages(t *testing.T) {
	layout := newLayout(viewport.ModePaginated, 3)
	layout.ScrollTo(0, 700)
	m, reg := newMapper(t, layout)

	rng := rand.New(rand.NewPCG(1, 2))
	for _, s := range reg.Surfaces() {
		for range 50 {
			p := geom.PagePoint{X: rng.Float64() * s.Rect.Width, Y: rng.Float64() * s.Rect.Height}
			screen, ok := m.ScreenFromPage(s.PageNum, p)
			if !ok {
				t.Fatalf("ScreenFromPage(%d) missed", s.PageNum)
			}
			loc, ok := m.PageFromScreen(screen)
			if !ok {
				t.Fatalf("PageFromScreen(%+v) missed", screen)
			}
			if loc.PageNum != s.PageNum ||
				!geom.ApproxEqual(loc.Point.X, p.X, eps) ||
				!geom.ApproxEqual(loc.Point.Y, p.Y, eps) {
				t.Errorf("round trip of page %d %+v = %+v", s.PageNum, p, loc)
			}
		}
	}
}

func TestPageFromScreenMissBetweenPages(t *testing.T) {
	m, reg := newMapper(t, newLayout(viewport.ModePaginated, 2))
	s1, _ := reg.Surface(1)

	gap := geom.ScreenPoint{X: s1.Rect.X + 10, Y: s1.Rect.Bottom() + 8}
	if loc, ok := m.PageFromScreen(gap); ok {
		t.Errorf("PageFromScreen(gap) = %+v, want miss", loc)
	}

	below := geom.ScreenPoint{X: s1.Rect.X + 10, Y: s1.Rect.Bottom() + 20}
	loc, ok := m.PageFromScreen(below)
	if !ok || loc.PageNum != 2 {
		t.Errorf("PageFromScreen(below) = %+v, %v, want page 2", loc, ok)
	}
}

func TestPageFromScreenFallback(t *testing.T) {
	layout := newLayout(viewport.ModeNative, 3)
	layout.ScrollTo(0, 500)
	m, _ := newMapper(t, layout)

	loc, ok := m.PageFromScreen(geom.ScreenPoint{X: 40, Y: 60})
	if !ok {
		t.Fatal("fallback lookup should always succeed")
	}
	want := geom.PageLocation{PageNum: 1, Point: geom.PagePoint{X: 40, Y: 560}}
	if loc != want {
		t.Errorf("PageFromScreen() = %+v, want %+v", loc, want)
	}
}

func TestPageFromScreenBeforeDiscovery(t *testing.T) {
	layout := newLayout(viewport.ModePaginated, 1)
	reg := canvas.NewRegistry(layout, canvas.DefaultOptions(), logger.NewNoOpLogger())
	m := NewMapper(reg, layout)

	loc, ok := m.PageFromScreen(geom.ScreenPoint{X: 5, Y: 7})
	want := geom.PageLocation{PageNum: 1, Point: geom.PagePoint{X: 5, Y: 7}}
	if !ok || loc != want {
		t.Errorf("PageFromScreen() = %+v, %v, want %+v", loc, ok, want)
	}
}

func TestPageFromScreenBeforeSurfacesRender(t *testing.T) {
	layout := newLayout(viewport.ModePaginated, 2)
	layout.SetRenderedPages(0)
	m, reg := newMapper(t, layout)
	if reg.Mode() != canvas.ModeMultiPage || len(reg.Surfaces()) != 0 {
		t.Fatalf("mode = %s with %d surface(s), want multi-page with none", reg.Mode(), len(reg.Surfaces()))
	}

	loc, ok := m.PageFromScreen(geom.ScreenPoint{X: 40, Y: 12})
	want := geom.PageLocation{PageNum: 1, Point: geom.PagePoint{X: 40, Y: 12}}
	if !ok || loc != want {
		t.Errorf("PageFromScreen() = %+v, %v, want %+v", loc, ok, want)
	}
}

func TestPageFromScreenOnIsUnbounded(t *testing.T) {
	m, reg := newMapper(t, newLayout(viewport.ModePaginated, 2))
	s2, _ := reg.Surface(2)

	p, ok := m.PageFromScreenOn(2, geom.ScreenPoint{X: s2.Rect.X, Y: s2.Rect.Y - 30})
	if !ok || p.Y != -30 {
		t.Errorf("PageFromScreenOn() = %+v, %v, want y=-30", p, ok)
	}
}

func TestDocumentFromScreen(t *testing.T) {
	layout := newLayout(viewport.ModePaginated, 3)
	layout.ScrollTo(0, 250)
	m, _ := newMapper(t, layout)

	d := m.DocumentFromScreen(geom.ScreenPoint{X: 10, Y: 10})
	if d != (geom.DocumentPoint{X: 10, Y: 260}) {
		t.Errorf("DocumentFromScreen() = %+v", d)
	}
	if s := m.ScreenFromDocument(d); s != (geom.ScreenPoint{X: 10, Y: 10}) {
		t.Errorf("ScreenFromDocument() = %+v", s)
	}
}

func TestToDocumentUnits(t *testing.T) {
	tests := []struct {
		v, scale, want float64
	}{
		{v: 150, scale: 1.5, want: 100},
		{v: 40, scale: 2, want: 20},
		{v: 40, scale: 0, want: 40},
		{v: 40, scale: -1, want: 40},
	}
	for _, tt := range tests {
		if got := ToDocumentUnits(tt.v, tt.scale); got != tt.want {
			t.Errorf("ToDocumentUnits(%v, %v) = %v, want %v", tt.v, tt.scale, got, tt.want)
		}
	}
}

func TestRectToPDFFlipsAxis(t *testing.T) {
	got := RectToPDF(geom.Rect{X: 75, Y: 75, Width: 150, Height: 60}, 1.5, 792)
	want := geom.Rect{X: 50, Y: 792 - 90, Width: 100, Height: 40}
	if got != want {
		t.Errorf("RectToPDF() = %+v, want %+v", got, want)
	}

	p := PageToPDF(geom.PagePoint{X: 15, Y: 30}, 1.5, 792)
	if p != (geom.PDFPoint{X: 10, Y: 772}) {
		t.Errorf("PageToPDF() = %+v", p)
	}
}
