package annotation

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Epistemic-Technology/pdfed/internal/geom"
)

func TestNewIDUnique(t *testing.T) {
	seen := make(map[ID]bool)
	for range 1000 {
		id := NewID()
		if !strings.HasPrefix(string(id), "ann_") {
			t.Fatalf("NewID() = %q, want ann_ prefix", id)
		}
		if seen[id] {
			t.Fatalf("NewID() returned duplicate %q", id)
		}
		seen[id] = true
	}
}

func TestNewDrawDerivesBounds(t *testing.T) {
	a := New(1, geom.Rect{X: 999, Y: 999}, &DrawData{
		Points: []geom.PagePoint{{X: 10, Y: 20}, {X: 30, Y: 5}, {X: 15, Y: 40}},
	})
	want := geom.Rect{X: 10, Y: 5, Width: 20, Height: 35}
	if a.Bounds != want {
		t.Errorf("Bounds = %+v, want %+v", a.Bounds, want)
	}
	if a.Type() != TypeDraw {
		t.Errorf("Type() = %q, want %q", a.Type(), TypeDraw)
	}
}

func TestTranslateMovesStrokePoints(t *testing.T) {
	a := New(1, geom.Rect{}, &DrawData{
		Points: []geom.PagePoint{{X: 0, Y: 0}, {X: 10, Y: 10}},
	})
	a.Translate(5, -2)

	wantPoints := []geom.PagePoint{{X: 5, Y: -2}, {X: 15, Y: 8}}
	if diff := cmp.Diff(wantPoints, a.Data.(*DrawData).Points); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
	if got := geom.BoundsOf(a.Data.(*DrawData).Points); got != a.Bounds {
		t.Errorf("bounds %+v drifted from points %+v", a.Bounds, got)
	}
}

func TestResizeScalesStrokePoints(t *testing.T) {
	a := New(1, geom.Rect{}, &DrawData{
		Points: []geom.PagePoint{{X: 0, Y: 0}, {X: 10, Y: 20}},
	})
	a.Resize(geom.Rect{X: 100, Y: 100, Width: 20, Height: 10})

	wantPoints := []geom.PagePoint{{X: 100, Y: 100}, {X: 120, Y: 110}}
	if diff := cmp.Diff(wantPoints, a.Data.(*DrawData).Points); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
}

func TestCloneIsDeep(t *testing.T) {
	bg := Yellow
	orig := New(2, geom.Rect{Width: 5, Height: 5}, &TextData{Text: "hi", Background: &bg})
	c := orig.Clone()
	c.Data.(*TextData).Text = "changed"
	c.Data.(*TextData).Background.R = 0

	if orig.Data.(*TextData).Text != "hi" {
		t.Error("clone shares text payload")
	}
	if orig.Data.(*TextData).Background.R != 0xff {
		t.Error("clone shares background color")
	}
	if c.ID != orig.ID {
		t.Error("clone should keep the id")
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{in: "#ffff00", want: Yellow},
		{in: "000000", want: Black},
		{in: "#888888", want: Color{R: 0x88, G: 0x88, B: 0x88}},
		{in: "#fff", wantErr: true},
		{in: "#zzzzzz", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseColor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseColor(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMarshalJSONCarriesType(t *testing.T) {
	a := New(3, geom.Rect{X: 1, Y: 2, Width: 3, Height: 4}, &HighlightData{Color: Yellow, Opacity: 0.5})
	b, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded["type"] != "highlight" {
		t.Errorf("type = %v, want highlight", decoded["type"])
	}
	data := decoded["data"].(map[string]any)
	if data["color"] != "#ffff00" {
		t.Errorf("data.color = %v, want #ffff00", data["color"])
	}
}
