package geom

import "testing"

func TestRectFromCorners(t *testing.T) {
	tests := []struct {
		name string
		a, b PagePoint
		want Rect
	}{
		{
			name: "drag down right",
			a:    PagePoint{X: 50, Y: 50},
			b:    PagePoint{X: 150, Y: 90},
			want: Rect{X: 50, Y: 50, Width: 100, Height: 40},
		},
		{
			name: "drag up left",
			a:    PagePoint{X: 150, Y: 90},
			b:    PagePoint{X: 50, Y: 50},
			want: Rect{X: 50, Y: 50, Width: 100, Height: 40},
		},
		{
			name: "degenerate",
			a:    PagePoint{X: 10, Y: 10},
			b:    PagePoint{X: 10, Y: 10},
			want: Rect{X: 10, Y: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RectFromCorners(tt.a, tt.b); got != tt.want {
				t.Errorf("RectFromCorners() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBoundsOf(t *testing.T) {
	points := []PagePoint{{X: 3, Y: 9}, {X: -1, Y: 4}, {X: 7, Y: 2}}
	want := Rect{X: -1, Y: 2, Width: 8, Height: 7}
	if got := BoundsOf(points); got != want {
		t.Errorf("BoundsOf() = %+v, want %+v", got, want)
	}
	if got := BoundsOf(nil); got != (Rect{}) {
		t.Errorf("BoundsOf(nil) = %+v, want zero rect", got)
	}
}

func TestRectContainsAndInflate(t *testing.T) {
	r := Rect{X: 10, Y: 10, Width: 20, Height: 10}

	if !r.Contains(10, 10) || !r.Contains(30, 20) {
		t.Error("edges should be contained")
	}
	if r.Contains(31, 15) {
		t.Error("point right of the rect should not be contained")
	}
	if !r.Inflate(2).Contains(31, 15) {
		t.Error("inflated rect should contain point within tolerance")
	}
}

func TestRectNormalize(t *testing.T) {
	r := Rect{X: 10, Y: 10, Width: -4, Height: -6}.Normalize()
	want := Rect{X: 6, Y: 4, Width: 4, Height: 6}
	if r != want {
		t.Errorf("Normalize() = %+v, want %+v", r, want)
	}
}
