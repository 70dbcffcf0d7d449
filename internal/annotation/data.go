package annotation

import (
	"fmt"
	"image/color"
	"slices"
	"strconv"
	"strings"

	"github.com/Epistemic-Technology/pdfed/internal/geom"
)

// Color is an opaque RGB color. It encodes to JSON as "#rrggbb".
type Color struct {
	R, G, B uint8
}

var (
	Black  = Color{}
	White  = Color{R: 0xff, G: 0xff, B: 0xff}
	Yellow = Color{R: 0xff, G: 0xff}
)

// ParseColor parses "#rrggbb" (the leading '#' is optional).
func ParseColor(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// Hex formats the color as "#rrggbb".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// NRGBA returns the color with the given opacity in [0,1].
func (c Color) NRGBA(opacity float64) color.NRGBA {
	opacity = min(max(opacity, 0), 1)
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(opacity*255 + 0.5)}
}

// Unit returns the components scaled to [0,1].
func (c Color) Unit() (r, g, b float64) {
	return float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

func (c *Color) UnmarshalText(b []byte) error {
	parsed, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// HighlightData is a translucent filled rectangle.
type HighlightData struct {
	Color   Color   `json:"color"`
	Opacity float64 `json:"opacity"`
}

func (*HighlightData) Type() Type    { return TypeHighlight }
func (d *HighlightData) clone() Data { c := *d; return &c }

// UnderlineData is a line along the bottom edge of the marked region.
type UnderlineData struct {
	Color Color `json:"color"`
}

func (*UnderlineData) Type() Type    { return TypeUnderline }
func (d *UnderlineData) clone() Data { c := *d; return &c }

// StrikethroughData is a line through the middle of the marked region.
type StrikethroughData struct {
	Color Color `json:"color"`
}

func (*StrikethroughData) Type() Type    { return TypeStrikethrough }
func (d *StrikethroughData) clone() Data { c := *d; return &c }

// DrawData is a freehand stroke. Points are page-relative and authoritative.
type DrawData struct {
	Points      []geom.PagePoint `json:"points"`
	Color       Color            `json:"color"`
	StrokeWidth float64          `json:"stroke_width"`
}

func (*DrawData) Type() Type { return TypeDraw }
func (d *DrawData) clone() Data {
	c := *d
	c.Points = slices.Clone(d.Points)
	return &c
}

// ShapeData is a stroked rectangle outline.
type ShapeData struct {
	Color       Color   `json:"color"`
	StrokeWidth float64 `json:"stroke_width"`
}

func (*ShapeData) Type() Type    { return TypeShapes }
func (d *ShapeData) clone() Data { c := *d; return &c }

// RedactPattern selects how a redaction box is filled on screen.
type RedactPattern string

const (
	RedactSolid      RedactPattern = "solid"
	RedactStriped    RedactPattern = "striped"
	RedactCrosshatch RedactPattern = "crosshatch"
)

// ParseRedactPattern maps unknown values to solid.
func ParseRedactPattern(s string) RedactPattern {
	switch RedactPattern(strings.ToLower(s)) {
	case RedactStriped:
		return RedactStriped
	case RedactCrosshatch:
		return RedactCrosshatch
	default:
		return RedactSolid
	}
}

// RedactData is an opaque box covering content.
type RedactData struct {
	Fill    Color         `json:"fill"`
	Pattern RedactPattern `json:"pattern"`
}

func (*RedactData) Type() Type    { return TypeRedact }
func (d *RedactData) clone() Data { c := *d; return &c }

// TextData is a run of text anchored at the top-left of the bounds.
type TextData struct {
	Text       string  `json:"text"`
	FontSize   float64 `json:"font_size"`
	Color      Color   `json:"color"`
	Background *Color  `json:"background,omitempty"`
	Bold       bool    `json:"bold,omitempty"`
	Italic     bool    `json:"italic,omitempty"`
	Underline  bool    `json:"underline,omitempty"`
	Strike     bool    `json:"strike,omitempty"`
}

func (*TextData) Type() Type { return TypeText }
func (d *TextData) clone() Data {
	c := *d
	if d.Background != nil {
		bg := *d.Background
		c.Background = &bg
	}
	return &c
}

// ImageKind records where an embedded image came from.
type ImageKind string

const (
	ImageKindImage     ImageKind = "image"
	ImageKindSignature ImageKind = "signature"
	ImageKindStamp     ImageKind = "stamp"
)

// ImageData is an embedded PNG or JPEG.
type ImageData struct {
	Bytes []byte    `json:"bytes"`
	Kind  ImageKind `json:"kind"`
}

func (*ImageData) Type() Type { return TypeImage }
func (d *ImageData) clone() Data {
	c := *d
	c.Bytes = slices.Clone(d.Bytes)
	return &c
}

// CommentData is a sticky note shown as a fixed-size icon.
type CommentData struct {
	Text string `json:"text"`
}

func (*CommentData) Type() Type    { return TypeComment }
func (d *CommentData) clone() Data { c := *d; return &c }
