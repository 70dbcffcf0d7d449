package pdfdoc

import (
	"errors"
	"strconv"
	"strings"

	"github.com/Epistemic-Technology/pdfed/internal/annotation"
)

var (
	ErrNoDocument      = errors.New("pdfdoc: no document loaded")
	ErrPageOutOfRange  = errors.New("pdfdoc: page out of range")
	ErrInvalidRotation = errors.New("pdfdoc: rotation must be a multiple of 90")
)

// TextStyle describes a text run. Size is in points.
type TextStyle struct {
	Size       float64
	Color      annotation.Color
	Background *annotation.Color
	Bold       bool
	Italic     bool
	Underline  bool
	Strike     bool
}

// RectStyle describes a rectangle. A nil Fill draws no interior, a nil Border
// draws no outline. Opacity applies to the fill.
type RectStyle struct {
	Fill        *annotation.Color
	Opacity     float64
	Border      *annotation.Color
	BorderWidth float64
}

// LineStyle describes a stroked line or path. Thickness is in points.
type LineStyle struct {
	Color     annotation.Color
	Thickness float64
	Opacity   float64
}

// WatermarkPosition places a text watermark on each page.
type WatermarkPosition string

const (
	WatermarkDiagonal WatermarkPosition = "diagonal"
	WatermarkCenter   WatermarkPosition = "center"
	WatermarkTile     WatermarkPosition = "tile"
)

// Watermark is a whole-document text watermark.
type Watermark struct {
	Text     string            `json:"text"`
	FontSize float64           `json:"font_size"`
	Opacity  float64           `json:"opacity"`
	Color    annotation.Color  `json:"color"`
	Position WatermarkPosition `json:"position"`
	// PageRange selects pages, for example "1-3,5". Empty means every page.
	PageRange string `json:"page_range,omitempty"`
}

// DefaultWatermark returns the editor's default watermark settings.
func DefaultWatermark() Watermark {
	return Watermark{
		Text:     "DRAFT",
		FontSize: 48,
		Opacity:  0.3,
		Color:    annotation.Color{R: 0x88, G: 0x88, B: 0x88},
		Position: WatermarkDiagonal,
	}
}

// Pages splits PageRange into a page selection, nil meaning every page.
func (w Watermark) Pages() []string {
	return splitPageRange(w.PageRange)
}

// Band is one header or footer line with three slots.
type Band struct {
	Enabled bool   `json:"enabled"`
	Left    string `json:"left,omitempty"`
	Center  string `json:"center,omitempty"`
	Right   string `json:"right,omitempty"`
}

// HeaderFooter stamps text bands at the top and bottom of every page. Slot
// text may use {page} and {total}.
type HeaderFooter struct {
	Header   Band             `json:"header"`
	Footer   Band             `json:"footer"`
	FontSize float64          `json:"font_size"`
	Color    annotation.Color `json:"color"`
	Margin   float64          `json:"margin"`
	// PageRange selects pages, for example "2-". Empty means every page.
	PageRange string `json:"page_range,omitempty"`
}

// DefaultHeaderFooter returns the editor's default header and footer
// settings, with a centered page counter in the footer.
func DefaultHeaderFooter() HeaderFooter {
	return HeaderFooter{
		Footer:   Band{Enabled: true, Center: "Page {page} of {total}"},
		FontSize: 10,
		Color:    annotation.Color{R: 0x66, G: 0x66, B: 0x66},
		Margin:   30,
	}
}

func (h HeaderFooter) Pages() []string {
	return splitPageRange(h.PageRange)
}

// Expand substitutes the page placeholders for display.
func Expand(text string, page, total int) string {
	r := strings.NewReplacer("{page}", strconv.Itoa(page), "{total}", strconv.Itoa(total))
	return r.Replace(text)
}

// PageMutation describes one page of the restructured document: which
// original page it comes from and how far to rotate it.
type PageMutation struct {
	OriginalIndex int `json:"original_index"`
	Rotation      int `json:"rotation"`
}

func splitPageRange(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
