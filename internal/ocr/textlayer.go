package ocr

import (
	"math"
	"strings"

	"github.com/Epistemic-Technology/pdfed/internal/geom"
)

const (
	// LowConfidence marks words the host should flag for review.
	LowConfidence = 70
	minFontSize   = 10
	imageMargin   = 50
)

// LayerWord is a recognized word placed on its page.
type LayerWord struct {
	Text          string    `json:"text"`
	Bounds        geom.Rect `json:"bounds"`
	Confidence    float64   `json:"confidence"`
	FontSize      float64   `json:"font_size"`
	LowConfidence bool      `json:"low_confidence,omitempty"`
}

// TextLayer holds the words of one page in page-relative pixels.
type TextLayer struct {
	PageNum int         `json:"page_num"`
	Scale   float64     `json:"scale"`
	Words   []LayerWord `json:"words"`
}

// NewTextLayer maps a result onto a page of the given pixel size. The image
// is fitted with one uniform scale; words below minConfidence are dropped.
func NewTextLayer(r Result, page geom.Size, minConfidence float64) *TextLayer {
	imgW, imgH := float64(r.ImageWidth), float64(r.ImageHeight)
	if imgW <= 0 || imgH <= 0 {
		imgW, imgH = 0, 0
		for _, w := range r.Words {
			imgW = math.Max(imgW, w.Bounds.Right())
			imgH = math.Max(imgH, w.Bounds.Bottom())
		}
		imgW += imageMargin
		imgH += imageMargin
	}
	scale := math.Min(page.Width/imgW, page.Height/imgH)
	if math.IsNaN(scale) || math.IsInf(scale, 0) || scale <= 0 {
		scale = 1
	}

	layer := &TextLayer{PageNum: r.PageNum, Scale: scale, Words: make([]LayerWord, 0, len(r.Words))}
	for _, w := range r.Words {
		if w.Confidence < minConfidence {
			continue
		}
		b := w.Bounds.Scale(scale)
		layer.Words = append(layer.Words, LayerWord{
			Text:          w.Text,
			Bounds:        b,
			Confidence:    w.Confidence,
			FontSize:      math.Max(minFontSize, b.Height*0.8),
			LowConfidence: w.Confidence < LowConfidence,
		})
	}
	return layer
}

// At returns the word under p.
func (l *TextLayer) At(p geom.PagePoint) (LayerWord, bool) {
	for _, w := range l.Words {
		if w.Bounds.Contains(p.X, p.Y) {
			return w, true
		}
	}
	return LayerWord{}, false
}

// Text joins the words, breaking lines where a word starts below the
// previous one.
func (l *TextLayer) Text() string {
	var sb strings.Builder
	for i, w := range l.Words {
		if i > 0 {
			prev := l.Words[i-1].Bounds
			if w.Bounds.Y >= prev.Bottom()-prev.Height/2 {
				sb.WriteByte('\n')
			} else {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(w.Text)
	}
	return sb.String()
}
