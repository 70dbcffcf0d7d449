//go:build tesseract

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/Epistemic-Technology/pdfed/internal/geom"
)

func init() {
	Register("tesseract", func(Settings) (Engine, error) {
		return NewTesseractEngine(), nil
	})
}

// TesseractEngine recognizes words with a local Tesseract installation.
type TesseractEngine struct {
	clientFactory func() *gosseract.Client
}

func NewTesseractEngine() *TesseractEngine {
	return &TesseractEngine{clientFactory: gosseract.NewClient}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Recognize runs one client per call; gosseract clients are not shareable
// across goroutines.
func (e *TesseractEngine) Recognize(ctx context.Context, in Input) (Result, error) {
	if len(in.Image) == 0 {
		return Result{}, ErrNoImage
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(in.Image))
	if err != nil {
		return Result{}, fmt.Errorf("failed to decode page image: %w", err)
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(in.Image); err != nil {
		return Result{}, fmt.Errorf("set image: %w", err)
	}
	if err := c.SetLanguage(strings.Split(in.Language(), "+")...); err != nil {
		return Result{}, fmt.Errorf("set languages: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return Result{}, fmt.Errorf("recognize text: %w", err)
	}
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return Result{}, fmt.Errorf("word boxes: %w", err)
	}

	result := Result{
		PageNum:     in.PageNum,
		Text:        strings.TrimSpace(text),
		Language:    in.Language(),
		Engine:      e.Name(),
		ImageWidth:  cfg.Width,
		ImageHeight: cfg.Height,
		Words:       make([]Word, 0, len(boxes)),
	}
	for _, b := range boxes {
		result.Words = append(result.Words, Word{
			Text: b.Word,
			Bounds: geom.Rect{
				X:      float64(b.Box.Min.X),
				Y:      float64(b.Box.Min.Y),
				Width:  float64(b.Box.Dx()),
				Height: float64(b.Box.Dy()),
			},
			Confidence: b.Confidence,
		})
	}
	result.Words = clean(result.Words)
	summarize(&result)
	return result, nil
}
