// Package ocr recognizes words on rasterized pages. Engines are pluggable;
// results are cached per document page and mapped back onto page coordinates
// by a TextLayer.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Epistemic-Technology/pdfed/internal/geom"
)

var (
	ErrNoImage       = errors.New("ocr: no image")
	ErrUnknownEngine = errors.New("ocr: unknown engine")
)

// Word is one recognized word. Bounds are image pixels, top-left origin.
// Confidence runs from 0 to 100.
type Word struct {
	Text       string    `json:"text"`
	Bounds     geom.Rect `json:"bounds"`
	Confidence float64   `json:"confidence"`
}

// Result is the recognition output for one page image.
type Result struct {
	PageNum     int     `json:"page_num"`
	Text        string  `json:"text"`
	Confidence  float64 `json:"confidence"`
	Words       []Word  `json:"words"`
	Language    string  `json:"language"`
	Engine      string  `json:"engine"`
	ImageWidth  int     `json:"image_width"`
	ImageHeight int     `json:"image_height"`
}

// Input is a page image handed to an engine.
type Input struct {
	PageNum   int
	Image     []byte // PNG
	Languages []string
}

// Language is the cache key language for the input.
func (in Input) Language() string {
	if len(in.Languages) == 0 {
		return "eng"
	}
	return strings.Join(in.Languages, "+")
}

// Engine recognizes text in page images.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) (Result, error)
}

// Factory builds an engine from its settings.
type Factory func(settings Settings) (Engine, error)

// Settings configure engine construction.
type Settings struct {
	APIKey            string
	Model             string
	RequestsPerSecond float64
}

var (
	enginesMu sync.RWMutex
	engines   = map[string]Factory{}
)

// Register makes an engine available to NewEngine under name.
func Register(name string, f Factory) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	engines[name] = f
}

// Engines lists the registered engine names.
func Engines() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewEngine constructs the engine registered under name.
func NewEngine(name string, settings Settings) (Engine, error) {
	enginesMu.RLock()
	f, ok := engines[name]
	enginesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownEngine, name, strings.Join(Engines(), ", "))
	}
	return f(settings)
}

// summarize fills the aggregate text and confidence from the words.
func summarize(r *Result) {
	if len(r.Words) == 0 {
		return
	}
	var sum float64
	texts := make([]string, 0, len(r.Words))
	for _, w := range r.Words {
		sum += w.Confidence
		texts = append(texts, w.Text)
	}
	r.Confidence = sum / float64(len(r.Words))
	if r.Text == "" {
		r.Text = strings.Join(texts, " ")
	}
}

// clean trims words and drops empty or zero-confidence ones.
func clean(words []Word) []Word {
	out := words[:0]
	for _, w := range words {
		w.Text = strings.TrimSpace(w.Text)
		if w.Text == "" || w.Confidence <= 0 || w.Bounds.Width <= 0 || w.Bounds.Height <= 0 {
			continue
		}
		out = append(out, w)
	}
	return out
}
