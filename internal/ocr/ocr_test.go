package ocr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Epistemic-Technology/pdfed/internal/geom"
	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/storage"
	"github.com/Epistemic-Technology/pdfed/models"
)

type fakeEngine struct {
	calls  int
	words  []Word
	err    error
	langs  []string
	images [][]byte
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(_ context.Context, in Input) (Result, error) {
	f.calls++
	f.langs = in.Languages
	f.images = append(f.images, in.Image)
	if f.err != nil {
		return Result{}, f.err
	}
	r := Result{Words: clean(append([]Word(nil), f.words...)), ImageWidth: 400, ImageHeight: 400}
	summarize(&r)
	return r, nil
}

func sampleWords() []Word {
	return []Word{
		{Text: "Hello", Bounds: geom.Rect{X: 10, Y: 10, Width: 50, Height: 20}, Confidence: 95},
		{Text: " world ", Bounds: geom.Rect{X: 70, Y: 10, Width: 50, Height: 20}, Confidence: 60},
		{Text: "", Bounds: geom.Rect{X: 0, Y: 0, Width: 5, Height: 5}, Confidence: 90},
		{Text: "noise", Bounds: geom.Rect{X: 0, Y: 0, Width: 5, Height: 5}, Confidence: 0},
		{Text: "next", Bounds: geom.Rect{X: 10, Y: 40, Width: 40, Height: 20}, Confidence: 80},
	}
}

func TestCleanAndSummarize(t *testing.T) {
	r := Result{Words: clean(sampleWords())}
	summarize(&r)

	var texts []string
	for _, w := range r.Words {
		texts = append(texts, w.Text)
	}
	if diff := cmp.Diff([]string{"Hello", "world", "next"}, texts); diff != "" {
		t.Errorf("clean() mismatch (-want +got):\n%s", diff)
	}
	if r.Text != "Hello world next" {
		t.Errorf("Text = %q", r.Text)
	}
	if !geom.ApproxEqual(r.Confidence, (95+60+80)/3.0, 1e-9) {
		t.Errorf("Confidence = %v", r.Confidence)
	}
}

func TestServiceCachesResults(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.RecordDocument(ctx, &models.DocumentRecord{DocumentID: "doc_1", Type: "pdf"}); err != nil {
		t.Fatal(err)
	}

	engine := &fakeEngine{words: sampleWords()}
	svc := NewService(engine, store, []string{"eng", "deu"}, logger.NewNoOpLogger())

	first, cached, err := svc.Recognize(ctx, "doc_1", 2, []byte("png"))
	if err != nil || cached {
		t.Fatalf("first Recognize() = cached %v, err %v", cached, err)
	}
	if first.PageNum != 2 || first.Engine != "fake" {
		t.Errorf("first result = %+v", first)
	}
	if diff := cmp.Diff([]string{"eng", "deu"}, engine.langs); diff != "" {
		t.Errorf("languages mismatch (-want +got):\n%s", diff)
	}

	second, cached, err := svc.Recognize(ctx, "doc_1", 2, []byte("png"))
	if err != nil || !cached {
		t.Fatalf("second Recognize() = cached %v, err %v", cached, err)
	}
	if engine.calls != 1 {
		t.Errorf("engine called %d times, want 1", engine.calls)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("cached result mismatch (-want +got):\n%s", diff)
	}

	// Another page misses the cache.
	if _, cached, _ := svc.Recognize(ctx, "doc_1", 3, []byte("png")); cached {
		t.Error("page 3 should not be cached")
	}
}

func TestServiceWithoutCache(t *testing.T) {
	engine := &fakeEngine{words: sampleWords()}
	svc := NewService(engine, nil, nil, logger.NewNoOpLogger())
	for range 2 {
		if _, cached, err := svc.Recognize(context.Background(), "doc", 1, []byte("png")); err != nil || cached {
			t.Fatalf("Recognize() = cached %v, err %v", cached, err)
		}
	}
	if engine.calls != 2 {
		t.Errorf("engine called %d times, want 2", engine.calls)
	}
}

func TestServiceEngineError(t *testing.T) {
	boom := errors.New("boom")
	svc := NewService(&fakeEngine{err: boom}, nil, nil, logger.NewNoOpLogger())
	if _, _, err := svc.Recognize(context.Background(), "doc", 1, []byte("png")); !errors.Is(err, boom) {
		t.Errorf("Recognize() error = %v", err)
	}
}

func TestTextLayer(t *testing.T) {
	r := Result{PageNum: 1, ImageWidth: 400, ImageHeight: 800, Words: clean(sampleWords())}

	// A 200x300 page: uniform scale is min(0.5, 0.375).
	layer := NewTextLayer(r, geom.Size{Width: 200, Height: 300}, 50)
	if !geom.ApproxEqual(layer.Scale, 0.375, 1e-9) {
		t.Fatalf("Scale = %v", layer.Scale)
	}
	want := []LayerWord{
		{Text: "Hello", Bounds: geom.Rect{X: 3.75, Y: 3.75, Width: 18.75, Height: 7.5}, Confidence: 95, FontSize: 10},
		{Text: "world", Bounds: geom.Rect{X: 26.25, Y: 3.75, Width: 18.75, Height: 7.5}, Confidence: 60, FontSize: 10, LowConfidence: true},
		{Text: "next", Bounds: geom.Rect{X: 3.75, Y: 15, Width: 15, Height: 7.5}, Confidence: 80, FontSize: 10},
	}
	if diff := cmp.Diff(want, layer.Words); diff != "" {
		t.Errorf("Words mismatch (-want +got):\n%s", diff)
	}
	if got := layer.Text(); got != "Hello world\nnext" {
		t.Errorf("Text() = %q", got)
	}
	if w, ok := layer.At(geom.PagePoint{X: 30, Y: 5}); !ok || w.Text != "world" {
		t.Errorf("At() = %+v, %v", w, ok)
	}
	if _, ok := layer.At(geom.PagePoint{X: 150, Y: 250}); ok {
		t.Error("At() hit empty space")
	}

	filtered := NewTextLayer(r, geom.Size{Width: 200, Height: 300}, 70)
	if len(filtered.Words) != 2 {
		t.Errorf("minConfidence 70 kept %d words", len(filtered.Words))
	}
}

func TestTextLayerEstimatesImageSize(t *testing.T) {
	r := Result{Words: []Word{{Text: "a", Bounds: geom.Rect{X: 0, Y: 0, Width: 50, Height: 50}, Confidence: 90}}}
	// Estimated image is 100x100 including the margin.
	layer := NewTextLayer(r, geom.Size{Width: 200, Height: 200}, 0)
	if !geom.ApproxEqual(layer.Scale, 2, 1e-9) {
		t.Errorf("Scale = %v", layer.Scale)
	}
}

func TestNewEngine(t *testing.T) {
	if _, err := NewEngine("nope", Settings{}); !errors.Is(err, ErrUnknownEngine) {
		t.Errorf("NewEngine(nope) error = %v", err)
	}
	if _, err := NewEngine("openai", Settings{}); err == nil {
		t.Error("openai engine without key should fail")
	}
	e, err := NewEngine("openai", Settings{APIKey: "sk-test"})
	if err != nil || e.Name() != "openai" {
		t.Errorf("NewEngine(openai) = %v, %v", e, err)
	}
}

func TestOpenAIEngineRejectsEmptyImage(t *testing.T) {
	e, err := NewOpenAIEngine(Settings{APIKey: "sk-test"}, logger.NewNoOpLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Recognize(context.Background(), Input{}); !errors.Is(err, ErrNoImage) {
		t.Errorf("Recognize() error = %v", err)
	}
	if _, err := e.Recognize(context.Background(), Input{Image: []byte("not a png")}); err == nil {
		t.Error("Recognize() accepted undecodable image")
	}
}

func TestInputLanguage(t *testing.T) {
	if got := (Input{}).Language(); got != "eng" {
		t.Errorf("default Language() = %q", got)
	}
	if got := (Input{Languages: []string{"eng", "fra"}}).Language(); got != "eng+fra" {
		t.Errorf("Language() = %q", got)
	}
}

func TestRateLimitedCall(t *testing.T) {
	ctx := context.Background()
	log := logger.NewNoOpLogger()
	limiter := NewLimiter(100)

	t.Run("success", func(t *testing.T) {
		got, err := RateLimitedCall(ctx, limiter, log, func(context.Context) (string, error) { return "ok", nil })
		if err != nil || got != "ok" {
			t.Errorf("RateLimitedCall() = %q, %v", got, err)
		}
	})

	t.Run("non rate limit error is not retried", func(t *testing.T) {
		calls := 0
		boom := errors.New("bad request")
		_, err := rateLimitedCall(ctx, limiter, log, time.Millisecond, func(context.Context) (int, error) {
			calls++
			return 0, boom
		})
		if !errors.Is(err, boom) || calls != 1 {
			t.Errorf("err = %v, calls = %d", err, calls)
		}
	})

	t.Run("retries on 429", func(t *testing.T) {
		calls := 0
		got, err := rateLimitedCall(ctx, limiter, log, time.Millisecond, func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, errors.New("429 Too Many Requests")
			}
			return calls, nil
		})
		if err != nil || got != 3 {
			t.Errorf("rateLimitedCall() = %d, %v", got, err)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		_, err := rateLimitedCall(ctx, nil, log, time.Millisecond, func(context.Context) (int, error) {
			calls++
			return 0, errors.New("rate_limit_exceeded")
		})
		if err == nil || calls != maxRetries+1 {
			t.Errorf("err = %v, calls = %d", err, calls)
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := rateLimitedCall(cctx, limiter, log, time.Millisecond, func(context.Context) (int, error) {
			return 0, errors.New("429")
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v", err)
		}
	})
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{4, 8 * time.Second},
		{10, maxRetryDelay},
	}
	for _, tt := range tests {
		if got := retryDelay(tt.attempt, baseRetryDelay); got != tt.want {
			t.Errorf("retryDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("POST: 429 Too Many Requests"), true},
		{errors.New("rate limit reached"), true},
		{errors.New("500 internal"), false},
	}
	for _, tt := range tests {
		if got := isRateLimitError(tt.err); got != tt.want {
			t.Errorf("isRateLimitError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
