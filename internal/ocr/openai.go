package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/png"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
	"golang.org/x/time/rate"

	"github.com/Epistemic-Technology/pdfed/internal/geom"
	"github.com/Epistemic-Technology/pdfed/internal/logger"
)

func init() {
	Register("openai", func(s Settings) (Engine, error) {
		return NewOpenAIEngine(s, logger.NewNoOpLogger())
	})
}

var (
	// recognizedPageSchema constrains the model to a word list with pixel boxes
	recognizedPageSchema = map[string]any{
		"type": "object",
		"properties": map[string]any{
			"words": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"text":       map[string]any{"type": "string"},
						"x":          map[string]any{"type": "number"},
						"y":          map[string]any{"type": "number"},
						"width":      map[string]any{"type": "number"},
						"height":     map[string]any{"type": "number"},
						"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 100.0},
					},
					"required":             []string{"text", "x", "y", "width", "height", "confidence"},
					"additionalProperties": false,
				},
			},
			"language": map[string]any{"type": "string"},
		},
		"required":             []string{"words", "language"},
		"additionalProperties": false,
	}
)

const recognizePrompt = `Perform OCR on this scanned document page. The image is %d x %d pixels.

Return every word you can read in the "words" array, in reading order:
- "text": the word exactly as printed, without surrounding whitespace.
- "x", "y": the top-left corner of the word's bounding box in image pixels, origin at the top-left of the image.
- "width", "height": the size of the bounding box in image pixels.
- "confidence": how sure you are of the transcription, from 0 to 100.

Set "language" to the ISO 639-2 code of the dominant language (expected: %s).
Do not invent text for illegible regions; omit them.`

// OpenAIEngine recognizes words with a vision model through the Responses API.
type OpenAIEngine struct {
	client  openai.Client
	model   string
	limiter *rate.Limiter
	log     logger.Logger
}

// NewOpenAIEngine builds an engine; the API key is required.
func NewOpenAIEngine(s Settings, log logger.Logger) (*OpenAIEngine, error) {
	if s.APIKey == "" {
		return nil, errors.New("ocr: openai engine requires an API key")
	}
	model := s.Model
	if model == "" {
		model = string(shared.ChatModelGPT5Mini)
	}
	return &OpenAIEngine{
		client:  openai.NewClient(option.WithAPIKey(s.APIKey)),
		model:   model,
		limiter: NewLimiter(s.RequestsPerSecond),
		log:     log,
	}, nil
}

func (e *OpenAIEngine) Name() string { return "openai" }

type recognizedWord struct {
	Text       string  `json:"text"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
}

type recognizedPage struct {
	Words    []recognizedWord `json:"words"`
	Language string           `json:"language"`
}

// Recognize sends the page image and decodes the structured word list.
func (e *OpenAIEngine) Recognize(ctx context.Context, in Input) (Result, error) {
	if len(in.Image) == 0 {
		return Result{}, ErrNoImage
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(in.Image))
	if err != nil {
		return Result{}, fmt.Errorf("failed to decode page image: %w", err)
	}

	e.log.Debug("Calling OpenAI API for OCR of page %d (%dx%d)", in.PageNum, cfg.Width, cfg.Height)
	encoded := base64.StdEncoding.EncodeToString(in.Image)
	response, err := RateLimitedCall(ctx, e.limiter, e.log, func(ctx context.Context) (*responses.Response, error) {
		return e.client.Responses.New(ctx, responses.ResponseNewParams{
			Model: shared.ResponsesModel(e.model),
			Input: responses.ResponseNewParamsInputUnion{
				OfInputItemList: responses.ResponseInputParam{
					responses.ResponseInputItemParamOfMessage(
						responses.ResponseInputMessageContentListParam{
							responses.ResponseInputContentUnionParam{
								OfInputImage: &responses.ResponseInputImageParam{
									ImageURL: openai.String("data:image/png;base64," + encoded),
									Detail:   responses.ResponseInputImageDetailHigh,
								},
							},
							responses.ResponseInputContentParamOfInputText(fmt.Sprintf(recognizePrompt, cfg.Width, cfg.Height, in.Language())),
						},
						"user",
					),
				},
			},
			Text: responses.ResponseTextConfigParam{
				Format: responses.ResponseFormatTextConfigParamOfJSONSchema("recognized_page", recognizedPageSchema),
			},
		})
	})
	if err != nil {
		return Result{}, fmt.Errorf("openai ocr request failed: %w", err)
	}

	var page recognizedPage
	if err := json.Unmarshal([]byte(response.OutputText()), &page); err != nil {
		return Result{}, fmt.Errorf("failed to decode ocr response: %w", err)
	}

	result := Result{
		PageNum:     in.PageNum,
		Language:    page.Language,
		Engine:      e.Name(),
		ImageWidth:  cfg.Width,
		ImageHeight: cfg.Height,
		Words:       make([]Word, 0, len(page.Words)),
	}
	if result.Language == "" {
		result.Language = in.Language()
	}
	for _, w := range page.Words {
		result.Words = append(result.Words, Word{
			Text:       w.Text,
			Bounds:     geom.Rect{X: w.X, Y: w.Y, Width: w.Width, Height: w.Height},
			Confidence: w.Confidence,
		})
	}
	result.Words = clean(result.Words)
	summarize(&result)
	return result, nil
}
