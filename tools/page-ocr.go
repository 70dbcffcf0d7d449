package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/session"
	"github.com/Epistemic-Technology/pdfed/models"
)

type PageOCRQuery struct {
	SessionID string `json:"session_id"`
	PageNum   int    `json:"page_num"`
	// Image is the rendered page as PNG. When omitted the largest image
	// embedded on the page is recognized, which suits scanned documents.
	Image []byte `json:"image,omitempty"`
}

type PageOCRResponse struct {
	PageNum int              `json:"page_num"`
	Text    string           `json:"text"`
	Words   []models.OCRWord `json:"words"`
	Scale   float64          `json:"scale"`
	Cached  bool             `json:"cached"`
	Engine  string           `json:"engine"`
}

func PageOCRTool() *mcp.Tool {
	inputschema, err := jsonschema.For[PageOCRQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "page-ocr",
		Description: "Recognize the text of a page and return a text layer of words positioned in page pixels at the current scale. Words the engine is unsure of are flagged low_confidence. Results for unchanged documents are cached.",
		InputSchema: inputschema,
	}
}

func PageOCRToolHandler(ctx context.Context, req *mcp.CallToolRequest, query PageOCRQuery, mgr *session.Manager, log logger.Logger) (*mcp.CallToolResult, *PageOCRResponse, error) {
	log.Info("page-ocr tool called for page %d", query.PageNum)
	s, err := getSession(mgr, query.SessionID)
	if err != nil {
		return nil, nil, err
	}
	layer, cached, err := s.Recognize(ctx, query.PageNum, query.Image)
	if err != nil {
		return nil, nil, err
	}

	words := make([]models.OCRWord, 0, len(layer.Words))
	for _, w := range layer.Words {
		words = append(words, models.OCRWord{
			Text:          w.Text,
			Bounds:        rectInfo(w.Bounds),
			Confidence:    w.Confidence,
			FontSize:      w.FontSize,
			LowConfidence: w.LowConfidence,
		})
	}
	return nil, &PageOCRResponse{
		PageNum: layer.PageNum,
		Text:    layer.Text(),
		Words:   words,
		Scale:   layer.Scale,
		Cached:  cached,
		Engine:  s.OCREngine(),
	}, nil
}
