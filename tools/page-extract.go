package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/session"
)

type PageExtractQuery struct {
	SessionID string `json:"session_id"`
	PageNum   int    `json:"page_num"`
}

type PageExtractResponse struct {
	PageNum   int    `json:"page_num"`
	SizeBytes int    `json:"size_bytes"`
	Data      []byte `json:"data"`
}

func PageExtractTool() *mcp.Tool {
	inputschema, err := jsonschema.For[PageExtractQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "page-extract",
		Description: "Return one page of the document, without annotations, as a standalone PDF.",
		InputSchema: inputschema,
	}
}

func PageExtractToolHandler(ctx context.Context, req *mcp.CallToolRequest, query PageExtractQuery, mgr *session.Manager, log logger.Logger) (*mcp.CallToolResult, *PageExtractResponse, error) {
	log.Info("page-extract tool called for page %d", query.PageNum)
	s, err := getSession(mgr, query.SessionID)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.ExtractPage(query.PageNum)
	if err != nil {
		return nil, nil, err
	}
	return nil, &PageExtractResponse{PageNum: query.PageNum, SizeBytes: len(data), Data: data}, nil
}
