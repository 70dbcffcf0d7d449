package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/pdfed/internal/interaction"
	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/session"
	"github.com/Epistemic-Technology/pdfed/models"
)

type ToolSelectQuery struct {
	SessionID string `json:"session_id"`
	Tool      string `json:"tool"`
}

type ToolSelectResponse struct {
	Tool      string             `json:"tool"`
	Available []string           `json:"available"`
	Events    []models.EventInfo `json:"events,omitempty"`
}

func ToolSelectTool() *mcp.Tool {
	inputschema, err := jsonschema.For[ToolSelectQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "tool-select",
		Description: "Switch the active editing tool: select, text, highlight, underline, strikethrough, draw, shapes, redact, comment or image. A gesture in progress is cancelled; leaving select clears the selection.",
		InputSchema: inputschema,
	}
}

func ToolSelectToolHandler(ctx context.Context, req *mcp.CallToolRequest, query ToolSelectQuery, mgr *session.Manager, log logger.Logger) (*mcp.CallToolResult, *ToolSelectResponse, error) {
	log.Info("tool-select tool called: %s", query.Tool)
	s, err := getSession(mgr, query.SessionID)
	if err != nil {
		return nil, nil, err
	}
	events, err := s.SetTool(query.Tool)
	if err != nil {
		return nil, nil, err
	}

	var available []string
	for _, t := range interaction.Tools() {
		available = append(available, string(t))
	}
	return nil, &ToolSelectResponse{
		Tool:      string(s.Tool()),
		Available: available,
		Events:    eventInfos(events),
	}, nil
}
