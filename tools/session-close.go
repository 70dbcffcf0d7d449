package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/session"
)

type SessionCloseQuery struct {
	SessionID string `json:"session_id"`
}

type SessionCloseResponse struct {
	SessionID string `json:"session_id"`
	Closed    bool   `json:"closed"`
	// Unsaved is the number of annotations discarded with the session.
	Unsaved int `json:"unsaved"`
}

func SessionCloseTool() *mcp.Tool {
	inputschema, err := jsonschema.For[SessionCloseQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "session-close",
		Description: "Close an editing session and discard its unsaved annotations. Call document-save first to keep them.",
		InputSchema: inputschema,
	}
}

func SessionCloseToolHandler(ctx context.Context, req *mcp.CallToolRequest, query SessionCloseQuery, mgr *session.Manager, log logger.Logger) (*mcp.CallToolResult, *SessionCloseResponse, error) {
	log.Info("session-close tool called")
	s, err := getSession(mgr, query.SessionID)
	if err != nil {
		return nil, nil, err
	}
	unsaved := len(s.Annotations(0))
	if err := mgr.Close(s.ID); err != nil {
		return nil, nil, err
	}
	return nil, &SessionCloseResponse{SessionID: s.ID, Closed: true, Unsaved: unsaved}, nil
}
