package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/pdfed/internal/annotation"
	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/session"
	"github.com/Epistemic-Technology/pdfed/models"
)

type AnnotationUndoQuery struct {
	SessionID string `json:"session_id"`
	Redo      bool   `json:"redo,omitempty"`
}

type AnnotationUndoResponse struct {
	// Changed is false when there was nothing to undo or redo.
	Changed    bool                   `json:"changed"`
	Annotation *models.AnnotationInfo `json:"annotation,omitempty"`
}

func AnnotationUndoTool() *mcp.Tool {
	inputschema, err := jsonschema.For[AnnotationUndoQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "annotation-undo",
		Description: "Undo the most recently added annotation, or with redo set restore the most recently undone one. Adding a new annotation clears the redo history.",
		InputSchema: inputschema,
	}
}

func AnnotationUndoToolHandler(ctx context.Context, req *mcp.CallToolRequest, query AnnotationUndoQuery, mgr *session.Manager, log logger.Logger) (*mcp.CallToolResult, *AnnotationUndoResponse, error) {
	log.Info("annotation-undo tool called (redo=%v)", query.Redo)
	s, err := getSession(mgr, query.SessionID)
	if err != nil {
		return nil, nil, err
	}
	var a *annotation.Annotation
	var ok bool
	if query.Redo {
		a, ok = s.Redo()
	} else {
		a, ok = s.Undo()
	}
	return nil, &AnnotationUndoResponse{Changed: ok, Annotation: annotationInfo(a)}, nil
}
