package tools

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/pdfed/internal/annotation"
	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/session"
	"github.com/Epistemic-Technology/pdfed/models"
)

type AnnotationSelectQuery struct {
	SessionID    string `json:"session_id"`
	AnnotationID string `json:"annotation_id,omitempty"` // empty clears the selection
	// ZIndex moves the annotation in paint order; 0 is the bottom.
	ZIndex *int `json:"z_index,omitempty"`
}

type AnnotationSelectResponse struct {
	Selected *models.AnnotationInfo `json:"selected,omitempty"`
}

func AnnotationSelectTool() *mcp.Tool {
	inputschema, err := jsonschema.For[AnnotationSelectQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "annotation-select",
		Description: "Select an annotation by id, or clear the selection with an empty id. With z_index the annotation is also moved in paint order.",
		InputSchema: inputschema,
	}
}

func AnnotationSelectToolHandler(ctx context.Context, req *mcp.CallToolRequest, query AnnotationSelectQuery, mgr *session.Manager, log logger.Logger) (*mcp.CallToolResult, *AnnotationSelectResponse, error) {
	log.Info("annotation-select tool called: %s", query.AnnotationID)
	s, err := getSession(mgr, query.SessionID)
	if err != nil {
		return nil, nil, err
	}
	id := annotation.ID(query.AnnotationID)
	if id != "" && query.ZIndex != nil {
		if err := s.Reorder(id, *query.ZIndex); err != nil {
			return nil, nil, err
		}
	}
	if !s.Select(id) && id != "" {
		return nil, nil, fmt.Errorf("%s: %w", id, session.ErrNoAnnotation)
	}
	resp := &AnnotationSelectResponse{}
	if sel, ok := s.Selected(); ok {
		resp.Selected = annotationInfo(sel)
	}
	return nil, resp, nil
}
