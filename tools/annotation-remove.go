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

type AnnotationRemoveQuery struct {
	SessionID    string `json:"session_id"`
	AnnotationID string `json:"annotation_id,omitempty"`
	All          bool   `json:"all,omitempty"`
}

type AnnotationRemoveResponse struct {
	Removed   []models.AnnotationInfo `json:"removed"`
	Remaining int                     `json:"remaining"`
}

func AnnotationRemoveTool() *mcp.Tool {
	inputschema, err := jsonschema.For[AnnotationRemoveQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "annotation-remove",
		Description: "Delete one annotation by id, or every annotation with all set. Removed annotations are not added to the redo history.",
		InputSchema: inputschema,
	}
}

func AnnotationRemoveToolHandler(ctx context.Context, req *mcp.CallToolRequest, query AnnotationRemoveQuery, mgr *session.Manager, log logger.Logger) (*mcp.CallToolResult, *AnnotationRemoveResponse, error) {
	log.Info("annotation-remove tool called")
	s, err := getSession(mgr, query.SessionID)
	if err != nil {
		return nil, nil, err
	}

	var removed []*annotation.Annotation
	switch {
	case query.All:
		removed = s.Annotations(0)
		s.Clear()
	case query.AnnotationID != "":
		a, err := s.Remove(annotation.ID(query.AnnotationID))
		if err != nil {
			return nil, nil, err
		}
		removed = append(removed, a)
	default:
		return nil, nil, fmt.Errorf("annotation_id or all is required")
	}
	return nil, &AnnotationRemoveResponse{
		Removed:   annotationInfos(removed),
		Remaining: len(s.Annotations(0)),
	}, nil
}
