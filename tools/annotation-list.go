package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/session"
	"github.com/Epistemic-Technology/pdfed/models"
)

type AnnotationListQuery struct {
	SessionID string `json:"session_id"`
	PageNum   int    `json:"page_num,omitempty"` // 0 lists every page
}

type AnnotationListResponse struct {
	Annotations []models.AnnotationInfo `json:"annotations"`
	Selected    string                  `json:"selected,omitempty"`
	Count       int                     `json:"count"`
}

func AnnotationListTool() *mcp.Tool {
	inputschema, err := jsonschema.For[AnnotationListQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "annotation-list",
		Description: "List the annotations of a session in z-order (later entries paint on top), optionally limited to one page. Bounds are page pixel coordinates at the current scale.",
		InputSchema: inputschema,
	}
}

func AnnotationListToolHandler(ctx context.Context, req *mcp.CallToolRequest, query AnnotationListQuery, mgr *session.Manager, log logger.Logger) (*mcp.CallToolResult, *AnnotationListResponse, error) {
	log.Info("annotation-list tool called")
	s, err := getSession(mgr, query.SessionID)
	if err != nil {
		return nil, nil, err
	}
	as := s.Annotations(query.PageNum)
	resp := &AnnotationListResponse{
		Annotations: annotationInfos(as),
		Count:       len(as),
	}
	if sel, ok := s.Selected(); ok {
		resp.Selected = string(sel.ID)
	}
	return nil, resp, nil
}
