package tools

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/pdfdoc"
	"github.com/Epistemic-Technology/pdfed/internal/session"
	"github.com/Epistemic-Technology/pdfed/models"
)

// PageEditQuery restructures the document. Exactly one operation is given.
type PageEditQuery struct {
	SessionID string `json:"session_id"`
	// Rotate turns PageNum by Degrees (a multiple of 90).
	Rotate  bool `json:"rotate,omitempty"`
	Degrees int  `json:"degrees,omitempty"`
	// Delete removes PageNum and its annotations.
	Delete  bool `json:"delete,omitempty"`
	PageNum int  `json:"page_num,omitempty"`
	// Order lists every current page number once, in the new order.
	Order []int `json:"order,omitempty"`
}

type PageEditResponse struct {
	PageCount   int                     `json:"page_count"`
	Annotations []models.AnnotationInfo `json:"annotations"`
	View        models.ViewState        `json:"view"`
}

func PageEditTool() *mcp.Tool {
	inputschema, err := jsonschema.For[PageEditQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "page-edit",
		Description: "Rotate a page, delete a page, or reorder all pages. Annotations follow their pages; annotations on a deleted page are dropped. The last remaining page cannot be deleted.",
		InputSchema: inputschema,
	}
}

func PageEditToolHandler(ctx context.Context, req *mcp.CallToolRequest, query PageEditQuery, mgr *session.Manager, log logger.Logger) (*mcp.CallToolResult, *PageEditResponse, error) {
	log.Info("page-edit tool called")
	s, err := getSession(mgr, query.SessionID)
	if err != nil {
		return nil, nil, err
	}

	ops := 0
	for _, set := range []bool{query.Rotate, query.Delete, len(query.Order) > 0} {
		if set {
			ops++
		}
	}
	if ops != 1 {
		return nil, nil, fmt.Errorf("exactly one of rotate, delete and order is required")
	}

	switch {
	case query.Rotate:
		if _, err := pdfdoc.NormalizeRotation(query.Degrees); err != nil {
			return nil, nil, err
		}
		err = s.RotatePage(query.PageNum, query.Degrees)
	case query.Delete:
		err = s.DeletePage(query.PageNum)
	default:
		err = s.ReorderPages(query.Order)
	}
	if err != nil {
		return nil, nil, err
	}

	return nil, &PageEditResponse{
		PageCount:   s.PageCount(),
		Annotations: annotationInfos(s.Annotations(0)),
		View:        s.ViewState(),
	}, nil
}
