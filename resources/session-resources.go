package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/pdfed/internal/session"
	"github.com/Epistemic-Technology/pdfed/internal/storage"
	"github.com/Epistemic-Technology/pdfed/models"
)

const scheme = "pdfed://"

// SessionResourceHandler serves the state of open editing sessions and the
// saves of their documents.
type SessionResourceHandler struct {
	sessions *session.Manager
	store    storage.Store
}

// NewSessionResourceHandler creates a new session resource handler
func NewSessionResourceHandler(sessions *session.Manager, store storage.Store) *SessionResourceHandler {
	return &SessionResourceHandler{sessions: sessions, store: store}
}

// ReadResource reads a specific resource by URI
func (h *SessionResourceHandler) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	// Parse URI: pdfed://session_id/resource_type/...
	if !strings.HasPrefix(uri, scheme) {
		return nil, fmt.Errorf("invalid URI scheme, expected %s", scheme)
	}
	parts := strings.Split(strings.TrimPrefix(uri, scheme), "/")
	if parts[0] == "" || len(parts) < 2 {
		return nil, fmt.Errorf("invalid URI %q, expected %s{sessionId}/{resource}", uri, scheme)
	}

	s, err := h.sessions.Get(parts[0])
	if err != nil {
		return nil, err
	}

	switch {
	case parts[1] == "annotations" && len(parts) == 2:
		return jsonResult(uri, annotationList(s))
	case parts[1] == "view" && len(parts) == 2:
		return jsonResult(uri, s.ViewState())
	case parts[1] == "pages" && len(parts) == 4 && parts[3] == "surface":
		pageNum, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("invalid page number: %s", parts[2])
		}
		png, err := s.SurfacePNG(pageNum)
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: "image/png", Blob: png}},
		}, nil
	case parts[1] == "saves" && len(parts) == 2:
		saves, err := h.store.ListSaves(ctx, s.DocumentID)
		if err != nil {
			return nil, fmt.Errorf("failed to list saves: %w", err)
		}
		return jsonResult(uri, map[string]any{"document_id": s.DocumentID, "saves": saves})
	case parts[1] == "saves" && len(parts) == 3:
		record, data, err := h.store.GetSave(ctx, parts[2])
		if err != nil {
			return nil, fmt.Errorf("failed to get save %s: %w", parts[2], err)
		}
		if record.DocumentID != s.DocumentID {
			return nil, fmt.Errorf("save %s does not belong to session %s: %w", parts[2], s.ID, storage.ErrNotFound)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: "application/pdf", Blob: data}},
		}, nil
	}
	return nil, fmt.Errorf("unknown resource %q", uri)
}

func annotationList(s *session.Session) map[string]any {
	as := s.Annotations(0)
	infos := make([]models.AnnotationInfo, 0, len(as))
	for _, a := range as {
		info := models.AnnotationInfo{
			ID:      string(a.ID),
			Type:    string(a.Type()),
			PageNum: a.PageNum,
			Bounds:  models.Rect{X: a.Bounds.X, Y: a.Bounds.Y, Width: a.Bounds.Width, Height: a.Bounds.Height},
			Data:    a.Data,
		}
		infos = append(infos, info)
	}
	return map[string]any{
		"session_id":  s.ID,
		"page_count":  s.PageCount(),
		"annotations": infos,
	}
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: "application/json", Text: string(data)}},
	}, nil
}

