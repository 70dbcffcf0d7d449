package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/pdfed/internal/documents"
	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/operations"
	"github.com/Epistemic-Technology/pdfed/internal/session"
	"github.com/Epistemic-Technology/pdfed/internal/storage"
	"github.com/Epistemic-Technology/pdfed/models"
)

type SessionOpenQuery struct {
	ZoteroID string `json:"zotero_id,omitempty"`
	URL      string `json:"url,omitempty"`
	Path     string `json:"path,omitempty"`
	RawData  []byte `json:"raw_data,omitempty"`
	Title    string `json:"title,omitempty"`
}

type SessionOpenResponse struct {
	SessionID     string           `json:"session_id"`
	DocumentID    string           `json:"document_id"`
	Title         string           `json:"title,omitempty"`
	PageCount     int              `json:"page_count"`
	Reopened      bool             `json:"reopened,omitempty"`
	ResourcePaths []string         `json:"resource_paths"`
	View          models.ViewState `json:"view"`
}

func SessionOpenTool() *mcp.Tool {
	inputschema, err := jsonschema.For[SessionOpenQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "session-open",
		Description: "Open a PDF for annotation editing from a Zotero attachment, URL, local path or raw bytes. Returns a session id, the page layout and the resource URIs for annotations, page surfaces and saves. Pass the session id to every other tool.",
		InputSchema: inputschema,
	}
}

func SessionOpenToolHandler(ctx context.Context, req *mcp.CallToolRequest, query SessionOpenQuery, creds documents.Credentials, store storage.Store, mgr *session.Manager, log logger.Logger) (*mcp.CallToolResult, *SessionOpenResponse, error) {
	log.Info("session-open tool called")
	res, err := operations.OpenDocument(ctx, operations.OpenParams{
		ZoteroID: query.ZoteroID,
		URL:      query.URL,
		Path:     query.Path,
		RawData:  query.RawData,
		Title:    query.Title,
	}, creds, store, mgr, log)
	if err != nil {
		log.Error("session-open tool failed: %v", err)
		return nil, nil, err
	}

	s := res.Session
	return nil, &SessionOpenResponse{
		SessionID:     s.ID,
		DocumentID:    s.DocumentID,
		Title:         s.Title,
		PageCount:     res.Record.PageCount,
		Reopened:      res.Reopened,
		ResourcePaths: storage.CalculateResourcePaths(s.ID, res.Record.PageCount),
		View:          s.ViewState(),
	}, nil
}
