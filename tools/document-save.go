package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/operations"
	"github.com/Epistemic-Technology/pdfed/internal/session"
	"github.com/Epistemic-Technology/pdfed/internal/storage"
	"github.com/Epistemic-Technology/pdfed/models"
)

type DocumentSaveQuery struct {
	SessionID string `json:"session_id"`
	// FormValues are merged into the session's form values before saving;
	// an empty value clears a field.
	FormValues map[string]string `json:"form_values,omitempty"`
	// Password protection. Protect with empty passwords is rejected.
	Protect       bool   `json:"protect,omitempty"`
	UserPassword  string `json:"user_password,omitempty"`
	OwnerPassword string `json:"owner_password,omitempty"`
	// IncludeData returns the saved PDF inline as well as through the saves
	// resource.
	IncludeData bool `json:"include_data,omitempty"`
}

type DocumentSaveResponse struct {
	SaveID      string                 `json:"save_id"`
	DocumentID  string                 `json:"document_id"`
	Annotations int                    `json:"annotations"`
	Encrypted   bool                   `json:"encrypted,omitempty"`
	SizeBytes   int                    `json:"size_bytes"`
	Failed      []models.ReplayFailure `json:"failed,omitempty"`
	Resource    string                 `json:"resource"`
	Data        []byte                 `json:"data,omitempty"`
}

func DocumentSaveTool() *mcp.Tool {
	inputschema, err := jsonschema.For[DocumentSaveQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "document-save",
		Description: "Render every annotation, overlay and form value into the original document and store the result. A save never fails because of one bad annotation: those are skipped and reported. Optionally encrypts the output with passwords.",
		InputSchema: inputschema,
	}
}

func DocumentSaveToolHandler(ctx context.Context, req *mcp.CallToolRequest, query DocumentSaveQuery, mgr *session.Manager, store storage.Store, log logger.Logger) (*mcp.CallToolResult, *DocumentSaveResponse, error) {
	log.Info("document-save tool called")
	s, err := getSession(mgr, query.SessionID)
	if err != nil {
		return nil, nil, err
	}
	if len(query.FormValues) > 0 {
		s.SetFormValues(query.FormValues)
	}

	record, data, report, err := operations.SaveDocument(ctx, s, operations.SaveOptions{
		Protect:       query.Protect,
		UserPassword:  query.UserPassword,
		OwnerPassword: query.OwnerPassword,
	}, store, log)
	if err != nil {
		return nil, nil, err
	}

	resp := &DocumentSaveResponse{
		SaveID:      record.SaveID,
		DocumentID:  record.DocumentID,
		Annotations: record.Annotations,
		Encrypted:   record.Encrypted,
		SizeBytes:   record.SizeBytes,
		Failed:      failureInfos(report),
		Resource:    storage.SaveResourcePath(s.ID, record.SaveID),
	}
	if query.IncludeData {
		resp.Data = data
	}
	return nil, resp, nil
}
