package operations

import (
	"context"
	"errors"
	"fmt"

	"github.com/Epistemic-Technology/pdfed/internal/documents"
	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/render"
	"github.com/Epistemic-Technology/pdfed/internal/session"
	"github.com/Epistemic-Technology/pdfed/internal/storage"
	"github.com/Epistemic-Technology/pdfed/models"
)

// OpenParams name where a document comes from. Exactly one of ZoteroID,
// URL, Path and RawData is expected; RawData wins when several are set.
type OpenParams struct {
	ZoteroID string
	URL      string
	Path     string
	RawData  []byte
	Title    string
}

// OpenResult is a freshly opened session and the document it edits.
type OpenResult struct {
	Session *session.Session
	Record  *models.DocumentRecord
	// Reopened reports whether the same bytes were opened before.
	Reopened bool
}

// OpenDocument fetches a PDF, records it in the store and starts an editing
// session over it. This function encapsulates the open flow shared by the
// session-open tool and the CLI.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - params: Document source and optional title
//   - creds: Zotero credentials, used for Zotero sources and titles
//   - store: Storage backend for document records
//   - mgr: Session manager that owns the new session
//   - log: Logger for recording operations
//
// Returns:
//   - result: The session and its document record
//   - error: Any error encountered during the process
func OpenDocument(ctx context.Context, params OpenParams, creds documents.Credentials, store storage.Store, mgr *session.Manager, log logger.Logger) (*OpenResult, error) {
	src := models.SourceInfo{
		ZoteroID: params.ZoteroID,
		URL:      params.URL,
		Path:     params.Path,
	}

	var data models.DocumentData
	var err error
	if params.RawData != nil {
		data = models.DocumentData{
			Data: params.RawData,
			Type: documents.DetectDocumentType(params.RawData),
		}
		src = models.SourceInfo{}
	} else {
		data, err = documents.GetData(ctx, src, creds)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch document: %w", err)
		}
	}
	if data.Type != "pdf" {
		return nil, fmt.Errorf("detected %s: %w", data.Type, documents.ErrNotPDF)
	}

	docID := storage.GenerateDocumentID(data.Data)
	previous, err := store.GetDocument(ctx, docID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to check document existence: %w", err)
	}

	title := documents.Title(ctx, params.Title, src, creds)
	if title == "" && previous != nil {
		title = previous.Title
	}

	s, err := mgr.Open(ctx, docID, title, data.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}

	record := &models.DocumentRecord{
		DocumentID: docID,
		Title:      title,
		Type:       data.Type,
		PageCount:  s.PageCount(),
		SizeBytes:  len(data.Data),
		SourceInfo: src,
	}
	if err := store.RecordDocument(ctx, record); err != nil {
		log.Error("Failed to record document %s: %v", docID, err)
	}

	return &OpenResult{Session: s, Record: record, Reopened: previous != nil}, nil
}

// SaveOptions select plain or password-protected output.
type SaveOptions struct {
	UserPassword  string
	OwnerPassword string
	Protect       bool
}

// SaveDocument renders a session's annotations into the document, stores the
// result and returns it with the replay report.
func SaveDocument(ctx context.Context, s *session.Session, opts SaveOptions, store storage.Store, log logger.Logger) (*models.SaveRecord, []byte, render.ReplayReport, error) {
	var data []byte
	var report render.ReplayReport
	var err error
	if opts.Protect {
		data, report, err = s.Protect(opts.UserPassword, opts.OwnerPassword)
	} else {
		data, report, err = s.Save()
	}
	if err != nil {
		return nil, nil, report, fmt.Errorf("failed to save session %s: %w", s.ID, err)
	}
	for _, f := range report.Failed {
		log.Warn("Skipped %s annotation %s on save: %s", f.Type, f.ID, f.Err)
	}

	record := &models.SaveRecord{
		DocumentID:  s.DocumentID,
		SessionID:   s.ID,
		Annotations: report.Applied,
		Skipped:     len(report.Failed),
		Encrypted:   opts.Protect,
		SizeBytes:   len(data),
	}
	id, err := store.StoreSave(ctx, record, data)
	if err != nil {
		return nil, nil, report, fmt.Errorf("failed to store save: %w", err)
	}
	record.SaveID = id
	log.Info("Saved %s as %s (%d annotations, %d bytes)", s.DocumentID, id, report.Applied, len(data))
	return record, data, report, nil
}
