package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/Epistemic-Technology/pdfed/models"
)

var ErrNotFound = errors.New("storage: not found")

// Store defines the interface for persisting opened documents, saved outputs
// and cached OCR results
type Store interface {
	// RecordDocument stores or refreshes the record of an opened document
	RecordDocument(ctx context.Context, doc *models.DocumentRecord) error

	// DocumentExists reports whether a document has been recorded
	DocumentExists(ctx context.Context, docID string) (bool, error)

	// GetDocument retrieves a document record by ID
	GetDocument(ctx context.Context, docID string) (*models.DocumentRecord, error)

	// ListDocuments returns every recorded document, newest first
	ListDocuments(ctx context.Context) ([]models.DocumentRecord, error)

	// StoreSave stores the bytes of a save and returns the save ID
	StoreSave(ctx context.Context, save *models.SaveRecord, data []byte) (string, error)

	// ListSaves returns the saves of a document, newest first
	ListSaves(ctx context.Context, docID string) ([]models.SaveRecord, error)

	// GetSave retrieves a save and its bytes
	GetSave(ctx context.Context, saveID string) (*models.SaveRecord, []byte, error)

	// GetOCRResult retrieves the cached recognition result for a page
	GetOCRResult(ctx context.Context, docID string, pageNum int, language string) ([]byte, error)

	// StoreOCRResult caches a recognition result for a page
	StoreOCRResult(ctx context.Context, docID string, pageNum int, language string, result []byte) error

	// DeleteDocument removes a document with its saves and OCR results
	DeleteDocument(ctx context.Context, docID string) error

	// Close closes the database connection
	Close() error
}

// GenerateDocumentID derives a stable ID from the document bytes, so the same
// file reopened later maps to the same saves and OCR cache.
func GenerateDocumentID(data []byte) string {
	sum := sha256.Sum256(data)
	return "doc_" + hex.EncodeToString(sum[:12])
}
