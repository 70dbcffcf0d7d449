package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/Epistemic-Technology/pdfed/models"
	"github.com/Epistemic-Technology/zotero/zotero"
)

var (
	ErrNoSource    = errors.New("documents: no source provided")
	ErrNoData      = errors.New("documents: no data retrieved")
	ErrNotPDF      = errors.New("documents: not a PDF document")
	ErrNoZoteroKey = errors.New("documents: Zotero API key and library ID are required")
)

// maxDownload caps documents fetched over HTTP.
const maxDownload = 256 << 20

// Credentials authenticate Zotero access.
type Credentials struct {
	ZoteroAPIKey    string
	ZoteroLibraryID string
}

// DetectDocumentType determines the type of document from the raw data
// by checking magic bytes
func DetectDocumentType(data []byte) string {
	switch {
	case len(data) < 4:
		return "unknown"
	case bytes.HasPrefix(data, []byte("%PDF")):
		return "pdf"
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return "png"
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "jpeg"
	}

	// Some producers emit junk before the header; readers accept it within
	// the first kilobyte.
	if bytes.Contains(data[:min(len(data), 1024)], []byte("%PDF-")) {
		return "pdf"
	}
	return "unknown"
}

// GetData retrieves document data from a source and detects its type.
// Exactly one of the source fields is used, in the order Zotero, URL, path.
func GetData(ctx context.Context, src models.SourceInfo, creds Credentials) (models.DocumentData, error) {
	var data []byte
	var err error

	switch {
	case src.ZoteroID != "":
		data, err = GetFromZotero(ctx, src.ZoteroID, creds.ZoteroAPIKey, creds.ZoteroLibraryID)
	case src.URL != "":
		data, err = GetFromURL(ctx, src.URL)
	case src.Path != "":
		data, err = os.ReadFile(src.Path)
	default:
		return models.DocumentData{}, ErrNoSource
	}
	if err != nil {
		return models.DocumentData{}, err
	}
	if len(data) == 0 {
		return models.DocumentData{}, ErrNoData
	}

	return models.DocumentData{
		Data: data,
		Type: DetectDocumentType(data),
	}, nil
}

// GetFromURL fetches document data from a URL
func GetFromURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: %s", url, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDownload))
}

// GetFromZotero fetches an attachment file from a Zotero library
func GetFromZotero(ctx context.Context, zoteroID string, apiKey string, libraryID string) ([]byte, error) {
	if apiKey == "" || libraryID == "" {
		return nil, ErrNoZoteroKey
	}
	client := zotero.NewClient(libraryID, zotero.LibraryTypeUser, zotero.WithAPIKey(apiKey))
	data, err := client.File(ctx, zoteroID)
	if err != nil {
		return nil, fmt.Errorf("fetching Zotero attachment %s: %w", zoteroID, err)
	}
	return data, nil
}
