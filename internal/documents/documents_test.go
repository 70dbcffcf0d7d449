package documents

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Epistemic-Technology/pdfed/models"
)

func TestDetectDocumentType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{
			name:     "PDF document",
			data:     []byte("%PDF-1.4\nsome pdf content"),
			expected: "pdf",
		},
		{
			name:     "PDF with leading junk",
			data:     []byte("\r\n\x00garbage%PDF-1.7\n"),
			expected: "pdf",
		},
		{
			name:     "PNG image",
			data:     []byte("\x89PNG\r\n\x1a\n\x00\x00"),
			expected: "png",
		},
		{
			name:     "JPEG image",
			data:     []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00},
			expected: "jpeg",
		},
		{
			name:     "HTML page",
			data:     []byte("<!DOCTYPE html><html><body>test</body></html>"),
			expected: "unknown",
		},
		{
			name:     "Empty data",
			data:     []byte{},
			expected: "unknown",
		},
		{
			name:     "Very short data",
			data:     []byte("%P"),
			expected: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DetectDocumentType(tt.data)
			if result != tt.expected {
				t.Errorf("DetectDocumentType() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestGetData(t *testing.T) {
	ctx := context.Background()
	pdf := []byte("%PDF-1.4\n%%EOF\n")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.pdf" {
			http.NotFound(w, r)
			return
		}
		w.Write(pdf)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "local.pdf")
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("url", func(t *testing.T) {
		got, err := GetData(ctx, models.SourceInfo{URL: srv.URL + "/paper.pdf"}, Credentials{})
		if err != nil {
			t.Fatalf("GetData() error = %v", err)
		}
		if got.Type != "pdf" || string(got.Data) != string(pdf) {
			t.Errorf("GetData() = %+v", got)
		}
	})

	t.Run("url not found", func(t *testing.T) {
		if _, err := GetData(ctx, models.SourceInfo{URL: srv.URL + "/missing.pdf"}, Credentials{}); err == nil {
			t.Error("GetData() accepted a 404")
		}
	})

	t.Run("path", func(t *testing.T) {
		got, err := GetData(ctx, models.SourceInfo{Path: path}, Credentials{})
		if err != nil || got.Type != "pdf" {
			t.Errorf("GetData() = %+v, %v", got, err)
		}
	})

	t.Run("no source", func(t *testing.T) {
		if _, err := GetData(ctx, models.SourceInfo{}, Credentials{}); !errors.Is(err, ErrNoSource) {
			t.Errorf("GetData() error = %v", err)
		}
	})

	t.Run("zotero without credentials", func(t *testing.T) {
		if _, err := GetData(ctx, models.SourceInfo{ZoteroID: "ABCD1234"}, Credentials{}); !errors.Is(err, ErrNoZoteroKey) {
			t.Errorf("GetData() error = %v", err)
		}
	})
}

func TestTitle(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		explicit string
		src      models.SourceInfo
		want     string
	}{
		{"explicit wins", "Contract", models.SourceInfo{URL: "https://x.test/a.pdf"}, "Contract"},
		{"url base name", "", models.SourceInfo{URL: "https://x.test/files/report.pdf?dl=1"}, "report.pdf"},
		{"path base name", "", models.SourceInfo{Path: "/tmp/scans/invoice.pdf"}, "invoice.pdf"},
		{"zotero falls through without key", "", models.SourceInfo{ZoteroID: "ABCD1234"}, ""},
		{"nothing", "", models.SourceInfo{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Title(ctx, tt.explicit, tt.src, Credentials{}); got != tt.want {
				t.Errorf("Title() = %q, want %q", got, tt.want)
			}
		})
	}
}

// Integration test - requires ZOTERO_API_KEY and ZOTERO_LIBRARY_ID
func TestFetchZoteroTitle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	apiKey := os.Getenv("ZOTERO_API_KEY")
	libraryID := os.Getenv("ZOTERO_LIBRARY_ID")
	itemID := os.Getenv("PDFED_TEST_ZOTERO_ITEM")
	if apiKey == "" || libraryID == "" || itemID == "" {
		t.Skip("Skipping Zotero test: credentials or PDFED_TEST_ZOTERO_ITEM not set")
	}
	title, err := FetchZoteroTitle(context.Background(), itemID, apiKey, libraryID)
	if err != nil {
		t.Fatalf("FetchZoteroTitle() error = %v", err)
	}
	if title == "" {
		t.Error("FetchZoteroTitle() returned an empty title")
	}
}
