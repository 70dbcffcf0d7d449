package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Epistemic-Technology/pdfed/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "pdfed.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func recordSample(t *testing.T, store *SQLiteStore, id string) {
	t.Helper()
	err := store.RecordDocument(context.Background(), &models.DocumentRecord{
		DocumentID: id,
		Title:      "Sample",
		Type:       "pdf",
		PageCount:  3,
		SizeBytes:  1024,
		SourceInfo: models.SourceInfo{URL: "https://example.org/a.pdf"},
	})
	if err != nil {
		t.Fatalf("RecordDocument() error = %v", err)
	}
}

func TestRecordDocument(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	recordSample(t, store, "doc_a")

	exists, err := store.DocumentExists(ctx, "doc_a")
	if err != nil || !exists {
		t.Fatalf("DocumentExists() = %v, %v", exists, err)
	}
	if exists, _ := store.DocumentExists(ctx, "doc_b"); exists {
		t.Error("DocumentExists(doc_b) = true")
	}

	// Re-recording without a URL keeps the known one.
	err = store.RecordDocument(ctx, &models.DocumentRecord{DocumentID: "doc_a", Title: "Renamed", Type: "pdf", PageCount: 2})
	if err != nil {
		t.Fatal(err)
	}
	doc, err := store.GetDocument(ctx, "doc_a")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "Renamed" || doc.PageCount != 2 || doc.SourceInfo.URL != "https://example.org/a.pdf" {
		t.Errorf("GetDocument() = %+v", doc)
	}

	docs, err := store.ListDocuments(ctx)
	if err != nil || len(docs) != 1 {
		t.Errorf("ListDocuments() = %v, %v", docs, err)
	}
	if _, err := store.GetDocument(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDocument(missing) error = %v", err)
	}
}

func TestSaves(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	recordSample(t, store, "doc_a")

	first, err := store.StoreSave(ctx, &models.SaveRecord{DocumentID: "doc_a", SessionID: "s1", Annotations: 2}, []byte("%PDF-1"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := store.StoreSave(ctx, &models.SaveRecord{DocumentID: "doc_a", SessionID: "s1", Annotations: 3, Skipped: 1, Encrypted: true}, []byte("%PDF-22"))
	if err != nil {
		t.Fatal(err)
	}

	saves, err := store.ListSaves(ctx, "doc_a")
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, s := range saves {
		ids = append(ids, s.SaveID)
	}
	if diff := cmp.Diff([]string{second, first}, ids); diff != "" {
		t.Errorf("ListSaves() order mismatch (-want +got):\n%s", diff)
	}

	rec, data, err := store.GetSave(ctx, second)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "%PDF-22" || rec.SizeBytes != 7 || !rec.Encrypted || rec.Skipped != 1 {
		t.Errorf("GetSave() = %+v, %q", rec, data)
	}
	if _, _, err := store.GetSave(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSave(nope) error = %v", err)
	}
}

func TestOCRCache(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	recordSample(t, store, "doc_a")

	if _, err := store.GetOCRResult(ctx, "doc_a", 1, "eng"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetOCRResult() before store error = %v", err)
	}
	if err := store.StoreOCRResult(ctx, "doc_a", 1, "eng", []byte(`{"text":"a"}`)); err != nil {
		t.Fatal(err)
	}
	if err := store.StoreOCRResult(ctx, "doc_a", 1, "eng", []byte(`{"text":"b"}`)); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetOCRResult(ctx, "doc_a", 1, "eng")
	if err != nil || string(got) != `{"text":"b"}` {
		t.Errorf("GetOCRResult() = %s, %v", got, err)
	}
	if _, err := store.GetOCRResult(ctx, "doc_a", 1, "spa"); !errors.Is(err, ErrNotFound) {
		t.Error("results are keyed by language")
	}
}

func TestDeleteDocumentCascades(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	recordSample(t, store, "doc_a")
	saveID, _ := store.StoreSave(ctx, &models.SaveRecord{DocumentID: "doc_a"}, []byte("x"))
	_ = store.StoreOCRResult(ctx, "doc_a", 1, "eng", []byte("{}"))

	if err := store.DeleteDocument(ctx, "doc_a"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := store.GetSave(ctx, saveID); !errors.Is(err, ErrNotFound) {
		t.Errorf("save survived delete: %v", err)
	}
	if _, err := store.GetOCRResult(ctx, "doc_a", 1, "eng"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ocr result survived delete: %v", err)
	}
	if err := store.DeleteDocument(ctx, "doc_a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteDocument() error = %v", err)
	}
}

func TestGenerateDocumentID(t *testing.T) {
	a := GenerateDocumentID([]byte("one"))
	if a != GenerateDocumentID([]byte("one")) {
		t.Error("GenerateDocumentID() is not stable")
	}
	if a == GenerateDocumentID([]byte("two")) {
		t.Error("different bytes produced the same ID")
	}
	if len(a) != len("doc_")+24 {
		t.Errorf("GenerateDocumentID() = %q", a)
	}
}

func TestCalculateResourcePaths(t *testing.T) {
	got := CalculateResourcePaths("s1", 3)
	want := []string{
		"pdfed://s1/annotations",
		"pdfed://s1/saves",
		"pdfed://s1/pages/1/surface",
		"pdfed://s1/pages/3/surface",
		"pdfed://s1/pages/{pageNum}/surface",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("CalculateResourcePaths() mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveResourcePath(t *testing.T) {
	if got := SaveResourcePath("s1", "sav_1"); got != "pdfed://s1/saves/sav_1" {
		t.Errorf("SaveResourcePath() = %q", got)
	}
}
