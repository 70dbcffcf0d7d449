package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Epistemic-Technology/pdfed/models"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store, creating the parent directory
// when needed. ":memory:" opens a private in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the database tables if they don't exist
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT,
		doc_type TEXT,
		page_count INTEGER,
		size_bytes INTEGER,
		zotero_id TEXT,
		url TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS saves (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		session_id TEXT,
		annotations INTEGER,
		skipped INTEGER,
		encrypted INTEGER,
		size_bytes INTEGER,
		data BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS ocr_results (
		document_id TEXT NOT NULL,
		page_number INTEGER NOT NULL,
		language TEXT NOT NULL,
		result TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (document_id, page_number, language),
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_saves_document_id ON saves(document_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordDocument stores or refreshes the record of an opened document
func (s *SQLiteStore) RecordDocument(ctx context.Context, doc *models.DocumentRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, doc_type, page_count, size_bytes, zotero_id, url)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			page_count = excluded.page_count,
			zotero_id = COALESCE(NULLIF(excluded.zotero_id, ''), documents.zotero_id),
			url = COALESCE(NULLIF(excluded.url, ''), documents.url)
	`, doc.DocumentID, doc.Title, doc.Type, doc.PageCount, doc.SizeBytes,
		doc.SourceInfo.ZoteroID, doc.SourceInfo.URL)
	if err != nil {
		return fmt.Errorf("failed to record document: %w", err)
	}
	return nil
}

// DocumentExists reports whether a document has been recorded
func (s *SQLiteStore) DocumentExists(ctx context.Context, docID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE id = ?`, docID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query document: %w", err)
	}
	return n > 0, nil
}

const documentColumns = `id, title, doc_type, page_count, size_bytes, zotero_id, url, created_at`

func scanDocument(row interface{ Scan(...any) error }) (*models.DocumentRecord, error) {
	var doc models.DocumentRecord
	err := row.Scan(&doc.DocumentID, &doc.Title, &doc.Type, &doc.PageCount, &doc.SizeBytes,
		&doc.SourceInfo.ZoteroID, &doc.SourceInfo.URL, &doc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetDocument retrieves a document record by ID
func (s *SQLiteStore) GetDocument(ctx context.Context, docID string) (*models.DocumentRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, docID)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", docID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns every recorded document, newest first
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]models.DocumentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var documents []models.DocumentRecord
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		documents = append(documents, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return documents, nil
}

// StoreSave stores the bytes of a save and returns the save ID
func (s *SQLiteStore) StoreSave(ctx context.Context, save *models.SaveRecord, data []byte) (string, error) {
	saveID := save.SaveID
	if saveID == "" {
		saveID = "save_" + uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO saves (id, document_id, session_id, annotations, skipped, encrypted, size_bytes, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, saveID, save.DocumentID, save.SessionID, save.Annotations, save.Skipped, save.Encrypted, len(data), data)
	if err != nil {
		return "", fmt.Errorf("failed to insert save: %w", err)
	}
	return saveID, nil
}

const saveColumns = `id, document_id, session_id, annotations, skipped, encrypted, size_bytes, created_at`

func scanSave(row interface{ Scan(...any) error }, extra ...any) (*models.SaveRecord, error) {
	var save models.SaveRecord
	dest := []any{&save.SaveID, &save.DocumentID, &save.SessionID, &save.Annotations,
		&save.Skipped, &save.Encrypted, &save.SizeBytes, &save.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &save, nil
}

// ListSaves returns the saves of a document, newest first
func (s *SQLiteStore) ListSaves(ctx context.Context, docID string) ([]models.SaveRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saveColumns+` FROM saves
		WHERE document_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to query saves: %w", err)
	}
	defer rows.Close()

	var saves []models.SaveRecord
	for rows.Next() {
		save, err := scanSave(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan save: %w", err)
		}
		saves = append(saves, *save)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating saves: %w", err)
	}

	return saves, nil
}

// GetSave retrieves a save and its bytes
func (s *SQLiteStore) GetSave(ctx context.Context, saveID string) (*models.SaveRecord, []byte, error) {
	var data []byte
	row := s.db.QueryRowContext(ctx, `SELECT `+saveColumns+`, data FROM saves WHERE id = ?`, saveID)
	save, err := scanSave(row, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("save %s: %w", saveID, ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query save: %w", err)
	}
	return save, data, nil
}

// GetOCRResult retrieves the cached recognition result for a page
func (s *SQLiteStore) GetOCRResult(ctx context.Context, docID string, pageNum int, language string) ([]byte, error) {
	var result string
	err := s.db.QueryRowContext(ctx, `
		SELECT result FROM ocr_results
		WHERE document_id = ? AND page_number = ? AND language = ?
	`, docID, pageNum, language).Scan(&result)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ocr result %s page %d (%s): %w", docID, pageNum, language, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ocr result: %w", err)
	}
	return []byte(result), nil
}

// StoreOCRResult caches a recognition result for a page
func (s *SQLiteStore) StoreOCRResult(ctx context.Context, docID string, pageNum int, language string, result []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO ocr_results (document_id, page_number, language, result)
		VALUES (?, ?, ?, ?)
	`, docID, pageNum, language, string(result))
	if err != nil {
		return fmt.Errorf("failed to insert ocr result: %w", err)
	}
	return nil
}

// DeleteDocument removes a document with its saves and OCR results
func (s *SQLiteStore) DeleteDocument(ctx context.Context, docID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, docID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("document %s: %w", docID, ErrNotFound)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
