package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/storage"
)

// Cache is the subset of storage.Store the service needs.
type Cache interface {
	GetOCRResult(ctx context.Context, docID string, pageNum int, language string) ([]byte, error)
	StoreOCRResult(ctx context.Context, docID string, pageNum int, language string, result []byte) error
}

// Service recognizes pages through an engine, caching results per document
// page and language.
type Service struct {
	engine    Engine
	cache     Cache
	languages []string
	log       logger.Logger
}

// NewService builds a service; cache may be nil.
func NewService(engine Engine, cache Cache, languages []string, log logger.Logger) *Service {
	return &Service{engine: engine, cache: cache, languages: languages, log: log}
}

// Engine returns the underlying engine name.
func (s *Service) Engine() string { return s.engine.Name() }

// Recognize returns the words on one page image. cached reports whether the
// result came from the cache.
func (s *Service) Recognize(ctx context.Context, docID string, pageNum int, png []byte) (result Result, cached bool, err error) {
	in := Input{PageNum: pageNum, Image: png, Languages: s.languages}
	lang := in.Language()

	if s.cache != nil && docID != "" {
		data, err := s.cache.GetOCRResult(ctx, docID, pageNum, lang)
		switch {
		case err == nil:
			if jerr := json.Unmarshal(data, &result); jerr == nil {
				s.log.Debug("OCR cache hit for %s page %d (%s)", docID, pageNum, lang)
				return result, true, nil
			}
			s.log.Warn("Discarding unreadable OCR cache entry for %s page %d", docID, pageNum)
		case !errors.Is(err, storage.ErrNotFound):
			s.log.Warn("OCR cache lookup failed: %v", err)
		}
	}

	result, err = s.engine.Recognize(ctx, in)
	if err != nil {
		return Result{}, false, fmt.Errorf("recognize page %d: %w", pageNum, err)
	}
	result.PageNum = pageNum
	if result.Engine == "" {
		result.Engine = s.engine.Name()
	}
	s.log.Info("Recognized %d words on page %d with %s", len(result.Words), pageNum, result.Engine)

	if s.cache != nil && docID != "" {
		data, err := json.Marshal(result)
		if err == nil {
			err = s.cache.StoreOCRResult(ctx, docID, pageNum, lang, data)
		}
		if err != nil {
			s.log.Warn("Failed to cache OCR result for page %d: %v", pageNum, err)
		}
	}
	return result, false, nil
}
