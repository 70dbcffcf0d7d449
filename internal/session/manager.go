package session

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/ocr"
)

// Manager owns the open sessions of a server.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	opts     Options
	ocr      *ocr.Service
	log      logger.Logger
}

type entry struct {
	session *Session
	opened  time.Time
}

// NewManager creates a manager; ocrSvc may be nil when recognition is not
// configured.
func NewManager(opts Options, ocrSvc *ocr.Service, log logger.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*entry),
		opts:     opts,
		ocr:      ocrSvc,
		log:      log,
	}
}

// Open starts a session over a document. Discovery keeps running after ctx
// ends; it stops when the session is closed.
func (m *Manager) Open(ctx context.Context, documentID, title string, data []byte) (*Session, error) {
	id := "ses_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	s, err := New(id, documentID, data, m.opts, m.ocr, m.log.Named(id))
	if err != nil {
		return nil, err
	}
	s.Title = title
	s.Start(context.WithoutCancel(ctx))

	m.mu.Lock()
	m.sessions[id] = &entry{session: s, opened: time.Now()}
	m.mu.Unlock()

	m.log.Info("Opened session %s for %s (%d pages)", id, documentID, s.PageCount())
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	return e.session, nil
}

// Close stops a session and forgets it.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	e.session.Close()
	m.log.Info("Closed session %s", id)
	return nil
}

// List returns open sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	slices.SortFunc(entries, func(a, b *entry) int { return a.opened.Compare(b.opened) })
	out := make([]*Session, len(entries))
	for i, e := range entries {
		out[i] = e.session
	}
	return out
}

// CloseAll closes every session, for server shutdown.
func (m *Manager) CloseAll() {
	for _, s := range m.List() {
		m.Close(s.ID)
	}
}
