package document

import (
	"context"
	"fmt"
	"slices"
	"sync"

	id "idv/pkg/domain"
	"idv/pkg/platform/sentinel"

	"idv/internal/vault"
)

// InMemorySessionStore keeps sessions in creation order.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions []Session
	events   map[id.SessionID][]SessionEvent
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{events: make(map[id.SessionID][]SessionEvent)}
}

func (s *InMemorySessionStore) Latest(_ context.Context, vaultID id.ScopedVaultID, docID id.IdentityDocumentID) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.sessions) - 1; i >= 0; i-- {
		sess := s.sessions[i]
		if sess.ScopedVaultID == vaultID && sess.IdentityDocumentID == docID {
			return cloneSession(sess), nil
		}
	}
	return Session{}, fmt.Errorf("latest session for document %s: %w", docID, sentinel.ErrNotFound)
}

func (s *InMemorySessionStore) Create(_ context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sessions {
		if existing.ID == sess.ID {
			return fmt.Errorf("create session %s: %w", sess.ID, sentinel.ErrConflict)
		}
		if existing.CompletedAt == nil &&
			existing.ScopedVaultID == sess.ScopedVaultID &&
			existing.IdentityDocumentID == sess.IdentityDocumentID {
			return fmt.Errorf("open session exists for document %s: %w", sess.IdentityDocumentID, sentinel.ErrConflict)
		}
	}
	s.sessions = append(s.sessions, cloneSession(sess))
	return nil
}

func (s *InMemorySessionStore) Update(_ context.Context, sess Session, event SessionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.sessions, func(existing Session) bool { return existing.ID == sess.ID })
	if i < 0 {
		return fmt.Errorf("update session %s: %w", sess.ID, sentinel.ErrNotFound)
	}
	if s.sessions[i].Version != sess.Version-1 {
		return fmt.Errorf("update session %s at version %d: %w", sess.ID, sess.Version, sentinel.ErrConflict)
	}
	s.sessions[i] = cloneSession(sess)
	s.events[sess.ID] = append(s.events[sess.ID], event)
	return nil
}

func (s *InMemorySessionStore) Events(_ context.Context, sessionID id.SessionID) ([]SessionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events[sessionID]), nil
}

func cloneSession(sess Session) Session {
	sess.IgnoredFailureReasons = slices.Clone(sess.IgnoredFailureReasons)
	sess.LatestFailureReasons = slices.Clone(sess.LatestFailureReasons)
	return sess
}

// InMemoryEvidenceStore holds document records for local runs and tests.
type InMemoryEvidenceStore struct {
	mu   sync.RWMutex
	docs map[id.IdentityDocumentID]IdentityDocument
}

func NewInMemoryEvidenceStore() *InMemoryEvidenceStore {
	return &InMemoryEvidenceStore{docs: make(map[id.IdentityDocumentID]IdentityDocument)}
}

func (s *InMemoryEvidenceStore) CreateDocument(_ context.Context, doc IdentityDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; ok {
		return fmt.Errorf("create identity document %s: %w", doc.ID, sentinel.ErrConflict)
	}
	s.docs[doc.ID] = doc
	return nil
}

func (s *InMemoryEvidenceStore) GetDocument(_ context.Context, docID id.IdentityDocumentID) (IdentityDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[docID]
	if !ok {
		return IdentityDocument{}, fmt.Errorf("get identity document %s: %w", docID, sentinel.ErrNotFound)
	}
	return doc, nil
}

func (s *InMemoryEvidenceStore) SetSide(_ context.Context, docID id.IdentityDocumentID, side Side, loc *vault.Locator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[docID]
	if !ok {
		return fmt.Errorf("set %s of identity document %s: %w", side, docID, sentinel.ErrNotFound)
	}
	doc.setLocator(side, loc)
	s.docs[docID] = doc
	return nil
}
