package document

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "idv/pkg/domain"
)

// Session is the persisted progress of one document through the vendor
// protocol. The durable state is the stage and the counters; the Machine
// holds the rest only for the length of a Run.
type Session struct {
	ID                    id.SessionID
	ScopedVaultID         id.ScopedVaultID
	IdentityDocumentID    id.IdentityDocumentID
	Stage                 Stage
	DocumentType          DocumentType
	IgnoredFailureReasons []FailureReason
	LatestFailureReasons  []FailureReason
	HardErrored           bool
	FrontAttempts         int
	BackAttempts          int
	SelfieAttempts        int
	// RetrySide is the image RetryUpload waits for.
	RetrySide   Side
	InterviewID string
	Token       string
	// Version increments on every write.
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

func newSession(doc IdentityDocument, now time.Time) Session {
	return Session{
		ID:                 id.NewSessionID(),
		ScopedVaultID:      doc.ScopedVaultID,
		IdentityDocumentID: doc.ID,
		Stage:              StageStartOnboarding,
		DocumentType:       doc.DocumentType,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Attempts is the retry counter for side.
func (s Session) Attempts(side Side) int {
	switch side {
	case SideFront:
		return s.FrontAttempts
	case SideBack:
		return s.BackAttempts
	case SideSelfie:
		return s.SelfieAttempts
	}
	return 0
}

func (s *Session) incAttempts(side Side) {
	switch side {
	case SideFront:
		s.FrontAttempts++
	case SideBack:
		s.BackAttempts++
	case SideSelfie:
		s.SelfieAttempts++
	}
}

// SessionEvent logs one stage the session entered.
type SessionEvent struct {
	ID                   uuid.UUID
	SessionID            id.SessionID
	Stage                Stage
	FailureReasons       []FailureReason
	VerificationResultID id.VerificationResultID
	CreatedAt            time.Time
}

// SessionStore persists sessions and their event log.
type SessionStore interface {
	// Latest returns the newest session for the document, open or closed,
	// or sentinel.ErrNotFound.
	Latest(ctx context.Context, vaultID id.ScopedVaultID, docID id.IdentityDocumentID) (Session, error)
	// Create fails with sentinel.ErrConflict while another session for the
	// same document is open.
	Create(ctx context.Context, sess Session) error
	// Update writes sess when the stored version is sess.Version-1 and
	// appends event. A stale version fails with sentinel.ErrConflict.
	Update(ctx context.Context, sess Session, event SessionEvent) error
	Events(ctx context.Context, sessionID id.SessionID) ([]SessionEvent, error)
}
