package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	id "idv/pkg/domain"
	"idv/pkg/platform/sentinel"
	txcontext "idv/pkg/platform/tx"

	"idv/internal/vault"
)

const uniqueViolation = "23505"

// PostgresSessionStore keeps sessions in incode_verification_session. The
// partial unique index on open sessions enforces one open session per
// document.
type PostgresSessionStore struct {
	db txcontext.DB
	tx txcontext.Runner
}

func NewPostgresSessionStore(db txcontext.DB, runner txcontext.Runner) *PostgresSessionStore {
	return &PostgresSessionStore{db: db, tx: runner}
}

const sessionColumns = `id, scoped_vault_id, identity_document_id, stage, document_type,
	ignored_failure_reasons, latest_failure_reasons, hard_errored,
	front_attempts, back_attempts, selfie_attempts, retry_side, interview_id, token,
	version, created_at, updated_at, completed_at`

func (s *PostgresSessionStore) Latest(ctx context.Context, vaultID id.ScopedVaultID, docID id.IdentityDocumentID) (Session, error) {
	row := txcontext.Executor(ctx, s.db).QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM incode_verification_session
		WHERE scoped_vault_id = $1 AND identity_document_id = $2
		ORDER BY created_at DESC, version DESC
		LIMIT 1`, uuid.UUID(vaultID), uuid.UUID(docID))
	return scanSession(row)
}

func (s *PostgresSessionStore) Create(ctx context.Context, sess Session) error {
	_, err := txcontext.Executor(ctx, s.db).Exec(ctx, `
		INSERT INTO incode_verification_session (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		sessionArgs(sess)...,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", translate(err))
	}
	return nil
}

func (s *PostgresSessionStore) Update(ctx context.Context, sess Session, event SessionEvent) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		db := txcontext.Executor(ctx, s.db)
		tag, err := db.Exec(ctx, `
			UPDATE incode_verification_session SET
				stage = $2, ignored_failure_reasons = $3, latest_failure_reasons = $4, hard_errored = $5,
				front_attempts = $6, back_attempts = $7, selfie_attempts = $8, retry_side = $9,
				interview_id = $10, token = $11, version = $12, updated_at = $13, completed_at = $14
			WHERE id = $1 AND version = $12 - 1`,
			uuid.UUID(sess.ID), string(sess.Stage), reasonStrings(sess.IgnoredFailureReasons),
			reasonStrings(sess.LatestFailureReasons), sess.HardErrored,
			sess.FrontAttempts, sess.BackAttempts, sess.SelfieAttempts, string(sess.RetrySide),
			sess.InterviewID, sess.Token, sess.Version, sess.UpdatedAt, sess.CompletedAt,
		)
		if err != nil {
			return fmt.Errorf("update session: %w", translate(err))
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("update session %s at version %d: %w", sess.ID, sess.Version, sentinel.ErrConflict)
		}

		var resultID *uuid.UUID
		if !event.VerificationResultID.IsNil() {
			u := uuid.UUID(event.VerificationResultID)
			resultID = &u
		}
		_, err = db.Exec(ctx, `
			INSERT INTO incode_verification_session_event (id, session_id, stage, failure_reasons, verification_result_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			event.ID, uuid.UUID(event.SessionID), string(event.Stage), reasonStrings(event.FailureReasons),
			resultID, event.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert session event: %w", err)
		}
		return nil
	})
}

func (s *PostgresSessionStore) Events(ctx context.Context, sessionID id.SessionID) ([]SessionEvent, error) {
	rows, err := txcontext.Executor(ctx, s.db).Query(ctx, `
		SELECT id, session_id, stage, failure_reasons, verification_result_id, created_at
		FROM incode_verification_session_event
		WHERE session_id = $1
		ORDER BY created_at, id`, uuid.UUID(sessionID))
	if err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	defer rows.Close()

	var out []SessionEvent
	for rows.Next() {
		var (
			ev       SessionEvent
			sessID   uuid.UUID
			stage    string
			reasons  []string
			resultID *uuid.UUID
		)
		if err := rows.Scan(&ev.ID, &sessID, &stage, &reasons, &resultID, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session event: %w", err)
		}
		ev.SessionID = id.SessionID(sessID)
		ev.Stage = Stage(stage)
		ev.FailureReasons = toReasons(reasons)
		if resultID != nil {
			ev.VerificationResultID = id.VerificationResultID(*resultID)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session events: %w", err)
	}
	return out, nil
}

func sessionArgs(sess Session) []any {
	return []any{
		uuid.UUID(sess.ID), uuid.UUID(sess.ScopedVaultID), uuid.UUID(sess.IdentityDocumentID),
		string(sess.Stage), string(sess.DocumentType),
		reasonStrings(sess.IgnoredFailureReasons), reasonStrings(sess.LatestFailureReasons), sess.HardErrored,
		sess.FrontAttempts, sess.BackAttempts, sess.SelfieAttempts, string(sess.RetrySide),
		sess.InterviewID, sess.Token, sess.Version, sess.CreatedAt, sess.UpdatedAt, sess.CompletedAt,
	}
}

func scanSession(row pgx.Row) (Session, error) {
	var (
		sess                   Session
		sessID, vaultID, docID uuid.UUID
		stage, docType, side   string
		ignored, latest        []string
		completedAt            *time.Time
	)
	err := row.Scan(&sessID, &vaultID, &docID, &stage, &docType,
		&ignored, &latest, &sess.HardErrored,
		&sess.FrontAttempts, &sess.BackAttempts, &sess.SelfieAttempts, &side, &sess.InterviewID, &sess.Token,
		&sess.Version, &sess.CreatedAt, &sess.UpdatedAt, &completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, fmt.Errorf("get session: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	sess.ID = id.SessionID(sessID)
	sess.ScopedVaultID = id.ScopedVaultID(vaultID)
	sess.IdentityDocumentID = id.IdentityDocumentID(docID)
	sess.Stage, sess.DocumentType, sess.RetrySide = Stage(stage), DocumentType(docType), Side(side)
	sess.IgnoredFailureReasons = toReasons(ignored)
	sess.LatestFailureReasons = toReasons(latest)
	sess.CompletedAt = completedAt
	return sess, nil
}

// PostgresEvidenceStore keeps document records in identity_document.
type PostgresEvidenceStore struct {
	db txcontext.DB
}

func NewPostgresEvidenceStore(db txcontext.DB) *PostgresEvidenceStore {
	return &PostgresEvidenceStore{db: db}
}

func (s *PostgresEvidenceStore) CreateDocument(ctx context.Context, doc IdentityDocument) error {
	_, err := txcontext.Executor(ctx, s.db).Exec(ctx, `
		INSERT INTO identity_document (id, scoped_vault_id, document_type, country_code, collect_selfie,
			front_locator, back_locator, selfie_locator, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.UUID(doc.ID), uuid.UUID(doc.ScopedVaultID), string(doc.DocumentType), doc.CountryCode, doc.CollectSelfie,
		locatorArg(doc.FrontLocator), locatorArg(doc.BackLocator), locatorArg(doc.SelfieLocator), doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert identity document: %w", translate(err))
	}
	return nil
}

func (s *PostgresEvidenceStore) GetDocument(ctx context.Context, docID id.IdentityDocumentID) (IdentityDocument, error) {
	var (
		doc                 IdentityDocument
		docUUID, vaultID    uuid.UUID
		docType             string
		front, back, selfie *string
	)
	err := txcontext.Executor(ctx, s.db).QueryRow(ctx, `
		SELECT id, scoped_vault_id, document_type, country_code, collect_selfie,
			front_locator, back_locator, selfie_locator, created_at
		FROM identity_document WHERE id = $1`, uuid.UUID(docID)).
		Scan(&docUUID, &vaultID, &docType, &doc.CountryCode, &doc.CollectSelfie, &front, &back, &selfie, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return IdentityDocument{}, fmt.Errorf("get identity document: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return IdentityDocument{}, fmt.Errorf("scan identity document: %w", err)
	}
	doc.ID = id.IdentityDocumentID(docUUID)
	doc.ScopedVaultID = id.ScopedVaultID(vaultID)
	doc.DocumentType = DocumentType(docType)
	doc.FrontLocator, doc.BackLocator, doc.SelfieLocator = toLocator(front), toLocator(back), toLocator(selfie)
	return doc, nil
}

var sideColumns = map[Side]string{
	SideFront:  "front_locator",
	SideBack:   "back_locator",
	SideSelfie: "selfie_locator",
}

func (s *PostgresEvidenceStore) SetSide(ctx context.Context, docID id.IdentityDocumentID, side Side, loc *vault.Locator) error {
	column, ok := sideColumns[side]
	if !ok {
		return fmt.Errorf("set side %q: unknown side", side)
	}
	tag, err := txcontext.Executor(ctx, s.db).Exec(ctx,
		`UPDATE identity_document SET `+column+` = $2 WHERE id = $1`,
		uuid.UUID(docID), locatorArg(loc))
	if err != nil {
		return fmt.Errorf("update identity document %s: %w", side, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set %s of identity document %s: %w", side, docID, sentinel.ErrNotFound)
	}
	return nil
}

func reasonStrings(reasons []FailureReason) []string {
	out := make([]string, 0, len(reasons))
	for _, r := range reasons {
		out = append(out, string(r))
	}
	return out
}

func toReasons(ss []string) []FailureReason {
	if len(ss) == 0 {
		return nil
	}
	out := make([]FailureReason, 0, len(ss))
	for _, s := range ss {
		out = append(out, FailureReason(s))
	}
	return out
}

func locatorArg(loc *vault.Locator) *string {
	if loc == nil {
		return nil
	}
	s := string(*loc)
	return &s
}

func toLocator(s *string) *vault.Locator {
	if s == nil {
		return nil
	}
	loc := vault.Locator(*s)
	return &loc
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return sentinel.ErrConflict
	}
	return err
}
