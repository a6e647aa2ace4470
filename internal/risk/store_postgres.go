package risk

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	id "idv/pkg/domain"
	"idv/pkg/platform/sentinel"
	txcontext "idv/pkg/platform/tx"
)

// PostgresStore persists signals in risk_signal and checks in risk_check.
type PostgresStore struct {
	db txcontext.DB
}

func NewPostgresStore(db txcontext.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, signals []Signal) error {
	return s.Record(ctx, checksOf(signals), signals)
}

func (s *PostgresStore) Record(ctx context.Context, checks []Check, signals []Signal) error {
	if len(checks) == 0 && len(signals) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range checks {
		batch.Queue(`
			INSERT INTO risk_check (verification_result_id, group_kind, scoped_vault_id, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (verification_result_id, group_kind) DO NOTHING`,
			uuid.UUID(c.VerificationResultID), string(c.Group), uuid.UUID(c.ScopedVaultID), c.CreatedAt,
		)
	}
	for _, sig := range signals {
		batch.Queue(`
			INSERT INTO risk_signal (id, scoped_vault_id, reason_code, vendor_api,
				verification_result_id, severity, group_kind, hidden, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			uuid.UUID(sig.ID), uuid.UUID(sig.ScopedVaultID), string(sig.ReasonCode), sig.VendorAPI,
			uuid.UUID(sig.VerificationResultID), string(sig.Severity), string(sig.Group), sig.Hidden, sig.CreatedAt,
		)
	}
	if err := txcontext.Executor(ctx, s.db).SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert risk signals: %w", err)
	}
	return nil
}

func (s *PostgresStore) LatestByGroup(ctx context.Context, vaultID id.ScopedVaultID) (Grouped, error) {
	query := `
		WITH latest AS (
			SELECT DISTINCT ON (group_kind) group_kind, verification_result_id
			FROM risk_check
			WHERE scoped_vault_id = $1
			ORDER BY group_kind, created_at DESC, seq DESC
		)
		SELECT s.id, s.scoped_vault_id, s.reason_code, s.vendor_api, s.verification_result_id,
			s.severity, s.group_kind, s.hidden, s.created_at
		FROM risk_signal s
		JOIN latest l ON l.group_kind = s.group_kind AND l.verification_result_id = s.verification_result_id
		WHERE s.scoped_vault_id = $1 AND NOT s.hidden
		ORDER BY s.group_kind, s.reason_code, s.id
	`
	rows, err := txcontext.Executor(ctx, s.db).Query(ctx, query, uuid.UUID(vaultID))
	if err != nil {
		return nil, fmt.Errorf("query risk signals: %w", err)
	}
	defer rows.Close()

	out := make(Grouped)
	for rows.Next() {
		var (
			sig                    Signal
			sigID, vault, resultID uuid.UUID
			code, severity, group  string
		)
		if err := rows.Scan(&sigID, &vault, &code, &sig.VendorAPI, &resultID,
			&severity, &group, &sig.Hidden, &sig.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan risk signal: %w", err)
		}
		sig.ID = id.RiskSignalID(sigID)
		sig.ScopedVaultID = id.ScopedVaultID(vault)
		sig.VerificationResultID = id.VerificationResultID(resultID)
		sig.ReasonCode = ReasonCode(code)
		sig.Severity = Severity(severity)
		sig.Group = Group(group)
		out[sig.Group] = append(out[sig.Group], sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate risk signals: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Hide(ctx context.Context, signalID id.RiskSignalID) error {
	tag, err := txcontext.Executor(ctx, s.db).Exec(ctx,
		`UPDATE risk_signal SET hidden = TRUE WHERE id = $1`, uuid.UUID(signalID))
	if err != nil {
		return fmt.Errorf("hide risk signal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
