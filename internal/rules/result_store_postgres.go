package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	id "idv/pkg/domain"
	"idv/pkg/platform/sentinel"
	txcontext "idv/pkg/platform/tx"
)

// PostgresResultStore writes snapshots into rule_set_result, rule_result and
// rule_set_result_risk_signal. Save joins the caller's transaction.
type PostgresResultStore struct {
	db txcontext.DB
}

func NewPostgresResultStore(db txcontext.DB) *PostgresResultStore {
	return &PostgresResultStore{db: db}
}

func (s *PostgresResultStore) Save(ctx context.Context, res RuleSetResult) error {
	var action *string
	if res.Action != nil {
		a := res.Action.String()
		action = &a
	}

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO rule_set_result (id, tenant_id, workflow_id, scoped_vault_id, playbook_id, kind, action, digest, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.UUID(res.ID), uuid.UUID(res.TenantID), uuid.UUID(res.WorkflowID), uuid.UUID(res.ScopedVaultID),
		uuid.UUID(res.PlaybookID), string(res.Kind), action, res.Digest, res.CreatedAt)
	for i, e := range res.Entries {
		batch.Queue(`
			INSERT INTO rule_result (rule_set_result_id, rule_instance_id, position, fired)
			VALUES ($1, $2, $3, $4)`,
			uuid.UUID(res.ID), uuid.UUID(e.RuleInstanceID), i, e.Fired)
	}
	for _, sig := range res.RiskSignalIDs {
		batch.Queue(`
			INSERT INTO rule_set_result_risk_signal (rule_set_result_id, risk_signal_id)
			VALUES ($1, $2)`,
			uuid.UUID(res.ID), uuid.UUID(sig))
	}

	br := txcontext.Executor(ctx, s.db).SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert rule set result: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("insert rule set result: %w", err)
	}
	return nil
}

func (s *PostgresResultStore) Get(ctx context.Context, resultID id.RuleSetResultID) (RuleSetResult, error) {
	results, err := s.query(ctx, `WHERE r.id = $1`, uuid.UUID(resultID))
	if err != nil {
		return RuleSetResult{}, err
	}
	if len(results) == 0 {
		return RuleSetResult{}, fmt.Errorf("get rule set result %s: %w", resultID, sentinel.ErrNotFound)
	}
	return results[0], nil
}

func (s *PostgresResultStore) ListByWorkflow(ctx context.Context, workflowID id.WorkflowID) ([]RuleSetResult, error) {
	return s.query(ctx, `WHERE r.workflow_id = $1`, uuid.UUID(workflowID))
}

func (s *PostgresResultStore) query(ctx context.Context, where string, arg any) ([]RuleSetResult, error) {
	db := txcontext.Executor(ctx, s.db)
	rows, err := db.Query(ctx, `
		SELECT r.id, r.tenant_id, r.workflow_id, r.scoped_vault_id, r.playbook_id, r.kind, r.action, r.digest, r.created_at
		FROM rule_set_result r `+where+`
		ORDER BY r.created_at, r.id`, arg)
	if err != nil {
		return nil, fmt.Errorf("query rule set results: %w", err)
	}
	var out []RuleSetResult
	for rows.Next() {
		var (
			resID, tenantID, wfID, vaultID, pbID uuid.UUID
			kind                                 string
			action                               *string
			res                                  RuleSetResult
			createdAt                            time.Time
		)
		if err := rows.Scan(&resID, &tenantID, &wfID, &vaultID, &pbID, &kind, &action, &res.Digest, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan rule set result: %w", err)
		}
		res.ID = id.RuleSetResultID(resID)
		res.TenantID = id.TenantID(tenantID)
		res.WorkflowID = id.WorkflowID(wfID)
		res.ScopedVaultID = id.ScopedVaultID(vaultID)
		res.PlaybookID = id.PlaybookID(pbID)
		res.Kind = SetKind(kind)
		res.CreatedAt = createdAt.UTC()
		if action != nil {
			a, err := ParseAction(*action)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("decode rule set action: %w", err)
			}
			res.Action = &a
		}
		out = append(out, res)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rule set results: %w", err)
	}

	for i := range out {
		if err := s.loadEntries(ctx, db, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *PostgresResultStore) loadEntries(ctx context.Context, db txcontext.DB, res *RuleSetResult) error {
	rows, err := db.Query(ctx, `
		SELECT i.id, i.rule_id, i.version, i.name, i.action, i.is_shadow, rr.fired
		FROM rule_result rr JOIN rule_instance i ON i.id = rr.rule_instance_id
		WHERE rr.rule_set_result_id = $1
		ORDER BY rr.position`, uuid.UUID(res.ID))
	if err != nil {
		return fmt.Errorf("query rule results: %w", err)
	}
	for rows.Next() {
		var (
			instID, ruleID uuid.UUID
			action         string
			e              Entry
		)
		if err := rows.Scan(&instID, &ruleID, &e.Version, &e.Name, &action, &e.IsShadow, &e.Fired); err != nil {
			rows.Close()
			return fmt.Errorf("scan rule result: %w", err)
		}
		e.RuleInstanceID = id.RuleInstanceID(instID)
		e.RuleID = id.RuleID(ruleID)
		if e.Action, err = ParseAction(action); err != nil {
			rows.Close()
			return fmt.Errorf("decode rule result action: %w", err)
		}
		res.Entries = append(res.Entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate rule results: %w", err)
	}

	sigRows, err := db.Query(ctx, `
		SELECT risk_signal_id FROM rule_set_result_risk_signal
		WHERE rule_set_result_id = $1 ORDER BY risk_signal_id::text`, uuid.UUID(res.ID))
	if err != nil {
		return fmt.Errorf("query rule set signals: %w", err)
	}
	defer sigRows.Close()
	for sigRows.Next() {
		var sig uuid.UUID
		if err := sigRows.Scan(&sig); err != nil {
			return fmt.Errorf("scan rule set signal: %w", err)
		}
		res.RiskSignalIDs = append(res.RiskSignalIDs, id.RiskSignalID(sig))
	}
	if err := sigRows.Err(); err != nil {
		return fmt.Errorf("iterate rule set signals: %w", err)
	}
	return nil
}

