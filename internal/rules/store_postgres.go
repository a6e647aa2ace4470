package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	id "idv/pkg/domain"
	"idv/pkg/platform/sentinel"
	txcontext "idv/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore keeps versions in rule_instance. A partial unique index on
// rule_id guarantees one active version per rule.
type PostgresStore struct {
	db txcontext.DB
	tx txcontext.Runner
}

func NewPostgresStore(db txcontext.DB, runner txcontext.Runner) *PostgresStore {
	return &PostgresStore{db: db, tx: runner}
}

const instanceColumns = `id, rule_id, version, tenant_id, playbook_id, is_live, name, expression,
	action, kind, is_shadow, created_by, created_at, deactivated_at`

func (s *PostgresStore) Create(ctx context.Context, inst Instance) error {
	if err := s.insert(ctx, inst); err != nil {
		return fmt.Errorf("create rule %s: %w", inst.RuleID, err)
	}
	return nil
}

func (s *PostgresStore) Replace(ctx context.Context, old, next Instance) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		tag, err := txcontext.Executor(ctx, s.db).Exec(ctx, `
			UPDATE rule_instance SET deactivated_at = $2
			WHERE id = $1 AND deactivated_at IS NULL AND version = $3`,
			uuid.UUID(old.ID), next.CreatedAt, next.Version-1)
		if err != nil {
			return fmt.Errorf("deactivate rule version: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("replace rule %s: %w", old.RuleID, sentinel.ErrConflict)
		}
		if err := s.insert(ctx, next); err != nil {
			return fmt.Errorf("append rule version: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) insert(ctx context.Context, inst Instance) error {
	expr, err := json.Marshal(inst.Expression)
	if err != nil {
		return fmt.Errorf("encode expression: %w", err)
	}
	_, err = txcontext.Executor(ctx, s.db).Exec(ctx, `
		INSERT INTO rule_instance (`+instanceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		uuid.UUID(inst.ID), uuid.UUID(inst.RuleID), inst.Version, uuid.UUID(inst.TenantID), uuid.UUID(inst.PlaybookID),
		inst.IsLive, inst.Name, expr, inst.Action.String(), string(inst.Kind), inst.IsShadow, inst.CreatedBy,
		inst.CreatedAt, inst.DeactivatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return err
	}
	return nil
}

func (s *PostgresStore) Deactivate(ctx context.Context, ruleID id.RuleID, at time.Time) (Instance, error) {
	row := txcontext.Executor(ctx, s.db).QueryRow(ctx, `
		UPDATE rule_instance SET deactivated_at = $2
		WHERE rule_id = $1 AND deactivated_at IS NULL
		RETURNING `+instanceColumns, uuid.UUID(ruleID), at)
	inst, err := scanInstance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Instance{}, fmt.Errorf("deactivate rule %s: %w", ruleID, sentinel.ErrNotFound)
	}
	if err != nil {
		return Instance{}, fmt.Errorf("deactivate rule %s: %w", ruleID, err)
	}
	return inst, nil
}

func (s *PostgresStore) Active(ctx context.Context, tenantID id.TenantID, playbookID id.PlaybookID) ([]Instance, error) {
	rows, err := txcontext.Executor(ctx, s.db).Query(ctx, `
		SELECT `+instanceColumns+` FROM rule_instance
		WHERE tenant_id = $1 AND playbook_id = $2 AND deactivated_at IS NULL
		ORDER BY name, rule_id`, uuid.UUID(tenantID), uuid.UUID(playbookID))
	if err != nil {
		return nil, fmt.Errorf("query active rules: %w", err)
	}
	out, err := collectInstances(rows)
	if err != nil {
		return nil, err
	}
	sortForEvaluation(out)
	return out, nil
}

func (s *PostgresStore) GetActive(ctx context.Context, ruleID id.RuleID) (Instance, error) {
	row := txcontext.Executor(ctx, s.db).QueryRow(ctx, `
		SELECT `+instanceColumns+` FROM rule_instance
		WHERE rule_id = $1 AND deactivated_at IS NULL`, uuid.UUID(ruleID))
	inst, err := scanInstance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Instance{}, fmt.Errorf("get rule %s: %w", ruleID, sentinel.ErrNotFound)
	}
	if err != nil {
		return Instance{}, fmt.Errorf("get rule %s: %w", ruleID, err)
	}
	return inst, nil
}

func (s *PostgresStore) History(ctx context.Context, ruleID id.RuleID) ([]Instance, error) {
	rows, err := txcontext.Executor(ctx, s.db).Query(ctx, `
		SELECT `+instanceColumns+` FROM rule_instance
		WHERE rule_id = $1 ORDER BY version`, uuid.UUID(ruleID))
	if err != nil {
		return nil, fmt.Errorf("query rule history: %w", err)
	}
	out, err := collectInstances(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("rule history %s: %w", ruleID, sentinel.ErrNotFound)
	}
	return out, nil
}

func collectInstances(rows pgx.Rows) ([]Instance, error) {
	defer rows.Close()
	var out []Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return out, nil
}

func scanInstance(row pgx.Row) (Instance, error) {
	var (
		instID, ruleID, tenantID, playbookID uuid.UUID
		expr                                 []byte
		action, kind                         string
		inst                                 Instance
	)
	if err := row.Scan(&instID, &ruleID, &inst.Version, &tenantID, &playbookID, &inst.IsLive, &inst.Name,
		&expr, &action, &kind, &inst.IsShadow, &inst.CreatedBy, &inst.CreatedAt, &inst.DeactivatedAt); err != nil {
		return Instance{}, err
	}
	inst.ID = id.RuleInstanceID(instID)
	inst.RuleID = id.RuleID(ruleID)
	inst.TenantID = id.TenantID(tenantID)
	inst.PlaybookID = id.PlaybookID(playbookID)
	inst.Kind = Kind(kind)
	if err := json.Unmarshal(expr, &inst.Expression); err != nil {
		return Instance{}, fmt.Errorf("decode expression: %w", err)
	}
	a, err := ParseAction(action)
	if err != nil {
		return Instance{}, fmt.Errorf("decode action: %w", err)
	}
	inst.Action = a
	return inst, nil
}
