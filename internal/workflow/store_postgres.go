package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	id "idv/pkg/domain"
	"idv/pkg/platform/sentinel"
	txcontext "idv/pkg/platform/tx"
)

// PostgresStore keeps workflows in workflow and their log in workflow_event.
type PostgresStore struct {
	db txcontext.DB
	tx txcontext.Runner
}

func NewPostgresStore(db txcontext.DB, runner txcontext.Runner) *PostgresStore {
	return &PostgresStore{db: db, tx: runner}
}

const workflowColumns = `id, tenant_id, scoped_vault_id, playbook_id, kind, state, decision_intent_id,
	is_redo, is_sandbox, document_collected, decision, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, wf Workflow) error {
	decision, err := encodeDecision(wf.Decision)
	if err != nil {
		return err
	}
	_, err = txcontext.Executor(ctx, s.db).Exec(ctx, `
		INSERT INTO workflow (`+workflowColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		uuid.UUID(wf.ID), uuid.UUID(wf.TenantID), uuid.UUID(wf.ScopedVaultID), uuid.UUID(wf.PlaybookID),
		string(wf.Kind), string(wf.State), uuid.UUID(wf.DecisionIntentID),
		wf.IsRedo, wf.IsSandbox, wf.DocumentCollected, decision, wf.CreatedAt, wf.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, workflowID id.WorkflowID) (Workflow, error) {
	row := txcontext.Executor(ctx, s.db).QueryRow(ctx,
		`SELECT `+workflowColumns+` FROM workflow WHERE id = $1`, uuid.UUID(workflowID))
	return scanWorkflow(row)
}

func (s *PostgresStore) Events(ctx context.Context, workflowID id.WorkflowID) ([]Event, error) {
	rows, err := txcontext.Executor(ctx, s.db).Query(ctx, `
		SELECT id, workflow_id, from_state, to_state, action, created_at
		FROM workflow_event WHERE workflow_id = $1
		ORDER BY created_at, id`, uuid.UUID(workflowID))
	if err != nil {
		return nil, fmt.Errorf("query workflow events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev       Event
			wfID     uuid.UUID
			from, to string
			action   string
		)
		if err := rows.Scan(&ev.ID, &wfID, &from, &to, &action, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan workflow event: %w", err)
		}
		ev.WorkflowID = id.WorkflowID(wfID)
		ev.FromState, ev.ToState, ev.Action = State(from), State(to), ActionKind(action)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workflow events: %w", err)
	}
	return out, nil
}

// Transition holds SELECT ... FOR UPDATE on the row for the whole of fn, so
// concurrent actions on one workflow serialize.
func (s *PostgresStore) Transition(ctx context.Context, workflowID id.WorkflowID, fn TransitionFunc) (Workflow, error) {
	var next Workflow
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		db := txcontext.Executor(ctx, s.db)
		current, err := scanWorkflow(db.QueryRow(ctx,
			`SELECT `+workflowColumns+` FROM workflow WHERE id = $1 FOR UPDATE`, uuid.UUID(workflowID)))
		if err != nil {
			return err
		}

		var event Event
		next, event, err = fn(ctx, current)
		if err != nil {
			return err
		}

		decision, err := encodeDecision(next.Decision)
		if err != nil {
			return err
		}
		_, err = db.Exec(ctx, `
			UPDATE workflow SET state = $2, is_redo = $3, document_collected = $4, decision = $5, updated_at = $6
			WHERE id = $1`,
			uuid.UUID(next.ID), string(next.State), next.IsRedo, next.DocumentCollected, decision, next.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update workflow state: %w", err)
		}
		_, err = db.Exec(ctx, `
			INSERT INTO workflow_event (id, workflow_id, from_state, to_state, action, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			event.ID, uuid.UUID(event.WorkflowID), string(event.FromState), string(event.ToState),
			string(event.Action), event.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert workflow event: %w", err)
		}
		return nil
	})
	if err != nil {
		return Workflow{}, err
	}
	return next, nil
}

func encodeDecision(d *Decision) ([]byte, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode decision: %w", err)
	}
	return b, nil
}

func scanWorkflow(row pgx.Row) (Workflow, error) {
	var (
		wf                                            Workflow
		wfID, tenantID, vaultID, playbookID, intentID uuid.UUID
		kind, state                                   string
		decision                                      []byte
	)
	err := row.Scan(&wfID, &tenantID, &vaultID, &playbookID, &kind, &state, &intentID,
		&wf.IsRedo, &wf.IsSandbox, &wf.DocumentCollected, &decision, &wf.CreatedAt, &wf.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Workflow{}, fmt.Errorf("get workflow: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return Workflow{}, fmt.Errorf("scan workflow: %w", err)
	}
	wf.ID = id.WorkflowID(wfID)
	wf.TenantID = id.TenantID(tenantID)
	wf.ScopedVaultID = id.ScopedVaultID(vaultID)
	wf.PlaybookID = id.PlaybookID(playbookID)
	wf.DecisionIntentID = id.DecisionIntentID(intentID)
	wf.Kind, wf.State = Kind(kind), State(state)
	if len(decision) > 0 {
		wf.Decision = &Decision{}
		if err := json.Unmarshal(decision, wf.Decision); err != nil {
			return Workflow{}, fmt.Errorf("decode decision: %w", err)
		}
	}
	return wf, nil
}
