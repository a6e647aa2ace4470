package rules

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	id "idv/pkg/domain"
	dErrors "idv/pkg/domain-errors"
	"idv/pkg/platform/canonical"
	"idv/pkg/platform/sentinel"
)

// SetKind says why a rule set was evaluated.
type SetKind string

const (
	SetKindWorkflowDecision SetKind = "workflow_decision"
)

// Entry is one rule's line in a snapshot.
type Entry struct {
	RuleInstanceID id.RuleInstanceID
	RuleID         id.RuleID
	Version        int
	Name           string
	Action         Action
	IsShadow       bool
	Fired          bool
}

// RuleSetResult is the immutable audit snapshot of one evaluation. The
// digest covers every field except ID, so a tampered row fails Verify.
type RuleSetResult struct {
	ID            id.RuleSetResultID
	TenantID      id.TenantID
	WorkflowID    id.WorkflowID
	ScopedVaultID id.ScopedVaultID
	PlaybookID    id.PlaybookID
	Kind          SetKind
	Action        *Action
	Entries       []Entry
	RiskSignalIDs []id.RiskSignalID
	Digest        string
	CreatedAt     time.Time
}

// Subject identifies what a snapshot was taken for.
type Subject struct {
	TenantID      id.TenantID
	WorkflowID    id.WorkflowID
	ScopedVaultID id.ScopedVaultID
	PlaybookID    id.PlaybookID
}

// NewRuleSetResult snapshots an evaluation. Signal ids are sorted and the
// timestamp is cut to the precision Postgres stores, so the digest survives a
// round trip.
func NewRuleSetResult(subject Subject, kind SetKind, eval Evaluation, signalIDs []id.RiskSignalID, now time.Time) (RuleSetResult, error) {
	entries := make([]Entry, 0, len(eval.Results))
	for _, r := range eval.Results {
		entries = append(entries, Entry{
			RuleInstanceID: r.Rule.ID,
			RuleID:         r.Rule.RuleID,
			Version:        r.Rule.Version,
			Name:           r.Rule.Name,
			Action:         r.Rule.Action,
			IsShadow:       r.Rule.IsShadow,
			Fired:          r.Fired,
		})
	}
	ids := append([]id.RiskSignalID(nil), signalIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	res := RuleSetResult{
		ID:            id.NewRuleSetResultID(),
		TenantID:      subject.TenantID,
		WorkflowID:    subject.WorkflowID,
		ScopedVaultID: subject.ScopedVaultID,
		PlaybookID:    subject.PlaybookID,
		Kind:          kind,
		Action:        eval.Action,
		Entries:       entries,
		RiskSignalIDs: ids,
		CreatedAt:     now.UTC().Truncate(time.Microsecond),
	}
	digest, err := res.ComputeDigest()
	if err != nil {
		return RuleSetResult{}, err
	}
	res.Digest = digest
	return res, nil
}

// CanonicalBytes is the digest input.
func (r RuleSetResult) CanonicalBytes() ([]byte, error) {
	return canonical.Marshal(r.canonicalForm())
}

// ComputeDigest hashes the canonical form.
func (r RuleSetResult) ComputeDigest() (string, error) {
	d, err := canonical.Digest(r.canonicalForm())
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "digest rule set result")
	}
	return d, nil
}

// Verify recomputes the digest.
func (r RuleSetResult) Verify() error {
	d, err := r.ComputeDigest()
	if err != nil {
		return err
	}
	if d != r.Digest {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "rule set result %s digest mismatch", r.ID)
	}
	return nil
}

func (r RuleSetResult) canonicalForm() map[string]any {
	entries := make([]any, 0, len(r.Entries))
	for _, e := range r.Entries {
		entries = append(entries, map[string]any{
			"rule_instance_id": e.RuleInstanceID.String(),
			"rule_id":          e.RuleID.String(),
			"version":          e.Version,
			"name":             e.Name,
			"action":           e.Action.String(),
			"shadow":           e.IsShadow,
			"fired":            e.Fired,
		})
	}
	signals := make([]any, 0, len(r.RiskSignalIDs))
	for _, s := range r.RiskSignalIDs {
		signals = append(signals, s.String())
	}
	form := map[string]any{
		"tenant_id":       r.TenantID.String(),
		"workflow_id":     r.WorkflowID.String(),
		"scoped_vault_id": r.ScopedVaultID.String(),
		"playbook_id":     r.PlaybookID.String(),
		"kind":            string(r.Kind),
		"entries":         entries,
		"risk_signal_ids": signals,
		"created_at":      r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if r.Action != nil {
		form["action"] = r.Action.String()
	}
	return form
}

// ResultStore persists snapshots. Rows are never updated.
type ResultStore interface {
	Save(ctx context.Context, res RuleSetResult) error
	Get(ctx context.Context, resultID id.RuleSetResultID) (RuleSetResult, error)
	ListByWorkflow(ctx context.Context, workflowID id.WorkflowID) ([]RuleSetResult, error)
}

// InMemoryResultStore keeps snapshots in insertion order.
type InMemoryResultStore struct {
	mu      sync.RWMutex
	results []RuleSetResult
}

func NewInMemoryResultStore() *InMemoryResultStore {
	return &InMemoryResultStore{}
}

func (s *InMemoryResultStore) Save(_ context.Context, res RuleSetResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.results {
		if r.ID == res.ID {
			return fmt.Errorf("save rule set result %s: %w", res.ID, sentinel.ErrConflict)
		}
	}
	s.results = append(s.results, res)
	return nil
}

func (s *InMemoryResultStore) Get(_ context.Context, resultID id.RuleSetResultID) (RuleSetResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.results {
		if r.ID == resultID {
			return r, nil
		}
	}
	return RuleSetResult{}, fmt.Errorf("get rule set result %s: %w", resultID, sentinel.ErrNotFound)
}

func (s *InMemoryResultStore) ListByWorkflow(_ context.Context, workflowID id.WorkflowID) ([]RuleSetResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []RuleSetResult
	for _, r := range s.results {
		if r.WorkflowID == workflowID {
			out = append(out, r)
		}
	}
	return out, nil
}
