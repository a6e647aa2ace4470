package rules

import (
	"context"
	"sort"
	"time"

	id "idv/pkg/domain"
)

// Store is the versioned rule log. Reads of active rules see only current
// versions.
type Store interface {
	Create(ctx context.Context, inst Instance) error
	// Replace deactivates old and appends next in one transaction. It fails
	// with sentinel.ErrConflict when old is no longer the active version.
	Replace(ctx context.Context, old, next Instance) error
	Deactivate(ctx context.Context, ruleID id.RuleID, at time.Time) (Instance, error)
	Active(ctx context.Context, tenantID id.TenantID, playbookID id.PlaybookID) ([]Instance, error)
	GetActive(ctx context.Context, ruleID id.RuleID) (Instance, error)
	// History returns every version, oldest first.
	History(ctx context.Context, ruleID id.RuleID) ([]Instance, error)
}

// sortForEvaluation orders rules by name then rule id so evaluation order
// and snapshots are stable across edits.
func sortForEvaluation(rules []Instance) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Name != rules[j].Name {
			return rules[i].Name < rules[j].Name
		}
		return rules[i].RuleID.String() < rules[j].RuleID.String()
	})
}
