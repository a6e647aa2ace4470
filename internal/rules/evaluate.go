package rules

import (
	"slices"

	id "idv/pkg/domain"

	"idv/internal/insight"
	"idv/internal/playbook"
	"idv/internal/risk"
	"idv/internal/vault"
)

// EvalContext is everything besides reason codes a rule may look at.
type EvalContext struct {
	TenantID   id.TenantID
	PlaybookID id.PlaybookID
	Scope      Scope
	IsLive     bool
	// DocumentKinds requested during the current run.
	DocumentKinds []playbook.DocumentKind
	VaultData     map[vault.DataIdentifier]string
	Insight       *insight.Attributes
	// Lists maps a tenant list id to its entries.
	Lists map[string][]string
	// AllowedActions limits which action kinds may select the outcome.
	// Rules with other actions still fire and are recorded. Empty allows
	// every kind.
	AllowedActions []ActionKind
}

func (e EvalContext) allows(a Action) bool {
	return len(e.AllowedActions) == 0 || slices.Contains(e.AllowedActions, a.Kind)
}

// AllActionsExcept lists every action kind other than the excluded ones.
func AllActionsExcept(excluded ...ActionKind) []ActionKind {
	all := []ActionKind{ActionKindFail, ActionKindStepUp, ActionKindManualReview, ActionKindPassWithManualReview}
	return slices.DeleteFunc(all, func(k ActionKind) bool { return slices.Contains(excluded, k) })
}

// Result records whether one rule fired.
type Result struct {
	Rule  Instance
	Fired bool
}

// Evaluation is the outcome of one pass. Action is nil when no non-shadow
// rule fired.
type Evaluation struct {
	Results []Result
	Action  *Action
}

// FiredShadow lists shadow rules that fired.
func (e Evaluation) FiredShadow() []Instance {
	var out []Instance
	for _, r := range e.Results {
		if r.Fired && r.Rule.IsShadow {
			out = append(out, r.Rule)
		}
	}
	return out
}

// Evaluate runs every applicable rule and selects the strongest action among
// fired non-shadow rules whose action ectx allows. It performs no I/O and is
// deterministic for the same inputs.
func Evaluate(rules []Instance, codes []risk.ReasonCode, ectx EvalContext) Evaluation {
	f := newFacts(codes, ectx)

	var (
		results []Result
		fired   []Action
	)
	for _, r := range Applicable(rules, ectx) {
		ok := r.Expression.eval(f)
		results = append(results, Result{Rule: r, Fired: ok})
		if ok && !r.IsShadow && ectx.allows(r.Action) {
			fired = append(fired, r.Action)
		}
	}
	return Evaluation{Results: results, Action: Strongest(fired)}
}

// Applicable filters rules to the active ones in scope for ectx, keeping
// input order.
func Applicable(rules []Instance, ectx EvalContext) []Instance {
	out := make([]Instance, 0, len(rules))
	for _, r := range rules {
		if !r.IsActive() || !r.Kind.applies(ectx.Scope) || r.IsLive != ectx.IsLive {
			continue
		}
		if !r.global() && (r.TenantID != ectx.TenantID || r.PlaybookID != ectx.PlaybookID) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// ApplySignalGuard drops document and selfie signals when the run requested
// no document, so a prior run's document outcome never reaches the rules.
func ApplySignalGuard(signals risk.Grouped, documentKinds []playbook.DocumentKind) risk.Grouped {
	if len(documentKinds) > 0 {
		return signals
	}
	return signals.Without(risk.GroupDoc, risk.GroupSelfie)
}
