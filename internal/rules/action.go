package rules

import (
	"strings"

	dErrors "idv/pkg/domain-errors"
)

// ActionKind is the outcome family a rule produces when it fires.
type ActionKind string

const (
	ActionKindFail                 ActionKind = "fail"
	ActionKindStepUp               ActionKind = "step_up"
	ActionKindManualReview         ActionKind = "manual_review"
	ActionKindPassWithManualReview ActionKind = "pass_with_manual_review"
)

// StepUpKind is the extra evidence a step-up asks for, in increasing
// thoroughness.
type StepUpKind string

const (
	StepUpIdentity                         StepUpKind = "identity"
	StepUpIdentityProofOfSsn               StepUpKind = "identity_proof_of_ssn"
	StepUpIdentityProofOfSsnProofOfAddress StepUpKind = "identity_proof_of_ssn_proof_of_address"
)

var stepUpRank = map[StepUpKind]int{
	StepUpIdentity:                         1,
	StepUpIdentityProofOfSsn:               2,
	StepUpIdentityProofOfSsnProofOfAddress: 3,
}

// Action is what a fired rule asks for. StepUp is set only for step-ups.
type Action struct {
	Kind   ActionKind
	StepUp StepUpKind
}

var (
	Fail                 = Action{Kind: ActionKindFail}
	ManualReview         = Action{Kind: ActionKindManualReview}
	PassWithManualReview = Action{Kind: ActionKindPassWithManualReview}
)

// StepUp builds a step-up action.
func StepUp(kind StepUpKind) Action {
	return Action{Kind: ActionKindStepUp, StepUp: kind}
}

// ParseAction reads the text form: "fail", "manual_review",
// "pass_with_manual_review" or "step_up.<kind>".
func ParseAction(s string) (Action, error) {
	switch ActionKind(s) {
	case ActionKindFail, ActionKindManualReview, ActionKindPassWithManualReview:
		return Action{Kind: ActionKind(s)}, nil
	}
	if rest, ok := strings.CutPrefix(s, string(ActionKindStepUp)+"."); ok {
		a := StepUp(StepUpKind(rest))
		if err := a.Validate(); err != nil {
			return Action{}, err
		}
		return a, nil
	}
	return Action{}, dErrors.Newf(dErrors.CodeValidation, "unknown rule action %q", s)
}

func (a Action) String() string {
	if a.Kind == ActionKindStepUp {
		return string(ActionKindStepUp) + "." + string(a.StepUp)
	}
	return string(a.Kind)
}

func (a Action) MarshalText() ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(b []byte) error {
	parsed, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Validate checks the action is one of the known variants.
func (a Action) Validate() error {
	switch a.Kind {
	case ActionKindFail, ActionKindManualReview, ActionKindPassWithManualReview:
		if a.StepUp != "" {
			return dErrors.Newf(dErrors.CodeValidation, "%s action cannot carry a step-up kind", a.Kind)
		}
		return nil
	case ActionKindStepUp:
		if _, ok := stepUpRank[a.StepUp]; !ok {
			return dErrors.Newf(dErrors.CodeValidation, "unknown step-up kind %q", a.StepUp)
		}
		return nil
	}
	return dErrors.Newf(dErrors.CodeValidation, "unknown rule action kind %q", a.Kind)
}

// Rank orders actions: Fail > StepUp (by thoroughness) > ManualReview >
// PassWithManualReview.
func (a Action) Rank() int {
	switch a.Kind {
	case ActionKindFail:
		return 100
	case ActionKindStepUp:
		return 50 + stepUpRank[a.StepUp]
	case ActionKindManualReview:
		return 20
	case ActionKindPassWithManualReview:
		return 10
	}
	return 0
}

// Outranks reports whether a is strictly stronger than b.
func (a Action) Outranks(b Action) bool { return a.Rank() > b.Rank() }

// ShouldCreateReview reports whether the action opens a manual review case.
func (a Action) ShouldCreateReview() bool {
	return a.Kind == ActionKindManualReview || a.Kind == ActionKindPassWithManualReview
}

// IsStepUp reports whether the applicant is asked for more evidence.
func (a Action) IsStepUp() bool { return a.Kind == ActionKindStepUp }

// Strongest returns the maximum-ranked action, or nil for an empty input.
func Strongest(actions []Action) *Action {
	var best *Action
	for i := range actions {
		if best == nil || actions[i].Outranks(*best) {
			a := actions[i]
			best = &a
		}
	}
	return best
}
