package rules

import (
	"fmt"
	"slices"

	dErrors "idv/pkg/domain-errors"

	"idv/internal/insight"
	"idv/internal/risk"
	"idv/internal/vault"
)

// Op compares a fact against a condition.
type Op string

const (
	OpEq      Op = "eq"
	OpNotEq   Op = "not_eq"
	OpIsIn    Op = "is_in"
	OpIsNotIn Op = "is_not_in"
)

// ReasonCodeCondition tests presence (eq) or absence (not_eq) of a code.
type ReasonCodeCondition struct {
	Code risk.ReasonCode `yaml:"code" json:"code"`
	Op   Op              `yaml:"op,omitempty" json:"op,omitempty"`
}

// VaultDataCondition compares a decrypted vault value.
type VaultDataCondition struct {
	Field  vault.DataIdentifier `yaml:"field" json:"field"`
	Op     Op                   `yaml:"op" json:"op"`
	Value  string               `yaml:"value,omitempty" json:"value,omitempty"`
	Values []string             `yaml:"values,omitempty" json:"values,omitempty"`
}

// InsightCondition compares a device or network attribute.
type InsightCondition struct {
	Field  insight.Field `yaml:"field" json:"field"`
	Op     Op            `yaml:"op" json:"op"`
	Value  string        `yaml:"value,omitempty" json:"value,omitempty"`
	Values []string      `yaml:"values,omitempty" json:"values,omitempty"`
}

// ListCondition tests whether a vault value belongs to a tenant list.
type ListCondition struct {
	Field  vault.DataIdentifier `yaml:"field" json:"field"`
	Op     Op                   `yaml:"op" json:"op"`
	ListID string               `yaml:"list" json:"list"`
}

// Condition holds exactly one of its variants.
type Condition struct {
	ReasonCode *ReasonCodeCondition `yaml:"reason_code,omitempty" json:"reason_code,omitempty"`
	VaultData  *VaultDataCondition  `yaml:"vault_data,omitempty" json:"vault_data,omitempty"`
	Insight    *InsightCondition    `yaml:"insight,omitempty" json:"insight,omitempty"`
	List       *ListCondition       `yaml:"list,omitempty" json:"list,omitempty"`
}

// Has builds a condition that fires when code is present.
func Has(code risk.ReasonCode) Condition {
	return Condition{ReasonCode: &ReasonCodeCondition{Code: code, Op: OpEq}}
}

// Lacks builds a condition that fires when code is absent.
func Lacks(code risk.ReasonCode) Condition {
	return Condition{ReasonCode: &ReasonCodeCondition{Code: code, Op: OpNotEq}}
}

// Expression is an ordered AND of conditions. An empty expression is true.
type Expression []Condition

// facts is the evaluation input for one pass.
type facts struct {
	codes map[risk.ReasonCode]bool
	ectx  EvalContext
}

func newFacts(codes []risk.ReasonCode, ectx EvalContext) facts {
	set := make(map[risk.ReasonCode]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return facts{codes: set, ectx: ectx}
}

// eval is the AND of every condition; all of them are evaluated.
func (e Expression) eval(f facts) bool {
	result := true
	for _, c := range e {
		if !c.eval(f) {
			result = false
		}
	}
	return result
}

func (c Condition) eval(f facts) bool {
	switch {
	case c.ReasonCode != nil:
		present := f.codes[c.ReasonCode.Code]
		if c.ReasonCode.Op == OpNotEq {
			return !present
		}
		return present
	case c.VaultData != nil:
		v, ok := f.ectx.VaultData[c.VaultData.Field]
		return compare(c.VaultData.Op, v, ok, c.VaultData.Value, c.VaultData.Values)
	case c.Insight != nil:
		if f.ectx.Insight == nil {
			return compare(c.Insight.Op, "", false, c.Insight.Value, c.Insight.Values)
		}
		v, ok := f.ectx.Insight.Value(c.Insight.Field)
		return compare(c.Insight.Op, v, ok, c.Insight.Value, c.Insight.Values)
	case c.List != nil:
		v, ok := f.ectx.VaultData[c.List.Field]
		return compare(c.List.Op, v, ok, "", f.ectx.Lists[c.List.ListID])
	}
	return false
}

// compare applies op. A missing value never equals anything and is never in
// a set, so negated operators fire on it.
func compare(op Op, v string, present bool, want string, set []string) bool {
	switch op {
	case OpEq:
		return present && v == want
	case OpNotEq:
		return !present || v != want
	case OpIsIn:
		return present && slices.Contains(set, v)
	case OpIsNotIn:
		return !present || !slices.Contains(set, v)
	}
	return false
}

// Validate checks the expression is well formed.
func (e Expression) Validate() error {
	for i, c := range e {
		if err := c.validate(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("condition %d", i))
		}
	}
	return nil
}

func (c Condition) validate() error {
	set := 0
	for _, present := range []bool{c.ReasonCode != nil, c.VaultData != nil, c.Insight != nil, c.List != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return dErrors.New(dErrors.CodeValidation, "exactly one condition variant must be set")
	}
	switch {
	case c.ReasonCode != nil:
		if !c.ReasonCode.Code.IsKnown() {
			return dErrors.Newf(dErrors.CodeValidation, "unknown reason code %q", c.ReasonCode.Code)
		}
		if op := c.ReasonCode.Op; op != "" && op != OpEq && op != OpNotEq {
			return dErrors.Newf(dErrors.CodeValidation, "reason code conditions support eq and not_eq, got %q", op)
		}
	case c.VaultData != nil:
		if c.VaultData.Field == "" {
			return dErrors.New(dErrors.CodeValidation, "vault data condition needs a field")
		}
		return validateOp(c.VaultData.Op, c.VaultData.Values)
	case c.Insight != nil:
		if !c.Insight.Field.IsKnown() {
			return dErrors.Newf(dErrors.CodeValidation, "unknown insight field %q", c.Insight.Field)
		}
		return validateOp(c.Insight.Op, c.Insight.Values)
	case c.List != nil:
		if c.List.Field == "" || c.List.ListID == "" {
			return dErrors.New(dErrors.CodeValidation, "list condition needs a field and a list")
		}
		if c.List.Op != OpIsIn && c.List.Op != OpIsNotIn {
			return dErrors.Newf(dErrors.CodeValidation, "list conditions support is_in and is_not_in, got %q", c.List.Op)
		}
	}
	return nil
}

func validateOp(op Op, values []string) error {
	switch op {
	case OpEq, OpNotEq:
		return nil
	case OpIsIn, OpIsNotIn:
		if len(values) == 0 {
			return dErrors.Newf(dErrors.CodeValidation, "%s needs at least one value", op)
		}
		return nil
	}
	return dErrors.Newf(dErrors.CodeValidation, "unknown operator %q", op)
}

// ReasonCodes lists the codes the expression refers to.
func (e Expression) ReasonCodes() []risk.ReasonCode {
	var out []risk.ReasonCode
	for _, c := range e {
		if c.ReasonCode != nil {
			out = append(out, c.ReasonCode.Code)
		}
	}
	return out
}

// DataIdentifiers lists the vault fields the expression reads, without
// duplicates.
func (e Expression) DataIdentifiers() []vault.DataIdentifier {
	var out []vault.DataIdentifier
	seen := map[vault.DataIdentifier]bool{}
	for _, c := range e {
		var field vault.DataIdentifier
		switch {
		case c.VaultData != nil:
			field = c.VaultData.Field
		case c.List != nil:
			field = c.List.Field
		default:
			continue
		}
		if !seen[field] {
			seen[field] = true
			out = append(out, field)
		}
	}
	return out
}
