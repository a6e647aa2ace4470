package handler

import (
	"strings"
	"time"

	dErrors "idv/pkg/domain-errors"

	"idv/internal/rules"
)

type CreateRuleRequest struct {
	Name       string           `json:"name"`
	Kind       string           `json:"kind"`
	Action     string           `json:"action"`
	Expression rules.Expression `json:"expression"`
	IsShadow   bool             `json:"is_shadow,omitempty"`
	IsLive     bool             `json:"is_live,omitempty"`

	kind   rules.Kind
	action rules.Action
}

func (r *CreateRuleRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	switch k := rules.Kind(strings.TrimSpace(r.Kind)); k {
	case rules.KindPerson, rules.KindBusiness, rules.KindAny:
		r.kind = k
	default:
		return dErrors.Newf(dErrors.CodeValidation, "unknown rule kind %q", r.Kind)
	}
	action, err := rules.ParseAction(strings.TrimSpace(r.Action))
	if err != nil {
		return err
	}
	r.action = action
	return r.Expression.Validate()
}

// UpdateRuleRequest carries the fields to change. Absent fields keep their
// current value.
type UpdateRuleRequest struct {
	rules.Patch
}

func (r *UpdateRuleRequest) Validate() error {
	if r.IsEmpty() {
		return dErrors.New(dErrors.CodeValidation, "patch changes nothing")
	}
	if r.Patch.Expression != nil {
		if err := r.Patch.Expression.Validate(); err != nil {
			return err
		}
	}
	return nil
}

type RuleResponse struct {
	ID            string           `json:"id"`
	RuleID        string           `json:"rule_id"`
	Version       int              `json:"version"`
	PlaybookID    string           `json:"playbook_id"`
	IsLive        bool             `json:"is_live"`
	Name          string           `json:"name"`
	Kind          string           `json:"kind"`
	Action        string           `json:"action"`
	Expression    rules.Expression `json:"expression"`
	IsShadow      bool             `json:"is_shadow"`
	CreatedBy     string           `json:"created_by"`
	CreatedAt     time.Time        `json:"created_at"`
	DeactivatedAt *time.Time       `json:"deactivated_at,omitempty"`
}

func FromInstance(i rules.Instance) RuleResponse {
	return RuleResponse{
		ID:            i.ID.String(),
		RuleID:        i.RuleID.String(),
		Version:       i.Version,
		PlaybookID:    i.PlaybookID.String(),
		IsLive:        i.IsLive,
		Name:          i.Name,
		Kind:          string(i.Kind),
		Action:        i.Action.String(),
		Expression:    i.Expression,
		IsShadow:      i.IsShadow,
		CreatedBy:     i.CreatedBy,
		CreatedAt:     i.CreatedAt,
		DeactivatedAt: i.DeactivatedAt,
	}
}

func FromInstances(in []rules.Instance) []RuleResponse {
	out := make([]RuleResponse, len(in))
	for i, inst := range in {
		out[i] = FromInstance(inst)
	}
	return out
}
