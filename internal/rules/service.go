package rules

import (
	"context"
	"errors"
	"log/slog"

	id "idv/pkg/domain"
	dErrors "idv/pkg/domain-errors"
	audit "idv/pkg/platform/audit"
	"idv/pkg/platform/sentinel"
	txcontext "idv/pkg/platform/tx"
	"idv/pkg/requestcontext"
)

// AuditPublisher is the fail-closed compliance sink.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// Service edits rules. Every mutation appends to the version log and emits
// a compliance event in the same transaction.
type Service struct {
	store  Store
	tx     txcontext.Runner
	audit  AuditPublisher
	logger *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

func NewService(store Store, runner txcontext.Runner, publisher AuditPublisher, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		tx:     runner,
		audit:  publisher,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest describes a new rule.
type CreateRequest struct {
	TenantID   id.TenantID
	PlaybookID id.PlaybookID
	IsLive     bool
	Name       string
	Kind       Kind
	Action     Action
	Expression Expression
	IsShadow   bool
	Actor      string
}

// Create stores version 1 of a new rule.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Instance, error) {
	if req.TenantID.IsNil() || req.PlaybookID.IsNil() {
		return Instance{}, dErrors.New(dErrors.CodeInvalidInput, "tenant and playbook are required")
	}
	inst := Instance{
		ID:         id.NewRuleInstanceID(),
		RuleID:     id.NewRuleID(),
		Version:    1,
		TenantID:   req.TenantID,
		PlaybookID: req.PlaybookID,
		IsLive:     req.IsLive,
		Name:       req.Name,
		Kind:       req.Kind,
		Action:     req.Action,
		Expression: req.Expression,
		IsShadow:   req.IsShadow,
		CreatedBy:  req.Actor,
		CreatedAt:  requestcontext.Now(ctx),
	}
	if err := inst.Validate(); err != nil {
		return Instance{}, err
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, inst); err != nil {
			return translate(err, "failed to create rule")
		}
		return s.emit(ctx, inst, audit.EventRuleVersionCreated, req.Actor)
	})
	if err != nil {
		return Instance{}, err
	}
	s.logger.InfoContext(ctx, "rule created", "rule_id", inst.RuleID.String(), "name", inst.Name, "action", inst.Action.String())
	return inst, nil
}

// Update merges patch into the active version and appends the result as the
// next version.
func (s *Service) Update(ctx context.Context, ruleID id.RuleID, patch Patch, actor string) (Instance, error) {
	if patch.IsEmpty() {
		return Instance{}, dErrors.New(dErrors.CodeInvalidInput, "patch changes nothing")
	}

	var next Instance
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		old, err := s.store.GetActive(ctx, ruleID)
		if err != nil {
			return translate(err, "failed to load rule")
		}
		next = Merge(patch, old)
		next.ID = id.NewRuleInstanceID()
		next.Version = old.Version + 1
		next.CreatedBy = actor
		next.CreatedAt = requestcontext.Now(ctx)
		next.DeactivatedAt = nil
		if err := next.Validate(); err != nil {
			return err
		}
		if err := s.store.Replace(ctx, old, next); err != nil {
			return translate(err, "failed to append rule version")
		}
		return s.emit(ctx, next, audit.EventRuleVersionCreated, actor)
	})
	if err != nil {
		return Instance{}, err
	}
	s.logger.InfoContext(ctx, "rule updated", "rule_id", ruleID.String(), "version", next.Version)
	return next, nil
}

// Deactivate retires the rule; no version stays active.
func (s *Service) Deactivate(ctx context.Context, ruleID id.RuleID, actor string) (Instance, error) {
	var inst Instance
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		inst, err = s.store.Deactivate(ctx, ruleID, requestcontext.Now(ctx))
		if err != nil {
			return translate(err, "failed to deactivate rule")
		}
		return s.emit(ctx, inst, audit.EventRuleDeactivated, actor)
	})
	if err != nil {
		return Instance{}, err
	}
	return inst, nil
}

// History lists every version of a rule, oldest first.
func (s *Service) History(ctx context.Context, ruleID id.RuleID) ([]Instance, error) {
	versions, err := s.store.History(ctx, ruleID)
	if err != nil {
		return nil, translate(err, "failed to load rule history")
	}
	return versions, nil
}

// Active lists the current rules of a playbook.
func (s *Service) Active(ctx context.Context, tenantID id.TenantID, playbookID id.PlaybookID) ([]Instance, error) {
	active, err := s.store.Active(ctx, tenantID, playbookID)
	if err != nil {
		return nil, translate(err, "failed to load rules")
	}
	return active, nil
}

// Import creates every rule of a rule file in one transaction.
func (s *Service) Import(ctx context.Context, f File, tenantID id.TenantID, playbookID id.PlaybookID, isLive bool, actor string) ([]Instance, error) {
	out := make([]Instance, 0, len(f.Rules))
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		out = out[:0]
		for _, fr := range f.Rules {
			inst, err := s.Create(ctx, CreateRequest{
				TenantID:   tenantID,
				PlaybookID: playbookID,
				IsLive:     isLive,
				Name:       fr.Name,
				Kind:       fr.Kind,
				Action:     fr.Action,
				Expression: fr.Expression,
				IsShadow:   fr.Shadow,
				Actor:      actor,
			})
			if err != nil {
				return err
			}
			out = append(out, inst)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) emit(ctx context.Context, inst Instance, event audit.AuditEvent, actor string) error {
	err := s.audit.Emit(ctx, audit.ComplianceEvent{
		TenantID: inst.TenantID,
		Subject:  inst.RuleID.String(),
		Action:   event,
		Decision: inst.Action.String(),
		Reason:   inst.Name,
		ActorID:  actor,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write rule audit event")
	}
	return nil
}

func translate(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, msg)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
