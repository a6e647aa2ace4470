// Package decision turns the current risk signals of a workflow into a
// decision: it loads the playbook and its active rules, evaluates them,
// records an immutable snapshot of the evaluation and reports the outcome
// back to the workflow.
package decision

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	dErrors "idv/pkg/domain-errors"
	audit "idv/pkg/platform/audit"
	"idv/pkg/platform/sentinel"
	"idv/pkg/requestcontext"

	"idv/internal/decision/metrics"
	"idv/internal/decision/ports"
	"idv/internal/platform/flags"
	"idv/internal/platform/tracing"
	"idv/internal/playbook"
	"idv/internal/risk"
	"idv/internal/rules"
	"idv/internal/workflow"
)

// Service makes workflow decisions.
type Service struct {
	playbooks ports.PlaybookProvider
	rules     ports.RuleSource
	signals   ports.SignalSource
	results   rules.ResultStore
	audit     ports.AuditPublisher
	baseline  *rules.BaselineSet
	vault     ports.DataDecryptor
	insights  ports.InsightSource
	lists     ports.ListSource
	flags     flags.Flags
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithFlags(f flags.Flags) Option {
	return func(s *Service) { s.flags = f }
}

// WithVault enables vault data and list conditions. Without it those
// conditions see absent values.
func WithVault(v ports.DataDecryptor) Option {
	return func(s *Service) { s.vault = v }
}

func WithInsights(src ports.InsightSource) Option {
	return func(s *Service) { s.insights = src }
}

func WithLists(src ports.ListSource) Option {
	return func(s *Service) { s.lists = src }
}

// WithBaseline replaces the embedded baseline rule set.
func WithBaseline(b *rules.BaselineSet) Option {
	return func(s *Service) { s.baseline = b }
}

// New builds a Service. It fails only when the embedded baseline cannot be
// parsed and no replacement is given.
func New(
	playbooks ports.PlaybookProvider,
	ruleSource ports.RuleSource,
	signals ports.SignalSource,
	results rules.ResultStore,
	publisher ports.AuditPublisher,
	opts ...Option,
) (*Service, error) {
	s := &Service{
		playbooks: playbooks,
		rules:     ruleSource,
		signals:   signals,
		results:   results,
		audit:     publisher,
		flags:     flags.NewStatic(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.baseline == nil {
		b, err := rules.EmbeddedBaseline()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load baseline rules")
		}
		s.baseline = b
	}
	return s, nil
}

// Decide evaluates wf and persists the evaluation snapshot plus its
// compliance event through ctx, so both commit with the caller's
// transition.
func (s *Service) Decide(ctx context.Context, wf workflow.Workflow) (dec workflow.Decision, err error) {
	ctx, span := tracing.StartSpan(ctx, "decision.Decide",
		attribute.String("workflow_id", wf.ID.String()),
		attribute.String("kind", string(wf.Kind)),
	)
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	defer func() {
		s.metrics.ObserveDecideLatency(time.Since(start))
		status := "error"
		if err == nil {
			status = dec.Status()
		}
		s.metrics.IncrementOutcome(status, string(wf.Kind))
	}()

	in, err := s.gatherInputs(ctx, wf, true)
	if err != nil {
		return workflow.Decision{}, translate(err, "failed to load decision inputs")
	}
	if wf.DocumentCollected && len(in.Signals[risk.GroupDoc]) == 0 {
		return workflow.Decision{}, dErrors.Newf(dErrors.CodeMissingInputForRules,
			"workflow %s collected a document but has no document signals", wf.ID)
	}

	ectx, err := s.evalContext(ctx, wf, in, in.Rules)
	if err != nil {
		return workflow.Decision{}, translate(err, "failed to build evaluation context")
	}
	if len(rules.Applicable(in.Rules, ectx)) == 0 {
		if in.Playbook.AllowsRulelessOperation() {
			s.logger.InfoContext(ctx, "no rules for playbook, decision skipped",
				"workflow_id", wf.ID.String(),
				"playbook_id", wf.PlaybookID.String(),
			)
			return workflow.Decision{Kind: workflow.DecisionRulesNotExecuted}, nil
		}
		return workflow.Decision{}, dErrors.Newf(dErrors.CodeNoRulesForPlaybook,
			"playbook %s has no active rules", wf.PlaybookID)
	}

	signals := rules.ApplySignalGuard(in.Signals, ectx.DocumentKinds)
	codes := signals.ReasonCodes()
	eval := rules.Evaluate(in.Rules, codes, ectx)
	s.logShadow(ctx, wf, eval)

	result, err := rules.NewRuleSetResult(rules.Subject{
		TenantID:      wf.TenantID,
		WorkflowID:    wf.ID,
		ScopedVaultID: wf.ScopedVaultID,
		PlaybookID:    wf.PlaybookID,
	}, rules.SetKindWorkflowDecision, eval, signals.IDs(), requestcontext.Now(ctx))
	if err != nil {
		return workflow.Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build rule set result")
	}
	if err := s.results.Save(ctx, result); err != nil {
		return workflow.Decision{}, translate(err, "failed to save rule set result")
	}

	dec = workflow.Decision{
		Kind:               workflow.DecisionRulesExecuted,
		Action:             eval.Action,
		CreateManualReview: eval.Action != nil && eval.Action.ShouldCreateReview(),
		ShouldCommit:       s.shouldCommit(wf, codes, ectx),
		RuleSetResultID:    result.ID,
	}
	err = s.audit.Emit(ctx, audit.ComplianceEvent{
		TenantID: wf.TenantID,
		Subject:  wf.ID.String(),
		Action:   audit.EventDecisionMade,
		Decision: dec.Status(),
		Reason:   result.ID.String(),
		Digest:   result.Digest,
	})
	if err != nil {
		return workflow.Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to write decision audit event")
	}

	s.logger.InfoContext(ctx, "decision made",
		"workflow_id", wf.ID.String(),
		"status", dec.Status(),
		"rule_set_result_id", result.ID.String(),
		"should_commit", dec.ShouldCommit,
	)
	return dec, nil
}

// PreviewResult compares the active rules with a candidate set on the same
// inputs.
type PreviewResult struct {
	Active    rules.Evaluation
	Candidate rules.Evaluation
}

// Preview evaluates candidates as if they replaced the playbook's active
// rules. Nothing is persisted and no event is emitted. Candidates are
// stamped with the workflow's tenant, playbook and liveness and evaluated as
// non-shadow rules.
func (s *Service) Preview(ctx context.Context, wf workflow.Workflow, candidates []rules.Instance) (PreviewResult, error) {
	for _, c := range candidates {
		if err := c.Expression.Validate(); err != nil {
			return PreviewResult{}, err
		}
		if err := c.Action.Validate(); err != nil {
			return PreviewResult{}, err
		}
	}

	in, err := s.gatherInputs(ctx, wf, true)
	if err != nil {
		return PreviewResult{}, translate(err, "failed to load decision inputs")
	}

	stamped := make([]rules.Instance, len(candidates))
	for i, c := range candidates {
		c.TenantID = wf.TenantID
		c.PlaybookID = wf.PlaybookID
		c.IsLive = in.Playbook.IsLive
		c.IsShadow = false
		c.DeactivatedAt = nil
		stamped[i] = c
	}

	ectx, err := s.evalContext(ctx, wf, in, append(stamped, in.Rules...))
	if err != nil {
		return PreviewResult{}, translate(err, "failed to build evaluation context")
	}
	codes := rules.ApplySignalGuard(in.Signals, ectx.DocumentKinds).ReasonCodes()
	return PreviewResult{
		Active:    rules.Evaluate(in.Rules, codes, ectx),
		Candidate: rules.Evaluate(stamped, codes, ectx),
	}, nil
}

func (s *Service) evalContext(ctx context.Context, wf workflow.Workflow, in *inputs, instances []rules.Instance) (rules.EvalContext, error) {
	data, err := s.vaultData(ctx, wf, in.Playbook, instances)
	if err != nil {
		return rules.EvalContext{}, err
	}
	return rules.EvalContext{
		TenantID:       wf.TenantID,
		PlaybookID:     wf.PlaybookID,
		Scope:          scopeOf(wf.Kind),
		IsLive:         in.Playbook.IsLive,
		DocumentKinds:  documentKinds(wf, in.Playbook),
		VaultData:      data,
		Insight:        in.Insight,
		Lists:          in.Lists,
		AllowedActions: allowedActions(wf),
	}, nil
}

// allowedActions drops StepUp once the stepped-up document is in, so the
// same rule cannot send the workflow back for another one.
func allowedActions(wf workflow.Workflow) []rules.ActionKind {
	if collectedStepUp(wf) {
		return rules.AllActionsExcept(rules.ActionKindStepUp)
	}
	return nil
}

// collectedStepUp reports whether wf is being decided again after the
// document a step-up asked for was collected.
func collectedStepUp(wf workflow.Workflow) bool {
	return wf.DocumentCollected && wf.Decision != nil && wf.Decision.Action != nil && wf.Decision.Action.IsStepUp()
}

// shouldCommit holds for live KYC and KYB runs the baseline rules do not
// object to.
func (s *Service) shouldCommit(wf workflow.Workflow, codes []risk.ReasonCode, ectx rules.EvalContext) bool {
	if wf.IsSandbox {
		return false
	}
	if wf.Kind != workflow.KindKyc && wf.Kind != workflow.KindKyb {
		return false
	}
	return rules.Evaluate(s.baseline.For(ectx.IsLive), codes, ectx).Action == nil
}

func (s *Service) logShadow(ctx context.Context, wf workflow.Workflow, eval rules.Evaluation) {
	if !s.flags.IsOn(flags.DecisionShadowLogging, wf.TenantID) {
		return
	}
	for _, r := range eval.FiredShadow() {
		s.logger.InfoContext(ctx, "shadow rule fired",
			"workflow_id", wf.ID.String(),
			"rule_id", r.RuleID.String(),
			"rule_name", r.Name,
			"action", r.Action.String(),
		)
	}
}

func scopeOf(kind workflow.Kind) rules.Scope {
	if kind == workflow.KindKyb {
		return rules.ScopeBusiness
	}
	return rules.ScopePerson
}

// documentKinds are the kinds requested in this run. A run that collected
// a document without the playbook asking for one was stepped up, and the
// step-up decides what was collected.
func documentKinds(wf workflow.Workflow, cfg playbook.Config) []playbook.DocumentKind {
	if !wf.DocumentCollected && wf.Kind != workflow.KindDocument {
		return nil
	}
	if cfg.RequestsDocument() {
		return cfg.DocumentKinds
	}
	if collectedStepUp(wf) {
		return stepUpKinds(wf.Decision.Action.StepUp)
	}
	return nil
}

func stepUpKinds(kind rules.StepUpKind) []playbook.DocumentKind {
	identity := []playbook.DocumentKind{
		playbook.DocumentDriversLicense,
		playbook.DocumentPassport,
		playbook.DocumentIDCard,
	}
	switch kind {
	case rules.StepUpIdentityProofOfSsn:
		return append(identity, playbook.DocumentProofOfSsn)
	case rules.StepUpIdentityProofOfSsnProofOfAddress:
		return append(identity, playbook.DocumentProofOfSsn, playbook.DocumentProofOfAddress)
	}
	return identity
}

func translate(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, msg)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
