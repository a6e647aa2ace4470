package onboarding_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	id "idv/pkg/domain"
	dErrors "idv/pkg/domain-errors"
	audit "idv/pkg/platform/audit"
	"idv/pkg/platform/audit/publishers/compliance"
	auditmemory "idv/pkg/platform/audit/store/memory"
	"idv/pkg/testutil"

	"idv/internal/decision"
	"idv/internal/onboarding"
	"idv/internal/platform/flags"
	"idv/internal/playbook"
	"idv/internal/risk"
	"idv/internal/rules"
	"idv/internal/vault"
	"idv/internal/vendor"
	"idv/internal/webhook"
	"idv/internal/workflow"
)

// =============================================================================
// Onboarding Flow Test Suite
// =============================================================================
// Justification for unit tests: these run whole workflows through the real
// engine, vendor caller, fixture vendor and decision service over memory
// stores. They pin down which states call vendors, when a decision is
// taken and how step-ups and redos route, none of which a single component
// test can show.

type FlowSuite struct {
	suite.Suite
	ctx       context.Context
	tenant    id.TenantID
	pb        id.PlaybookID
	vaultID   id.ScopedVaultID
	playbooks *playbook.StaticProvider
	ruleStore *rules.InMemoryStore
	signals   *risk.InMemoryStore
	calls     *vendor.InMemoryStore
	results   *rules.InMemoryResultStore
	vault     *vault.InMemory
	auditLog  *auditmemory.InMemoryStore
	hooks     *webhook.MemoryEnqueuer
	flags     *flags.Static
	engine    *workflow.Engine
}

func TestFlowSuite(t *testing.T) {
	suite.Run(t, new(FlowSuite))
}

func (s *FlowSuite) SetupTest() {
	s.tenant = id.NewTenantID()
	s.pb = id.NewPlaybookID()
	s.vaultID = id.NewScopedVaultID()
	s.ctx = testutil.Context(s.tenant)
	s.playbooks = playbook.NewStaticProvider()
	s.ruleStore = rules.NewInMemoryStore()
	s.signals = risk.NewInMemoryStore()
	s.calls = vendor.NewInMemoryStore()
	s.results = rules.NewInMemoryResultStore()
	s.vault = vault.NewInMemory()
	s.auditLog = auditmemory.NewInMemoryStore()
	s.hooks = webhook.NewMemoryEnqueuer()
	s.flags = flags.NewStatic()

	decider, err := decision.New(s.playbooks, s.ruleStore, s.signals, s.results, compliance.New(s.auditLog),
		decision.WithVault(s.vault),
		decision.WithFlags(s.flags),
	)
	s.Require().NoError(err)

	handlers, err := onboarding.Handlers(onboarding.Deps{
		Playbooks: s.playbooks,
		Vault:     s.vault,
		Decider:   decider,
		Vendors:   vendor.NewCaller(vendor.FixtureClient{}, s.calls, s.signals),
		Calls:     s.calls,
		KycChain:  []vendor.API{vendor.IdologyExpectID, vendor.ExperianPreciseID},
		Flags:     s.flags,
	})
	s.Require().NoError(err)
	s.engine = workflow.NewEngine(workflow.NewInMemoryStore(), handlers, workflow.WithWebhooks(s.hooks))
}

func (s *FlowSuite) givenPlaybook(cfg playbook.Config) {
	cfg.TenantID, cfg.PlaybookID, cfg.IsLive = s.tenant, s.pb, true
	s.playbooks.Put(cfg)
}

func (s *FlowSuite) givenRule(name string, kind rules.Kind, action rules.Action, conds ...rules.Condition) {
	s.Require().NoError(s.ruleStore.Create(s.ctx, rules.Instance{
		ID:         id.NewRuleInstanceID(),
		RuleID:     id.NewRuleID(),
		Version:    1,
		TenantID:   s.tenant,
		PlaybookID: s.pb,
		IsLive:     true,
		Name:       name,
		Kind:       kind,
		Action:     action,
		Expression: rules.Expression(conds),
	}))
}

func (s *FlowSuite) start(kind workflow.Kind, mutate ...func(*workflow.Workflow)) workflow.Workflow {
	wf, err := workflow.New(kind, s.tenant, s.vaultID, s.pb, testutil.FixedTime)
	s.Require().NoError(err)
	for _, m := range mutate {
		m(&wf)
	}
	s.Require().NoError(s.engine.Start(s.ctx, wf))
	return wf
}

func sandboxRun(wf *workflow.Workflow) { wf.IsSandbox = true }

func (s *FlowSuite) steer(outcome, codes string) {
	s.vault.Put(s.vaultID, map[vault.DataIdentifier]string{
		vault.SandboxOutcome: outcome,
		vault.SandboxCodes:   codes,
	})
}

func (s *FlowSuite) calledAPIs() []vendor.API {
	var out []vendor.API
	for _, r := range s.calls.Requests() {
		out = append(out, r.API)
	}
	return out
}

func (s *FlowSuite) givenDocumentSignals(codes ...risk.ReasonCode) {
	resultID := id.NewVerificationResultID()
	var out []risk.Signal
	for _, c := range codes {
		out = append(out, risk.NewSignal(s.vaultID, c, string(vendor.IncodeFetchOCR), resultID, risk.GroupDoc, testutil.FixedTime))
	}
	s.Require().NoError(s.signals.Create(s.ctx, out))
}

func (s *FlowSuite) TestKycRunsToCompletion() {
	s.givenPlaybook(playbook.Config{Kind: playbook.KindKyc})
	s.givenRule("fail_on_ssn", rules.KindPerson, rules.Fail, rules.Has(risk.SsnDoesNotMatch))
	wf := s.start(workflow.KindKyc)

	got, err := s.engine.Run(s.ctx, wf.ID, workflow.Authorize{})
	s.Require().NoError(err)

	s.Equal(workflow.KycComplete, got.State)
	s.Require().NotNil(got.Decision)
	s.Equal("pass", got.Decision.Status())
	s.True(got.Decision.ShouldCommit)
	s.Equal([]vendor.API{vendor.IdologyExpectID}, s.calledAPIs())

	var completed []webhook.Event
	for _, e := range s.hooks.Events() {
		if e.Kind == webhook.KindOnboardingCompleted {
			completed = append(completed, e)
		}
	}
	s.Require().Len(completed, 1)
	s.Equal("pass", completed[0].Status)

	trail, err := s.auditLog.ListBySubject(s.ctx, wf.ID.String())
	s.Require().NoError(err)
	s.Require().Len(trail, 1)
	s.Equal(string(audit.EventDecisionMade), trail[0].Action)
}

func (s *FlowSuite) TestSandboxFailNeverCommits() {
	s.givenPlaybook(playbook.Config{Kind: playbook.KindKyc})
	s.givenRule("fail_on_ssn", rules.KindPerson, rules.Fail, rules.Has(risk.SsnDoesNotMatch))
	s.steer("fail", "")
	wf := s.start(workflow.KindKyc, sandboxRun)

	got, err := s.engine.Run(s.ctx, wf.ID, workflow.Authorize{})
	s.Require().NoError(err)
	s.Equal(workflow.KycComplete, got.State)
	s.Equal("fail", got.Decision.Status())
	s.False(got.Decision.ShouldCommit)
}

func (s *FlowSuite) TestVendorOutageRollsBackTransition() {
	s.givenPlaybook(playbook.Config{Kind: playbook.KindKyc})
	s.givenRule("fail_on_ssn", rules.KindPerson, rules.Fail, rules.Has(risk.SsnDoesNotMatch))
	s.steer("error", "")
	wf := s.start(workflow.KindKyc, sandboxRun)

	_, err := s.engine.Run(s.ctx, wf.ID, workflow.Authorize{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeVendorCallFailed))

	current, err := s.engine.Get(s.ctx, wf.ID)
	s.Require().NoError(err)
	s.Equal(workflow.KycVendorCalls, current.State)

	// Both vendors were tried and both errored results were kept.
	s.Equal([]vendor.API{vendor.IdologyExpectID, vendor.ExperianPreciseID}, s.calledAPIs())
	for _, r := range s.calls.Requests() {
		res, ok := s.calls.Result(r.ID)
		s.Require().True(ok)
		s.True(res.IsError)
	}
}

func (s *FlowSuite) TestEnhancedAmlForcedByFlag() {
	s.givenPlaybook(playbook.Config{Kind: playbook.KindKyc})
	s.givenRule("fail_on_ofac", rules.KindPerson, rules.Fail, rules.Has(risk.WatchlistHitOfac))
	s.flags.Set(s.tenant, flags.KycEnhancedAmlForce, true)
	wf := s.start(workflow.KindKyc)

	got, err := s.engine.Run(s.ctx, wf.ID, workflow.Authorize{})
	s.Require().NoError(err)
	s.Equal(workflow.KycComplete, got.State)
	s.Equal([]vendor.API{vendor.IdologyExpectID, vendor.IncodeWatchlistCheck}, s.calledAPIs())
}

func (s *FlowSuite) TestCleanAmlRecheckClearsEarlierHit() {
	s.givenPlaybook(playbook.Config{Kind: playbook.KindKyc, EnhancedAml: true})
	s.givenRule("fail_on_ofac", rules.KindPerson, rules.Fail, rules.Has(risk.WatchlistHitOfac))

	s.steer("fail", "")
	first := s.start(workflow.KindKyc, sandboxRun)
	got, err := s.engine.Run(s.ctx, first.ID, workflow.Authorize{})
	s.Require().NoError(err)
	s.Equal("fail", got.Decision.Status())

	s.steer("pass", "")
	second := s.start(workflow.KindKyc, sandboxRun)
	got, err = s.engine.Run(s.ctx, second.ID, workflow.Authorize{})
	s.Require().NoError(err)
	s.Equal(workflow.KycComplete, got.State)
	s.Equal("pass", got.Decision.Status())

	grouped, err := s.signals.LatestByGroup(s.ctx, s.vaultID)
	s.Require().NoError(err)
	s.Empty(grouped[risk.GroupAml])
}

func (s *FlowSuite) TestDocumentCollectionWaitsForDocument() {
	s.givenPlaybook(playbook.Config{
		Kind:          playbook.KindKyc,
		DocumentKinds: []playbook.DocumentKind{playbook.DocumentDriversLicense},
	})
	s.givenRule("fail_on_document", rules.KindPerson, rules.Fail, rules.Has(risk.DocumentNotVerified))
	wf := s.start(workflow.KindKyc)

	waiting, err := s.engine.Run(s.ctx, wf.ID, workflow.Authorize{})
	s.Require().NoError(err)
	s.Equal(workflow.KycDocCollection, waiting.State)
	s.Empty(s.calledAPIs())

	s.givenDocumentSignals(risk.DocumentNotVerified)
	got, err := s.engine.Run(s.ctx, wf.ID, workflow.DocCollected{DocumentID: id.NewIdentityDocumentID()})
	s.Require().NoError(err)
	s.Equal(workflow.KycComplete, got.State)
	s.True(got.DocumentCollected)
	s.Equal("fail", got.Decision.Status())
}

func (s *FlowSuite) TestCollectedDocumentWithoutSignalsStopsDecisioning() {
	s.givenPlaybook(playbook.Config{
		Kind:          playbook.KindKyc,
		DocumentKinds: []playbook.DocumentKind{playbook.DocumentPassport},
	})
	s.givenRule("fail_on_document", rules.KindPerson, rules.Fail, rules.Has(risk.DocumentNotVerified))
	wf := s.start(workflow.KindKyc)
	_, err := s.engine.Run(s.ctx, wf.ID, workflow.Authorize{})
	s.Require().NoError(err)

	_, err = s.engine.Run(s.ctx, wf.ID, workflow.DocCollected{DocumentID: id.NewIdentityDocumentID()})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeMissingInputForRules))

	current, err := s.engine.Get(s.ctx, wf.ID)
	s.Require().NoError(err)
	s.Equal(workflow.KycDecisioning, current.State)
	saved, err := s.results.ListByWorkflow(s.ctx, wf.ID)
	s.Require().NoError(err)
	s.Empty(saved)
}

func (s *FlowSuite) TestStepUpReturnsToDocumentCollection() {
	s.givenPlaybook(playbook.Config{Kind: playbook.KindKyc})
	s.givenRule("step_up_on_name", rules.KindPerson, rules.StepUp(rules.StepUpIdentity),
		rules.Has(risk.NameDoesNotMatch),
	)
	s.steer("pass", string(risk.NameDoesNotMatch))
	wf := s.start(workflow.KindKyc, sandboxRun)

	stepped, err := s.engine.Run(s.ctx, wf.ID, workflow.Authorize{})
	s.Require().NoError(err)
	s.Equal(workflow.KycDocCollection, stepped.State)
	s.Require().NotNil(stepped.Decision)
	s.Equal("step_up", stepped.Decision.Status())

	s.givenDocumentSignals(risk.DocumentVerified)
	got, err := s.engine.Run(s.ctx, wf.ID, workflow.DocCollected{DocumentID: id.NewIdentityDocumentID()})
	s.Require().NoError(err)
	s.Equal(workflow.KycComplete, got.State)
	s.Equal("pass", got.Decision.Status())
	s.Len(s.calledAPIs(), 1, "kyc results of the same intent are reused after the step-up")

	saved, err := s.results.ListByWorkflow(s.ctx, wf.ID)
	s.Require().NoError(err)
	s.Require().Len(saved, 2)
	s.Nil(saved[1].Action, "the step-up rule still fires but cannot ask again")
}

func (s *FlowSuite) TestStepUpAfterCollectionFallsBackToNextAction() {
	s.givenPlaybook(playbook.Config{Kind: playbook.KindKyc})
	s.givenRule("step_up_on_name", rules.KindPerson, rules.StepUp(rules.StepUpIdentity),
		rules.Has(risk.NameDoesNotMatch),
	)
	s.givenRule("review_on_name", rules.KindPerson, rules.ManualReview,
		rules.Has(risk.NameDoesNotMatch),
	)
	s.steer("pass", string(risk.NameDoesNotMatch))
	wf := s.start(workflow.KindKyc, sandboxRun)

	stepped, err := s.engine.Run(s.ctx, wf.ID, workflow.Authorize{})
	s.Require().NoError(err)
	s.Equal("step_up", stepped.Decision.Status())

	s.givenDocumentSignals(risk.DocumentVerified)
	got, err := s.engine.Run(s.ctx, wf.ID, workflow.DocCollected{DocumentID: id.NewIdentityDocumentID()})
	s.Require().NoError(err)
	s.Equal(workflow.KycComplete, got.State)
	s.Equal("pending_review", got.Decision.Status())
	s.True(got.Decision.CreateManualReview)
}

func (s *FlowSuite) TestRedoReusesPriorResults() {
	s.givenPlaybook(playbook.Config{Kind: playbook.KindKyc})
	s.givenRule("fail_on_ssn", rules.KindPerson, rules.Fail, rules.Has(risk.SsnDoesNotMatch))
	first := s.start(workflow.KindKyc)
	_, err := s.engine.Run(s.ctx, first.ID, workflow.Authorize{})
	s.Require().NoError(err)
	s.Len(s.calledAPIs(), 1)

	redo := s.start(workflow.KindKyc, func(wf *workflow.Workflow) { wf.IsRedo = true })
	got, err := s.engine.Run(s.ctx, redo.ID, workflow.Authorize{})
	s.Require().NoError(err)
	s.Equal(workflow.KycComplete, got.State)
	s.Len(s.calledAPIs(), 1, "a redo with prior results makes no vendor calls")

	events, err := s.engine.Events(s.ctx, redo.ID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(workflow.KycDecisioning, events[0].ToState)
}

func (s *FlowSuite) TestKybRunsAfterBeneficialOwners() {
	s.givenPlaybook(playbook.Config{Kind: playbook.KindKyb})
	s.givenRule("fail_on_tin", rules.KindBusiness, rules.Fail, rules.Has(risk.TinDoesNotMatch))
	wf := s.start(workflow.KindKyb)

	waiting, err := s.engine.Run(s.ctx, wf.ID, workflow.Authorize{})
	s.Require().NoError(err)
	s.Equal(workflow.KybAwaitingBoKyc, waiting.State)

	got, err := s.engine.Run(s.ctx, wf.ID, workflow.BoKycCompleted{})
	s.Require().NoError(err)
	s.Equal(workflow.KybComplete, got.State)
	s.Equal("pass", got.Decision.Status())
	s.Equal([]vendor.API{vendor.MiddeskBusinessVerification}, s.calledAPIs())
}

func (s *FlowSuite) TestDocumentWorkflowWithoutRules() {
	s.givenPlaybook(playbook.Config{
		Kind:          playbook.KindDocument,
		DocumentKinds: []playbook.DocumentKind{playbook.DocumentIDCard},
	})
	s.givenDocumentSignals(risk.DocumentVerified)
	wf := s.start(workflow.KindDocument)

	got, err := s.engine.Run(s.ctx, wf.ID, workflow.DocCollected{DocumentID: id.NewIdentityDocumentID()})
	s.Require().NoError(err)
	s.Equal(workflow.DocumentComplete, got.State)
	s.Equal(workflow.DecisionRulesNotExecuted, got.Decision.Kind)
	s.False(got.Decision.ShouldCommit)
}

func (s *FlowSuite) TestSuppliedDecisionSkipsEvaluation() {
	s.givenPlaybook(playbook.Config{Kind: playbook.KindDocument})
	wf := s.start(workflow.KindDocument)
	_, err := s.engine.Action(s.ctx, wf.ID, workflow.DocCollected{DocumentID: id.NewIdentityDocumentID()})
	s.Require().NoError(err)

	review := rules.ManualReview
	supplied := workflow.Decision{Kind: workflow.DecisionRulesExecuted, Action: &review, CreateManualReview: true}
	got, err := s.engine.Action(s.ctx, wf.ID, workflow.MakeDecision{Decision: &supplied})
	s.Require().NoError(err)
	s.Equal("pending_review", got.Decision.Status())

	var kinds []webhook.Kind
	for _, e := range s.hooks.Events() {
		kinds = append(kinds, e.Kind)
	}
	s.Contains(kinds, webhook.KindManualReviewCreated)
}

func (s *FlowSuite) TestMissingDocumentIDRejected() {
	s.givenPlaybook(playbook.Config{Kind: playbook.KindDocument})
	wf := s.start(workflow.KindDocument)

	_, err := s.engine.Action(s.ctx, wf.ID, workflow.DocCollected{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestHandlersValidateDeps(t *testing.T) {
	_, err := onboarding.Handlers(onboarding.Deps{})
	if !dErrors.HasCode(err, dErrors.CodeInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
