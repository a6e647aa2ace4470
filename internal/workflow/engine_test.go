package workflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	id "idv/pkg/domain"
	dErrors "idv/pkg/domain-errors"
	audit "idv/pkg/platform/audit"
	auditmemory "idv/pkg/platform/audit/store/memory"
	"idv/pkg/testutil"

	"idv/internal/rules"
	"idv/internal/webhook"
)

// scriptedHandler follows the happy path of the Kyc table unless a test
// overrides next or follow.
type scriptedHandler struct {
	next   func(wf Workflow, action Action) (State, error)
	follow func(wf Workflow) Action
	calls  atomic.Int32
}

var kycHappyPath = map[State]State{
	KycDataCollection: KycVendorCalls,
	KycDocCollection:  KycVendorCalls,
	KycVendorCalls:    KycDecisioning,
	KycDecisioning:    KycComplete,
}

func (h *scriptedHandler) Transition(_ context.Context, wf Workflow, action Action) (Outcome, error) {
	h.calls.Add(1)
	to := kycHappyPath[wf.State]
	if h.next != nil {
		var err error
		if to, err = h.next(wf, action); err != nil {
			return Outcome{}, err
		}
	}
	wf.State = to
	var hooks []webhook.Event
	if to == KycComplete {
		hooks = append(hooks, webhook.NewEvent(webhook.KindOnboardingCompleted, wf.TenantID, wf.ID, wf.ScopedVaultID, wf.UpdatedAt))
	}
	return Outcome{Workflow: wf, Webhooks: hooks}, nil
}

func (h *scriptedHandler) AutoFollow(wf Workflow) Action {
	if h.follow != nil {
		return h.follow(wf)
	}
	switch wf.State {
	case KycVendorCalls:
		return MakeVendorCalls{}
	case KycDecisioning:
		return MakeDecision{}
	}
	return nil
}

// =============================================================================
// Workflow Engine Test Suite
// =============================================================================
// Justification for unit tests: the reject-without-mutation guarantee, the
// body-chosen-state assertion, and the auto-follow bound are engine logic
// independent of storage; the in-memory store provides the same locking
// contract as Postgres.

type EngineSuite struct {
	suite.Suite
	ctx      context.Context
	store    *InMemoryStore
	hooks    *webhook.MemoryEnqueuer
	opsLog   *auditmemory.InMemoryStore
	handler  *scriptedHandler
	engine   *Engine
	workflow Workflow
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	tenant := id.NewTenantID()
	s.ctx = testutil.Context(tenant)
	s.store = NewInMemoryStore()
	s.hooks = webhook.NewMemoryEnqueuer()
	s.opsLog = auditmemory.NewInMemoryStore()
	s.handler = &scriptedHandler{}
	s.engine = NewEngine(s.store, map[Kind]Handler{KindKyc: s.handler},
		WithWebhooks(s.hooks),
		WithEventLog(s.opsLog),
	)

	wf, err := New(KindKyc, tenant, id.NewScopedVaultID(), id.NewPlaybookID(), testutil.FixedTime)
	s.Require().NoError(err)
	s.Require().NoError(s.engine.Start(s.ctx, wf))
	s.workflow = wf
}

func (s *EngineSuite) events() []Event {
	events, err := s.engine.Events(s.ctx, s.workflow.ID)
	s.Require().NoError(err)
	return events
}

func (s *EngineSuite) TestIllegalActionChangesNothing() {
	before, err := s.engine.Get(s.ctx, s.workflow.ID)
	s.Require().NoError(err)

	_, err = s.engine.Action(s.ctx, s.workflow.ID, MakeDecision{})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	after, err := s.engine.Get(s.ctx, s.workflow.ID)
	s.Require().NoError(err)
	s.Equal(before, after)
	s.Empty(s.events())
	s.Zero(s.handler.calls.Load(), "the body never runs for an illegal action")
	s.Empty(s.hooks.Events())

	wf, err := s.engine.Action(s.ctx, s.workflow.ID, Authorize{})
	s.Require().NoError(err)
	s.Equal(KycVendorCalls, wf.State, "a later legal action behaves as if the rejected one never happened")
	s.Len(s.events(), 1)
}

func (s *EngineSuite) TestBodyChoosingAnUnlistedStateIsAnAssertion() {
	s.handler.next = func(Workflow, Action) (State, error) { return KycComplete, nil }

	_, err := s.engine.Action(s.ctx, s.workflow.ID, Authorize{})
	s.True(dErrors.HasCode(err, dErrors.CodeAssertion))

	wf, _ := s.engine.Get(s.ctx, s.workflow.ID)
	s.Equal(KycDataCollection, wf.State)
	s.Empty(s.events())
}

func (s *EngineSuite) TestBodyErrorRollsBack() {
	boom := dErrors.New(dErrors.CodeVendorCallFailed, "vendor down")
	s.handler.next = func(Workflow, Action) (State, error) { return "", boom }

	_, err := s.engine.Action(s.ctx, s.workflow.ID, Authorize{})
	s.ErrorIs(err, boom)
	s.True(dErrors.HasCode(err, dErrors.CodeVendorCallFailed))

	wf, _ := s.engine.Get(s.ctx, s.workflow.ID)
	s.Equal(KycDataCollection, wf.State)
	s.Empty(s.events())
}

func (s *EngineSuite) TestRunFollowsToCompletion() {
	wf, err := s.engine.Run(s.ctx, s.workflow.ID, Authorize{})
	s.Require().NoError(err)
	s.Equal(KycComplete, wf.State)
	s.Equal(testutil.FixedTime, wf.UpdatedAt)

	events := s.events()
	s.Require().Len(events, 3)
	s.Equal(ActionAuthorize, events[0].Action)
	s.Equal(KycDataCollection, events[0].FromState)
	s.Equal(ActionMakeVendorCalls, events[1].Action)
	s.Equal(ActionMakeDecision, events[2].Action)
	s.Equal(KycComplete, events[2].ToState)

	hooks := s.hooks.Events()
	s.Require().Len(hooks, 4, "one status change per transition plus the completion")
	s.Equal(webhook.KindOnboardingStatusChanged, hooks[0].Kind)
	s.Equal(string(KycVendorCalls), hooks[0].Status)
	s.Equal(webhook.KindOnboardingCompleted, hooks[3].Kind)

	logged, err := s.opsLog.ListBySubject(s.ctx, s.workflow.ID.String())
	s.Require().NoError(err)
	s.Len(logged, 3)
	s.Equal(audit.CategoryOperations, logged[0].Category)

	_, err = s.engine.Action(s.ctx, s.workflow.ID, Authorize{})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition), "complete is terminal")
}

func (s *EngineSuite) TestRunStopsAtInputStates() {
	s.handler.next = func(wf Workflow, _ Action) (State, error) {
		if wf.State == KycDataCollection {
			return KycDocCollection, nil
		}
		return kycHappyPath[wf.State], nil
	}

	wf, err := s.engine.Run(s.ctx, s.workflow.ID, Authorize{})
	s.Require().NoError(err)
	s.Equal(KycDocCollection, wf.State)
	s.Len(s.events(), 1)
}

func (s *EngineSuite) TestRunBoundsTheChain() {
	// decisioning keeps stepping up, so the loop never settles
	s.handler.next = func(wf Workflow, _ Action) (State, error) {
		if wf.State == KycDecisioning {
			return KycDocCollection, nil
		}
		return kycHappyPath[wf.State], nil
	}
	s.handler.follow = func(wf Workflow) Action {
		switch wf.State {
		case KycDocCollection:
			return DocCollected{DocumentID: id.NewIdentityDocumentID()}
		case KycVendorCalls:
			return MakeVendorCalls{}
		case KycDecisioning:
			return MakeDecision{}
		}
		return nil
	}

	_, err := s.engine.Run(s.ctx, s.workflow.ID, Authorize{})
	s.True(dErrors.HasCode(err, dErrors.CodeAssertion))
	s.Len(s.events(), maxAutoFollow+1)
}

func (s *EngineSuite) TestConcurrentActionsSerialize() {
	const n = 16
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		rejected  atomic.Int32
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.engine.Action(s.ctx, s.workflow.ID, Authorize{})
			switch {
			case err == nil:
				succeeded.Add(1)
			case dErrors.HasCode(err, dErrors.CodeInvalidTransition):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), succeeded.Load())
	s.Equal(int32(n-1), rejected.Load())
	s.Len(s.events(), 1)
}

func (s *EngineSuite) TestUnknownWorkflow() {
	_, err := s.engine.Action(s.ctx, id.NewWorkflowID(), Authorize{})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *EngineSuite) TestDecisionIsPersisted() {
	fail := rules.Fail
	s.handler.next = func(wf Workflow, action Action) (State, error) {
		return kycHappyPath[wf.State], nil
	}
	_, err := s.engine.Action(s.ctx, s.workflow.ID, Authorize{})
	s.Require().NoError(err)
	_, err = s.engine.Action(s.ctx, s.workflow.ID, MakeVendorCalls{})
	s.Require().NoError(err)

	decided := &scriptedDecider{decision: Decision{Kind: DecisionRulesExecuted, Action: &fail}}
	s.engine.handlers[KindKyc] = decided
	wf, err := s.engine.Action(s.ctx, s.workflow.ID, MakeDecision{})
	s.Require().NoError(err)
	s.Require().NotNil(wf.Decision)
	s.Equal("fail", wf.Decision.Status())
}

type scriptedDecider struct {
	decision Decision
}

func (d *scriptedDecider) Transition(_ context.Context, wf Workflow, _ Action) (Outcome, error) {
	wf.State = KycComplete
	wf.Decision = &d.decision
	return Outcome{Workflow: wf}, nil
}

func (d *scriptedDecider) AutoFollow(Workflow) Action { return nil }

func TestAllowed(t *testing.T) {
	t.Run("terminal states accept nothing", func(t *testing.T) {
		for kind, table := range transitions {
			for e := range table {
				assert.False(t, e.from.IsTerminal(), "%s has an edge out of %s", kind, e.from)
			}
		}
	})

	t.Run("every kind starts in a state with an edge", func(t *testing.T) {
		for kind := range transitions {
			start, ok := kind.InitialState()
			require.True(t, ok)
			found := false
			for e := range transitions[kind] {
				found = found || e.from == start
			}
			assert.True(t, found, "%s cannot leave %s", kind, start)
		}
	})

	t.Run("illegal pairs", func(t *testing.T) {
		_, err := Allowed(KindDocument, DocumentDataCollection, ActionAuthorize)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
		_, err = Allowed("payroll", KycDataCollection, ActionAuthorize)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("step-up returns to doc collection", func(t *testing.T) {
		next, err := Allowed(KindKyc, KycDecisioning, ActionMakeDecision)
		require.NoError(t, err)
		assert.Contains(t, next, KycDocCollection)
	})
}

func TestDecisionStatus(t *testing.T) {
	fail, review, stepUp := rules.Fail, rules.ManualReview, rules.StepUp(rules.StepUpIdentity)
	tests := []struct {
		decision Decision
		want     string
	}{
		{Decision{Kind: DecisionRulesNotExecuted}, "pass"},
		{Decision{Kind: DecisionRulesExecuted}, "pass"},
		{Decision{Kind: DecisionRulesExecuted, Action: &fail}, "fail"},
		{Decision{Kind: DecisionRulesExecuted, Action: &review}, "pending_review"},
		{Decision{Kind: DecisionRulesExecuted, Action: &stepUp}, "step_up"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.decision.Status())
	}
}

func TestTranslateKeepsDomainCodes(t *testing.T) {
	err := translate(dErrors.New(dErrors.CodeRetryLimitExceeded, "x"), "msg")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeRetryLimitExceeded))
	assert.True(t, dErrors.HasCode(translate(errors.New("db"), "msg"), dErrors.CodeInternal))
}
