//go:build integration

package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "idv/pkg/domain"
	dErrors "idv/pkg/domain-errors"
	"idv/pkg/testutil"
	"idv/pkg/testutil/containers"

	"idv/internal/platform/postgres"
	"idv/internal/rules"
	"idv/internal/workflow"
)

type advancing struct{}

func (advancing) Transition(_ context.Context, wf workflow.Workflow, action workflow.Action) (workflow.Outcome, error) {
	switch action.(type) {
	case workflow.Authorize:
		wf.State = workflow.KycVendorCalls
	case workflow.MakeVendorCalls:
		wf.State = workflow.KycDecisioning
	case workflow.MakeDecision:
		review := rules.ManualReview
		wf.State = workflow.KycComplete
		wf.Decision = &workflow.Decision{Kind: workflow.DecisionRulesExecuted, Action: &review, CreateManualReview: true}
	}
	return workflow.Outcome{Workflow: wf}, nil
}

func (advancing) AutoFollow(wf workflow.Workflow) workflow.Action {
	switch wf.State {
	case workflow.KycVendorCalls:
		return workflow.MakeVendorCalls{}
	case workflow.KycDecisioning:
		return workflow.MakeDecision{}
	}
	return nil
}

type PostgresStoreSuite struct {
	suite.Suite
	pg     *containers.PostgresContainer
	engine *workflow.Engine
	ctx    context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	store := workflow.NewPostgresStore(s.pg.DB, postgres.NewTxRunner(s.pg.DB, 5*time.Second))
	s.engine = workflow.NewEngine(store, map[workflow.Kind]workflow.Handler{workflow.KindKyc: advancing{}})
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "workflow_event", "workflow"))
	s.ctx = testutil.Context(id.NewTenantID())
}

func (s *PostgresStoreSuite) start() workflow.Workflow {
	wf, err := workflow.New(workflow.KindKyc, id.NewTenantID(), id.NewScopedVaultID(), id.NewPlaybookID(), testutil.FixedTime)
	s.Require().NoError(err)
	s.Require().NoError(s.engine.Start(s.ctx, wf))
	return wf
}

func (s *PostgresStoreSuite) TestRunPersistsStateDecisionAndLog() {
	wf := s.start()

	done, err := s.engine.Run(s.ctx, wf.ID, workflow.Authorize{})
	s.Require().NoError(err)
	s.Equal(workflow.KycComplete, done.State)

	stored, err := s.engine.Get(s.ctx, wf.ID)
	s.Require().NoError(err)
	s.Equal(workflow.KycComplete, stored.State)
	s.Require().NotNil(stored.Decision)
	s.Equal(rules.ManualReview, *stored.Decision.Action)
	s.True(stored.Decision.CreateManualReview)

	events, err := s.engine.Events(s.ctx, wf.ID)
	s.Require().NoError(err)
	s.Len(events, 3)
}

func (s *PostgresStoreSuite) TestRowLockSerializesActions() {
	wf := s.start()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []error
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.engine.Action(s.ctx, wf.ID, workflow.Authorize{}); err != nil {
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Len(failures, 7)
	for _, err := range failures {
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition), "unexpected error: %v", err)
	}
	events, err := s.engine.Events(s.ctx, wf.ID)
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *PostgresStoreSuite) TestRejectedActionWritesNothing() {
	wf := s.start()

	_, err := s.engine.Action(s.ctx, wf.ID, workflow.MakeDecision{})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	events, err := s.engine.Events(s.ctx, wf.ID)
	s.Require().NoError(err)
	s.Empty(events)

	_, err = s.engine.Get(s.ctx, id.NewWorkflowID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
