package rules

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "idv/pkg/domain"
	dErrors "idv/pkg/domain-errors"

	"idv/internal/risk"
)

func fixedSnapshot(t *testing.T) RuleSetResult {
	t.Helper()
	tenant := id.TenantID(uuid.MustParse("11111111-1111-1111-1111-111111111111"))
	pb := id.PlaybookID(uuid.MustParse("44444444-4444-4444-4444-444444444444"))
	rule := Instance{
		ID:         id.RuleInstanceID(uuid.MustParse("55555555-5555-5555-5555-555555555555")),
		RuleID:     id.RuleID(uuid.MustParse("66666666-6666-6666-6666-666666666666")),
		Version:    2,
		TenantID:   tenant,
		PlaybookID: pb,
		Name:       "ssn_mismatch_fail",
		Kind:       KindPerson,
		Action:     Fail,
		Expression: Expression{Has(risk.SsnDoesNotMatch)},
	}
	eval := Evaluate([]Instance{rule}, []risk.ReasonCode{risk.SsnDoesNotMatch}, EvalContext{
		TenantID: tenant, PlaybookID: pb, Scope: ScopePerson,
	})
	res, err := NewRuleSetResult(Subject{
		TenantID:      tenant,
		WorkflowID:    id.WorkflowID(uuid.MustParse("22222222-2222-2222-2222-222222222222")),
		ScopedVaultID: id.ScopedVaultID(uuid.MustParse("33333333-3333-3333-3333-333333333333")),
		PlaybookID:    pb,
	}, SetKindWorkflowDecision, eval, []id.RiskSignalID{
		id.RiskSignalID(uuid.MustParse("77777777-7777-7777-7777-777777777777")),
	}, time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return res
}

func TestRuleSetResult_CanonicalSnapshot(t *testing.T) {
	res := fixedSnapshot(t)

	b, err := res.CanonicalBytes()
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "rule_set_result", b)
}

func TestRuleSetResult_Verify(t *testing.T) {
	res := fixedSnapshot(t)
	require.NoError(t, res.Verify())
	assert.Len(t, res.Digest, 64)

	t.Run("the id is not part of the digest", func(t *testing.T) {
		other := res
		other.ID = id.NewRuleSetResultID()
		assert.NoError(t, other.Verify())
	})

	t.Run("a flipped result breaks the digest", func(t *testing.T) {
		tampered := res
		tampered.Entries = append([]Entry(nil), res.Entries...)
		tampered.Entries[0].Fired = false
		err := tampered.Verify()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("signal order does not matter", func(t *testing.T) {
		a, b := id.NewRiskSignalID(), id.NewRiskSignalID()
		eval := Evaluation{}
		first, err := NewRuleSetResult(Subject{}, SetKindWorkflowDecision, eval, []id.RiskSignalID{a, b}, time.Unix(0, 0))
		require.NoError(t, err)
		second, err := NewRuleSetResult(Subject{}, SetKindWorkflowDecision, eval, []id.RiskSignalID{b, a}, time.Unix(0, 0))
		require.NoError(t, err)
		assert.Equal(t, first.Digest, second.Digest)
	})
}
