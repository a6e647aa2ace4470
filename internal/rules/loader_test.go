package rules

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "idv/pkg/domain"
	dErrors "idv/pkg/domain-errors"

	"idv/internal/risk"
)

const sampleFile = `
rules:
  - name: ssn_fail
    kind: person
    action: fail
    expression:
      - reason_code: {code: ssn_does_not_match}
  - name: address_step_up
    kind: any
    action: step_up.identity_proof_of_ssn_proof_of_address
    shadow: true
    expression:
      - reason_code: {code: address_does_not_match}
      - insight: {field: ip_country, op: is_not_in, values: [US, CA]}
`

func TestParse(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		f, err := Parse(strings.NewReader(sampleFile))
		require.NoError(t, err)
		require.Len(t, f.Rules, 2)
		assert.Equal(t, Fail, f.Rules[0].Action)
		assert.Equal(t, StepUp(StepUpIdentityProofOfSsnProofOfAddress), f.Rules[1].Action)
		assert.True(t, f.Rules[1].Shadow)
		assert.Equal(t, []risk.ReasonCode{risk.AddressDoesNotMatch}, f.Rules[1].Expression.ReasonCodes())

		tenant, pb := id.NewTenantID(), id.NewPlaybookID()
		insts := f.Instances(tenant, pb, true)
		require.Len(t, insts, 2)
		assert.Equal(t, tenant, insts[0].TenantID)
		assert.Equal(t, 1, insts[0].Version)
		assert.True(t, insts[1].IsLive)
		assert.NotEqual(t, insts[0].RuleID, insts[1].RuleID)
	})

	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "rules:\n  - name: x\n    kind: person\n    action: fail\n    severity: high\n"},
		{"unknown action", "rules:\n  - name: x\n    kind: person\n    action: approve\n"},
		{"unknown reason code", "rules:\n  - name: x\n    kind: person\n    action: fail\n    expression:\n      - reason_code: {code: made_up}\n"},
		{"two variants in one condition", "rules:\n  - name: x\n    kind: person\n    action: fail\n    expression:\n      - reason_code: {code: ssn_matches}\n        insight: {field: is_bot, op: eq, value: 'true'}\n"},
		{"duplicate names", "rules:\n  - {name: x, kind: person, action: fail}\n  - {name: x, kind: person, action: fail}\n"},
		{"missing kind", "rules:\n  - name: x\n    action: fail\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.body))
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func TestEmbeddedBaseline(t *testing.T) {
	b, err := EmbeddedBaseline()
	require.NoError(t, err)
	require.Positive(t, b.Len())

	sandbox := b.For(false)
	live := b.For(true)
	for i := range sandbox {
		assert.False(t, sandbox[i].IsLive)
		assert.True(t, live[i].IsLive)
		assert.Equal(t, sandbox[i].RuleID, live[i].RuleID, "baseline ids are stable")
		assert.Equal(t, Fail, sandbox[i].Action)
	}

	again, err := EmbeddedBaseline()
	require.NoError(t, err)
	assert.Equal(t, b.For(true), again.For(true))

	eval := Evaluate(live, []risk.ReasonCode{risk.SsnDoesNotMatch}, EvalContext{Scope: ScopePerson, IsLive: true})
	require.NotNil(t, eval.Action)
	assert.Equal(t, Fail, *eval.Action)

	eval = Evaluate(live, []risk.ReasonCode{risk.SsnMatches, risk.NameMatches}, EvalContext{Scope: ScopePerson, IsLive: true})
	assert.Nil(t, eval.Action)
}
