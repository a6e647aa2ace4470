package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "idv/pkg/domain-errors"
)

func TestAction_Ranking(t *testing.T) {
	ordered := []Action{
		PassWithManualReview,
		ManualReview,
		StepUp(StepUpIdentity),
		StepUp(StepUpIdentityProofOfSsn),
		StepUp(StepUpIdentityProofOfSsnProofOfAddress),
		Fail,
	}
	for i := 1; i < len(ordered); i++ {
		assert.True(t, ordered[i].Outranks(ordered[i-1]), "%s should outrank %s", ordered[i], ordered[i-1])
		assert.False(t, ordered[i-1].Outranks(ordered[i]))
	}
	assert.Nil(t, Strongest(nil))
}

func TestAction_ShouldCreateReview(t *testing.T) {
	assert.True(t, ManualReview.ShouldCreateReview())
	assert.True(t, PassWithManualReview.ShouldCreateReview())
	assert.False(t, Fail.ShouldCreateReview())
	assert.False(t, StepUp(StepUpIdentity).ShouldCreateReview())
}

func TestParseAction(t *testing.T) {
	for _, a := range []Action{Fail, ManualReview, PassWithManualReview, StepUp(StepUpIdentityProofOfSsn)} {
		parsed, err := ParseAction(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
	}

	for _, bad := range []string{"", "approve", "step_up", "step_up.selfie"} {
		_, err := ParseAction(bad)
		require.Error(t, err, bad)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	}
}
