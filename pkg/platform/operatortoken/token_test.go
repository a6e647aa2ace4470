package operatortoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "idv/pkg/domain-errors"
)

var service = NewService("test-signing-key", DefaultIssuer)

func TestIssueAndValidate(t *testing.T) {
	token, err := service.Issue("alice", time.Hour, time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := service.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Actor)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, DefaultIssuer, claims.Issuer)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestValidateRejects(t *testing.T) {
	expired, err := service.Issue("alice", time.Hour, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	otherKey, err := NewService("another-key", DefaultIssuer).Issue("alice", time.Hour, time.Now())
	require.NoError(t, err)
	otherIssuer, err := NewService("test-signing-key", "someone-else").Issue("alice", time.Hour, time.Now())
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		msg   string
	}{
		{"garbage", "invalid-token-string", "invalid token"},
		{"expired", expired, "token has expired"},
		{"wrong key", otherKey, "invalid token"},
		{"wrong issuer", otherIssuer, "invalid token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Validate(tt.token)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
			assert.Equal(t, tt.msg, err.Error())
		})
	}
}

func TestIssueValidation(t *testing.T) {
	_, err := service.Issue("  ", time.Hour, time.Now())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = service.Issue("alice", 0, time.Now())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = NewService("", DefaultIssuer).Issue("alice", time.Hour, time.Now())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
