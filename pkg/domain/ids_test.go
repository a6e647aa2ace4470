package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "idv/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
//
// Justification: pure function enforcing a domain invariant at trust boundaries.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseWorkflowID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseWorkflowID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseWorkflowID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseWorkflowID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, WorkflowID(validUUID), id)
		assert.Equal(t, validUUID.String(), id.String())
	})
}

// TestParseID_SecurityInvariants validates parsing rules at entry points.
func TestParseID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE workflow;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Whitespace only", "   ", true},
		{"Nil UUID", uuid.Nil.String(), true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScopedVaultID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// TestAllIDTypes_ConsistentBehavior ensures all parsers share validation.
func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	parsers := map[string]func(string) error{
		"tenant":    func(s string) error { _, err := ParseTenantID(s); return err },
		"workflow":  func(s string) error { _, err := ParseWorkflowID(s); return err },
		"vault":     func(s string) error { _, err := ParseScopedVaultID(s); return err },
		"playbook":  func(s string) error { _, err := ParsePlaybookID(s); return err },
		"document":  func(s string) error { _, err := ParseIdentityDocumentID(s); return err },
		"session":   func(s string) error { _, err := ParseSessionID(s); return err },
		"rule":      func(s string) error { _, err := ParseRuleID(s); return err },
	}

	valid := uuid.New().String()
	for name, parse := range parsers {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, parse(valid))
			for _, input := range []string{"", "invalid", uuid.Nil.String()} {
				assert.Error(t, parse(input), "input %q", input)
			}
		})
	}
}

func TestNewIDs_AreNeverNil(t *testing.T) {
	assert.False(t, NewWorkflowID().IsNil())
	assert.False(t, NewSessionID().IsNil())
	assert.False(t, NewRuleID().IsNil())
	assert.True(t, WorkflowID{}.IsNil())
}

func TestIDs_TextRoundTrip(t *testing.T) {
	type payload struct {
		Tenant TenantID  `json:"tenant"`
		Rule   RuleID    `json:"rule"`
		Empty  SessionID `json:"empty"`
	}
	in := payload{Tenant: NewTenantID(), Rule: NewRuleID()}

	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"tenant":"`+in.Tenant.String()+`"`)

	var out payload
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)

	var bad payload
	assert.Error(t, json.Unmarshal([]byte(`{"tenant":"not-a-uuid"}`), &bad))
}
