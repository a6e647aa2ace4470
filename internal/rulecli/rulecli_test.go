package rulecli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idv/pkg/platform/operatortoken"
)

const ruleFile = `
rules:
  - name: ssn_fail
    kind: person
    action: fail
    expression:
      - reason_code: {code: ssn_does_not_match}
  - name: foreign_ip_step_up
    kind: any
    action: step_up.identity
    expression:
      - insight: {field: ip_country, op: is_not_in, values: [US, CA]}
  - name: watchlist_shadow
    kind: person
    action: fail
    shadow: true
    expression:
      - reason_code: {code: watchlist_hit_ofac}
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidate(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		out, err := execute(t, "validate", writeFile(t, "rules.yaml", ruleFile))
		require.NoError(t, err)
		assert.Contains(t, out, "ok")
		assert.Contains(t, out, "(3 rules)")
	})

	t.Run("invalid file fails the command", func(t *testing.T) {
		bad := writeFile(t, "bad.yaml", "rules:\n  - name: x\n    kind: person\n    action: approve\n")
		out, err := execute(t, "--format", "json", "validate", bad)
		require.ErrorIs(t, err, errInvalidFiles)

		var results []fileResult
		require.NoError(t, json.Unmarshal([]byte(out), &results))
		require.Len(t, results, 1)
		assert.False(t, results[0].Valid)
		assert.Contains(t, results[0].Error, "unknown rule action")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := execute(t, "--format", "xml", "validate", writeFile(t, "rules.yaml", ruleFile))
		require.Error(t, err)
	})
}

func TestEvaluate(t *testing.T) {
	path := writeFile(t, "rules.yaml", ruleFile)

	report := func(t *testing.T, args ...string) evaluateReport {
		t.Helper()
		out, err := execute(t, append([]string{"--format", "json", "evaluate", path}, args...)...)
		require.NoError(t, err)
		var r evaluateReport
		require.NoError(t, json.Unmarshal([]byte(out), &r))
		return r
	}

	t.Run("no findings passes", func(t *testing.T) {
		r := report(t, "--country", "US")
		assert.Equal(t, "pass", r.Action)
		require.Len(t, r.Rules, 3)
		assert.Nil(t, r.BaselineClear)
	})

	t.Run("strongest fired action wins", func(t *testing.T) {
		r := report(t, "--codes", "ssn_does_not_match", "--country", "FR")
		assert.Equal(t, "fail", r.Action)
		assert.True(t, r.Rules[0].Fired)
		assert.True(t, r.Rules[1].Fired)
	})

	t.Run("shadow rules never decide", func(t *testing.T) {
		r := report(t, "--codes", "watchlist_hit_ofac", "--country", "CA")
		assert.Equal(t, "pass", r.Action)
		assert.True(t, r.Rules[2].Fired)
		assert.True(t, r.Rules[2].Shadow)
	})

	t.Run("baseline", func(t *testing.T) {
		r := report(t, "--codes", "ssn_does_not_match", "--baseline")
		require.NotNil(t, r.BaselineClear)
		assert.False(t, *r.BaselineClear)
	})

	t.Run("unknown reason code", func(t *testing.T) {
		_, err := execute(t, "evaluate", path, "--codes", "made_up")
		require.Error(t, err)
	})

	t.Run("text output", func(t *testing.T) {
		out, err := execute(t, "evaluate", path, "--codes", "ssn_does_not_match")
		require.NoError(t, err)
		assert.Contains(t, out, "RULE")
		assert.Contains(t, out, "result: fail")
	})

	t.Run("absent insight is foreign", func(t *testing.T) {
		r := report(t)
		assert.Equal(t, "step_up.identity", r.Action)
	})
}

func TestToken(t *testing.T) {
	t.Run("minted token verifies with the same secret", func(t *testing.T) {
		t.Setenv("ADMIN_TOKEN", "s3cret")
		out, err := execute(t, "token", "--actor", "alice", "--ttl", "10m")
		require.NoError(t, err)

		claims, err := operatortoken.NewService("s3cret", operatortoken.DefaultIssuer).Validate(strings.TrimSpace(out))
		require.NoError(t, err)
		assert.Equal(t, "alice", claims.Actor)
	})

	t.Run("json output", func(t *testing.T) {
		t.Setenv("IDV_SECRET", "s3cret")
		out, err := execute(t, "token", "--actor", "bob", "--secret-env", "IDV_SECRET", "--format", "json")
		require.NoError(t, err)

		var report tokenReport
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.Equal(t, "bob", report.Actor)
		assert.NotEmpty(t, report.Token)
	})

	t.Run("missing secret", func(t *testing.T) {
		t.Setenv("ADMIN_TOKEN", "")
		_, err := execute(t, "token", "--actor", "alice")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ADMIN_TOKEN is not set")
	})

	t.Run("actor is required", func(t *testing.T) {
		t.Setenv("ADMIN_TOKEN", "s3cret")
		_, err := execute(t, "token")
		require.Error(t, err)
	})
}
