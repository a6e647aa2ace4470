package rules

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	id "idv/pkg/domain"
	dErrors "idv/pkg/domain-errors"
)

//go:embed baseline.yaml
var baselineYAML []byte

// baselineNamespace derives stable rule ids for baseline rules from their
// names so snapshots stay comparable across deploys.
var baselineNamespace = uuid.MustParse("6f1c1d0e-5b3a-4f7e-9a43-0d7c2b1e8a55")

// File is the on-disk rule file format.
type File struct {
	Rules []FileRule `yaml:"rules"`
}

// FileRule is one rule in a rule file.
type FileRule struct {
	Name       string     `yaml:"name"`
	Kind       Kind       `yaml:"kind"`
	Action     Action     `yaml:"action"`
	Shadow     bool       `yaml:"shadow,omitempty"`
	Expression Expression `yaml:"expression"`
}

// Parse decodes and validates a rule file. Unknown keys are rejected.
func Parse(r io.Reader) (File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, dErrors.Wrap(err, dErrors.CodeValidation, "decode rule file")
	}
	seen := make(map[string]bool, len(f.Rules))
	for i, fr := range f.Rules {
		if seen[fr.Name] {
			return File{}, dErrors.Newf(dErrors.CodeValidation, "rule %d: duplicate name %q", i, fr.Name)
		}
		seen[fr.Name] = true
		if err := fr.instance().Validate(); err != nil {
			return File{}, dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("rule %d (%s)", i, fr.Name))
		}
	}
	return f, nil
}

// LoadFile parses the rule file at path.
func LoadFile(path string) (File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read rule file %s: %w", path, err)
	}
	return Parse(bytes.NewReader(b))
}

func (fr FileRule) instance() Instance {
	return Instance{
		Name:       fr.Name,
		Kind:       fr.Kind,
		Action:     fr.Action,
		IsShadow:   fr.Shadow,
		Expression: fr.Expression,
		Version:    1,
	}
}

// Instances converts the file into unsaved version-1 instances for the
// given tenant and playbook. Rule ids are fresh.
func (f File) Instances(tenantID id.TenantID, playbookID id.PlaybookID, isLive bool) []Instance {
	out := make([]Instance, 0, len(f.Rules))
	for _, fr := range f.Rules {
		inst := fr.instance()
		inst.ID = id.NewRuleInstanceID()
		inst.RuleID = id.NewRuleID()
		inst.TenantID = tenantID
		inst.PlaybookID = playbookID
		inst.IsLive = isLive
		out = append(out, inst)
	}
	return out
}

// BaselineSet is the non-configurable rule set that gates should-commit.
type BaselineSet struct {
	rules []Instance
}

var (
	embeddedOnce     sync.Once
	embeddedBaseline *BaselineSet
	embeddedErr      error
)

// EmbeddedBaseline returns the baseline compiled into the binary.
func EmbeddedBaseline() (*BaselineSet, error) {
	embeddedOnce.Do(func() {
		f, err := Parse(bytes.NewReader(baselineYAML))
		if err != nil {
			embeddedErr = fmt.Errorf("parse embedded baseline: %w", err)
			return
		}
		embeddedBaseline = NewBaselineSet(f)
	})
	return embeddedBaseline, embeddedErr
}

// NewBaselineSet builds global rules from a rule file, for deployments
// that override the embedded baseline. Rule ids derive from rule names.
func NewBaselineSet(f File) *BaselineSet {
	out := make([]Instance, 0, len(f.Rules))
	for _, fr := range f.Rules {
		inst := fr.instance()
		inst.RuleID = id.RuleID(uuid.NewSHA1(baselineNamespace, []byte(fr.Name)))
		inst.ID = id.RuleInstanceID(uuid.NewSHA1(baselineNamespace, []byte(fr.Name+"@1")))
		out = append(out, inst)
	}
	return &BaselineSet{rules: out}
}

// For returns the baseline rules stamped with the run's liveness.
func (b *BaselineSet) For(isLive bool) []Instance {
	out := make([]Instance, len(b.rules))
	for i, r := range b.rules {
		r.IsLive = isLive
		out[i] = r
	}
	return out
}

// Len is the number of baseline rules.
func (b *BaselineSet) Len() int { return len(b.rules) }
