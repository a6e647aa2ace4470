package playbook

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	dErrors "idv/pkg/domain-errors"
)

// File is the on-disk playbook format used by deployments without a
// playbook service:
//
//	playbooks:
//	  - tenant_id: 3f0c...
//	    playbook_id: 9a12...
//	    kind: kyc
//	    document_kinds: [drivers_license, passport]
type File struct {
	Playbooks []Config `yaml:"playbooks"`
}

// ParseFile decodes and validates a playbook file. Unknown keys are rejected.
func ParseFile(r io.Reader) ([]Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "decode playbook file")
	}
	seen := make(map[string]bool, len(f.Playbooks))
	for i, c := range f.Playbooks {
		if err := c.Validate(); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("playbook %d", i))
		}
		key := c.PlaybookID.String()
		if seen[key] {
			return nil, dErrors.Newf(dErrors.CodeValidation, "playbook %d: duplicate id %s", i, key)
		}
		seen[key] = true
	}
	return f.Playbooks, nil
}

// LoadFile parses the playbook file at path.
func LoadFile(path string) ([]Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read playbook file %s: %w", path, err)
	}
	return ParseFile(bytes.NewReader(b))
}

// Validate checks identity and enum fields.
func (c Config) Validate() error {
	if c.TenantID.IsNil() || c.PlaybookID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "tenant_id and playbook_id are required")
	}
	switch c.Kind {
	case KindKyc, KindKyb, KindDocument:
	default:
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown playbook kind %q", c.Kind)
	}
	switch c.CipKind {
	case CipNone, CipAlpaca, CipApex:
	default:
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown cip kind %q", c.CipKind)
	}
	for _, k := range c.DocumentKinds {
		switch k {
		case DocumentDriversLicense, DocumentPassport, DocumentIDCard, DocumentProofOfSsn, DocumentProofOfAddress:
		default:
			return dErrors.Newf(dErrors.CodeInvalidInput, "unknown document kind %q", k)
		}
	}
	return nil
}
