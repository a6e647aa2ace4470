// Package playbook exposes the tenant's onboarding configuration as an
// immutable snapshot per evaluation.
package playbook

import (
	"context"
	"fmt"
	"sync"

	id "idv/pkg/domain"
	dErrors "idv/pkg/domain-errors"
	"idv/pkg/platform/sentinel"

	"idv/internal/vault"
)

// Kind is the onboarding flavour a playbook drives.
type Kind string

const (
	KindKyc      Kind = "kyc"
	KindKyb      Kind = "kyb"
	KindDocument Kind = "document"
)

// CipKind names a broker-dealer customer identification program with extra
// data requirements.
type CipKind string

const (
	CipNone   CipKind = ""
	CipAlpaca CipKind = "alpaca"
	CipApex   CipKind = "apex"
)

// DocumentKind is a document type the playbook may request.
type DocumentKind string

const (
	DocumentDriversLicense DocumentKind = "drivers_license"
	DocumentPassport       DocumentKind = "passport"
	DocumentIDCard         DocumentKind = "id_card"
	DocumentProofOfSsn     DocumentKind = "proof_of_ssn"
	DocumentProofOfAddress DocumentKind = "proof_of_address"
)

// Config is the snapshot read once per evaluation. Callers must not mutate
// the slices.
type Config struct {
	TenantID        id.TenantID            `json:"tenant_id" yaml:"tenant_id,omitempty"`
	PlaybookID      id.PlaybookID          `json:"playbook_id" yaml:"playbook_id,omitempty"`
	Kind            Kind                   `json:"kind" yaml:"kind,omitempty"`
	MustCollectData []vault.DataIdentifier `json:"must_collect_data" yaml:"must_collect_data,omitempty"`
	SkipKyc         bool                   `json:"skip_kyc" yaml:"skip_kyc,omitempty"`
	SkipKyb         bool                   `json:"skip_kyb" yaml:"skip_kyb,omitempty"`
	EnhancedAml     bool                   `json:"enhanced_aml" yaml:"enhanced_aml,omitempty"`
	CipKind         CipKind                `json:"cip_kind" yaml:"cip_kind,omitempty"`
	DocumentKinds   []DocumentKind         `json:"document_kinds" yaml:"document_kinds,omitempty"`
	CollectSelfie   bool                   `json:"collect_selfie" yaml:"collect_selfie,omitempty"`
	IsLive          bool                   `json:"is_live" yaml:"is_live,omitempty"`
}

// RequestsDocument reports whether any document kind is collected.
func (c Config) RequestsDocument() bool { return len(c.DocumentKinds) > 0 }

// AllowsRulelessOperation reports whether zero active rules is a legitimate
// outcome: document-only playbooks, or KYC/KYB playbooks that skip the check.
func (c Config) AllowsRulelessOperation() bool {
	switch c.Kind {
	case KindDocument:
		return true
	case KindKyc:
		return c.SkipKyc
	case KindKyb:
		return c.SkipKyb
	}
	return false
}

// Provider loads playbook configuration.
type Provider interface {
	Config(ctx context.Context, tenantID id.TenantID, playbookID id.PlaybookID) (Config, error)
}

// StaticProvider serves configs registered in process.
type StaticProvider struct {
	mu      sync.RWMutex
	configs map[id.PlaybookID]Config
}

func NewStaticProvider(configs ...Config) *StaticProvider {
	p := &StaticProvider{configs: make(map[id.PlaybookID]Config, len(configs))}
	for _, c := range configs {
		p.configs[c.PlaybookID] = c
	}
	return p
}

// Put registers or replaces a config.
func (p *StaticProvider) Put(c Config) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.configs[c.PlaybookID] = c
}

func (p *StaticProvider) Config(_ context.Context, tenantID id.TenantID, playbookID id.PlaybookID) (Config, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.configs[playbookID]
	if !ok || c.TenantID != tenantID {
		return Config{}, dErrors.Wrap(fmt.Errorf("playbook %s: %w", playbookID, sentinel.ErrNotFound), dErrors.CodeNotFound, "playbook not found")
	}
	return c, nil
}
