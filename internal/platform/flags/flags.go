// Package flags provides the feature-flag interface injected into services.
//
// Flags are never read from a global: each service receives a Flags value at
// construction so tests substitute deterministic answers.
package flags

import (
	"sync"

	id "idv/pkg/domain"
)

// Flag names a feature switch.
type Flag string

const (
	// DocumentAsyncScoring polls GetOnboardingStatus before fetching scores.
	DocumentAsyncScoring Flag = "document.async_scoring"
	// DecisionShadowLogging logs shadow rules that fired during decisioning.
	DecisionShadowLogging Flag = "decision.shadow_logging"
	// KycEnhancedAmlForce runs the AML check even when the playbook does not ask for it.
	KycEnhancedAmlForce Flag = "kyc.enhanced_aml_force"
)

// Flags answers whether a flag is on for a tenant.
type Flags interface {
	IsOn(flag Flag, tenantID id.TenantID) bool
}

// Static is a Flags implementation backed by a fixed set of global flags
// plus optional per-tenant overrides.
type Static struct {
	mu      sync.RWMutex
	global  map[Flag]bool
	tenants map[id.TenantID]map[Flag]bool
}

// NewStatic builds a Static with the given flags switched on for everyone.
func NewStatic(on ...string) *Static {
	s := &Static{
		global:  make(map[Flag]bool, len(on)),
		tenants: make(map[id.TenantID]map[Flag]bool),
	}
	for _, f := range on {
		s.global[Flag(f)] = true
	}
	return s
}

// Set overrides a flag for one tenant.
func (s *Static) Set(tenantID id.TenantID, flag Flag, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tenants[tenantID] == nil {
		s.tenants[tenantID] = make(map[Flag]bool)
	}
	s.tenants[tenantID][flag] = on
}

func (s *Static) IsOn(flag Flag, tenantID id.TenantID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if overrides, ok := s.tenants[tenantID]; ok {
		if on, ok := overrides[flag]; ok {
			return on
		}
	}
	return s.global[flag]
}
