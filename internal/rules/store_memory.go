package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	id "idv/pkg/domain"
	"idv/pkg/platform/sentinel"
)

// InMemoryStore keeps every version in process.
type InMemoryStore struct {
	mu       sync.RWMutex
	versions map[id.RuleID][]Instance
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{versions: make(map[id.RuleID][]Instance)}
}

func (s *InMemoryStore) Create(_ context.Context, inst Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.versions[inst.RuleID]; exists {
		return fmt.Errorf("create rule %s: %w", inst.RuleID, sentinel.ErrConflict)
	}
	s.versions[inst.RuleID] = []Instance{inst}
	return nil
}

func (s *InMemoryStore) Replace(_ context.Context, old, next Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chain := s.versions[old.RuleID]
	if len(chain) == 0 {
		return fmt.Errorf("replace rule %s: %w", old.RuleID, sentinel.ErrNotFound)
	}
	last := &chain[len(chain)-1]
	if last.ID != old.ID || !last.IsActive() || next.Version != last.Version+1 {
		return fmt.Errorf("replace rule %s: %w", old.RuleID, sentinel.ErrConflict)
	}
	at := next.CreatedAt
	last.DeactivatedAt = &at
	s.versions[old.RuleID] = append(chain, next)
	return nil
}

func (s *InMemoryStore) Deactivate(_ context.Context, ruleID id.RuleID, at time.Time) (Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chain := s.versions[ruleID]
	if len(chain) == 0 {
		return Instance{}, fmt.Errorf("deactivate rule %s: %w", ruleID, sentinel.ErrNotFound)
	}
	last := &chain[len(chain)-1]
	if !last.IsActive() {
		return Instance{}, fmt.Errorf("deactivate rule %s: %w", ruleID, sentinel.ErrNotFound)
	}
	last.DeactivatedAt = &at
	return *last, nil
}

func (s *InMemoryStore) Active(_ context.Context, tenantID id.TenantID, playbookID id.PlaybookID) ([]Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Instance
	for _, chain := range s.versions {
		last := chain[len(chain)-1]
		if last.IsActive() && last.TenantID == tenantID && last.PlaybookID == playbookID {
			out = append(out, last)
		}
	}
	sortForEvaluation(out)
	return out, nil
}

func (s *InMemoryStore) GetActive(_ context.Context, ruleID id.RuleID) (Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain := s.versions[ruleID]
	if len(chain) == 0 || !chain[len(chain)-1].IsActive() {
		return Instance{}, fmt.Errorf("get rule %s: %w", ruleID, sentinel.ErrNotFound)
	}
	return chain[len(chain)-1], nil
}

func (s *InMemoryStore) History(_ context.Context, ruleID id.RuleID) ([]Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain := s.versions[ruleID]
	if len(chain) == 0 {
		return nil, fmt.Errorf("rule history %s: %w", ruleID, sentinel.ErrNotFound)
	}
	return append([]Instance(nil), chain...), nil
}
