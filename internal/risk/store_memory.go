package risk

import (
	"context"
	"sort"
	"sync"

	id "idv/pkg/domain"
	"idv/pkg/platform/sentinel"
)

// InMemoryStore keeps signals and checks in insertion order.
type InMemoryStore struct {
	mu      sync.RWMutex
	signals []Signal
	checks  []Check
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Create(ctx context.Context, signals []Signal) error {
	return s.Record(ctx, checksOf(signals), signals)
}

func (s *InMemoryStore) Record(_ context.Context, checks []Check, signals []Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks = append(s.checks, checks...)
	s.signals = append(s.signals, signals...)
	return nil
}

func (s *InMemoryStore) LatestByGroup(_ context.Context, vaultID id.ScopedVaultID) (Grouped, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Later checks win ties on CreatedAt.
	latest := make(map[Group]Check)
	for _, c := range s.checks {
		if c.ScopedVaultID != vaultID {
			continue
		}
		if cur, ok := latest[c.Group]; !ok || !c.CreatedAt.Before(cur.CreatedAt) {
			latest[c.Group] = c
		}
	}

	out := make(Grouped, len(latest))
	for _, sig := range s.signals {
		if sig.ScopedVaultID != vaultID || sig.Hidden {
			continue
		}
		if l, ok := latest[sig.Group]; ok && l.VerificationResultID == sig.VerificationResultID {
			out[sig.Group] = append(out[sig.Group], sig)
		}
	}
	for g := range out {
		sortSignals(out[g])
	}
	return out, nil
}

func (s *InMemoryStore) Hide(_ context.Context, signalID id.RiskSignalID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.signals {
		if s.signals[i].ID == signalID {
			s.signals[i].Hidden = true
			return nil
		}
	}
	return sentinel.ErrNotFound
}

func sortSignals(signals []Signal) {
	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].ReasonCode < signals[j].ReasonCode
	})
}
