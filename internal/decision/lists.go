package decision

import (
	"context"
	"sync"

	id "idv/pkg/domain"
	"idv/pkg/platform/strings"
)

// StaticLists serves tenant lists from memory.
type StaticLists struct {
	mu    sync.RWMutex
	lists map[id.TenantID]map[string][]string
}

func NewStaticLists() *StaticLists {
	return &StaticLists{lists: make(map[id.TenantID]map[string][]string)}
}

// Put replaces one list of a tenant. Entries are trimmed and deduplicated;
// blank entries are dropped so they never match an absent value.
func (l *StaticLists) Put(tenantID id.TenantID, listID string, entries []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lists[tenantID] == nil {
		l.lists[tenantID] = make(map[string][]string)
	}
	l.lists[tenantID][listID] = strings.DedupeAndTrim(append([]string(nil), entries...))
}

func (l *StaticLists) Lists(_ context.Context, tenantID id.TenantID) (map[string][]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string][]string, len(l.lists[tenantID]))
	for k, v := range l.lists[tenantID] {
		out[k] = v
	}
	return out, nil
}
