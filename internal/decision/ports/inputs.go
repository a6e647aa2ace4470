// Package ports declares what the decision service reads from the rest of
// the system.
package ports

import (
	"context"

	id "idv/pkg/domain"

	"idv/internal/insight"
	"idv/internal/playbook"
	"idv/internal/risk"
	"idv/internal/rules"
	"idv/internal/vault"
)

// PlaybookProvider returns the configuration snapshot of a playbook.
type PlaybookProvider interface {
	Config(ctx context.Context, tenantID id.TenantID, playbookID id.PlaybookID) (playbook.Config, error)
}

// RuleSource returns the active rule versions of a playbook.
type RuleSource interface {
	Active(ctx context.Context, tenantID id.TenantID, playbookID id.PlaybookID) ([]rules.Instance, error)
}

// SignalSource returns the current risk signals of a vault per group.
type SignalSource interface {
	LatestByGroup(ctx context.Context, vaultID id.ScopedVaultID) (risk.Grouped, error)
}

// DataDecryptor reads vaulted values referenced by rules.
type DataDecryptor interface {
	Decrypt(ctx context.Context, vaultID id.ScopedVaultID, ids []vault.DataIdentifier) (map[vault.DataIdentifier]string, error)
}

// InsightSource returns the latest insight event of a vault, or
// sentinel.ErrNotFound.
type InsightSource interface {
	Latest(ctx context.Context, vaultID id.ScopedVaultID) (*insight.Event, error)
}

// ListSource returns the lists a tenant's rules may test membership in.
type ListSource interface {
	Lists(ctx context.Context, tenantID id.TenantID) (map[string][]string, error)
}
