package ports

import (
	"context"

	audit "idv/pkg/platform/audit"
)

// AuditPublisher writes compliance events. It must join the caller's
// transaction so the event commits with the decision.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}
