package repository

import (
	"context"

	"marketing-dashboard/backend/internal/audit/domain"
)

// Repository defines persistence for audit logs. Records are append-only.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*domain.AuditLog, error)
}
