package repository

import (
	"context"

	"marketing-dashboard/backend/internal/alertsettings/domain"
)

// Repository persists one AlertSettings document per tenant.
type Repository interface {
	// Load returns the tenant's settings, or nil if none were saved.
	Load(ctx context.Context, tenantID string) (*domain.AlertSettings, error)
	Save(ctx context.Context, s *domain.AlertSettings) error
}
