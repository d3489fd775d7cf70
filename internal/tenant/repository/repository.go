package repository

import (
	"context"

	"marketing-dashboard/backend/internal/tenant/domain"
)

// Repository defines persistence for tenants. Getters return (nil, nil) when the tenant does not exist.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error)
	List(ctx context.Context) ([]*domain.Tenant, error)
	Upsert(ctx context.Context, t *domain.Tenant) error
}
