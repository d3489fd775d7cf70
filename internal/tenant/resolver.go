// Package tenant turns trusted routing metadata into the full tenant record for a request.
package tenant

import (
	"context"

	"marketing-dashboard/backend/internal/platform/apperr"
	"marketing-dashboard/backend/internal/routing"
	"marketing-dashboard/backend/internal/tenant/domain"
)

// Getter is the subset of the tenant repository the resolver needs.
type Getter interface {
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error)
}

// Context is the resolved tenant of a request.
type Context struct {
	TenantID    string
	Subdomain   string
	DisplayName string
	Tenant      *domain.Tenant
}

// Resolver loads the tenant named by routing metadata.
type Resolver struct {
	repo Getter
}

// NewResolver returns a Resolver over repo.
func NewResolver(repo Getter) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the tenant for md. Missing metadata is a Configuration error (not a tenant route);
// metadata naming a tenant that no longer exists is NotFound; storage failures are Internal.
func (r *Resolver) Resolve(ctx context.Context, md *routing.Metadata) (*Context, error) {
	const op = "tenant.Resolve"
	if md == nil || md.TenantID == "" {
		return nil, apperr.E(apperr.Configuration, op, "tenant routing metadata missing", nil)
	}
	t, err := r.repo.GetByID(ctx, md.TenantID)
	if err != nil {
		return nil, apperr.E(apperr.Internal, op, "load tenant", err)
	}
	if t == nil {
		return nil, apperr.E(apperr.NotFound, op, "tenant not found", nil)
	}
	name := md.DisplayName
	if name == "" {
		name = t.Name
	}
	return &Context{
		TenantID:    t.ID,
		Subdomain:   t.Subdomain,
		DisplayName: name,
		Tenant:      t,
	}, nil
}

// RoutingLookup adapts the repository to the router's subdomain lookup.
func RoutingLookup(repo Getter) routing.Lookup {
	return routing.LookupFunc(func(ctx context.Context, subdomain string) (routing.Metadata, error) {
		const op = "tenant.RoutingLookup"
		t, err := repo.GetBySubdomain(ctx, subdomain)
		if err != nil {
			return routing.Metadata{}, apperr.E(apperr.Internal, op, "load tenant", err)
		}
		if t == nil {
			return routing.Metadata{}, apperr.E(apperr.NotFound, op, "unknown subdomain", nil)
		}
		return routing.Metadata{TenantID: t.ID, Subdomain: t.Subdomain, DisplayName: t.Name}, nil
	})
}
