package repository

import (
	"context"
	"sort"
	"sync"

	"marketing-dashboard/backend/internal/tenant/domain"
)

// MemoryRepository keeps tenants in process memory. Used without DATABASE_URL and in tests.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]*domain.Tenant
}

// NewMemoryRepository returns a repository holding copies of the given tenants.
func NewMemoryRepository(tenants ...*domain.Tenant) *MemoryRepository {
	r := &MemoryRepository{byID: make(map[string]*domain.Tenant)}
	for _, t := range tenants {
		r.byID[t.ID] = clone(t)
	}
	return r
}

// GetByID returns a copy of the tenant with id, or nil.
func (r *MemoryRepository) GetByID(_ context.Context, id string) (*domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return clone(r.byID[id]), nil
}

// GetBySubdomain returns a copy of the tenant with subdomain, or nil.
func (r *MemoryRepository) GetBySubdomain(_ context.Context, subdomain string) (*domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.byID {
		if t.Subdomain == subdomain {
			return clone(t), nil
		}
	}
	return nil, nil
}

// List returns all tenants ordered by subdomain.
func (r *MemoryRepository) List(_ context.Context) ([]*domain.Tenant, error) {
	r.mu.RLock()
	out := make([]*domain.Tenant, 0, len(r.byID))
	for _, t := range r.byID {
		out = append(out, clone(t))
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Subdomain < out[j].Subdomain })
	return out, nil
}

// Upsert stores a copy of t, replacing any tenant with the same id.
func (r *MemoryRepository) Upsert(_ context.Context, t *domain.Tenant) error {
	r.mu.Lock()
	r.byID[t.ID] = clone(t)
	r.mu.Unlock()
	return nil
}

// Delete removes the tenant with id.
func (r *MemoryRepository) Delete(id string) {
	r.mu.Lock()
	delete(r.byID, id)
	r.mu.Unlock()
}

func clone(t *domain.Tenant) *domain.Tenant {
	if t == nil {
		return nil
	}
	c := *t
	if t.Credentials != nil {
		c.Credentials = make(map[string]string, len(t.Credentials))
		for k, v := range t.Credentials {
			c.Credentials[k] = v
		}
	}
	return &c
}
