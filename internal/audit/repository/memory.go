package repository

import (
	"context"
	"sort"
	"sync"

	"marketing-dashboard/backend/internal/audit/domain"
)

// MemoryRepository keeps audit logs in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []*domain.AuditLog
}

// NewMemoryRepository returns an empty in-memory audit repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Create appends a copy of a.
func (r *MemoryRepository) Create(_ context.Context, a *domain.AuditLog) error {
	c := *a
	r.mu.Lock()
	r.entries = append(r.entries, &c)
	r.mu.Unlock()
	return nil
}

// ListByTenant returns the tenant's records, newest first.
func (r *MemoryRepository) ListByTenant(_ context.Context, tenantID string, limit, offset int) ([]*domain.AuditLog, error) {
	r.mu.RLock()
	var matched []*domain.AuditLog
	for _, e := range r.entries {
		if e.TenantID == tenantID {
			c := *e
			matched = append(matched, &c)
		}
	}
	r.mu.RUnlock()
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	if offset >= len(matched) {
		return []*domain.AuditLog{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

// All returns every record in insertion order.
func (r *MemoryRepository) All() []*domain.AuditLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.AuditLog, len(r.entries))
	for i, e := range r.entries {
		c := *e
		out[i] = &c
	}
	return out
}
