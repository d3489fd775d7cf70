// Package snapshot keeps a bounded per-tenant history of captured metrics.
package snapshot

import (
	"context"
	"sync"
	"time"

	"marketing-dashboard/backend/internal/provider"
)

// DefaultCapacity is 7 days at a 6 hour capture cadence.
const DefaultCapacity = 28

// SourceStatus is how one provider contributed to a snapshot.
type SourceStatus struct {
	Cached bool   `json:"cached"`
	Error  string `json:"error,omitempty"`
}

// Snapshot is the tenant's metrics at one capture. Ads is blended across ad platforms.
type Snapshot struct {
	ID         string                   `json:"id"`
	TenantID   string                   `json:"tenantId"`
	Payments   *provider.PaymentMetrics `json:"payments,omitempty"`
	Ads        *provider.AdMetrics      `json:"ads,omitempty"`
	Sources    map[string]SourceStatus  `json:"sources"`
	CapturedAt time.Time                `json:"capturedAt"`
}

// History stores snapshots per tenant.
type History interface {
	Append(ctx context.Context, s Snapshot) error
	// List returns the tenant's snapshots, oldest first.
	List(ctx context.Context, tenantID string) ([]Snapshot, error)
}

// MemoryHistory is a per-tenant ring of at most capacity snapshots. The oldest snapshot is evicted on
// overflow.
type MemoryHistory struct {
	capacity int

	mu      sync.RWMutex
	tenants map[string][]Snapshot
}

// NewMemoryHistory returns an empty history. capacity < 2 uses DefaultCapacity.
func NewMemoryHistory(capacity int) *MemoryHistory {
	if capacity < 2 {
		capacity = DefaultCapacity
	}
	return &MemoryHistory{capacity: capacity, tenants: make(map[string][]Snapshot)}
}

// Capacity returns the per-tenant bound.
func (h *MemoryHistory) Capacity() int { return h.capacity }

// Append adds s to its tenant's history.
func (h *MemoryHistory) Append(_ context.Context, s Snapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := append(h.tenants[s.TenantID], s)
	if over := len(list) - h.capacity; over > 0 {
		list = append([]Snapshot(nil), list[over:]...)
	}
	h.tenants[s.TenantID] = list
	return nil
}

// List returns a copy of the tenant's snapshots, oldest first.
func (h *MemoryHistory) List(_ context.Context, tenantID string) ([]Snapshot, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Snapshot(nil), h.tenants[tenantID]...), nil
}
