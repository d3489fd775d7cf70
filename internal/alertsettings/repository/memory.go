package repository

import (
	"context"
	"encoding/json"
	"sync"

	"marketing-dashboard/backend/internal/alertsettings/domain"
)

// MemoryRepository keeps settings in process memory as encoded documents, so callers never share
// slices with the store.
type MemoryRepository struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{docs: make(map[string][]byte)}
}

// Load returns the tenant's settings, or nil if none were saved.
func (r *MemoryRepository) Load(_ context.Context, tenantID string) (*domain.AlertSettings, error) {
	r.mu.RLock()
	raw, ok := r.docs[tenantID]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var s domain.AlertSettings
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save stores a copy of s.
func (r *MemoryRepository) Save(_ context.Context, s *domain.AlertSettings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.docs[s.TenantID] = raw
	r.mu.Unlock()
	return nil
}
