package repository

import (
	"context"
	"testing"
	"time"

	"marketing-dashboard/backend/internal/audit/domain"
)

func TestMemoryRepository_ListByTenant(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, tenantID := range []string{"t-1", "t-2", "t-1", "t-1"} {
		_ = repo.Create(ctx, &domain.AuditLog{ID: string(rune('a' + i)), TenantID: tenantID, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}

	got, err := repo.ListByTenant(ctx, "t-1", 2, 0)
	if err != nil {
		t.Fatalf("ListByTenant: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "d" || got[1].ID != "c" {
		t.Errorf("order = %s,%s; want newest first d,c", got[0].ID, got[1].ID)
	}

	page, _ := repo.ListByTenant(ctx, "t-1", 2, 2)
	if len(page) != 1 || page[0].ID != "a" {
		t.Errorf("second page = %+v", page)
	}
	empty, _ := repo.ListByTenant(ctx, "t-1", 2, 10)
	if len(empty) != 0 {
		t.Errorf("offset past end should be empty, got %d", len(empty))
	}
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	in := &domain.AuditLog{ID: "x", TenantID: "t-1"}
	_ = repo.Create(ctx, in)
	in.TenantID = "t-2"

	all := repo.All()
	if len(all) != 1 || all[0].TenantID != "t-1" {
		t.Errorf("stored record was mutated: %+v", all)
	}
}
