package handler

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"marketing-dashboard/backend/internal/audit/domain"
	auditrepo "marketing-dashboard/backend/internal/audit/repository"
	"marketing-dashboard/backend/internal/platform/apperr"
	"marketing-dashboard/backend/internal/policy/engine"
	"marketing-dashboard/backend/internal/security/gate"
)

func newTestHandler(t *testing.T) (*Handler, *auditrepo.MemoryRepository) {
	t.Helper()
	authz, err := engine.NewOPAEvaluator(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	repo := auditrepo.NewMemoryRepository()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_ = repo.Create(context.Background(), &domain.AuditLog{ID: string(rune('a' + i)), TenantID: "t-acme", CreatedAt: base.Add(time.Duration(i) * time.Second)})
	}
	_ = repo.Create(context.Background(), &domain.AuditLog{ID: "other", TenantID: "t-globex", CreatedAt: base})
	return NewHandler(repo, authz), repo
}

func TestList_AdminSeesOwnTenantOnly(t *testing.T) {
	h, _ := newTestHandler(t)
	sc := &gate.SecurityContext{UserID: "u-1", TenantID: "t-acme", Role: "admin"}

	got, err := h.List(httptest.NewRequest("GET", "/api/audit-logs?limit=2", nil), sc)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	resp := got.(ListResponse)
	if len(resp.Logs) != 2 || resp.Limit != 2 || resp.Offset != 0 {
		t.Fatalf("response = %+v", resp)
	}
	for _, l := range resp.Logs {
		if l.TenantID != "t-acme" {
			t.Errorf("leaked record of tenant %q", l.TenantID)
		}
	}
	if resp.Logs[0].ID != "c" {
		t.Errorf("first = %q, want newest c", resp.Logs[0].ID)
	}
}

func TestList_MemberForbidden(t *testing.T) {
	h, _ := newTestHandler(t)
	sc := &gate.SecurityContext{UserID: "u-2", TenantID: "t-acme", Role: "member"}
	_, err := h.List(httptest.NewRequest("GET", "/api/audit-logs", nil), sc)
	if !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("err = %v, want Forbidden", err)
	}
}

func TestList_InvalidParams(t *testing.T) {
	h, _ := newTestHandler(t)
	sc := &gate.SecurityContext{UserID: "u-1", TenantID: "t-acme", Role: "admin"}
	for _, q := range []string{"limit=0", "limit=500", "limit=abc", "offset=-1"} {
		t.Run(q, func(t *testing.T) {
			_, err := h.List(httptest.NewRequest("GET", "/api/audit-logs?"+q, nil), sc)
			if !apperr.Is(err, apperr.Invalid) {
				t.Errorf("err = %v, want Invalid", err)
			}
		})
	}
}
