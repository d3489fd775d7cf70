package rbac

import (
	"context"
	"errors"
	"testing"

	"marketing-dashboard/backend/internal/platform/apperr"
	"marketing-dashboard/backend/internal/policy/engine"
	"marketing-dashboard/backend/internal/security/gate"
)

type errAuthorizer struct{ err error }

func (e errAuthorizer) Allow(context.Context, engine.Input) (bool, error) { return false, e.err }

func newEngine(t *testing.T) *engine.OPAEvaluator {
	t.Helper()
	e, err := engine.NewOPAEvaluator(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	return e
}

func TestRequireTenantAdmin_Admin(t *testing.T) {
	sc := &gate.SecurityContext{UserID: "u-1", TenantID: "t-1", Role: "admin"}
	if err := RequireTenantAdmin(context.Background(), newEngine(t), sc, engine.ActionAlertSettingsWrite); err != nil {
		t.Fatalf("RequireTenantAdmin: %v", err)
	}
}

func TestRequireTenantAdmin_Owner(t *testing.T) {
	sc := &gate.SecurityContext{UserID: "u-1", TenantID: "t-1", Role: "owner"}
	if err := RequireTenantAdmin(context.Background(), newEngine(t), sc, engine.ActionCachePurge); err != nil {
		t.Fatalf("RequireTenantAdmin: %v", err)
	}
}

func TestRequireTenantAdmin_MemberDenied(t *testing.T) {
	sc := &gate.SecurityContext{UserID: "u-1", TenantID: "t-1", Role: "member"}
	err := RequireTenantAdmin(context.Background(), newEngine(t), sc, engine.ActionAlertSettingsWrite)
	if !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("err = %v, want Forbidden", err)
	}
}

func TestRequireTenantAdmin_NoContext(t *testing.T) {
	err := RequireTenantAdmin(context.Background(), newEngine(t), nil, engine.ActionAuditLogsRead)
	if !apperr.Is(err, apperr.Unauthenticated) {
		t.Fatalf("err = %v, want Unauthenticated", err)
	}
}

func TestRequireTenantAdmin_PolicyError(t *testing.T) {
	sc := &gate.SecurityContext{UserID: "u-1", TenantID: "t-1", Role: "admin"}
	err := RequireTenantAdmin(context.Background(), errAuthorizer{err: errors.New("boom")}, sc, engine.ActionCacheRead)
	if !apperr.Is(err, apperr.Internal) {
		t.Fatalf("err = %v, want Internal", err)
	}
}
