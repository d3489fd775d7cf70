// Package rbac guards administrative tenant operations.
package rbac

import (
	"context"

	"marketing-dashboard/backend/internal/platform/apperr"
	"marketing-dashboard/backend/internal/policy/engine"
	"marketing-dashboard/backend/internal/security/gate"
)

// Authorizer decides whether a role may perform an action.
type Authorizer interface {
	Allow(ctx context.Context, in engine.Input) (bool, error)
}

// RequireTenantAdmin ensures the caller's role may perform action on its own tenant.
// Returns Unauthenticated without a security context, Forbidden when the policy denies, Internal when
// the policy cannot be evaluated.
func RequireTenantAdmin(ctx context.Context, authz Authorizer, sc *gate.SecurityContext, action string) error {
	const op = "rbac.RequireTenantAdmin"
	if sc == nil || sc.UserID == "" || sc.TenantID == "" {
		return apperr.E(apperr.Unauthenticated, op, "tenant and user context required", nil)
	}
	ok, err := authz.Allow(ctx, engine.Input{
		Role:     sc.Role,
		Action:   action,
		TenantID: sc.TenantID,
		UserID:   sc.UserID,
	})
	if err != nil {
		return apperr.E(apperr.Internal, op, "evaluate policy", err)
	}
	if !ok {
		return apperr.E(apperr.Forbidden, op, "tenant admin required", nil)
	}
	return nil
}
