// Package handler serves the tenant's audit log.
package handler

import (
	"net/http"
	"strconv"

	"marketing-dashboard/backend/internal/audit/domain"
	auditrepo "marketing-dashboard/backend/internal/audit/repository"
	"marketing-dashboard/backend/internal/platform/apperr"
	"marketing-dashboard/backend/internal/platform/rbac"
	"marketing-dashboard/backend/internal/policy/engine"
	"marketing-dashboard/backend/internal/security/gate"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Handler lists audit logs of the caller's tenant.
type Handler struct {
	repo  auditrepo.Repository
	authz rbac.Authorizer
}

// NewHandler returns an audit log handler.
func NewHandler(repo auditrepo.Repository, authz rbac.Authorizer) *Handler {
	return &Handler{repo: repo, authz: authz}
}

// ListResponse is the page returned by List.
type ListResponse struct {
	Logs   []*domain.AuditLog `json:"logs"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// List returns a page of audit logs, newest first. Query: limit (1..200, default 50), offset (>= 0).
// Requires tenant admin.
func (h *Handler) List(r *http.Request, sc *gate.SecurityContext) (any, error) {
	if err := rbac.RequireTenantAdmin(r.Context(), h.authz, sc, engine.ActionAuditLogsRead); err != nil {
		return nil, err
	}
	limit, err := intParam(r, "limit", defaultPageSize)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > maxPageSize {
		return nil, apperr.E(apperr.Invalid, "audit.List", "limit must be between 1 and 200", nil)
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, apperr.E(apperr.Invalid, "audit.List", "offset must not be negative", nil)
	}
	logs, err := h.repo.ListByTenant(r.Context(), sc.TenantID, limit, offset)
	if err != nil {
		return nil, apperr.E(apperr.Internal, "audit.List", "list audit logs", err)
	}
	if logs == nil {
		logs = []*domain.AuditLog{}
	}
	return ListResponse{Logs: logs, Limit: limit, Offset: offset}, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.E(apperr.Invalid, "audit.List", name+" must be an integer", err)
	}
	return v, nil
}
