// Package handler serves on-demand anomaly checks and the tenant's snapshot history.
package handler

import (
	"context"
	"net/http"

	"marketing-dashboard/backend/internal/capture"
	"marketing-dashboard/backend/internal/platform/apperr"
	"marketing-dashboard/backend/internal/security/gate"
	"marketing-dashboard/backend/internal/snapshot"
	tenantdomain "marketing-dashboard/backend/internal/tenant/domain"
)

// Capturer runs one capture for a tenant.
type Capturer interface {
	CaptureTenant(ctx context.Context, t *tenantdomain.Tenant) (*capture.Result, error)
}

// Handler exposes anomaly endpoints.
type Handler struct {
	capturer Capturer
	history  snapshot.History
}

// NewHandler returns an anomaly handler.
func NewHandler(c Capturer, history snapshot.History) *Handler {
	return &Handler{capturer: c, history: history}
}

// HistoryResponse lists stored snapshots, oldest first.
type HistoryResponse struct {
	Snapshots []snapshot.Snapshot `json:"snapshots"`
	Count     int                 `json:"count"`
}

// Check captures the caller's tenant now and returns the snapshot with any anomalies found.
func (h *Handler) Check(r *http.Request, sc *gate.SecurityContext) (any, error) {
	if sc.Tenant == nil {
		return nil, apperr.E(apperr.Internal, "anomaly.Check", "security context without tenant", nil)
	}
	return h.capturer.CaptureTenant(r.Context(), sc.Tenant)
}

// History returns the caller tenant's stored snapshots.
func (h *Handler) History(r *http.Request, sc *gate.SecurityContext) (any, error) {
	list, err := h.history.List(r.Context(), sc.TenantID)
	if err != nil {
		return nil, apperr.E(apperr.Internal, "anomaly.History", "read snapshot history", err)
	}
	if list == nil {
		list = []snapshot.Snapshot{}
	}
	return HistoryResponse{Snapshots: list, Count: len(list)}, nil
}
