// Package handler serves the tenant's alert settings.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"marketing-dashboard/backend/internal/alertsettings"
	"marketing-dashboard/backend/internal/alertsettings/domain"
	"marketing-dashboard/backend/internal/platform/httpx"
	"marketing-dashboard/backend/internal/platform/rbac"
	"marketing-dashboard/backend/internal/policy/engine"
	"marketing-dashboard/backend/internal/security/gate"
)

// Handler exposes alert settings of the caller's tenant.
type Handler struct {
	svc   *alertsettings.Service
	authz rbac.Authorizer
}

// NewHandler returns an alert settings handler.
func NewHandler(svc *alertsettings.Service, authz rbac.Authorizer) *Handler {
	return &Handler{svc: svc, authz: authz}
}

// ChannelsRequest is the body of PUT /api/alert-settings/channels.
type ChannelsRequest struct {
	Channels     domain.Channels `json:"channels"`
	DashboardURL string          `json:"dashboardUrl,omitempty"`
}

// Get returns the settings, seeding defaults on first read.
func (h *Handler) Get(r *http.Request, sc *gate.SecurityContext) (any, error) {
	return h.svc.Get(r.Context(), sc.TenantID)
}

// UpdateThreshold patches one threshold. Requires tenant admin.
func (h *Handler) UpdateThreshold(r *http.Request, sc *gate.SecurityContext) (any, error) {
	if err := rbac.RequireTenantAdmin(r.Context(), h.authz, sc, engine.ActionAlertSettingsWrite); err != nil {
		return nil, err
	}
	var patch domain.ThresholdPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		return nil, err
	}
	return h.svc.UpdateThreshold(r.Context(), sc.TenantID, chi.URLParam(r, "id"), patch)
}

// ReplaceChannels replaces the notification channels. Requires tenant admin.
func (h *Handler) ReplaceChannels(r *http.Request, sc *gate.SecurityContext) (any, error) {
	if err := rbac.RequireTenantAdmin(r.Context(), h.authz, sc, engine.ActionAlertSettingsWrite); err != nil {
		return nil, err
	}
	var req ChannelsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return nil, err
	}
	return h.svc.ReplaceChannels(r.Context(), sc.TenantID, req.Channels, req.DashboardURL)
}
