package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketing-dashboard/backend/internal/alertsettings"
	"marketing-dashboard/backend/internal/alertsettings/domain"
	"marketing-dashboard/backend/internal/alertsettings/repository"
	"marketing-dashboard/backend/internal/platform/apperr"
	"marketing-dashboard/backend/internal/policy/engine"
	"marketing-dashboard/backend/internal/security/gate"
)

func newHandler(t *testing.T) *Handler {
	t.Helper()
	authz, err := engine.NewOPAEvaluator(context.Background(), nil)
	require.NoError(t, err)
	return NewHandler(alertsettings.NewService(repository.NewMemoryRepository(), nil, nil), authz)
}

func withID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestUpdateThreshold_AdminOnly(t *testing.T) {
	h := newHandler(t)
	body := `{"threshold": 33}`

	member := &gate.SecurityContext{UserID: "u-2", TenantID: "t-1", Role: "member"}
	req := withID(httptest.NewRequest(http.MethodPatch, "/api/alert-settings/thresholds/revenue_drop", strings.NewReader(body)), domain.TypeRevenueDrop)
	_, err := h.UpdateThreshold(req, member)
	assert.True(t, apperr.Is(err, apperr.Forbidden))

	admin := &gate.SecurityContext{UserID: "u-1", TenantID: "t-1", Role: "admin"}
	req = withID(httptest.NewRequest(http.MethodPatch, "/api/alert-settings/thresholds/revenue_drop", strings.NewReader(body)), domain.TypeRevenueDrop)
	got, err := h.UpdateThreshold(req, admin)
	require.NoError(t, err)
	s := got.(*domain.AlertSettings)
	assert.Equal(t, 33.0, s.Thresholds[s.Find(domain.TypeRevenueDrop)].Threshold)
}

func TestUpdateThreshold_RejectsUnknownFields(t *testing.T) {
	h := newHandler(t)
	admin := &gate.SecurityContext{UserID: "u-1", TenantID: "t-1", Role: "admin"}
	req := withID(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"tenantId":"t-2"}`)), domain.TypeRevenueDrop)
	_, err := h.UpdateThreshold(req, admin)
	assert.True(t, apperr.Is(err, apperr.Invalid))
}

func TestReplaceChannelsAndGet(t *testing.T) {
	h := newHandler(t)
	admin := &gate.SecurityContext{UserID: "u-1", TenantID: "t-1", Role: "owner"}
	body := `{"channels":{"email":{"enabled":true,"recipients":["ops@acme.test"]},"chat":{"enabled":false,"webhookUrl":""}},"dashboardUrl":"https://acme.dash.example.com"}`

	_, err := h.ReplaceChannels(httptest.NewRequest(http.MethodPut, "/api/alert-settings/channels", strings.NewReader(body)), admin)
	require.NoError(t, err)

	member := &gate.SecurityContext{UserID: "u-2", TenantID: "t-1", Role: "member"}
	got, err := h.Get(httptest.NewRequest(http.MethodGet, "/api/alert-settings", nil), member)
	require.NoError(t, err)
	s := got.(*domain.AlertSettings)
	assert.Equal(t, []string{"ops@acme.test"}, s.Channels.Email.Recipients)
	assert.Equal(t, "https://acme.dash.example.com", s.DashboardURL)
}
