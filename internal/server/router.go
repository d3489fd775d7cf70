// Package server assembles the HTTP API and the ops gRPC server.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	alerthandler "marketing-dashboard/backend/internal/alertsettings/handler"
	anomalyhandler "marketing-dashboard/backend/internal/anomaly/handler"
	audithandler "marketing-dashboard/backend/internal/audit/handler"
	"marketing-dashboard/backend/internal/fetch"
	healthhandler "marketing-dashboard/backend/internal/health/handler"
	"marketing-dashboard/backend/internal/routing"
	"marketing-dashboard/backend/internal/security/gate"
	"marketing-dashboard/backend/internal/server/interceptors"
)

// Deps holds everything the HTTP API serves. Metrics and RequestRecorder may be nil.
type Deps struct {
	Routing *routing.Router
	Scoped  *interceptors.TenantScoped
	Logger  *zap.Logger

	Health          *healthhandler.Checker
	Metrics         http.Handler
	RequestRecorder interceptors.RequestRecorder

	Fetch         *fetch.Handler
	Anomalies     *anomalyhandler.Handler
	AlertSettings *alerthandler.Handler
	Audit         *audithandler.Handler
}

// SessionInfo is the body of GET /api/session.
type SessionInfo struct {
	UserID     string `json:"userId"`
	UserEmail  string `json:"userEmail,omitempty"`
	Role       string `json:"role"`
	TenantID   string `json:"tenantId"`
	Subdomain  string `json:"subdomain"`
	TenantName string `json:"tenantName,omitempty"`
}

func sessionInfo(_ *http.Request, sc *gate.SecurityContext) (any, error) {
	info := SessionInfo{
		UserID:    sc.UserID,
		UserEmail: sc.UserEmail,
		Role:      sc.Role,
		TenantID:  sc.TenantID,
		Subdomain: sc.Subdomain,
	}
	if sc.Tenant != nil {
		info.TenantName = sc.Tenant.Name
	}
	return info, nil
}

// NewRouter returns the HTTP handler of the dashboard API.
//
// Probes and /metrics are served on any host. Everything under /api passes the routing middleware,
// so unknown tenant subdomains are answered 404 before any handler runs, and every /api route is
// tenant-scoped.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if d.RequestRecorder != nil {
		r.Use(interceptors.RequestMetrics(d.RequestRecorder))
	}

	r.Get("/healthz", d.Health.Live)
	r.Get("/readyz", d.Health.ReadyHTTP)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	scoped := d.Scoped.Wrap
	r.Route("/api", func(r chi.Router) {
		r.Use(d.Routing.Middleware)
		r.Use(interceptors.RequestLogger(d.Logger))

		r.Method(http.MethodGet, "/session", scoped(sessionInfo))

		r.Method(http.MethodGet, "/metrics", scoped(d.Fetch.Overview))
		r.Method(http.MethodGet, "/metrics/{provider}", scoped(d.Fetch.Provider))

		r.Method(http.MethodPost, "/anomalies/check", scoped(d.Anomalies.Check))
		r.Method(http.MethodGet, "/anomalies/history", scoped(d.Anomalies.History))

		r.Method(http.MethodGet, "/alert-settings", scoped(d.AlertSettings.Get))
		r.Method(http.MethodPatch, "/alert-settings/thresholds/{id}", scoped(d.AlertSettings.UpdateThreshold))
		r.Method(http.MethodPut, "/alert-settings/channels", scoped(d.AlertSettings.ReplaceChannels))

		r.Method(http.MethodGet, "/audit-logs", scoped(d.Audit.List))

		r.Method(http.MethodGet, "/cache/stats", scoped(d.Fetch.CacheStats))
		r.Method(http.MethodDelete, "/cache", scoped(d.Fetch.PurgeCache))
	})

	return otelhttp.NewHandler(r, "dashboard-api")
}
