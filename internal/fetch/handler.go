package fetch

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"marketing-dashboard/backend/internal/platform/apperr"
	"marketing-dashboard/backend/internal/platform/rbac"
	"marketing-dashboard/backend/internal/policy/engine"
	"marketing-dashboard/backend/internal/provider"
	"marketing-dashboard/backend/internal/security/gate"
)

// Handler serves tenant metrics and the tenant's view of the metrics cache.
type Handler struct {
	orch  *Orchestrator
	authz rbac.Authorizer
}

// NewHandler returns a metrics handler.
func NewHandler(orch *Orchestrator, authz rbac.Authorizer) *Handler {
	return &Handler{orch: orch, authz: authz}
}

// Overview is the dashboard summary across every provider.
type Overview struct {
	Payments  *provider.PaymentMetrics `json:"payments,omitempty"`
	Ads       *provider.AdMetrics      `json:"ads,omitempty"`
	Providers []*Result                `json:"providers"`
}

// CacheStats is the caller tenant's share of the metrics cache.
type CacheStats struct {
	Size                  int      `json:"size"`
	Keys                  []string `json:"keys"`
	OldestEntryAgeSeconds float64  `json:"oldestEntryAgeSeconds"`
}

// Overview returns every provider (stale-while-revalidate) with payments and blended ad totals.
func (h *Handler) Overview(r *http.Request, sc *gate.SecurityContext) (any, error) {
	if sc.Tenant == nil {
		return nil, apperr.E(apperr.Internal, "fetch.Overview", "security context without tenant", nil)
	}
	results, err := h.orch.FetchAllFast(r.Context(), sc.Tenant)
	if err != nil {
		return nil, err
	}
	out := Overview{Providers: results}
	var ads []*provider.AdMetrics
	for _, res := range results {
		if res.Data == nil {
			continue
		}
		if res.Data.Payments != nil {
			out.Payments = res.Data.Payments
		}
		ads = append(ads, res.Data.Ads)
	}
	out.Ads = provider.BlendAds(ads...)
	return out, nil
}

// Provider returns the live-or-fallback result of one provider.
func (h *Handler) Provider(r *http.Request, sc *gate.SecurityContext) (any, error) {
	if sc.Tenant == nil {
		return nil, apperr.E(apperr.Internal, "fetch.Provider", "security context without tenant", nil)
	}
	return h.orch.Fetch(r.Context(), sc.Tenant, chi.URLParam(r, "provider"))
}

// CacheStats returns the cache entries that belong to the caller's tenant. Requires tenant admin.
func (h *Handler) CacheStats(r *http.Request, sc *gate.SecurityContext) (any, error) {
	if err := rbac.RequireTenantAdmin(r.Context(), h.authz, sc, engine.ActionCacheRead); err != nil {
		return nil, err
	}
	now := h.orch.now()
	out := CacheStats{Keys: []string{}}
	for _, k := range h.orch.cache.Stats().Keys {
		if !ownedBy(k, sc.TenantID) {
			continue
		}
		e, ok := h.orch.cache.GetEntry(k)
		if !ok {
			continue
		}
		out.Keys = append(out.Keys, k)
		if age := now.Sub(e.CreatedAt).Seconds(); age > out.OldestEntryAgeSeconds {
			out.OldestEntryAgeSeconds = age
		}
	}
	sort.Strings(out.Keys)
	out.Size = len(out.Keys)
	return out, nil
}

// PurgeCache drops the caller tenant's cached results. Requires tenant admin.
func (h *Handler) PurgeCache(r *http.Request, sc *gate.SecurityContext) (any, error) {
	if err := rbac.RequireTenantAdmin(r.Context(), h.authz, sc, engine.ActionCachePurge); err != nil {
		return nil, err
	}
	return map[string]int{"removed": h.orch.PurgeTenant(sc.TenantID)}, nil
}
