package routing

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"marketing-dashboard/backend/internal/cache"
	"marketing-dashboard/backend/internal/platform/apperr"
	"marketing-dashboard/backend/internal/platform/httpx"
)

// reserved labels are platform hosts, not tenants.
var reserved = map[string]bool{"www": true, "api": true, "app": true}

// Lookup resolves a subdomain label to routing metadata. It returns a NotFound error for unknown subdomains.
type Lookup interface {
	LookupSubdomain(ctx context.Context, subdomain string) (Metadata, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, subdomain string) (Metadata, error)

// LookupSubdomain calls f.
func (f LookupFunc) LookupSubdomain(ctx context.Context, subdomain string) (Metadata, error) {
	return f(ctx, subdomain)
}

// Router attaches Metadata to requests whose host is a tenant subdomain of BaseDomain.
type Router struct {
	baseDomain string
	lookup     Lookup
	memo       *cache.Store[Metadata]
	ttl        time.Duration
	logger     *zap.Logger
}

// NewRouter returns a Router. memo may be nil to disable memoization.
func NewRouter(baseDomain string, lookup Lookup, memo *cache.Store[Metadata], ttl time.Duration, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		baseDomain: strings.ToLower(strings.Trim(baseDomain, ".")),
		lookup:     lookup,
		memo:       memo,
		ttl:        ttl,
		logger:     logger,
	}
}

// Subdomain returns the tenant label of host relative to the base domain. ok is false for the apex,
// reserved labels and foreign hosts.
func (rt *Router) Subdomain(host string) (label string, ok bool) {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	suffix := "." + rt.baseDomain
	if host == rt.baseDomain || !strings.HasSuffix(host, suffix) {
		return "", false
	}
	label = strings.TrimSuffix(host, suffix)
	if label == "" || reserved[label] {
		return "", false
	}
	return label, true
}

// Middleware attaches Metadata for tenant hosts. Unknown subdomains are answered with a 404 envelope;
// non-tenant hosts pass through without metadata.
func (rt *Router) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		label, ok := rt.Subdomain(r.Host)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		md, err := rt.resolve(r.Context(), label)
		if err != nil {
			if !apperr.Is(err, apperr.NotFound) {
				rt.logger.Error("routing lookup failed", zap.String("subdomain", label), zap.Error(err))
			}
			httpx.Fail(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withMetadata(r.Context(), md)))
	})
}

func (rt *Router) resolve(ctx context.Context, label string) (Metadata, error) {
	if strings.Contains(label, ".") {
		return Metadata{}, apperr.E(apperr.NotFound, "routing.resolve", "unknown subdomain", nil)
	}
	if rt.memo == nil {
		return rt.lookup.LookupSubdomain(ctx, label)
	}
	return rt.memo.CachedFetch(ctx, label, func(ctx context.Context) (Metadata, error) {
		return rt.lookup.LookupSubdomain(ctx, label)
	}, rt.ttl)
}
