package audit

import (
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// RequestFrom describes r for an audit record on behalf of userID acting on tenantID.
func RequestFrom(r *http.Request, userID, tenantID string) Request {
	return Request{
		UserID:   userID,
		TenantID: tenantID,
		Endpoint: Endpoint(r),
		Method:   r.Method,
		IP:       ClientIP(r),
	}
}

// Endpoint returns the matched route pattern of r, or its path when no route matched.
func Endpoint(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// ClientIP returns the client IP from X-Forwarded-For (first hop), X-Real-IP, or the peer address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if r.RemoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
