// Package routing derives trusted tenant routing metadata from the request host. The metadata is
// attached to the request context by Middleware and nowhere else; handlers never read tenant
// identity from headers, query strings or bodies.
package routing

import (
	"context"
)

// Metadata identifies the tenant a request was routed to.
type Metadata struct {
	TenantID    string `json:"tenantId"`
	Subdomain   string `json:"subdomain"`
	DisplayName string `json:"displayName"`
}

type metadataKey struct{}

// withMetadata is unexported so only this package's middleware can attach metadata.
func withMetadata(ctx context.Context, md Metadata) context.Context {
	return context.WithValue(ctx, metadataKey{}, md)
}

// FromContext returns the routing metadata of the request, if the request was routed to a tenant.
func FromContext(ctx context.Context) (*Metadata, bool) {
	md, ok := ctx.Value(metadataKey{}).(Metadata)
	if !ok || md.TenantID == "" {
		return nil, false
	}
	return &md, true
}
