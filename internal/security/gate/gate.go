// Package gate proves that the caller of a tenant-scoped request is authorized for the tenant the
// request was routed to.
package gate

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"marketing-dashboard/backend/internal/audit"
	"marketing-dashboard/backend/internal/platform/apperr"
	"marketing-dashboard/backend/internal/routing"
	"marketing-dashboard/backend/internal/session"
	"marketing-dashboard/backend/internal/telemetry"
	"marketing-dashboard/backend/internal/tenant"
	tenantdomain "marketing-dashboard/backend/internal/tenant/domain"
)

const violationMessage = "session tenant does not match routed tenant"

// SecurityContext is the proof that a request is authorized for a tenant. TenantID always equals the
// resolved tenant of the request.
type SecurityContext struct {
	UserID    string               `json:"userId"`
	UserEmail string               `json:"userEmail"`
	Role      string               `json:"role"`
	TenantID  string               `json:"tenantId"`
	Subdomain string               `json:"subdomain"`
	Tenant    *tenantdomain.Tenant `json:"-"`
}

// Resolver resolves routing metadata to a tenant.
type Resolver interface {
	Resolve(ctx context.Context, md *routing.Metadata) (*tenant.Context, error)
}

// ViolationRecorder persists tenant-mismatch records.
type ViolationRecorder interface {
	Violation(ctx context.Context, req audit.Request, claimedTenantID, resolvedTenantID, message string)
}

// ViolationCounter counts tenant mismatches.
type ViolationCounter interface {
	SecurityViolation()
}

// Gate authorizes tenant-scoped requests. It never caches decisions.
type Gate struct {
	sessions session.Provider
	resolver Resolver
	audit    ViolationRecorder
	events   telemetry.EventEmitter
	counter  ViolationCounter
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithEventEmitter emits a security event for every violation.
func WithEventEmitter(e telemetry.EventEmitter) Option {
	return func(g *Gate) { g.events = e }
}

// WithViolationCounter counts violations.
func WithViolationCounter(c ViolationCounter) Option {
	return func(g *Gate) { g.counter = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// New returns a Gate.
func New(sessions session.Provider, resolver Resolver, recorder ViolationRecorder, opts ...Option) *Gate {
	g := &Gate{
		sessions: sessions,
		resolver: resolver,
		audit:    recorder,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Authorize returns the SecurityContext of r or an error of kind Unauthenticated, Configuration,
// NotFound, Forbidden or Internal. A tenant mismatch is recorded in the audit log before Authorize
// returns.
func (g *Gate) Authorize(ctx context.Context, r *http.Request) (*SecurityContext, error) {
	const op = "gate.Authorize"

	sess, err := g.sessions.Current(r)
	if err != nil {
		return nil, apperr.E(apperr.Internal, op, "read session", err)
	}
	if sess == nil || sess.UserID == "" {
		return nil, apperr.E(apperr.Unauthenticated, op, "no session", nil)
	}

	md, _ := routing.FromContext(ctx)
	tc, err := g.resolver.Resolve(ctx, md)
	if err != nil {
		return nil, err
	}

	if sess.TenantID != tc.TenantID {
		g.violation(ctx, r, sess, tc)
		return nil, apperr.E(apperr.Forbidden, op, violationMessage, nil)
	}
	if tc.Tenant != nil && !tc.Tenant.Active() {
		return nil, apperr.E(apperr.Forbidden, op, "tenant access disabled", nil)
	}

	return &SecurityContext{
		UserID:    sess.UserID,
		UserEmail: sess.UserEmail,
		Role:      sess.Role,
		TenantID:  sess.TenantID,
		Subdomain: tc.Subdomain,
		Tenant:    tc.Tenant,
	}, nil
}

func (g *Gate) violation(ctx context.Context, r *http.Request, sess *session.Session, tc *tenant.Context) {
	req := audit.RequestFrom(r, sess.UserID, sess.TenantID)
	g.logger.Warn("security violation: tenant mismatch",
		zap.String("user_id", sess.UserID),
		zap.String("claimed_tenant_id", sess.TenantID),
		zap.String("resolved_tenant_id", tc.TenantID),
		zap.String("endpoint", req.Endpoint),
		zap.String("method", req.Method),
		zap.String("ip", req.IP),
	)
	if g.audit != nil {
		g.audit.Violation(ctx, req, sess.TenantID, tc.TenantID, violationMessage)
	}
	if g.counter != nil {
		g.counter.SecurityViolation()
	}
	if g.events == nil {
		return
	}
	meta, _ := json.Marshal(map[string]string{
		"claimed_tenant_id":  sess.TenantID,
		"resolved_tenant_id": tc.TenantID,
		"endpoint":           req.Endpoint,
		"method":             req.Method,
		"ip":                 req.IP,
	})
	telemetry.EmitAsync(ctx, g.events, &telemetry.Event{
		TenantID:  tc.TenantID,
		UserID:    sess.UserID,
		EventType: telemetry.EventSecurityViolation,
		Source:    "security_gate",
		Severity:  "high",
		Metadata:  meta,
		CreatedAt: g.now().UTC(),
	}, g.logger)
}

type contextKey struct{ name string }

var securityContextKey = contextKey{"security_context"}

// WithContext returns ctx carrying sc.
func WithContext(ctx context.Context, sc *SecurityContext) context.Context {
	return context.WithValue(ctx, securityContextKey, sc)
}

// FromContext returns the SecurityContext stored by WithContext.
func FromContext(ctx context.Context) (*SecurityContext, bool) {
	sc, ok := ctx.Value(securityContextKey).(*SecurityContext)
	return sc, ok && sc != nil
}
