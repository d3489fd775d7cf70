// Package interceptors holds the HTTP middleware chain and the tenant-scoped handler wrapper.
package interceptors

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"marketing-dashboard/backend/internal/audit"
	"marketing-dashboard/backend/internal/platform/apperr"
	"marketing-dashboard/backend/internal/platform/httpx"
	"marketing-dashboard/backend/internal/security/gate"
)

// Authorizer runs the security gate for a request.
type Authorizer interface {
	Authorize(ctx context.Context, r *http.Request) (*gate.SecurityContext, error)
}

// ScopedFunc is a tenant-scoped handler. It runs only after the gate succeeded and returns the envelope
// data or an error classified by apperr kind.
type ScopedFunc func(r *http.Request, sc *gate.SecurityContext) (any, error)

// TenantScoped wraps handlers with the gate, timing, audit records and the response envelope.
type TenantScoped struct {
	gate   Authorizer
	audit  audit.Recorder
	logger *zap.Logger
	now    func() time.Time
}

// NewTenantScoped returns a TenantScoped wrapper. recorder and logger may be nil.
func NewTenantScoped(g Authorizer, recorder audit.Recorder, logger *zap.Logger) *TenantScoped {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TenantScoped{gate: g, audit: recorder, logger: logger, now: time.Now}
}

// Wrap returns an http.Handler that authorizes the request before calling h. Gate failures are answered
// without calling h; tenant mismatches were already audited by the gate. After authorization every
// request produces exactly one audit record: access on success, failure otherwise.
func (t *TenantScoped) Wrap(h ScopedFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sc, err := t.gate.Authorize(ctx, r)
		if err != nil {
			status := httpx.Fail(w, err)
			t.logGateError(r, status, err)
			return
		}

		ctx = gate.WithContext(ctx, sc)
		r = r.WithContext(ctx)
		start := t.now()
		data, err := h(r, sc)
		elapsed := t.now().Sub(start)

		req := audit.RequestFrom(r, sc.UserID, sc.TenantID)
		if err != nil {
			status := apperr.HTTPStatus(apperr.KindOf(err))
			if t.audit != nil {
				t.audit.Failure(ctx, req, status, elapsed, err.Error())
			}
			t.logHandlerError(req, status, elapsed, err)
			httpx.Fail(w, err)
			return
		}
		if t.audit != nil {
			t.audit.Access(ctx, req, http.StatusOK, elapsed)
		}
		httpx.OK(w, data)
	})
}

func (t *TenantScoped) logGateError(r *http.Request, status int, err error) {
	fields := []zap.Field{
		zap.String("endpoint", audit.Endpoint(r)),
		zap.String("method", r.Method),
		zap.Int("status", status),
		zap.String("kind", apperr.KindOf(err).String()),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		t.logger.Error("tenant gate failed", fields...)
		return
	}
	t.logger.Info("tenant gate rejected request", fields...)
}

func (t *TenantScoped) logHandlerError(req audit.Request, status int, elapsed time.Duration, err error) {
	fields := []zap.Field{
		zap.String("tenant_id", req.TenantID),
		zap.String("user_id", req.UserID),
		zap.String("endpoint", req.Endpoint),
		zap.String("method", req.Method),
		zap.Int("status", status),
		zap.Duration("duration", elapsed),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		t.logger.Error("tenant handler failed", fields...)
		return
	}
	t.logger.Warn("tenant handler rejected request", fields...)
}
