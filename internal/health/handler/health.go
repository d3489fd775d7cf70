// Package handler reports liveness and readiness over HTTP and the gRPC health protocol.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"marketing-dashboard/backend/internal/platform/httpx"
)

// checkTimeout bounds each readiness probe.
const checkTimeout = 2 * time.Second

// Pinger is used for readiness (e.g. DB ping). *sqlx.DB and *sql.DB satisfy it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is used for readiness (e.g. OPA policy evaluation).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Checker runs the readiness probes. A nil Pinger or PolicyChecker is skipped.
type Checker struct {
	pinger Pinger
	policy PolicyChecker
	logger *zap.Logger
}

// NewChecker returns a Checker. Pass nil for pinger or policy to skip that check.
func NewChecker(pinger Pinger, policy PolicyChecker, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{pinger: pinger, policy: policy, logger: logger}
}

// Ready returns nil when every configured probe passes.
func (c *Checker) Ready(ctx context.Context) error {
	var errs []error
	if c.pinger != nil {
		pctx, cancel := context.WithTimeout(ctx, checkTimeout)
		if err := c.pinger.PingContext(pctx); err != nil {
			errs = append(errs, errors.Join(errors.New("database"), err))
		}
		cancel()
	}
	if c.policy != nil {
		pctx, cancel := context.WithTimeout(ctx, checkTimeout)
		if err := c.policy.HealthCheck(pctx); err != nil {
			errs = append(errs, errors.Join(errors.New("policy"), err))
		}
		cancel()
	}
	return errors.Join(errs...)
}

// Live answers GET /healthz. It only proves the process serves requests.
func (c *Checker) Live(w http.ResponseWriter, _ *http.Request) {
	httpx.OK(w, map[string]string{"status": "ok"})
}

// ReadyHTTP answers GET /readyz with 200 when ready, else 503.
func (c *Checker) ReadyHTTP(w http.ResponseWriter, r *http.Request) {
	if err := c.Ready(r.Context()); err != nil {
		c.logger.Warn("health: not ready", zap.Error(err))
		httpx.WriteJSON(w, http.StatusServiceUnavailable, httpx.Envelope{Success: false, Error: "not ready"})
		return
	}
	httpx.OK(w, map[string]string{"status": "ready"})
}
