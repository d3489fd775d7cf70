// Package engine evaluates role-based authorization decisions with OPA Rego.
package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"go.uber.org/zap"
)

// Actions guarded by the policy.
const (
	ActionAlertSettingsWrite = "alert_settings:write"
	ActionAuditLogsRead      = "audit_logs:read"
	ActionCacheRead          = "cache:read"
	ActionCachePurge         = "cache:purge"
)

const defaultQuery = "data.dashboard.authz.allow"

// Default Rego policy: owners and admins may perform every administrative action; every other role
// may perform only actions listed under member_actions.
const defaultRegoPolicy = `package dashboard.authz

default allow := false

admin_roles := {"owner", "admin"}

member_actions := {"metrics:read", "anomalies:read", "alert_settings:read"}

allow if {
	admin_roles[input.role]
}

allow if {
	member_actions[input.action]
}
`

// Input is the decision request handed to the policy.
type Input struct {
	Role     string `json:"role"`
	Action   string `json:"action"`
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
}

// OPAEvaluator evaluates authorization decisions using a prepared Rego query.
type OPAEvaluator struct {
	query  rego.PreparedEvalQuery
	logger *zap.Logger
}

// NewOPAEvaluator compiles the given Rego modules (the default policy when none are given) and prepares
// the allow query.
func NewOPAEvaluator(ctx context.Context, logger *zap.Logger, policies ...string) (*OPAEvaluator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(policies) == 0 {
		policies = []string{defaultRegoPolicy}
	}
	modules := make(map[string]string, len(policies))
	for i, p := range policies {
		modules[fmt.Sprintf("policy_%d.rego", i)] = p
	}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return nil, fmt.Errorf("compile policies: %w", err)
	}
	q, err := rego.New(
		rego.Query(defaultQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare query: %w", err)
	}
	return &OPAEvaluator{query: q, logger: logger}, nil
}

// Allow reports whether in is permitted. Evaluation errors deny.
func (e *OPAEvaluator) Allow(ctx context.Context, in Input) (bool, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(map[string]any{
		"role":      in.Role,
		"action":    in.Action,
		"tenant_id": in.TenantID,
		"user_id":   in.UserID,
	}))
	if err != nil {
		e.logger.Warn("policy: evaluation failed", zap.String("action", in.Action), zap.Error(err))
		return false, fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	v, ok := rs[0].Expressions[0].Value.(bool)
	return ok && v, nil
}

// HealthCheck verifies the prepared query evaluates. It does not touch any external dependency.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	rs, err := e.query.Eval(ctx, rego.EvalInput(map[string]any{"role": "admin", "action": ActionCacheRead}))
	if err != nil {
		return fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}
