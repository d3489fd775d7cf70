package domain

import "time"

// Kind tags an audit record.
type Kind string

const (
	// KindAccess is a successful tenant-scoped request.
	KindAccess Kind = "access"
	// KindSecurityViolation is a session whose tenant claim did not match the routed tenant.
	KindSecurityViolation Kind = "security_violation"
	// KindFailure is a tenant-scoped request that failed after authorization.
	KindFailure Kind = "failure"
)

// AuditLog is one append-only audit record. ClaimedTenantID and ResolvedTenantID are set only on
// security violations. DurationMs and ErrorMessage are optional.
type AuditLog struct {
	ID               string    `json:"id" db:"id"`
	Kind             Kind      `json:"kind" db:"kind"`
	UserID           string    `json:"userId" db:"user_id"`
	TenantID         string    `json:"tenantId" db:"tenant_id"`
	Endpoint         string    `json:"endpoint" db:"endpoint"`
	Method           string    `json:"method" db:"method"`
	StatusCode       int       `json:"statusCode" db:"status_code"`
	DurationMs       *int64    `json:"durationMs,omitempty" db:"duration_ms"`
	ErrorMessage     *string   `json:"errorMessage,omitempty" db:"error_message"`
	ClaimedTenantID  *string   `json:"claimedTenantId,omitempty" db:"claimed_tenant_id"`
	ResolvedTenantID *string   `json:"resolvedTenantId,omitempty" db:"resolved_tenant_id"`
	IP               string    `json:"ip" db:"ip"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
}
