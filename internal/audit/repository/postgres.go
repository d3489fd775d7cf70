package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"marketing-dashboard/backend/internal/audit/domain"
)

// PostgresRepository persists audit logs in the audit_logs table.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO audit_logs (
			id, kind, user_id, tenant_id, endpoint, method, status_code, duration_ms,
			error_message, claimed_tenant_id, resolved_tenant_id, ip, created_at
		) VALUES (
			:id, :kind, :user_id, :tenant_id, :endpoint, :method, :status_code, :duration_ms,
			:error_message, :claimed_tenant_id, :resolved_tenant_id, :ip, :created_at
		)`, a)
	return err
}

// ListByTenant returns the tenant's records, newest first. Security violations are listed under the
// resolved tenant, which is the tenant whose data was targeted.
func (r *PostgresRepository) ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*domain.AuditLog, error) {
	out := []*domain.AuditLog{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, kind, user_id, tenant_id, endpoint, method, status_code, duration_ms,
		       error_message, claimed_tenant_id, resolved_tenant_id, ip, created_at
		FROM audit_logs
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	return out, err
}
