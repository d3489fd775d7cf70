package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"marketing-dashboard/backend/internal/tenant/domain"
)

// PostgresRepository persists tenants in the tenants table.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns a tenant repository that uses the given db for persistence.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type tenantRow struct {
	ID          string    `db:"id"`
	Subdomain   string    `db:"subdomain"`
	Name        string    `db:"name"`
	Status      string    `db:"status"`
	Credentials []byte    `db:"credentials"`
	CreatedAt   time.Time `db:"created_at"`
}

const selectTenant = `SELECT id, subdomain, name, status, credentials, created_at FROM tenants`

// GetByID returns the tenant for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	return r.getOne(ctx, selectTenant+` WHERE id = $1`, id)
}

// GetBySubdomain returns the tenant routed at subdomain, or nil if not found.
func (r *PostgresRepository) GetBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error) {
	return r.getOne(ctx, selectTenant+` WHERE subdomain = $1`, subdomain)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*domain.Tenant, error) {
	var row tenantRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToDomain(row)
}

// List returns every tenant ordered by subdomain.
func (r *PostgresRepository) List(ctx context.Context) ([]*domain.Tenant, error) {
	var rows []tenantRow
	if err := r.db.SelectContext(ctx, &rows, selectTenant+` ORDER BY subdomain`); err != nil {
		return nil, err
	}
	out := make([]*domain.Tenant, 0, len(rows))
	for _, row := range rows {
		t, err := rowToDomain(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Upsert inserts the tenant or updates subdomain, name, status and credentials of an existing id.
func (r *PostgresRepository) Upsert(ctx context.Context, t *domain.Tenant) error {
	creds, err := json.Marshal(t.Credentials)
	if err != nil {
		return err
	}
	if t.Credentials == nil {
		creds = []byte("{}")
	}
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO tenants (id, subdomain, name, status, credentials, created_at)
		VALUES (:id, :subdomain, :name, :status, :credentials, :created_at)
		ON CONFLICT (id) DO UPDATE SET
			subdomain = EXCLUDED.subdomain,
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			credentials = EXCLUDED.credentials`,
		tenantRow{
			ID:          t.ID,
			Subdomain:   t.Subdomain,
			Name:        t.Name,
			Status:      string(t.Status),
			Credentials: creds,
			CreatedAt:   createdAt,
		})
	return err
}

func rowToDomain(row tenantRow) (*domain.Tenant, error) {
	t := &domain.Tenant{
		ID:        row.ID,
		Subdomain: row.Subdomain,
		Name:      row.Name,
		Status:    domain.Status(row.Status),
		CreatedAt: row.CreatedAt,
	}
	if len(row.Credentials) > 0 {
		if err := json.Unmarshal(row.Credentials, &t.Credentials); err != nil {
			return nil, err
		}
	}
	return t, nil
}
