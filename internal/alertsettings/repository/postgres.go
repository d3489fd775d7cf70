package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"marketing-dashboard/backend/internal/alertsettings/domain"
)

// PostgresRepository stores settings as a JSONB document in alert_settings.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns an alert settings repository that uses the given db for persistence.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type settingsRow struct {
	TenantID     string    `db:"tenant_id"`
	SettingsJSON []byte    `db:"settings_json"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Load returns the tenant's settings, or nil if not found.
func (r *PostgresRepository) Load(ctx context.Context, tenantID string) (*domain.AlertSettings, error) {
	var row settingsRow
	err := r.db.GetContext(ctx, &row,
		`SELECT tenant_id, settings_json, updated_at FROM alert_settings WHERE tenant_id = $1`, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var s domain.AlertSettings
	if err := json.Unmarshal(row.SettingsJSON, &s); err != nil {
		return nil, err
	}
	s.TenantID = row.TenantID
	s.UpdatedAt = row.UpdatedAt.UTC()
	return &s, nil
}

// Save inserts or replaces the tenant's settings.
func (r *PostgresRepository) Save(ctx context.Context, s *domain.AlertSettings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO alert_settings (tenant_id, settings_json, updated_at)
		VALUES (:tenant_id, :settings_json, :updated_at)
		ON CONFLICT (tenant_id) DO UPDATE
		SET settings_json = EXCLUDED.settings_json, updated_at = EXCLUDED.updated_at`,
		settingsRow{TenantID: s.TenantID, SettingsJSON: raw, UpdatedAt: s.UpdatedAt})
	return err
}
