// Package migrate applies the embedded schema migrations using golang-migrate.
package migrate

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"marketing-dashboard/backend/internal/db"
)

// ErrNoChange is returned by migrate when Up/Down has nothing to do. Run swallows it.
var ErrNoChange = migrate.ErrNoChange

// Direction is the migration direction accepted by Run.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection validates a -direction flag value.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Up, Down:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("direction must be up or down, got %q", s)
	}
}

// Status is the schema version after a run.
type Status struct {
	Version uint
	Dirty   bool
	Changed bool
}

// Run applies migrations in the given direction against dsn. Already being at the target is not an error;
// Status.Changed reports whether anything was applied.
func Run(dsn string, direction string) (Status, error) {
	if dsn == "" {
		return Status{}, errors.New("DATABASE_URL is not set")
	}
	dir, err := ParseDirection(direction)
	if err != nil {
		return Status{}, err
	}

	sourceDriver, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return Status{}, fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, dsn)
	if err != nil {
		return Status{}, fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	apply := m.Up
	if dir == Down {
		apply = m.Down
	}
	st := Status{Changed: true}
	if err := apply(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return Status{}, err
		}
		st.Changed = false
	}
	v, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return Status{}, fmt.Errorf("migrate version: %w", err)
	}
	st.Version, st.Dirty = v, dirty
	return st, nil
}
