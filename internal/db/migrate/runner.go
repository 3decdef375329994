// Package migrate applies the embedded table store schema using golang-migrate.
package migrate

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/Starlight90415/O-quvbot/internal/db"
)

// ErrNoChange is returned by migrate when already at the target version. Run swallows it.
var ErrNoChange = migrate.ErrNoChange

// Direction values accepted by Run.
const (
	Up   = "up"
	Down = "down"
)

// Run applies migrations in the given direction against dsn. log may be nil.
func Run(dsn, direction string, log *zap.Logger) error {
	if dsn == "" {
		return errors.New("DATABASE_URL is not set")
	}
	if direction != Up && direction != Down {
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}

	sourceDriver, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()
	if log != nil {
		m.Log = zapLogger{log.Sugar()}
	}

	switch direction {
	case Up:
		err = m.Up()
	case Down:
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// zapLogger adapts zap to migrate.Logger.
type zapLogger struct {
	s *zap.SugaredLogger
}

func (l zapLogger) Printf(format string, v ...any) { l.s.Infof(format, v...) }

func (l zapLogger) Verbose() bool { return false }
