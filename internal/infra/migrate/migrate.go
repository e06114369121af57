package migrate

import (
	"errors"
	"fmt"

	gomigrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Up applies pending migrations from dir against the database at dsn.
// An already up-to-date schema is not an error.
func Up(dsn, dir string) error {
	if dir == "" {
		return nil
	}

	m, err := gomigrate.New("file://"+dir, dsn)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer func() {
		_, _ = m.Close()
	}()

	if err := m.Up(); err != nil && !errors.Is(err, gomigrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}
