package commands

import (
	"errors"

	"github.com/robalyx/storefront/internal/database"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

var (
	ErrNameRequired    = errors.New("NAME argument required")
	ErrGuildRequired   = errors.New("GUILD argument required")
	ErrImportArgs      = errors.New("GUILD PRODUCT FILE arguments required")
	ErrMigratorMissing = errors.New("migrations are only available for the postgres backend")
)

// CLIDependencies holds the common dependencies needed by CLI commands.
type CLIDependencies struct {
	Store    database.Store
	Migrator *migrate.Migrator // nil for the sqlite backend
	Logger   *zap.Logger
}
