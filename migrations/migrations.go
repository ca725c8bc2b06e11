package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	devices "github.com/goliatone/go-devices"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	rootPath = "data/sql/migrations"
)

// Tables lists the tables the device schema creates.
var Tables = []string{"devices", "users"}

// Source is one dialect's migration directory.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
}

// NormalizeDialect maps driver and dialect spellings onto a supported
// dialect name.
func NormalizeDialect(value string) (string, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "postgres", "postgresql", "pg", "pgx":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("migrations: unsupported dialect %q", value)
	}
}

// Sources returns the postgres tree and its sqlite override under sqlite/.
// Each must hold at least one *.up.sql file.
func Sources() ([]Source, error) {
	base, err := fs.Sub(devices.GetMigrationsFS(), rootPath)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", rootPath, err)
	}
	sqliteFS, err := fs.Sub(base, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite migrations: %w", err)
	}
	sources := []Source{
		{Dialect: DialectPostgres, Path: rootPath, FS: base},
		{Dialect: DialectSQLite, Path: rootPath + "/sqlite", FS: sqliteFS},
	}
	for _, source := range sources {
		matches, err := fs.Glob(source.FS, "*.up.sql")
		if err != nil {
			return nil, fmt.Errorf("migrations: glob %s: %w", source.Path, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("migrations: %s has no *.up.sql files", source.Path)
		}
	}
	return sources, nil
}

// SourceFor returns the migrations for one dialect.
func SourceFor(dialect string) (Source, error) {
	normalized, err := NormalizeDialect(dialect)
	if err != nil {
		return Source{}, err
	}
	sources, err := Sources()
	if err != nil {
		return Source{}, err
	}
	for _, source := range sources {
		if source.Dialect == normalized {
			return source, nil
		}
	}
	return Source{}, fmt.Errorf("migrations: no migrations for %s", normalized)
}

// Apply registers the dialect's migrations on the client, runs them and
// checks that the device tables exist.
func Apply(ctx context.Context, client *persistence.Client, dialect string) error {
	if client == nil {
		return fmt.Errorf("migrations: persistence client is required")
	}
	source, err := SourceFor(dialect)
	if err != nil {
		return err
	}
	client.RegisterSQLMigrations(source.FS)
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("migrations: apply %s: %w", source.Dialect, err)
	}
	return Verify(ctx, client.DB(), source.Dialect)
}

// Verify reports the first device table missing from db.
func Verify(ctx context.Context, db *bun.DB, dialect string) error {
	if db == nil {
		return fmt.Errorf("migrations: database is required")
	}
	normalized, err := NormalizeDialect(dialect)
	if err != nil {
		return err
	}
	query := "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?"
	if normalized == DialectSQLite {
		query = "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
	}
	for _, table := range Tables {
		var count int
		if err := db.NewRaw(query, table).Scan(ctx, &count); err != nil {
			return fmt.Errorf("migrations: look up table %s: %w", table, err)
		}
		if count == 0 {
			return fmt.Errorf("migrations: table %s is missing", table)
		}
	}
	return nil
}
