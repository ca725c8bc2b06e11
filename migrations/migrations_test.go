package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"testing"
	"time"

	devices "github.com/goliatone/go-devices"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	server string
}

func (c testPersistenceConfig) GetDebug() bool                { return false }
func (c testPersistenceConfig) GetDriver() string             { return "sqlite3" }
func (c testPersistenceConfig) GetServer() string             { return c.server }
func (c testPersistenceConfig) GetPingTimeout() time.Duration { return time.Second }
func (c testPersistenceConfig) GetOtelIdentifier() string     { return "go-devices-tests" }

func TestSources_ReturnsPostgresAndSQLite(t *testing.T) {
	sources, err := Sources()
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	if len(sources) != 2 || sources[0].Dialect != DialectPostgres || sources[1].Dialect != DialectSQLite {
		t.Fatalf("unexpected sources: %#v", sources)
	}
	if sources[1].Path != "data/sql/migrations/sqlite" {
		t.Fatalf("unexpected sqlite path %q", sources[1].Path)
	}
}

func TestSourceFor_NormalizesDriverNames(t *testing.T) {
	source, err := SourceFor("sqlite3")
	if err != nil {
		t.Fatalf("source for sqlite3: %v", err)
	}
	if source.Dialect != DialectSQLite {
		t.Fatalf("expected sqlite source, got %q", source.Dialect)
	}
	if _, err := SourceFor("mongo"); err == nil {
		t.Fatalf("expected error for unsupported dialect")
	}
}

func TestCoreSchemaMigrationPair_ExistsForBothDialects(t *testing.T) {
	root := devices.GetMigrationsFS()
	paths := []string{
		"data/sql/migrations/00001_devices_core_schema.up.sql",
		"data/sql/migrations/00001_devices_core_schema.down.sql",
		"data/sql/migrations/sqlite/00001_devices_core_schema.up.sql",
		"data/sql/migrations/sqlite/00001_devices_core_schema.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestNormalizeDialect(t *testing.T) {
	cases := map[string]string{
		"postgres":   DialectPostgres,
		"PostgreSQL": DialectPostgres,
		"sqlite3":    DialectSQLite,
		" sqlite ":   DialectSQLite,
	}
	for input, want := range cases {
		got, err := NormalizeDialect(input)
		if err != nil || got != want {
			t.Fatalf("normalize %q: expected %q, got %q (%v)", input, want, got, err)
		}
	}
	if _, err := NormalizeDialect("mongo"); err == nil {
		t.Fatalf("expected error for unsupported dialect")
	}
}

func TestSQLiteCoreSchema_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-core-schema?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	source, err := SourceFor(DialectSQLite)
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	ctx := context.Background()
	if err := execSQLMigration(ctx, db, source.FS, "00001_devices_core_schema.up.sql"); err != nil {
		t.Fatalf("apply up: %v", err)
	}

	if _, err := db.ExecContext(ctx,
		`INSERT INTO devices (id, claim_code) VALUES (?, ?)`, "dev-42", "ABC123"); err != nil {
		t.Fatalf("insert unclaimed device: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`UPDATE devices SET owner_id = ?, claimed_at = CURRENT_TIMESTAMP WHERE id = ?`, "user-7", "dev-42"); err == nil {
		t.Fatalf("expected check constraint to reject an owned device that keeps its claim code")
	}
	if err := Verify(ctx, bun.NewDB(db, sqlitedialect.New()), DialectSQLite); err != nil {
		t.Fatalf("verify after up: %v", err)
	}

	if err := execSQLMigration(ctx, db, source.FS, "00001_devices_core_schema.down.sql"); err != nil {
		t.Fatalf("apply down: %v", err)
	}
	if err := Verify(ctx, bun.NewDB(db, sqlitedialect.New()), DialectSQLite); err == nil {
		t.Fatalf("expected verify to report dropped tables")
	}
}

func TestApply_MigratesPersistenceClient(t *testing.T) {
	dsn := fmt.Sprintf("file:migrations-apply-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano())
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	client, err := persistence.New(testPersistenceConfig{server: dsn}, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}
	defer func() { _ = client.Close() }()

	if err := Apply(context.Background(), client, "sqlite3"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := Verify(context.Background(), client.DB(), DialectSQLite); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := Apply(context.Background(), nil, "sqlite"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filename)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
