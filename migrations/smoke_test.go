package migrations_test

import (
	"context"
	"database/sql"
	"io/fs"
	"sort"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/goliatone/go-mailsync/migrations"
)

func TestMigrationsApplyToSQLite(t *testing.T) {
	t.Parallel()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = db.Close()
	})

	ctx := context.Background()
	registered := migrations.Filesystems()
	if len(registered) == 0 {
		t.Fatalf("expected core migrations to be registered")
	}
	for _, fsys := range registered {
		if err := applyFilesystem(ctx, db, fsys); err != nil {
			t.Fatalf("failed to apply migrations: %v", err)
		}
	}

	if err := migrations.ValidateSchema(ctx, db, "sqlite3"); err != nil {
		t.Fatalf("expected schema to validate: %v", err)
	}
}

func TestValidateSchemaReportsMissingTables(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	err = migrations.ValidateSchema(context.Background(), db, "sqlite", migrations.WithSchemaChecks([]migrations.SchemaCheck{
		{Table: "transactions", Columns: []string{"id"}},
	}))
	var validationErr *migrations.SchemaValidationError
	if err == nil || !asValidationError(err, &validationErr) {
		t.Fatalf("expected schema validation error, got %v", err)
	}
	if len(validationErr.MissingTables) != 1 || validationErr.MissingTables[0] != "transactions" {
		t.Fatalf("expected transactions to be missing, got %v", validationErr.MissingTables)
	}
}

func TestValidateSchemaReportsMissingIndexes(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = db.Close()
	})

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `CREATE TABLE action_logs (id TEXT PRIMARY KEY, status TEXT, created_at TIMESTAMP)`); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}

	err = migrations.ValidateSchema(ctx, db, "sqlite", migrations.WithSchemaChecks([]migrations.SchemaCheck{
		{
			Table:   "action_logs",
			Columns: []string{"id", "status", "retries"},
			Indexes: []string{"action_logs_status_created_at_idx"},
		},
	}))
	var validationErr *migrations.SchemaValidationError
	if err == nil || !asValidationError(err, &validationErr) {
		t.Fatalf("expected schema validation error, got %v", err)
	}
	if got := validationErr.MissingColumns["action_logs"]; len(got) != 1 || got[0] != "retries" {
		t.Fatalf("expected retries to be missing, got %v", got)
	}
	if got := validationErr.MissingIndexes["action_logs"]; len(got) != 1 || got[0] != "action_logs_status_created_at_idx" {
		t.Fatalf("expected status index to be missing, got %v", got)
	}
	if !strings.Contains(err.Error(), "missing indexes: action_logs(action_logs_status_created_at_idx)") {
		t.Fatalf("unexpected error text: %v", err)
	}

	if _, err := db.ExecContext(ctx, `ALTER TABLE action_logs ADD COLUMN retries INTEGER`); err != nil {
		t.Fatalf("failed to alter table: %v", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX action_logs_status_created_at_idx ON action_logs (status, created_at)`); err != nil {
		t.Fatalf("failed to create index: %v", err)
	}
	err = migrations.ValidateSchema(ctx, db, "sqlite", migrations.WithSchemaChecks([]migrations.SchemaCheck{
		{
			Table:   "action_logs",
			Columns: []string{"id", "status", "retries"},
			Indexes: []string{"action_logs_status_created_at_idx"},
		},
	}))
	if err != nil {
		t.Fatalf("expected schema to validate, got %v", err)
	}
}

func TestNormalizeDialect(t *testing.T) {
	if got, err := migrations.NormalizeDialect("PostgreSQL"); err != nil || got != "postgres" {
		t.Fatalf("expected postgres, got %q (%v)", got, err)
	}
	if _, err := migrations.NormalizeDialect("mysql"); err == nil {
		t.Fatalf("expected mysql to be rejected")
	}
}

func asValidationError(err error, target **migrations.SchemaValidationError) bool {
	v, ok := err.(*migrations.SchemaValidationError)
	if ok {
		*target = v
	}
	return ok
}

func applyFilesystem(ctx context.Context, db *sql.DB, filesystem fs.FS) error {
	entries, err := fs.Glob(filesystem, "sqlite/*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(entries)
	for _, entry := range entries {
		sqlBytes, err := fs.ReadFile(filesystem, entry)
		if err != nil {
			return err
		}
		statements := splitStatements(string(sqlBytes))
		for _, stmt := range statements {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
	}
	return nil
}

func splitStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
