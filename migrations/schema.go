package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// SchemaCheck lists the columns and indexes a table must expose.
type SchemaCheck struct {
	Table   string
	Columns []string
	Indexes []string
}

// DefaultSchemaChecks covers the tables the delta reader, the syncback
// poller and account provisioning query directly. The indexes back the
// cursor scans (namespace + id, created_at) and the pending action poll.
var DefaultSchemaChecks = []SchemaCheck{
	{
		Table: "transactions",
		Columns: []string{
			"id",
			"namespace_id",
			"object_type",
			"record_id",
			"object_public_id",
			"command",
			"snapshot",
			"created_at",
			"deleted_at",
		},
		Indexes: []string{
			"transactions_namespace_id_deleted_at_idx",
			"transactions_namespace_id_created_at_idx",
			"transactions_object_type_record_id_idx",
		},
	},
	{
		Table: "action_logs",
		Columns: []string{
			"id",
			"namespace_id",
			"action",
			"table_name",
			"record_id",
			"status",
			"retries",
			"extra_args",
		},
		Indexes: []string{"action_logs_status_created_at_idx"},
	},
	{
		Table:   "accounts",
		Columns: []string{"id", "email_address", "provider", "sync_state", "sync_status"},
		Indexes: []string{"accounts_email_address_uidx"},
	},
	{
		Table:   "namespaces",
		Columns: []string{"id", "public_id", "account_id"},
		Indexes: []string{"namespaces_public_id_uidx"},
	},
	{
		Table:   "threads",
		Columns: []string{"id", "namespace_id", "public_id", "version"},
	},
}

// SchemaOption customizes schema validation.
type SchemaOption func(*schemaConfig)

type schemaConfig struct {
	checks []SchemaCheck
}

// WithSchemaChecks replaces DefaultSchemaChecks.
func WithSchemaChecks(checks []SchemaCheck) SchemaOption {
	return func(cfg *schemaConfig) {
		cfg.checks = checks
	}
}

// SchemaValidationError reports everything found missing in one pass.
type SchemaValidationError struct {
	MissingTables  []string
	MissingColumns map[string][]string
	MissingIndexes map[string][]string
}

func (e *SchemaValidationError) Error() string {
	if e == nil {
		return ""
	}
	var parts []string
	if len(e.MissingTables) > 0 {
		parts = append(parts, "missing tables: "+strings.Join(e.MissingTables, ", "))
	}
	if s := formatMissing(e.MissingColumns); s != "" {
		parts = append(parts, "missing columns: "+s)
	}
	if s := formatMissing(e.MissingIndexes); s != "" {
		parts = append(parts, "missing indexes: "+s)
	}
	if len(parts) == 0 {
		return "schema validation failed"
	}
	return "schema validation failed: " + strings.Join(parts, "; ")
}

func formatMissing(byTable map[string][]string) string {
	if len(byTable) == 0 {
		return ""
	}
	tables := make([]string, 0, len(byTable))
	for table := range byTable {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	out := make([]string, 0, len(tables))
	for _, table := range tables {
		names := append([]string(nil), byTable[table]...)
		sort.Strings(names)
		out = append(out, fmt.Sprintf("%s(%s)", table, strings.Join(names, ", ")))
	}
	return strings.Join(out, "; ")
}

// ValidateSchema ensures the migrated database exposes the tables, columns
// and indexes the sync layers depend on. Hosts call it after Migrate.
func ValidateSchema(ctx context.Context, db *sql.DB, dialect string, opts ...SchemaOption) error {
	if db == nil {
		return errors.New("migrations: db required")
	}
	normalized, err := NormalizeDialect(dialect)
	if err != nil {
		return err
	}
	cfg := schemaConfig{checks: DefaultSchemaChecks}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	result := &SchemaValidationError{
		MissingColumns: make(map[string][]string),
		MissingIndexes: make(map[string][]string),
	}
	for _, check := range cfg.checks {
		table := strings.TrimSpace(check.Table)
		if table == "" {
			continue
		}
		cols, err := listNames(ctx, db, columnQuery(normalized, table))
		if err != nil {
			return err
		}
		if len(cols) == 0 {
			result.MissingTables = append(result.MissingTables, table)
			continue
		}
		result.MissingColumns[table] = missingFrom(cols, check.Columns)
		if len(check.Indexes) > 0 {
			indexes, err := listNames(ctx, db, indexQuery(normalized, table))
			if err != nil {
				return err
			}
			result.MissingIndexes[table] = missingFrom(indexes, check.Indexes)
		}
	}
	prune(result.MissingColumns)
	prune(result.MissingIndexes)

	if len(result.MissingTables) == 0 && len(result.MissingColumns) == 0 && len(result.MissingIndexes) == 0 {
		return nil
	}
	sort.Strings(result.MissingTables)
	return result
}

// NormalizeDialect maps driver names onto the dialect labels used by the
// migration layout ("postgres" or "sqlite").
func NormalizeDialect(dialect string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "postgres", "postgresql", "pg":
		return "postgres", nil
	case "sqlite", "sqlite3":
		return "sqlite", nil
	default:
		return "", fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}
}

type namedQuery struct {
	query string
	args  []any
}

func columnQuery(dialect, table string) namedQuery {
	if dialect == "postgres" {
		return namedQuery{
			query: `SELECT column_name FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1`,
			args:  []any{table},
		}
	}
	return namedQuery{query: `SELECT name FROM pragma_table_info(?)`, args: []any{table}}
}

func indexQuery(dialect, table string) namedQuery {
	if dialect == "postgres" {
		return namedQuery{
			query: `SELECT indexname FROM pg_indexes WHERE schemaname = 'public' AND tablename = $1`,
			args:  []any{table},
		}
	}
	return namedQuery{query: `SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ?`, args: []any{table}}
}

func listNames(ctx context.Context, db *sql.DB, q namedQuery) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, q.query, q.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names[strings.ToLower(name)] = true
	}
	return names, rows.Err()
}

func missingFrom(have map[string]bool, want []string) []string {
	var missing []string
	for _, name := range want {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" && !have[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

func prune(byTable map[string][]string) {
	for table, names := range byTable {
		if len(names) == 0 {
			delete(byTable, table)
		}
	}
}
