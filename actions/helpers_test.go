package actions

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:actions_%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})
	applyDDL(t, db)
	return db
}

func applyDDL(t *testing.T, db *bun.DB) {
	t.Helper()
	files, err := filepath.Glob("../data/sql/migrations/sqlite/*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	sort.Strings(files)
	for _, file := range files {
		content, err := os.ReadFile(file)
		require.NoError(t, err)
		for _, stmt := range splitStatements(string(content)) {
			_, err := db.Exec(stmt)
			require.NoError(t, err, file)
		}
	}
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

type stubAccountStates struct {
	states map[uuid.UUID]types.SyncState
	err    error
}

func (s stubAccountStates) NamespaceSyncState(_ context.Context, _ bun.IDB, namespaceID uuid.UUID) (types.SyncState, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.states[namespaceID], nil
}

type target struct {
	table     string
	recordID  uuid.UUID
	namespace uuid.UUID
}

func (t target) TableName() string { return t.table }

func (t target) RevisionKey() types.RevisionKey {
	return types.RevisionKey{ObjectType: types.ObjectTypeThread, RecordID: t.recordID, NamespaceID: t.namespace}
}
