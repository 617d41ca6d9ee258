package txlog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:txlog_%s?mode=memory&cache=shared", uuid.NewString())
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

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time { return c.now }

func (c *stepClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeObject struct {
	id        uuid.UUID
	namespace uuid.UUID
	publicID  string
	kind      types.ObjectType
	subject   string
	suppress  bool
}

func newFakeObject(namespace uuid.UUID, kind types.ObjectType, subject string) *fakeObject {
	return &fakeObject{
		id:        uuid.New(),
		namespace: namespace,
		publicID:  types.ShortPublicIDs{}.PublicID(),
		kind:      kind,
		subject:   subject,
	}
}

func (o *fakeObject) RevisionKey() types.RevisionKey {
	return types.RevisionKey{
		ObjectType:  o.kind,
		RecordID:    o.id,
		PublicID:    o.publicID,
		NamespaceID: o.namespace,
	}
}

func (o *fakeObject) VersionedFields() map[string]any {
	return map[string]any{"subject": o.subject}
}

func (o *fakeObject) Snapshot() any {
	return map[string]any{
		"id":      o.publicID,
		"object":  o.kind,
		"subject": o.subject,
	}
}

func (o *fakeObject) SuppressRevision() bool { return o.suppress }
