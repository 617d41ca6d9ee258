package migrations

import (
	"io/fs"

	mailsync "github.com/goliatone/go-mailsync"
)

func init() {
	coreFS, err := fs.Sub(mailsync.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return
	}
	Register(coreFS)
}
