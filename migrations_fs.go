package connect

import (
	"embed"
	"io/fs"
)

// migrationsFS contains the full go-connect SQL migration tree, including
// dialect alternatives under data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

// GetMigrationsFS returns the embedded SQL migration tree rooted at the
// module root. Use migrations.Filesystems to slice it per dialect.
func GetMigrationsFS() fs.FS {
	return migrationsFS
}

// GetCoreMigrationsFS returns the PostgreSQL migration directory.
func GetCoreMigrationsFS() (fs.FS, error) {
	return fs.Sub(migrationsFS, "data/sql/migrations")
}
