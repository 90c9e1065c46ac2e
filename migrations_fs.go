package approvals

import (
	"embed"
	"io/fs"
)

// migrationsFS holds the full go-approvals SQL migration tree, including
// dialect alternatives under data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

// GetMigrationsFS returns the full embedded migration tree.
func GetMigrationsFS() fs.FS {
	return migrationsFS
}

// GetAuditMigrationsFS returns the audit trail schema migration tree.
//
// v1 ships the audit schema only, so this matches GetMigrationsFS.
func GetAuditMigrationsFS() fs.FS {
	return migrationsFS
}
