package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the schema history. Each migration registers itself from a
// file named {version}_{name}.go, which bun uses to derive its version.
var Migrations = migrate.NewMigrations()
