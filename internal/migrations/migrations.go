// Package migrations holds the bun schema migrations, registered in init functions.
package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the registry consumed by the db command and test helpers.
var Migrations = migrate.NewMigrations()
