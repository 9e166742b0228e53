// Package migrations holds the SQL schema applied by cmd/migrate.
package migrations

import "embed"

// FS contains every NNN_name.up.sql / NNN_name.down.sql file
//
//go:embed *.sql
var FS embed.FS
