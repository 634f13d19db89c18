package migrations

import "embed"

// FS contains embedded SQLite migrations for critical data storage.
//
//go:embed *.sql
var FS embed.FS
