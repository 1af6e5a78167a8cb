// Package migrations embeds the SQLite schema for tenancy storage.
package migrations

import "embed"

// FS contains embedded SQLite migrations for tenancy storage.
//
//go:embed *.sql
var FS embed.FS
