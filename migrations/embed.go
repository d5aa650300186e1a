// Package migrations embeds the schema of the tables the application owns.
package migrations

import "embed"

// FS holds the numbered up/down SQL files applied by cmd/migrate
//
//go:embed *.sql
var FS embed.FS
