// Package migrations embeds the user-stats-service goose migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
