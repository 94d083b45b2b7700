// Package migrations embeds the market-service goose migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
