// Package migrations embeds the auth-service goose migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
