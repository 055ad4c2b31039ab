// Package migrations хранит SQL-схему, которую database.Migrate применяет при старте.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
