// AngelaMos | 2026
// migrations.go

package migrations

import "embed"

// FS holds the schema scripts applied by core.Migrate.
//
//go:embed *.sql
var FS embed.FS
