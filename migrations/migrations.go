// Package migrations embeds the SQL schema migrations so binaries carry
// their own schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
