// Package migrations embeds the SQL schema applied at startup.
package migrations

import "embed"

// FS holds the *.up.sql files in apply order by name.
//
//go:embed *.sql
var FS embed.FS
