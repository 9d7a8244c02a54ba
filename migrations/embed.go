// Package migrations embeds the SQL schema so it can be applied without the source tree.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
