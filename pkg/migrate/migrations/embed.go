// Package migrations embeds the Postgres schema history so binaries run it
// without the source tree.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
