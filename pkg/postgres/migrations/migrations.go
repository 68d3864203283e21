// Package migrations embeds the SQL migrations for the ad catalog. The
// golang-migrate iofs driver reads them from FS.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Version is the schema version the service expects.
const Version = 1
