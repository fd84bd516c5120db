package migrations

import "embed"

// FS contains the embedded schema for the local client database.
//
//go:embed *.sql
var FS embed.FS
