// Package assets embeds the SQL migrations shipped with the binary.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed sql/*.sql
var files embed.FS

// Migrations returns the embedded migration files (under "sql/").
func Migrations() fs.FS {
	return files
}
