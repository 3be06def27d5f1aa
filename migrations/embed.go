// Package migrations embeds the SQLite schema. Importing it registers the
// files with the database package.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/database"
)

//go:embed *.up.sql
var files embed.FS

func init() {
	database.RegisterMigrations(files)
}
