// Package migrations embeds the gateway's SQL schema into the binary.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-zigbee/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.RegisterMigrations(migrationsFS, ".")
}

// Source returns the embedded migrations for callers that migrate explicitly.
func Source() database.Source {
	return database.Source{FS: migrationsFS, Dir: "."}
}
