// Package migrations embeds the goose SQL migrations of both service
// databases.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed users/*.sql
var usersFS embed.FS

//go:embed auth/*.sql
var authFS embed.FS

// Users returns the schema of the owning users service database.
func Users() fs.FS {
	return mustSub(usersFS, "users")
}

// Auth returns the schema of the auth service database.
func Auth() fs.FS {
	return mustSub(authFS, "auth")
}

func mustSub(f embed.FS, dir string) fs.FS {
	sub, err := fs.Sub(f, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
