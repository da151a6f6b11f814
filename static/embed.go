package staticfiles

import (
	"embed"
	"io/fs"
)

//go:embed board.css
var embedded embed.FS

// EmbeddedFS holds the assets of the server-rendered board page used when no
// static directory is deployed.
func EmbeddedFS() fs.FS {
	return embedded
}
