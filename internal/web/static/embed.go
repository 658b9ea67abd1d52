// Package static holds the single-page frontend served by the web server.
package static

import (
	"embed"
	"io/fs"
)

//go:embed all:dist
var distFS embed.FS

// Open opens a file of the dist directory.
func Open(name string) (fs.File, error) {
	return distFS.Open("dist/" + name)
}
