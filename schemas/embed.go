// Package schemas holds the JSON Schemas of the tagcompare configuration
// files.
package schemas

import "embed"

// Names of the embedded schemas.
const (
	CompareSet = "compare.schema.json"
	Settings   = "settings.schema.json"
)

//go:embed *.schema.json
var FS embed.FS

// Read returns the content of the named schema.
func Read(name string) ([]byte, error) {
	return FS.ReadFile(name)
}
