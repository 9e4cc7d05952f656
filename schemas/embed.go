// Package schemas holds the JSON Schemas shipped with the loader.
package schemas

import _ "embed"

// Config is the JSON Schema for the loader configuration file.
//
//go:embed config.schema.json
var Config string
