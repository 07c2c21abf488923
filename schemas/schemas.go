// Package schemas embeds the JSON Schema documents shipped with phanatic.
package schemas

import _ "embed"

// Config is the JSON Schema for pipeline configuration files.
//
//go:embed config.schema.json
var Config string
