// Package configs ships the default configuration assets with the binaries.
package configs

import _ "embed"

// ActivityRegistry is the bundled activity registry, used when the configured
// registry path is not readable.
//
//go:embed activity-registry.json
var ActivityRegistry []byte
