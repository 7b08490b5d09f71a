// Package cord embeds the assets shipped with the cord binary.
package cord

import _ "embed"

// DefaultConfigTOML is config.default.toml, written to the data directory on
// first run.
//
//go:embed config.default.toml
var DefaultConfigTOML []byte
