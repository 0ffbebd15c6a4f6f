// Package brain holds the default plugins. Each .risor file runs at engine
// start and registers module extenders and call stubs for library modules
// whose behaviour cannot be inferred from their source.
package brain

import "embed"

// FS holds the plugin scripts.
//
//go:embed *.risor
var FS embed.FS
