// Package builtins embeds the Python stub source of the builtins module.
//
// The stub declares the classes and functions the inference engine falls
// back to when a name is not bound anywhere in the module being queried.
// Method bodies return instances (`return int()`) so that calls infer to
// typed values; bodies consisting only of `...` infer as Uninferable.
package builtins

import _ "embed"

// ModuleName is the import name of the builtins module.
const ModuleName = "builtins"

//go:embed builtins.py
var source []byte

// Source returns a copy of the stub source.
func Source() []byte {
	return append([]byte(nil), source...)
}
