package store

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ComputeSignatureHash computes a deterministic hash from a symbol's semantic
// identity: name, kind, parameters (in declaration order), declared bases
// and decorators. Location changes do NOT affect the hash.
func ComputeSignatureHash(name, kind string, params, bases, decorators []string) string {
	d := xxhash.New()
	fmt.Fprintf(d, "name:%s\n", name)
	fmt.Fprintf(d, "kind:%s\n", kind)
	fmt.Fprintf(d, "params:%s\n", strings.Join(params, ","))
	fmt.Fprintf(d, "bases:%s\n", strings.Join(bases, ","))
	fmt.Fprintf(d, "decorators:%s\n", strings.Join(decorators, ","))
	return fmt.Sprintf("%016x", d.Sum64())
}

// ContentHash is the hex form of a module source hash.
func ContentHash(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}
