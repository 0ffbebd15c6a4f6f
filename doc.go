// Package pyrite infers the values of Python expressions and the method
// resolution order of Python classes without running any Python.
//
// # Pipeline
//
// Source is parsed with tree-sitter and converted into pyrite's own node
// tree, one [Model] per module. The [Manager] caches models process-wide
// and resolves imports against a search path. The inference engine then
// answers "what can this node evaluate to?" lazily, caching per node and
// inference context, with C3 linearisation for class MROs.
//
// Library behaviour the sources do not show (hashlib constructors,
// copy.copy, collections.namedtuple) is supplied by brain plugins: Risor
// scripts that register module extenders and call stubs at startup.
//
// # Usage
//
//	e, err := pyrite.New(pyrite.WithSearchPath("path/to/project"))
//	if err != nil { ... }
//	defer e.Close()
//
//	vals, err := e.InferAt(ctx, "path/to/project/app.py", 12, 8)
//
// # Index
//
// With [WithDatabase] the Engine also summarises modules into SQLite:
// classes with their MROs, module and class level symbols, and import
// edges. [Engine.IndexDirectory] skips files whose content hash is
// unchanged and re-summarises the modules importing a changed one. The
// [QueryBuilder] returned by [Engine.Query] reads the index back:
//
//   - [QueryBuilder.Modules] and [QueryBuilder.SearchSymbols] list what is indexed.
//   - [QueryBuilder.ClassMRO], [QueryBuilder.Subclasses] and
//     [QueryBuilder.Hierarchy] expose inheritance.
//   - [QueryBuilder.Dependencies], [QueryBuilder.Dependents] and
//     [QueryBuilder.ImportClosure] expose the import graph.
package pyrite
