package inference

import (
	"strings"

	"github.com/jward/pyrite/internal/errs"
	"github.com/jward/pyrite/internal/nodes"
)

// importModule loads a module for a lookup. Import failures are local to
// the lookup, so they are wrapped as inference errors.
func (e *Engine) importModule(name string) (*nodes.Node, error) {
	if e.loader == nil {
		return nil, errs.New(errs.ErrInference, "no loader to import %q", name)
	}
	mod, err := e.loader.Import(name)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInference, err, "cannot import %q", name)
	}
	return mod, nil
}

// inferImport resolves the module an `import` statement binds to name:
// `import a.b as c` binds a.b, plain `import a.b` binds a.
func (e *Engine) inferImport(def *nodes.Node, name string) ([]Value, error) {
	for _, a := range def.Aliases {
		target := a.Name
		if a.AsName == "" {
			target, _, _ = strings.Cut(a.Name, ".")
		}
		if a.AsName == name || a.AsName == "" && target == name {
			mod, err := e.importModule(target)
			if err != nil {
				return nil, err
			}
			return []Value{mod}, nil
		}
	}
	return nil, errs.New(errs.ErrNameInference, "import does not bind %q", name).At(def)
}

// inferImportFrom resolves `from m import x as name`: x is an attribute of m,
// or else the submodule m.x.
func (e *Engine) inferImportFrom(def *nodes.Node, name string, ic *Context) ([]Value, error) {
	modName := absoluteModule(def.Tree(), def.Level, def.Name)
	for _, a := range def.Aliases {
		if a.Bound() != name {
			continue
		}
		if modName == "" {
			mod, err := e.importModule(a.Name)
			if err != nil {
				return nil, err
			}
			return []Value{mod}, nil
		}
		mod, err := e.importModule(modName)
		if err != nil {
			return nil, err
		}
		vals, err := e.moduleAttr(mod, a.Name, ic.detached(), map[*nodes.Node]bool{})
		if err == nil {
			return vals, nil
		}
		sub, subErr := e.importModule(modName + "." + a.Name)
		if subErr != nil {
			return nil, err
		}
		return []Value{sub}, nil
	}
	return nil, errs.New(errs.ErrNameInference, "import does not bind %q", name).At(def)
}

// absoluteModule resolves a possibly relative module reference made from
// tree. Level 1 is the tree's own package.
func absoluteModule(tree *nodes.Tree, level int, name string) string {
	if level == 0 {
		return name
	}
	pkg := tree.Name
	if !tree.Package {
		pkg = parentPackage(pkg)
	}
	for range level - 1 {
		pkg = parentPackage(pkg)
	}
	switch {
	case name == "":
		return pkg
	case pkg == "":
		return name
	}
	return pkg + "." + name
}

func parentPackage(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}
