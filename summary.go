package pyrite

import (
	"errors"
	"fmt"

	"github.com/jward/pyrite/internal/manager"
	"github.com/jward/pyrite/internal/nodes"
	"github.com/jward/pyrite/internal/store"
)

// summary counts what summarise wrote for one module.
type summary struct {
	classes int
	symbols int
	imports int
	mroErrs int
}

// summarise records the classes (with their MROs), symbols and imports of
// a built module into ds.
func (e *Engine) summarise(model *manager.Model, moduleID int64, ds store.DataStore) (summary, error) {
	var (
		sum     summary
		classID = make(map[*nodes.Node]int64)
		walkErr error
	)
	mod := model.Module

	nodes.Walk(mod, func(n *nodes.Node) bool {
		if walkErr != nil {
			return false
		}
		switch n.Kind() {
		case nodes.ClassDef:
			id, failed, err := e.summariseClass(n, moduleID, ds)
			if err != nil {
				walkErr = err
				return false
			}
			classID[n] = id
			sum.classes++
			if failed {
				sum.mroErrs++
			}
		case nodes.Import, nodes.ImportFrom:
			if n.Scope() != mod {
				return true
			}
			imps, err := recordImports(n, model, moduleID, ds)
			if err != nil {
				walkErr = err
				return false
			}
			sum.imports += imps
		}
		return true
	})
	if walkErr != nil {
		return sum, walkErr
	}

	// Symbols are the locals of the module and of every class, in source
	// order of their first binding.
	scopes := []*nodes.Node{mod}
	nodes.Walk(mod, func(n *nodes.Node) bool {
		if n.Kind() == nodes.ClassDef {
			scopes = append(scopes, n)
		}
		return true
	})
	for _, scope := range scopes {
		n, err := e.summariseScope(scope, moduleID, classID, ds)
		if err != nil {
			return sum, err
		}
		sum.symbols += n
	}
	return sum, nil
}

// summariseClass stores a class, its declared bases and its MRO. failed
// reports an MRO that could not be linearised.
func (e *Engine) summariseClass(cls *nodes.Node, moduleID int64, ds store.DataStore) (id int64, failed bool, err error) {
	c := &store.Class{
		ModuleID:  moduleID,
		Name:      cls.Name,
		QualName:  cls.QualName(),
		StartLine: cls.Pos.Line,
		StartCol:  cls.Pos.Col,
		EndLine:   cls.Pos.EndLine,
	}
	linear, mroErr := e.inf.ComputeMROStrict(cls)
	if mroErr != nil {
		c.MROError = mroErr.Error()
		failed = true
		// Keep the degraded order so queries still have something to show.
		if degraded, err := e.inf.ComputeMRO(cls); err == nil {
			linear = degraded
		}
	}
	if linear != nil {
		c.MRO = make([]string, len(linear))
		for i, k := range linear {
			c.MRO[i] = k.QualName()
		}
	}
	if id, err = ds.InsertClass(c); err != nil {
		return 0, false, err
	}

	for i, base := range e.baseNames(cls) {
		if _, err := ds.InsertClassBase(&store.ClassBase{ClassID: id, Ordinal: i, Base: base}); err != nil {
			return 0, false, err
		}
	}
	return id, failed, nil
}

// baseNames renders each declared base by the qualified name of the class
// it infers to, falling back to its source spelling.
func (e *Engine) baseNames(cls *nodes.Node) []string {
	inferred := e.inf.InferBases(cls)
	out := make([]string, 0, len(cls.Bases()))
	for i, b := range cls.Bases() {
		name := ""
		if i < len(inferred) && len(inferred[i]) > 0 {
			name = inferred[i][0].QualName()
		} else if dotted, ok := nodes.DottedName(b); ok {
			name = dotted
		}
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

func (e *Engine) summariseScope(scope *nodes.Node, moduleID int64, classID map[*nodes.Node]int64, ds store.DataStore) (int, error) {
	var owner *int64
	if scope.Kind() == nodes.ClassDef {
		id := classID[scope]
		owner = &id
	}
	count := 0
	locals := scope.Locals()
	for _, name := range locals.Names() {
		defs := scope.LocalNodes(name)
		if len(defs) == 0 {
			continue
		}
		def := defs[len(defs)-1]
		kind := symbolKind(scope, def)
		sym := &store.Symbol{
			ModuleID:  moduleID,
			ClassID:   owner,
			Scope:     scope.QualName(),
			Name:      name,
			Kind:      kind,
			StartLine: def.Pos.Line,
			StartCol:  def.Pos.Col,
			EndLine:   def.Pos.EndLine,
		}
		sym.SignatureHash = signatureHash(name, kind, def)
		if _, err := ds.InsertSymbol(sym); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func symbolKind(scope, def *nodes.Node) string {
	switch def.Kind() {
	case nodes.ClassDef:
		return store.KindClass
	case nodes.FunctionDef:
		if scope.Kind() == nodes.ClassDef {
			return store.KindMethod
		}
		return store.KindFunction
	case nodes.Import, nodes.ImportFrom:
		return store.KindImport
	}
	return store.KindVariable
}

func signatureHash(name, kind string, def *nodes.Node) string {
	var params, bases []string
	switch def.Kind() {
	case nodes.FunctionDef:
		if args := def.Args(); args != nil {
			for _, p := range args.Params() {
				params = append(params, p.Name)
			}
			if v := args.Vararg(); v != nil {
				params = append(params, "*"+v.Name)
			}
			for _, p := range args.KwOnly() {
				params = append(params, p.Name+"=")
			}
			if k := args.Kwarg(); k != nil {
				params = append(params, "**"+k.Name)
			}
		}
	case nodes.ClassDef:
		for _, b := range def.Bases() {
			if dotted, ok := nodes.DottedName(b); ok {
				bases = append(bases, dotted)
			}
		}
	}
	var decorators []string
	if def.Kind() == nodes.FunctionDef || def.Kind() == nodes.ClassDef {
		decorators = def.DecoratorNames()
	}
	return store.ComputeSignatureHash(name, kind, params, bases, decorators)
}

// recordImports stores one import edge per imported module.
func recordImports(n *nodes.Node, model *manager.Model, moduleID int64, ds store.DataStore) (int, error) {
	if n.Kind() == nodes.ImportFrom {
		target, err := absoluteImport(model, n.Level, n.Name)
		if err != nil {
			return 0, nil // relative import beyond the top-level package
		}
		_, err = ds.InsertImport(&store.Import{ModuleID: moduleID, Imported: target, Line: n.Pos.Line})
		return 1, err
	}
	for _, a := range n.Aliases {
		imp := &store.Import{ModuleID: moduleID, Imported: a.Name, Line: n.Pos.Line}
		if a.AsName != "" {
			alias := a.AsName
			imp.Alias = &alias
		}
		if _, err := ds.InsertImport(imp); err != nil {
			return 0, err
		}
	}
	return len(n.Aliases), nil
}

var errBeyondTop = errors.New("relative import beyond top-level package")

// absoluteImport resolves a from-import of level dots against the module's
// package.
func absoluteImport(model *manager.Model, level int, name string) (string, error) {
	if level == 0 {
		return name, nil
	}
	pkg := model.Identity.Name
	if !model.Package {
		pkg = parentName(pkg)
	}
	for i := 1; i < level; i++ {
		if pkg == "" {
			return "", fmt.Errorf("%s: %w", model.Identity.Name, errBeyondTop)
		}
		pkg = parentName(pkg)
	}
	switch {
	case pkg == "" && name == "":
		return "", fmt.Errorf("%s: %w", model.Identity.Name, errBeyondTop)
	case pkg == "":
		return name, nil
	case name == "":
		return pkg, nil
	}
	return pkg + "." + name, nil
}

func parentName(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[:i]
		}
	}
	return ""
}
