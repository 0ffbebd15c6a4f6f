// Package builder turns Python source into a nodes.Tree using the
// tree-sitter Python grammar.
//
// The builder lowers the concrete syntax tree to the node kinds the
// inference engine understands, populates scope locals and class instance
// attributes, and rejects sources that do not parse.
package builder

import (
	"context"
	"fmt"
	"log/slog"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/jward/pyrite/internal/errs"
	"github.com/jward/pyrite/internal/nodes"
)

// Source is one module to build.
type Source struct {
	Name    string // dotted module name
	Path    string // file path, empty for synthetic modules
	Package bool   // true for package __init__ modules
	Content []byte
}

// Builder parses Python modules. A Builder is safe for concurrent use;
// each Build call creates its own parser.
type Builder struct {
	logger *slog.Logger
}

// New creates a Builder. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger}
}

// Build parses src and returns the module tree. Sources with syntax errors
// fail with errs.ErrSyntax.
func (b *Builder) Build(ctx context.Context, src Source) (*nodes.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tsTree, err := parser.ParseCtx(ctx, nil, src.Content)
	if err != nil {
		return nil, errs.Wrap(errs.ErrBuilding, err, "parsing %s", src.Name)
	}
	defer tsTree.Close()

	root := tsTree.RootNode()
	if root.HasError() {
		bad := firstError(root)
		line, col := 0, 0
		if bad != nil {
			line, col = int(bad.StartPoint().Row)+1, int(bad.StartPoint().Column)
		}
		return nil, errs.New(errs.ErrSyntax, "%s:%d:%d: invalid syntax", displayPath(src), line, col)
	}

	tree := nodes.NewTree(src.Name, src.Path)
	tree.Package = src.Package
	tree.Source = src.Content

	c := &converter{tree: tree, src: src.Content}
	mod := tree.New(nodes.Module, position(root))
	for _, stmt := range c.block(root) {
		mod.Append(nodes.ListBody, stmt)
	}
	bind(mod)

	if c.skipped > 0 {
		b.logger.Debug("unmodelled constructs lowered to Empty",
			slog.String("module", src.Name),
			slog.Int("count", c.skipped),
		)
	}
	return tree, nil
}

// BuildString is a convenience for tests and synthetic modules.
func (b *Builder) BuildString(ctx context.Context, name, src string) (*nodes.Tree, error) {
	return b.Build(ctx, Source{Name: name, Content: []byte(src)})
}

func displayPath(src Source) string {
	if src.Path != "" {
		return src.Path
	}
	return fmt.Sprintf("<%s>", src.Name)
}

// firstError returns the first ERROR or MISSING node in document order.
func firstError(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || !c.HasError() && !c.IsMissing() {
			continue
		}
		if bad := firstError(c); bad != nil {
			return bad
		}
	}
	return nil
}

func position(n *sitter.Node) nodes.Position {
	start, end := n.StartPoint(), n.EndPoint()
	return nodes.Position{
		Line:    int(start.Row) + 1,
		Col:     int(start.Column),
		EndLine: int(end.Row) + 1,
		EndCol:  int(end.Column),
	}
}
