package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/pyrite"
)

var (
	flagLimit      int
	flagOffset     int
	flagSort       string
	flagOrder      string
	flagKinds      []string
	flagTransitive bool
	flagDepth      int
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the index",
	Long:  "Run queries against an indexed project. Classes and modules are named by their dotted qualified names.",
}

func init() {
	queryCmd.PersistentFlags().IntVar(&flagLimit, "limit", 50, "pagination limit (max 500)")
	queryCmd.PersistentFlags().IntVar(&flagOffset, "offset", 0, "pagination offset")
	queryCmd.PersistentFlags().StringVar(&flagSort, "sort", "", "sort field: name|kind|module|line")
	queryCmd.PersistentFlags().StringVar(&flagOrder, "order", "asc", "sort order: asc|desc")

	searchCmd.Flags().StringSliceVar(&flagKinds, "kind", nil, "restrict to symbol kinds (class,function,method,variable,import)")
	dependentsCmd.Flags().BoolVar(&flagTransitive, "transitive", false, "include indirect importers")
	closureCmd.Flags().IntVar(&flagDepth, "depth", 0, "maximum import hops (0 = unbounded)")

	queryCmd.AddCommand(modulesCmd, classesCmd, classMROCmd, subclassesCmd, searchCmd,
		summaryCmd, depsCmd, dependentsCmd, closureCmd)
}

// openQuery opens the index of the project around the working directory.
func openQuery() (*pyrite.Engine, *pyrite.QueryBuilder, error) {
	root, err := cwdRepoRoot()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, nil, err
	}
	if _, err := os.Stat(cfg.Database); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("database not found: %s (run 'pyrite index' first)", cfg.Database)
	}
	e, _, err := openEngine(root, true, pyrite.WithoutPlugins())
	if err != nil {
		return nil, nil, err
	}
	return e, e.Query(), nil
}

func pagination() pyrite.Pagination {
	return pyrite.Pagination{Offset: flagOffset, Limit: flagLimit}
}

func sortFlags() pyrite.Sort {
	return pyrite.Sort{Field: pyrite.SortField(flagSort), Order: pyrite.SortOrder(flagOrder)}
}

// runQuery opens the index, runs fn and prints its result or error.
func runQuery(command string, fn func(q *pyrite.QueryBuilder) (CLIResult, error)) error {
	e, q, err := openQuery()
	if err != nil {
		return outputError(command, err)
	}
	defer e.Close()
	res, err := fn(q)
	if err != nil {
		return outputError(command, err)
	}
	res.Command = command
	return outputResult(res)
}

var modulesCmd = &cobra.Command{
	Use:   "modules [package]",
	Short: "List indexed modules, optionally under a package",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery("modules", func(q *pyrite.QueryBuilder) (CLIResult, error) {
			prefix := ""
			if len(args) > 0 {
				prefix = args[0]
			}
			page, err := q.Modules(prefix, sortFlags(), pagination())
			if err != nil {
				return CLIResult{}, err
			}
			mods := make([]CLIModule, 0, len(page.Items))
			for _, m := range page.Items {
				mods = append(mods, CLIModule{ID: m.ID, Name: m.Name, Path: m.Path, Package: m.Package, Synthetic: m.Synthetic, Lines: m.LineCount})
			}
			return CLIResult{Results: mods, TotalCount: &page.TotalCount}, nil
		})
	},
}

var classesCmd = &cobra.Command{
	Use:   "classes <module>",
	Short: "List the classes of a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery("classes", func(q *pyrite.QueryBuilder) (CLIResult, error) {
			classes, err := q.Classes(args[0])
			if err != nil {
				return CLIResult{}, err
			}
			return CLIResult{Results: toCLIClasses(classes)}, nil
		})
	},
}

var classMROCmd = &cobra.Command{
	Use:   "class <qualname>",
	Short: "Show a class with its recorded bases and MRO",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery("class", func(q *pyrite.QueryBuilder) (CLIResult, error) {
			c, err := q.Class(args[0])
			if err != nil {
				return CLIResult{}, err
			}
			if c == nil {
				return CLIResult{}, fmt.Errorf("class %s is not indexed", args[0])
			}
			return CLIResult{Results: toCLIClasses([]*pyrite.ClassResult{c})[0]}, nil
		})
	},
}

var subclassesCmd = &cobra.Command{
	Use:   "subclasses <qualname>",
	Short: "List indexed classes deriving from a class",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery("subclasses", func(q *pyrite.QueryBuilder) (CLIResult, error) {
			subs, err := q.Subclasses(args[0])
			if err != nil {
				return CLIResult{}, err
			}
			return CLIResult{Results: toCLIClasses(subs)}, nil
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <pattern>",
	Short: "Search symbols by name (* matches any run of characters)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery("search", func(q *pyrite.QueryBuilder) (CLIResult, error) {
			page, err := q.SearchSymbols(args[0], pyrite.SymbolFilter{Kinds: flagKinds}, sortFlags(), pagination())
			if err != nil {
				return CLIResult{}, err
			}
			syms := make([]CLISymbol, 0, len(page.Items))
			for _, s := range page.Items {
				syms = append(syms, CLISymbol{ID: s.ID, Name: s.Name, Kind: s.Kind, Scope: s.Scope,
					Module: s.ModuleName, File: s.ModulePath, Line: s.StartLine})
			}
			return CLIResult{Results: syms, TotalCount: &page.TotalCount}, nil
		})
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show counts over the whole index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery("summary", func(q *pyrite.QueryBuilder) (CLIResult, error) {
			s, err := q.Summary()
			if err != nil {
				return CLIResult{}, err
			}
			out := CLIProjectSummary{Modules: s.Modules, Packages: s.Packages, Lines: s.Lines, Classes: s.Classes,
				MROErrors: s.MROErrors, Symbols: s.Symbols, Imports: s.Imports, KindCounts: s.KindCounts}
			if !s.LastIndexed.IsZero() {
				out.LastIndexed = s.LastIndexed.Format(time.RFC3339)
			}
			return CLIResult{Results: out}, nil
		})
	},
}

var depsCmd = &cobra.Command{
	Use:   "deps <module>",
	Short: "List the imports of a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery("deps", func(q *pyrite.QueryBuilder) (CLIResult, error) {
			edges, err := q.Dependencies(args[0])
			if err != nil {
				return CLIResult{}, err
			}
			return CLIResult{Results: toCLIImports(edges)}, nil
		})
	},
}

var dependentsCmd = &cobra.Command{
	Use:   "dependents <module>",
	Short: "List the modules importing a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery("dependents", func(q *pyrite.QueryBuilder) (CLIResult, error) {
			names, err := q.Dependents(args[0], flagTransitive)
			if err != nil {
				return CLIResult{}, err
			}
			if names == nil {
				names = []string{}
			}
			return CLIResult{Results: names}, nil
		})
	},
}

var closureCmd = &cobra.Command{
	Use:   "closure <module>",
	Short: "Walk the imports reachable from a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery("closure", func(q *pyrite.QueryBuilder) (CLIResult, error) {
			g, err := q.ImportClosure(args[0], flagDepth)
			if err != nil {
				return CLIResult{}, err
			}
			return CLIResult{Results: toCLIImports(g.Edges)}, nil
		})
	},
}

func toCLIClasses(classes []*pyrite.ClassResult) []CLIClass {
	out := make([]CLIClass, 0, len(classes))
	for _, c := range classes {
		out = append(out, CLIClass{
			ID: c.ID, QualName: c.QualName, Module: c.ModuleName, File: c.ModulePath,
			Line: c.StartLine, Bases: c.Bases, MRO: c.MRO, MROError: c.MROError,
		})
	}
	return out
}

func toCLIImports(edges []pyrite.ImportEdge) []CLIImport {
	out := make([]CLIImport, 0, len(edges))
	for _, e := range edges {
		out = append(out, CLIImport{From: e.From, To: e.To, Alias: e.Alias, Line: e.Line, Resolved: e.Resolved})
	}
	return out
}
