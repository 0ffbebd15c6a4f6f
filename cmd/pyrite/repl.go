package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jward/pyrite"
)

const (
	replModule  = "__pyrite_repl__"
	replResult  = "__pyrite_result__"
	historyFile = ".pyrite_history"
	promptMain  = ">>> "
	promptCont  = "... "
)

var replCmd = &cobra.Command{
	Use:   "repl [file]",
	Short: "Interactively infer Python expressions",
	Long: `Statements accumulate into a session module; an expression prints its
inferred values. With a file, the session starts from its source.

Commands:
  :mro <Class>   MRO of a class defined in the session
  :source        print the session source
  :reset         clear the session
  :quit          leave`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := cwdRepoRoot()
		if err != nil {
			return err
		}
		engine, _, err := openEngine(root, false)
		if err != nil {
			return err
		}
		defer engine.Close()

		s := &replSession{engine: engine, out: os.Stdout}
		if len(args) > 0 {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			s.source = string(src)
		}
		return s.run()
	},
}

// replSession is the source typed so far.
type replSession struct {
	engine *pyrite.Engine
	source string
	out    io.Writer
}

func (s *replSession) run() error {
	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	for {
		input, err := readBlock(ln)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(s.out)
			break
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(input, "\n", " "))
		if s.eval(input) {
			break
		}
	}

	if f, err := os.Create(histPath); err == nil {
		_, _ = ln.WriteHistory(f)
		_ = f.Close()
	}
	return nil
}

// readBlock reads one line, continuing while a compound statement is open
// until an empty line ends it.
func readBlock(ln *liner.State) (string, error) {
	first, err := ln.Prompt(promptMain)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(strings.TrimSpace(first), ":") || strings.HasPrefix(first, ":") {
		return first, nil
	}
	lines := []string{first}
	for {
		next, err := ln.Prompt(promptCont)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(next) == "" {
			return strings.Join(lines, "\n"), nil
		}
		lines = append(lines, next)
	}
}

// eval handles one input and reports whether the session should end.
func (s *replSession) eval(input string) (quit bool) {
	ctx := context.Background()
	trimmed := strings.TrimSpace(input)
	if strings.HasPrefix(trimmed, ":") {
		return s.command(ctx, strings.Fields(trimmed))
	}

	if isStatement(input) {
		next := s.source + input + "\n"
		if _, err := s.engine.ParseSource(ctx, replModule, next); err != nil {
			fmt.Fprintf(s.out, "error: %s\n", err)
			return false
		}
		s.source = next
		return false
	}

	src := s.source + replResult + " = " + trimmed + "\n"
	mod, err := s.engine.ParseSource(ctx, replModule, src)
	if err != nil {
		fmt.Fprintf(s.out, "error: %s\n", err)
		return false
	}
	defs := mod.Bindings(replResult)
	if len(defs) == 0 {
		fmt.Fprintln(s.out, "error: could not parse expression")
		return false
	}
	vals, err := s.engine.Infer(defs[len(defs)-1].Parent().Value(), nil)
	if err != nil {
		fmt.Fprintf(s.out, "error: %s\n", err)
		return false
	}
	formatValuesText(s.out, toCLIValues(vals))
	return false
}

func (s *replSession) command(ctx context.Context, fields []string) bool {
	switch fields[0] {
	case ":quit", ":q", ":exit":
		return true
	case ":reset":
		s.source = ""
		s.engine.RegisterSource(replModule, "", false)
	case ":source":
		fmt.Fprint(s.out, s.source)
	case ":mro":
		if len(fields) != 2 {
			fmt.Fprintln(s.out, "usage: :mro <Class>")
			return false
		}
		mod, err := s.engine.ParseSource(ctx, replModule, s.source)
		if err != nil {
			fmt.Fprintf(s.out, "error: %s\n", err)
			return false
		}
		cls, err := s.engine.Class(mod, fields[1])
		if err != nil {
			fmt.Fprintf(s.out, "error: %s\n", err)
			return false
		}
		linear, err := s.engine.ComputeMROStrict(cls)
		if err != nil {
			fmt.Fprintf(s.out, "error: %s\n", err)
			return false
		}
		names := make([]string, len(linear))
		for i, c := range linear {
			names[i] = c.Name
		}
		fmt.Fprintln(s.out, strings.Join(names, " -> "))
	default:
		fmt.Fprintf(s.out, "unknown command %s\n", fields[0])
	}
	return false
}

var statementKeywords = []string{
	"def ", "class ", "import ", "from ", "if ", "for ", "while ", "with ", "try:",
	"async ", "global ", "nonlocal ", "del ", "pass", "return", "raise ", "assert ", "@",
}

// isStatement reports whether input binds or defines something rather than
// being a bare expression.
func isStatement(input string) bool {
	t := strings.TrimSpace(input)
	for _, kw := range statementKeywords {
		if strings.HasPrefix(t, kw) {
			return true
		}
	}
	return hasTopLevelAssign(t)
}

// hasTopLevelAssign finds an assignment operator outside brackets and
// string literals.
func hasTopLevelAssign(s string) bool {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == '=' && depth == 0:
			prev, next := byte(0), byte(0)
			if i > 0 {
				prev = s[i-1]
			}
			if i+1 < len(s) {
				next = s[i+1]
			}
			if next == '=' {
				i++
				continue
			}
			if prev != 0 && strings.IndexByte("=!<>", prev) >= 0 {
				continue
			}
			return true
		}
	}
	return false
}
