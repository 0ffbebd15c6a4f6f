package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jward/pyrite"
	"github.com/jward/pyrite/internal/nodes"
)

var inferCmd = &cobra.Command{
	Use:   "infer <file> <line> <col>",
	Short: "Infer the values of the expression at a position",
	Long:  "Infers the innermost expression spanning the position. Lines are 1-based, columns 0-based.",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := filepath.Abs(args[0])
		if err != nil {
			return outputError("infer", err)
		}
		line, err := parseIntArg(args[1], "line")
		if err != nil {
			return outputError("infer", err)
		}
		col, err := parseIntArg(args[2], "col")
		if err != nil {
			return outputError("infer", err)
		}

		engine, err := engineForFile(file)
		if err != nil {
			return outputError("infer", err)
		}
		defer engine.Close()

		model, err := engine.File(context.Background(), file)
		if err != nil {
			return outputError("infer", err)
		}
		n := nodes.NodeAt(model.Module, line, col)
		if n == nil {
			return outputError("infer", fmt.Errorf("no node at %s:%d:%d", file, line, col))
		}
		vals, err := engine.Infer(n, nil)
		if err != nil {
			return outputError("infer", err)
		}
		return outputResult(CLIResult{Command: "infer", Results: CLIInference{
			File: file, Line: line, Col: col, Node: n.Kind().String(), Values: toCLIValues(vals),
			Build: toCLIBuild(model),
		}})
	},
}

var mroCmd = &cobra.Command{
	Use:   "mro <file> <class>",
	Short: "Compute the MRO of a class defined in a file",
	Long:  "Computes the C3 linearisation of a class, named relative to its module (Outer.Inner for nested classes). Fails when no consistent MRO exists.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := filepath.Abs(args[0])
		if err != nil {
			return outputError("mro", err)
		}
		engine, err := engineForFile(file)
		if err != nil {
			return outputError("mro", err)
		}
		defer engine.Close()

		model, err := engine.File(context.Background(), file)
		if err != nil {
			return outputError("mro", err)
		}
		cls, err := engine.Class(model.Module, args[1])
		if err != nil {
			return outputError("mro", err)
		}
		linear, err := engine.ComputeMROStrict(cls)
		if err != nil {
			return outputError("mro", err)
		}
		out := CLIMRO{Class: cls.QualName(), Build: toCLIBuild(model)}
		for _, c := range linear {
			out.MRO = append(out.MRO, c.QualName())
		}
		return outputResult(CLIResult{Command: "mro", Results: out})
	},
}

// engineForFile opens an index-less Engine for the project containing file.
func engineForFile(file string) (*pyrite.Engine, error) {
	e, _, err := openEngine(findRepoRoot(filepath.Dir(file)), false)
	return e, err
}

func toCLIBuild(model *pyrite.Model) *CLIBuild {
	return &CLIBuild{Module: model.Identity.Name, ID: model.BuildID.String(), Version: model.Version}
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

// toCLIValues describes inferred values for output.
func toCLIValues(vals []pyrite.Value) []CLIValue {
	out := make([]CLIValue, 0, len(vals))
	for _, v := range vals {
		cv := CLIValue{Type: v.PyType()}
		switch v := v.(type) {
		case *pyrite.Instance:
			cv.Class = v.Class.QualName()
		case *pyrite.BoundMethod:
			cv.Func = v.Func.QualName()
		case *pyrite.UnboundMethod:
			cv.Func = v.Func.QualName()
		case *pyrite.Node:
			switch v.Kind() {
			case nodes.Const:
				cv.Value = nodes.FormatLiteral(v.Literal)
			case nodes.ClassDef, nodes.FunctionDef, nodes.Module:
				cv.Value = v.QualName()
			default:
				cv.Value = v.Kind().String()
			}
		}
		out = append(out, cv)
	}
	return out
}
