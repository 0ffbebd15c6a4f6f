package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// encodeResult renders a result as indented JSON. A nil result is written
// as an empty list so consumers can always iterate it. With --select only
// the value at that gjson path is written.
func encodeResult(result CLIResult) ([]byte, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	if result.Results == nil {
		if raw, err = sjson.SetRawBytes(raw, "results", []byte("[]")); err != nil {
			return nil, err
		}
	}
	if flagSelect != "" {
		sel := gjson.GetBytes(raw, flagSelect)
		if !sel.Exists() {
			return nil, fmt.Errorf("--select %q matches nothing", flagSelect)
		}
		raw = []byte(sel.Raw)
	}
	return pretty.PrettyOptions(raw, &pretty.Options{Width: 100, Indent: "  "}), nil
}

// outputResult writes a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(os.Stdout, result)
	}
	out, err := encodeResult(result)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

// outputError reports err in the selected format and marks it handled.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	if out, encErr := encodeResult(CLIResult{Command: command, Error: err.Error()}); encErr == nil {
		os.Stdout.Write(out)
	}
	return err
}

func formatValuesText(w io.Writer, values []CLIValue) {
	for _, v := range values {
		switch {
		case v.Class != "":
			fmt.Fprintf(w, "%s instance of %s\n", v.Type, v.Class)
		case v.Func != "":
			fmt.Fprintf(w, "%s %s\n", v.Type, v.Func)
		case v.Value != "":
			fmt.Fprintf(w, "%s %s\n", v.Type, v.Value)
		default:
			fmt.Fprintln(w, v.Type)
		}
	}
}

func formatModulesText(w io.Writer, mods []CLIModule) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLINES\tPATH")
	for _, m := range mods {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", m.ID, m.Name, m.Lines, m.Path)
	}
	tw.Flush()
}

func formatClassesText(w io.Writer, classes []CLIClass) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CLASS\tBASES\tLINE\tFILE")
	for _, c := range classes {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", c.QualName, strings.Join(c.Bases, ", "), c.Line, c.File)
	}
	tw.Flush()
}

func formatSymbolsText(w io.Writer, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tSCOPE\tLINE\tFILE")
	for _, s := range syms {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", s.Name, s.Kind, s.Scope, s.Line, s.File)
	}
	tw.Flush()
}

func formatImportsText(w io.Writer, imports []CLIImport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tTO\tALIAS\tLINE")
	for _, imp := range imports {
		to := imp.To
		if !imp.Resolved {
			to += " (external)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", imp.From, to, imp.Alias, imp.Line)
	}
	tw.Flush()
}

func formatSummaryText(w io.Writer, s CLIProjectSummary) {
	fmt.Fprintln(w, "Project Summary")
	fmt.Fprintln(w, "===============")
	fmt.Fprintf(w, "Modules:  %d (%d packages, %d lines)\n", s.Modules, s.Packages, s.Lines)
	fmt.Fprintf(w, "Classes:  %d (%d without an MRO)\n", s.Classes, s.MROErrors)
	fmt.Fprintf(w, "Imports:  %d\n", s.Imports)
	fmt.Fprintf(w, "Symbols:  %d\n", s.Symbols)
	kinds := make([]string, 0, len(s.KindCounts))
	for k := range s.KindCounts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %s: %d\n", k, s.KindCounts[k])
	}
	if s.LastIndexed != "" {
		fmt.Fprintf(w, "Last indexed: %s\n", s.LastIndexed)
	}
}

// outputResultText dispatches to the text formatter for the result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case CLIInference:
		formatValuesText(w, v.Values)
	case CLIMRO:
		fmt.Fprintln(w, strings.Join(v.MRO, " -> "))
	case []string:
		for _, s := range v {
			fmt.Fprintln(w, s)
		}
	case []CLIModule:
		formatModulesText(w, v)
	case []CLIClass:
		formatClassesText(w, v)
	case CLIClass:
		if v.MROError != "" {
			fmt.Fprintf(w, "%s: no MRO: %s\n", v.QualName, v.MROError)
		} else {
			fmt.Fprintln(w, strings.Join(v.MRO, " -> "))
		}
	case []CLISymbol:
		formatSymbolsText(w, v)
	case []CLIImport:
		formatImportsText(w, v)
	case CLIProjectSummary:
		formatSummaryText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	if result.TotalCount != nil {
		count := *result.TotalCount
		if shown := resultLen(result.Results); shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}
	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLIModule:
		return len(r)
	case []CLIClass:
		return len(r)
	case []CLISymbol:
		return len(r)
	case []CLIImport:
		return len(r)
	case []string:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
