package main

// CLIResult is the top-level JSON envelope for every command with output.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIValue is one inferred value.
type CLIValue struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
	Class string `json:"class,omitempty"`
	Func  string `json:"func,omitempty"`
}

// CLIInference is the result of inferring one expression.
type CLIInference struct {
	File   string     `json:"file,omitempty"`
	Line   int        `json:"line,omitempty"`
	Col    int        `json:"col,omitempty"`
	Node   string     `json:"node"`
	Values []CLIValue `json:"values"`
	Build  *CLIBuild  `json:"build,omitempty"`
}

// CLIBuild identifies the model build an answer came from. Two answers
// with the same build ID were computed against the same parse.
type CLIBuild struct {
	Module  string `json:"module"`
	ID      string `json:"id"`
	Version uint64 `json:"version"`
}

// CLIModule is a JSON-friendly module record.
type CLIModule struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Path      string `json:"path,omitempty"`
	Package   bool   `json:"package,omitempty"`
	Synthetic bool   `json:"synthetic,omitempty"`
	Lines     int    `json:"lines"`
}

// CLIClass is a JSON-friendly class record.
type CLIClass struct {
	ID       int64    `json:"id"`
	QualName string   `json:"qualname"`
	Module   string   `json:"module"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line"`
	Bases    []string `json:"bases,omitempty"`
	MRO      []string `json:"mro,omitempty"`
	MROError string   `json:"mro_error,omitempty"`
}

// CLISymbol is a JSON-friendly symbol record.
type CLISymbol struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Scope  string `json:"scope"`
	Module string `json:"module"`
	File   string `json:"file,omitempty"`
	Line   int    `json:"line"`
}

// CLIImport is a JSON-friendly import edge.
type CLIImport struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Alias    string `json:"alias,omitempty"`
	Line     int    `json:"line"`
	Resolved bool   `json:"resolved"`
}

// CLIMRO is a class MRO computed on the fly.
type CLIMRO struct {
	Class string    `json:"class"`
	MRO   []string  `json:"mro"`
	Build *CLIBuild `json:"build,omitempty"`
}

// CLIProjectSummary is the index overview.
type CLIProjectSummary struct {
	Modules     int            `json:"modules"`
	Packages    int            `json:"packages"`
	Lines       int            `json:"lines"`
	Classes     int            `json:"classes"`
	MROErrors   int            `json:"mro_errors"`
	Symbols     int            `json:"symbols"`
	Imports     int            `json:"imports"`
	KindCounts  map[string]int `json:"kind_counts"`
	LastIndexed string         `json:"last_indexed,omitempty"`
}
