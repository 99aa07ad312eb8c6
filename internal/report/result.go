// Package report renders rebuild results and schema snapshots for the CLI.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hurou927/schemashift/internal/evolve"
)

// Output formats.
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatYAML    = "yaml"
	FormatMermaid = "mermaid"
)

type resultJSON struct {
	*evolve.Result
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
	ExitCode  int    `json:"exit_code"`
}

// WriteResult renders res in format (text or json).
func WriteResult(w io.Writer, res *evolve.Result, format string) error {
	switch format {
	case FormatText, "":
		return writeResultText(w, res)
	case FormatJSON:
		out := resultJSON{Result: res, ErrorKind: evolve.Kind(res.Err), ExitCode: res.ExitCode()}
		if res.Err != nil {
			out.Error = res.Err.Error()
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	default:
		return fmt.Errorf("unknown format: %s (supported: text, json)", format)
	}
}

func writeResultText(w io.Writer, res *evolve.Result) error {
	var b strings.Builder

	verb := "migrate"
	if res.DryRun {
		verb = "dry run"
	}
	if res.Status == evolve.StatusSuccess {
		fmt.Fprintf(&b, "%s %s: %s\n", verb, res.Table, res.Status)
	} else {
		fmt.Fprintf(&b, "%s %s: %s at %s (%s)\n", verb, res.Table, res.Status, res.Stage, evolve.Kind(res.Err))
	}

	if res.DryRun {
		fmt.Fprintf(&b, "  rows: %d\n", res.RowsBefore)
	} else {
		fmt.Fprintf(&b, "  rows: %d -> %d\n", res.RowsBefore, res.RowsAfter)
	}
	if res.Shadow != "" {
		fmt.Fprintf(&b, "  shadow: %s\n", res.Shadow)
	}
	for _, d := range res.Dependents {
		fmt.Fprintf(&b, "  referenced by: %s\n", d)
	}
	for _, wn := range res.Warnings {
		fmt.Fprintf(&b, "  warning: %s\n", wn)
	}
	if res.Err != nil {
		fmt.Fprintf(&b, "  error: %v\n", res.Err)
	}
	if res.DryRun && len(res.Statements) > 0 {
		b.WriteString("\n")
		for _, stmt := range res.Statements {
			fmt.Fprintf(&b, "%s;\n\n", stmt)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
