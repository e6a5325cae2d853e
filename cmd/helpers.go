package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"ssotoken/internal/app"
)

// Output formats.
const (
	outputTable = "table"
	outputJSON  = "json"
)

func newApplication(cmd *cobra.Command, opts *rootOptions) (*app.Application, error) {
	cfg := app.NewConfig(opts.debug, opts.configPath)
	cfg.Version = version
	cfg.LogOutput = cmd.ErrOrStderr()

	application, err := app.NewApplication(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return application, nil
}

func validateOutput(format string) error {
	if format != outputTable && format != outputJSON {
		return fmt.Errorf("unsupported output format %q (use %s or %s)", format, outputTable, outputJSON)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTable creates a new table with standard styling
func newTable(w io.Writer, headers ...string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)

	row := make(table.Row, 0, len(headers))
	for _, h := range headers {
		row = append(row, text.FgHiCyan.Sprint(h))
	}
	t.AppendHeader(row)
	return t
}
