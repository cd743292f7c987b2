package main

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
)

// newTable builds a plain, undecorated table writer to stdout. No
// emoji or ANSI color.
func newTable(header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(header)
	t.SetStyle(table.StyleLight)
	t.Style().Options.SeparateRows = false
	return t
}
