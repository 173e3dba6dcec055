package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
)

// styleOutput enables pterm styling, only when stdout is a terminal.
var styleOutput = isTerminal()

// isTerminal reports whether stdout is attached to a terminal
func isTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// formatBold returns the string formatted as bold using pterm
func formatBold(s string) string {
	if !styleOutput {
		return s
	}
	return pterm.Bold.Sprint(s)
}

// renderTable renders rows as an aligned table, the first row being the
// header. Styling is dropped when stdout is not a terminal.
func renderTable(rows [][]string) (string, error) {
	table := pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData(rows))
	if !styleOutput {
		plain := pterm.NewStyle()
		table = table.WithStyle(plain).WithHeaderStyle(plain).WithSeparatorStyle(plain)
	}
	return table.Srender()
}
