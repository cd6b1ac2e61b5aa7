package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/neurodesk/tmplc/pkg/compiler"
)

var (
	locColor   = color.New(color.Bold)
	errorColor = color.New(color.FgRed, color.Bold)
	caretColor = color.New(color.FgGreen, color.Bold)
)

// printDiagnostic writes err with the offending source line and a caret
// under the reported column. source returns the text of a root template or
// partial by name.
func printDiagnostic(w io.Writer, err error, rootFile string, source func(file string) (string, bool)) {
	file, pos, ok := compiler.Locate(err, rootFile)
	if !ok {
		fmt.Fprintf(w, "%s %s\n", locColor.Sprintf("%s:", rootFile), errorColor.Sprint("error:")+" "+err.Error())
		return
	}
	fmt.Fprintf(w, "%s %s\n",
		locColor.Sprintf("%s:%d:%d:", file, pos.Line, pos.Col),
		errorColor.Sprint("error:")+" "+err.Error())

	src, found := source(file)
	if !found {
		return
	}
	line, ok := sourceLine(src, pos.Line)
	if !ok {
		return
	}
	fmt.Fprintf(w, "  %s\n", line)
	fmt.Fprintf(w, "  %s%s\n", caretPadding(line, pos.Col), caretColor.Sprint("^"))
}

// sourceLine returns line n, counting from 1, without its terminator.
func sourceLine(src string, n int) (string, bool) {
	if n < 1 {
		return "", false
	}
	lines := strings.Split(src, "\n")
	if n > len(lines) {
		return "", false
	}
	return strings.TrimRight(lines[n-1], "\r"), true
}

// caretPadding returns the blank prefix that puts a caret under byte column
// col of line. Tabs are kept so the caret lines up in any tab width, and
// wide runes take their display width.
func caretPadding(line string, col int) string {
	end := min(max(col-1, 0), len(line))
	var b strings.Builder
	for _, r := range line[:end] {
		if r == '\t' {
			b.WriteByte('\t')
			continue
		}
		b.WriteString(strings.Repeat(" ", runewidth.RuneWidth(r)))
	}
	return b.String()
}
