// Package tty decides whether terminal colors should be used for a writer.
package tty

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// IsTerminal reports whether w is a file attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Color returns a color for w that is only active when w is a terminal.
func Color(w io.Writer, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if IsTerminal(w) {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}
