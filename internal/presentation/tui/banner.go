package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the deployd banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"     _            _             _ ", "#34d399"},
		{"  __| | ___ _ __ | | ___  _   _| |", "#2dd4bf"},
		{" / _` |/ _ \\ '_ \\| |/ _ \\| | | | |", "#22d3ee"},
		{"| (_| |  __/ |_) | | (_) | |_| |_|", "#38bdf8"},
		{" \\__,_|\\___| .__/|_|\\___/ \\__, (_)", "#60a5fa"},
		{"           |_|            |___/   ", "#818cf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	if version != "" {
		fmt.Fprintln(w, termenv.String("  v"+version).Faint())
	}
	fmt.Fprintln(w)
}

// StatusColor colors a death status label: green for a clean exit, red otherwise.
func StatusColor(label string, success bool) termenv.Style {
	p := termenv.ColorProfile()
	if success {
		return termenv.String(label).Foreground(p.Color("#22c55e"))
	}
	return termenv.String(label).Foreground(p.Color("#ef4444"))
}
