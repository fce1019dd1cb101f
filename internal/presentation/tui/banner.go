package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the tickler banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"  _   _      _    _           ", "#818cf8"},
		{" | |_(_) ___| | _| | ___ _ __ ", "#a78bfa"},
		{" | __| |/ __| |/ / |/ _ \\ '__|", "#c084fc"},
		{" | |_| | (__|   <| |  __/ |   ", "#e879f9"},
		{"  \\__|_|\\___|_|\\_\\_|\\___|_|   ", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  "+version).Faint())
	fmt.Fprintln(w)
}
