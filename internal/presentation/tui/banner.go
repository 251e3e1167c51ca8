package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{`               _ _       _     _           _   `, "#34d399"},
	{`  _____      _(_) |_ ___| |__ | |__   ___ | |_ `, "#2dd4bf"},
	{` / __\ \ /\ / / | __/ __| '_ \| '_ \ / _ \| __|`, "#22d3ee"},
	{` \__ \\ V  V /| | || (__| | | | |_) | (_) | |_ `, "#38bdf8"},
	{` |___/ \_/\_/ |_|\__\___|_| |_|_.__/ \___/ \__|`, "#60a5fa"},
}

// PrintBanner writes the startup banner followed by the version and address.
func PrintBanner(w io.Writer, version, addr string) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s  %s\n\n",
		out.String("v"+version).Faint(),
		out.String("listening on "+addr).Bold())
}
