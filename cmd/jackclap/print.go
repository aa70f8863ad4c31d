package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/justyntemme/jackclap/pkg/clap"
	"github.com/justyntemme/jackclap/pkg/debug"
)

// styles renders for a specific writer so colors are dropped when it is not
// a terminal.
type styles struct {
	title lipgloss.Style
	id    lipgloss.Style
	label lipgloss.Style
	warn  lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		id:    r.NewStyle().Foreground(lipgloss.Color("10")),
		label: r.NewStyle().Foreground(lipgloss.Color("8")),
		warn:  r.NewStyle().Foreground(lipgloss.Color("11")),
	}
}

// orPlaceholder returns s, or placeholder when the plugin left s unset.
func orPlaceholder(s, placeholder string) string {
	if s == "" {
		return placeholder
	}
	return s
}

func printPlugins(w io.Writer, bundle *clap.Bundle, infos []clap.Info) {
	s := newStyles(w)
	fmt.Fprintf(w, "%s %s (CLAP %s)\n", s.title.Render("Bundle"), bundle.Path(), bundle.Version())
	for _, info := range infos {
		fmt.Fprintln(w, s.label.Render("---"))
		fmt.Fprintf(w, "%s %s\n", s.label.Render("ID:     "), s.id.Render(orPlaceholder(info.ID, "(no id)")))
		fmt.Fprintf(w, "%s %s\n", s.label.Render("Name:   "), orPlaceholder(info.Name, "(unnamed)"))
		fmt.Fprintf(w, "%s %s\n", s.label.Render("Vendor: "), orPlaceholder(info.Vendor, "(unknown vendor)"))
		fmt.Fprintf(w, "%s %s\n", s.label.Render("Version:"), orPlaceholder(info.Version, "(unknown version)"))
		if len(info.Features) > 0 {
			fmt.Fprintf(w, "%s %s\n", s.label.Render("Features:"), strings.Join(info.Features, ", "))
		}
	}
}

func printBundles(w io.Writer, dirs, bundles []string) {
	s := newStyles(w)
	fmt.Fprintln(w, s.title.Render("Search paths"))
	for _, dir := range dirs {
		fmt.Fprintf(w, "  %s\n", s.label.Render(dir))
	}
	fmt.Fprintln(w, s.title.Render("Bundles"))
	if len(bundles) == 0 {
		fmt.Fprintf(w, "  %s\n", s.warn.Render("none"))
		return
	}
	for _, b := range bundles {
		fmt.Fprintf(w, "  %s\n", b)
	}
}

func printAnalysis(w io.Writer, ports []string, results []debug.AnalysisResult) {
	if len(results) == 0 {
		return
	}
	s := newStyles(w)
	analyzer := debug.NewAudioAnalyzer()
	fmt.Fprintln(w, s.title.Render("Output"))
	for ch, r := range results {
		name := fmt.Sprintf("ch%d", ch)
		if ch < len(ports) {
			name = ports[ch]
		}
		fmt.Fprintf(w, "  %-8s peak %6.1f dBFS  rms %6.1f dBFS  %d samples\n",
			name, debug.DBFS(r.Peak), debug.DBFS(r.RMS), r.Samples)
		for _, issue := range analyzer.Issues(r, name) {
			fmt.Fprintf(w, "    %s\n", s.warn.Render(issue))
		}
	}
}
