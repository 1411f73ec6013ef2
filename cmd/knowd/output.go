package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

// printResults writes a ranked result list, notes first.
func printResults(w io.Writer, res searchResponse) {
	if len(res.Notes) == 0 && len(res.Links) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}
	for _, n := range res.Notes {
		fmt.Fprintf(w, "%s %s [%.2f]%s\n",
			colorize(colorCyan, "note"), colorize(colorBold, n.Title), n.RelevanceScore, tagSuffix(n.Tags))
	}
	for _, l := range res.Links {
		fmt.Fprintf(w, "%s %s [%.2f]%s\n  %s\n",
			colorize(colorCyan, "link"), colorize(colorBold, l.Title), l.RelevanceScore, tagSuffix(l.Tags), l.URL)
	}
}

func tagSuffix(tags []tagView) string {
	if len(tags) == 0 {
		return ""
	}
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return "  #" + strings.Join(names, " #")
}
