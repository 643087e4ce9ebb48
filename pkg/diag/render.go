package diag

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// Format selects how diagnostics are rendered.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a --diagnostics-format value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatJSON, FormatYAML:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown diagnostics format %q (want text, json or yaml)", s)
}

// Write renders items to w. Color only applies to the text format.
func Write(w io.Writer, items []Diagnostic, format Format, colorize bool) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if items == nil {
			items = []Diagnostic{}
		}
		return enc.Encode(items)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(items); err != nil {
			return err
		}
		return enc.Close()
	default:
		return writeText(w, items, colorize)
	}
}

func writeText(w io.Writer, items []Diagnostic, colorize bool) error {
	sevColors := map[Severity]*color.Color{
		SevInfo:    color.New(color.FgCyan),
		SevWarning: color.New(color.FgYellow, color.Bold),
		SevError:   color.New(color.FgRed, color.Bold),
		SevFatal:   color.New(color.FgMagenta, color.Bold),
	}
	code := color.New(color.Faint)
	for _, c := range append([]*color.Color{code}, sevColors[SevInfo], sevColors[SevWarning], sevColors[SevError], sevColors[SevFatal]) {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	for _, d := range items {
		sev := d.Severity.String()
		if c, ok := sevColors[d.Severity]; ok {
			sev = c.Sprint(sev)
		}
		if _, err := fmt.Fprintf(w, "%s: %s: %s %s\n", d.Pos, sev, d.Message,
			code.Sprintf("[%s %s]", d.Code.ID(), d.Code)); err != nil {
			return err
		}
	}
	return nil
}

// Summary returns a one-line count by severity, e.g. "2 errors, 1 warning".
func Summary(items []Diagnostic) string {
	var counts [SevFatal + 1]int
	for _, d := range items {
		if d.Severity <= SevFatal {
			counts[d.Severity]++
		}
	}
	plural := func(n int, word string) string {
		if n == 1 {
			return fmt.Sprintf("%d %s", n, word)
		}
		return fmt.Sprintf("%d %ss", n, word)
	}
	s := plural(counts[SevError]+counts[SevFatal], "error") + ", " + plural(counts[SevWarning], "warning")
	if counts[SevInfo] > 0 {
		s += ", " + plural(counts[SevInfo], "note")
	}
	return s
}
