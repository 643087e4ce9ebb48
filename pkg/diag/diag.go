// Package diag collects the structured diagnostics produced while generating bindings.
package diag

import (
	"fmt"
	"sort"
	"strings"
)

// Severity defines the importance of a diagnostic.
type Severity uint8

const (
	// SevInfo is for informational diagnostics.
	SevInfo Severity = iota
	// SevWarning is for constructs that were skipped or degraded.
	SevWarning
	SevError
	// SevFatal aborts the whole run.
	SevFatal
)

var severityNames = []string{"info", "warning", "error", "fatal"}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return "unknown"
}

// MarshalText renders the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a severity name.
func (s *Severity) UnmarshalText(text []byte) error {
	for i, name := range severityNames {
		if name == string(text) {
			*s = Severity(i)
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", text)
}

// Pos is a source position. The zero Pos means the diagnostic is not tied to a file.
type Pos struct {
	File string `json:"file,omitempty" yaml:"file,omitempty" msgpack:"file"`
	Line int    `json:"line,omitempty" yaml:"line,omitempty" msgpack:"line"`
	Col  int    `json:"col,omitempty" yaml:"col,omitempty" msgpack:"col"`
}

func (p Pos) String() string {
	if p.File == "" {
		return "<run>"
	}
	if p.Line == 0 {
		return p.File
	}
	if p.Col == 0 {
		return fmt.Sprintf("%s:%d", p.File, p.Line)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Diagnostic is one reported condition.
type Diagnostic struct {
	Severity Severity `json:"severity" yaml:"severity" msgpack:"severity"`
	Code     Code     `json:"code" yaml:"code" msgpack:"code"`
	Pos      Pos      `json:"pos" yaml:"pos" msgpack:"pos"`
	// Subject is the qualified name of the macro or declaration involved, if any.
	Subject string `json:"subject,omitempty" yaml:"subject,omitempty" msgpack:"subject"`
	Message string `json:"message" yaml:"message" msgpack:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s [%s]", d.Pos, d.Severity, d.Message, d.Code)
}

// New builds a diagnostic with the default severity of its code.
func New(code Code, pos Pos, subject, format string, args ...any) Diagnostic {
	return Diagnostic{
		Severity: code.DefaultSeverity(),
		Code:     code,
		Pos:      pos,
		Subject:  subject,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Bag accumulates diagnostics. A Bag is not safe for concurrent use; parallel
// stages each fill their own and merge afterwards.
type Bag struct {
	items []Diagnostic
}

// NewBag returns an empty bag.
func NewBag() *Bag {
	return &Bag{}
}

// Add appends a diagnostic.
func (b *Bag) Add(d Diagnostic) {
	b.items = append(b.items, d)
}

// Report appends a diagnostic built with New.
func (b *Bag) Report(code Code, pos Pos, subject, format string, args ...any) {
	b.Add(New(code, pos, subject, format, args...))
}

// Merge appends every diagnostic of other.
func (b *Bag) Merge(other *Bag) {
	if other == nil {
		return
	}
	b.items = append(b.items, other.items...)
}

// Len returns the number of diagnostics.
func (b *Bag) Len() int {
	return len(b.items)
}

// Items returns the diagnostics. The slice must not be modified.
func (b *Bag) Items() []Diagnostic {
	return b.items
}

// HasErrors reports whether any diagnostic is an error or worse.
func (b *Bag) HasErrors() bool {
	return HasErrors(b.items)
}

// HasErrors reports whether any diagnostic in items is an error or worse.
func HasErrors(items []Diagnostic) bool {
	for i := range items {
		if items[i].Severity >= SevError {
			return true
		}
	}
	return false
}

// Sort orders by file, line, column, severity (desc), code, subject and message,
// so output does not depend on goroutine scheduling.
func (b *Bag) Sort() {
	sort.SliceStable(b.items, func(i, j int) bool {
		di, dj := b.items[i], b.items[j]
		if di.Pos.File != dj.Pos.File {
			return di.Pos.File < dj.Pos.File
		}
		if di.Pos.Line != dj.Pos.Line {
			return di.Pos.Line < dj.Pos.Line
		}
		if di.Pos.Col != dj.Pos.Col {
			return di.Pos.Col < dj.Pos.Col
		}
		if di.Severity != dj.Severity {
			return di.Severity > dj.Severity
		}
		if di.Code != dj.Code {
			return di.Code < dj.Code
		}
		if di.Subject != dj.Subject {
			return di.Subject < dj.Subject
		}
		return di.Message < dj.Message
	})
}

// Dedup drops repeated diagnostics with the same code, position, subject and message.
func (b *Bag) Dedup() {
	seen := make(map[string]bool)
	items := make([]Diagnostic, 0, len(b.items))
	for _, d := range b.items {
		key := strings.Join([]string{d.Code.String(), d.Pos.String(), d.Subject, d.Message}, "\x00")
		if seen[key] {
			continue
		}
		seen[key] = true
		items = append(items, d)
	}
	b.items = items
}

// Filter returns the diagnostics with the given code.
func (b *Bag) Filter(code Code) []Diagnostic {
	var out []Diagnostic
	for _, d := range b.items {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}
