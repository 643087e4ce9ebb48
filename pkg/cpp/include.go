package cpp

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrIncludeNotFound is wrapped by every *IncludeError.
var ErrIncludeNotFound = errors.New("include not found")

// IncludeKind tells "file" from <file>.
type IncludeKind uint8

const (
	IncludeQuoted IncludeKind = iota
	IncludeAngled
)

func (k IncludeKind) String() string {
	if k == IncludeAngled {
		return "angled"
	}
	return "quoted"
}

// Include is one #include seen in an active region. Includes are recorded,
// never spliced into the unit.
type Include struct {
	Name string
	Kind IncludeKind
	Loc  SourceLoc
}

// Spelling renders the header name as it was written.
func (inc Include) Spelling() string {
	if inc.Kind == IncludeAngled {
		return "<" + inc.Name + ">"
	}
	return `"` + inc.Name + `"`
}

// ParseHeaderName splits a header name as written, "x.h" or <x.h>.
func ParseHeaderName(spelled string) (string, IncludeKind, error) {
	if len(spelled) >= 2 {
		inner := spelled[1 : len(spelled)-1]
		switch {
		case spelled[0] == '<' && spelled[len(spelled)-1] == '>':
			return inner, IncludeAngled, nil
		case spelled[0] == '"' && spelled[len(spelled)-1] == '"':
			return inner, IncludeQuoted, nil
		}
	}
	return "", IncludeQuoted, fmt.Errorf("#include expects \"FILENAME\" or <FILENAME>, got %s", spelled)
}

// SearchPath finds included headers in a list of -I directories.
type SearchPath []string

// Resolve finds inc as included from the file named from. Quoted names try
// the directory of from before the search path.
func (sp SearchPath) Resolve(from string, inc Include) (string, error) {
	dirs := []string(sp)
	if inc.Kind == IncludeQuoted && from != "" {
		dirs = append([]string{filepath.Dir(from)}, dirs...)
	}
	for _, dir := range dirs {
		path := filepath.Join(dir, inc.Name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return filepath.Clean(path), nil
		}
	}
	return "", &IncludeError{Include: inc, Searched: dirs}
}

// IncludeError reports a header that no directory provides.
type IncludeError struct {
	Include
	Searched []string
}

func (e *IncludeError) Error() string {
	return fmt.Sprintf("%s: %v (searched %s)", e.Spelling(), ErrIncludeNotFound, strings.Join(e.Searched, ", "))
}

func (e *IncludeError) Unwrap() error {
	return ErrIncludeNotFound
}
