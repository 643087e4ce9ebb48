package diag

import "fmt"

// Code identifies the kind of a diagnostic.
type Code uint16

const (
	UnknownCode Code = 0

	// Literal and macro evaluation
	MalformedLiteral     Code = 1001
	UnsupportedMacroBody Code = 1002
	CastDropped          Code = 1003
	PreprocessorError    Code = 1004

	// Declaration parsing
	UnsupportedDeclaration Code = 2001
	TokenizeError          Code = 2002

	// Semantic model
	UnresolvedType              Code = 3001
	DuplicateDefinitionConflict Code = 3002
	LayoutCycle                 Code = 3003
	IncompleteInterface         Code = 3004
	IncompleteType              Code = 3005
	LinkageSkipped              Code = 3006

	// Blocklist and filtering
	BlocklistRewrite Code = 4001
)

var codeNames = map[Code]string{
	UnknownCode:                 "Unknown",
	MalformedLiteral:            "MalformedLiteral",
	UnsupportedMacroBody:        "UnsupportedMacroBody",
	CastDropped:                 "CastDropped",
	PreprocessorError:           "PreprocessorError",
	UnsupportedDeclaration:      "UnsupportedDeclaration",
	TokenizeError:               "TokenizeError",
	UnresolvedType:              "UnresolvedType",
	DuplicateDefinitionConflict: "DuplicateDefinitionConflict",
	LayoutCycle:                 "LayoutCycle",
	IncompleteInterface:         "IncompleteInterface",
	IncompleteType:              "IncompleteType",
	LinkageSkipped:              "LinkageSkipped",
	BlocklistRewrite:            "BlocklistRewrite",
}

var codeSeverity = map[Code]Severity{
	MalformedLiteral:            SevError,
	UnsupportedMacroBody:        SevWarning,
	CastDropped:                 SevWarning,
	PreprocessorError:           SevWarning,
	UnsupportedDeclaration:      SevWarning,
	TokenizeError:               SevFatal,
	UnresolvedType:              SevInfo,
	DuplicateDefinitionConflict: SevError,
	LayoutCycle:                 SevError,
	IncompleteInterface:         SevWarning,
	IncompleteType:              SevError,
	LinkageSkipped:              SevWarning,
	BlocklistRewrite:            SevInfo,
}

// ID returns the stable short identifier, e.g. MAC1001.
func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("MAC%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("DEC%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("SEM%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("OPQ%04d", ic)
	}
	return "E0000"
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return codeNames[UnknownCode]
}

// DefaultSeverity is the severity New assigns to the code.
func (c Code) DefaultSeverity() Severity {
	if s, ok := codeSeverity[c]; ok {
		return s
	}
	return SevError
}

// MarshalText renders the code by name.
func (c Code) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses a code name.
func (c *Code) UnmarshalText(text []byte) error {
	for code, name := range codeNames {
		if name == string(text) {
			*c = code
			return nil
		}
	}
	return fmt.Errorf("unknown diagnostic code %q", text)
}
