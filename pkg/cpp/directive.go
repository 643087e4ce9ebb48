package cpp

import (
	"fmt"
	"strconv"
	"strings"
)

// DirectiveType identifies a preprocessing directive.
type DirectiveType int

const (
	DIR_EMPTY DirectiveType = iota // a lone #
	DIR_DEFINE
	DIR_UNDEF
	DIR_INCLUDE
	DIR_IF
	DIR_IFDEF
	DIR_IFNDEF
	DIR_ELIF
	DIR_ELSE
	DIR_ENDIF
	DIR_LINE
	DIR_LINEMARKER // # 12 "file"
	DIR_ERROR
	DIR_WARNING
	DIR_PRAGMA
)

var directiveNames = map[string]DirectiveType{
	"define":       DIR_DEFINE,
	"undef":        DIR_UNDEF,
	"include":      DIR_INCLUDE,
	"include_next": DIR_INCLUDE,
	"import":       DIR_INCLUDE,
	"if":           DIR_IF,
	"ifdef":        DIR_IFDEF,
	"ifndef":       DIR_IFNDEF,
	"elif":         DIR_ELIF,
	"else":         DIR_ELSE,
	"endif":        DIR_ENDIF,
	"line":         DIR_LINE,
	"error":        DIR_ERROR,
	"warning":      DIR_WARNING,
	"pragma":       DIR_PRAGMA,
}

func (t DirectiveType) String() string {
	for name, dt := range directiveNames {
		if dt == t && name != "include_next" && name != "import" {
			return name
		}
	}
	switch t {
	case DIR_EMPTY:
		return "empty"
	case DIR_LINEMARKER:
		return "linemarker"
	}
	return "unknown"
}

// Directive is a parsed preprocessing directive line.
type Directive struct {
	Type DirectiveType
	Loc  SourceLoc

	Identifier string // #define, #undef, #ifdef, #ifndef

	// #define
	IsFunctionLike bool
	Params         []string
	IsVariadic     bool
	Replacement    []Token

	Expression []Token // #if, #elif; #include with a macro operand
	HeaderName string  // #include: "<x.h>" or "\"x.h\"" as written
	Message    string  // #error, #warning

	PragmaTokens []Token

	LineNum  int // #line and line markers
	FileName string
}

// ParseDirectiveFromTokens parses the tokens that follow the # of a directive line.
func ParseDirectiveFromTokens(tokens []Token, loc SourceLoc) (*Directive, error) {
	var body []Token
	for _, t := range tokens {
		if t.Type == TokNewline || t.Type == TokEOF {
			break
		}
		body = append(body, t)
	}
	body = trimWhitespace(body)

	dir := &Directive{Loc: loc}
	if len(body) == 0 {
		dir.Type = DIR_EMPTY
		return dir, nil
	}

	head := body[0]
	rest := trimWhitespace(body[1:])

	if head.Type == TokNumber {
		dir.Type = DIR_LINEMARKER
		return dir, dir.parseLine(body)
	}
	if head.Type != TokIdent {
		return nil, fmt.Errorf("invalid preprocessing directive #%s", head.Text)
	}
	dt, ok := directiveNames[head.Text]
	if !ok {
		return nil, fmt.Errorf("invalid preprocessing directive #%s", head.Text)
	}
	dir.Type = dt

	switch dt {
	case DIR_DEFINE:
		return dir, dir.parseDefine(rest)
	case DIR_UNDEF, DIR_IFDEF, DIR_IFNDEF:
		sig := significant(rest)
		if len(sig) == 0 || sig[0].Type != TokIdent {
			return nil, fmt.Errorf("#%s requires a macro name", head.Text)
		}
		dir.Identifier = sig[0].Text
	case DIR_IF, DIR_ELIF:
		if len(rest) == 0 {
			return nil, fmt.Errorf("#%s with no expression", head.Text)
		}
		dir.Expression = rest
	case DIR_INCLUDE:
		return dir, dir.parseInclude(rest)
	case DIR_LINE:
		return dir, dir.parseLine(rest)
	case DIR_ERROR, DIR_WARNING:
		dir.Message = strings.TrimSpace(TokensToString(rest))
	case DIR_PRAGMA:
		dir.PragmaTokens = rest
	}
	return dir, nil
}

func (d *Directive) parseDefine(tokens []Token) error {
	if len(tokens) == 0 || tokens[0].Type != TokIdent {
		return fmt.Errorf("#define requires a macro name")
	}
	d.Identifier = tokens[0].Text
	tokens = tokens[1:]

	// Function-like only when '(' follows the name with no space.
	if len(tokens) == 0 || tokens[0].Type != TokPunct || tokens[0].Text != "(" {
		d.Replacement = trimWhitespace(tokens)
		return nil
	}

	d.IsFunctionLike = true
	i := 1
	expectParam := true
	for {
		for i < len(tokens) && tokens[i].Type == TokSpace {
			i++
		}
		if i >= len(tokens) {
			return fmt.Errorf("missing ')' in macro parameter list of %s", d.Identifier)
		}
		tok := tokens[i]
		switch {
		case tok.Text == ")" && (!expectParam || len(d.Params) == 0 && !d.IsVariadic):
			d.Replacement = trimWhitespace(tokens[i+1:])
			return nil
		case tok.Text == "..." && expectParam:
			d.IsVariadic = true
			expectParam = false
		case tok.Type == TokIdent && expectParam && !d.IsVariadic:
			d.Params = append(d.Params, tok.Text)
			expectParam = false
			// GNU named variadic: args...
			if i+1 < len(tokens) && tokens[i+1].Text == "..." {
				d.IsVariadic = true
				i++
			}
		case tok.Text == "," && !expectParam && !d.IsVariadic:
			expectParam = true
		default:
			return fmt.Errorf("unexpected %q in macro parameter list of %s", tok.Text, d.Identifier)
		}
		i++
	}
}

func (d *Directive) parseInclude(tokens []Token) error {
	if len(tokens) == 0 {
		return fmt.Errorf("#include expects \"FILENAME\" or <FILENAME>")
	}
	switch {
	case tokens[0].Type == TokString:
		d.HeaderName = tokens[0].Text
	case tokens[0].Text == "<":
		var sb strings.Builder
		for _, t := range tokens {
			sb.WriteString(t.Text)
			if t.Text == ">" {
				d.HeaderName = sb.String()
				return nil
			}
		}
		return fmt.Errorf("missing '>' in #include")
	default:
		d.Expression = tokens
	}
	return nil
}

func (d *Directive) parseLine(tokens []Token) error {
	sig := significant(tokens)
	if len(sig) == 0 || sig[0].Type != TokNumber {
		return fmt.Errorf("#line requires a line number")
	}
	n, err := strconv.Atoi(sig[0].Text)
	if err != nil {
		return fmt.Errorf("invalid line number %q", sig[0].Text)
	}
	d.LineNum = n
	if len(sig) > 1 && sig[1].Type == TokString {
		d.FileName = strings.Trim(sig[1].Text, `"`)
	}
	return nil
}
