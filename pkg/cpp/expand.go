// expand.go implements macro expansion including argument substitution,
// stringification, and token pasting.
package cpp

import (
	"fmt"
	"strings"
)

// Expander handles macro expansion.
type Expander struct {
	macros  *MacroTable
	hideset map[string]bool // macros currently being expanded
}

// NewExpander creates a new macro expander.
func NewExpander(macros *MacroTable) *Expander {
	return &Expander{
		macros:  macros,
		hideset: make(map[string]bool),
	}
}

// Expand expands all macros in the token stream. Newlines inside a macro
// invocation are moved after its expansion, so the line count is unchanged.
func (e *Expander) Expand(tokens []Token) ([]Token, error) {
	return e.expandTokens(tokens)
}

func (e *Expander) expandTokens(tokens []Token) ([]Token, error) {
	var result []Token
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok.Type != TokIdent || e.hideset[tok.Text] {
			result = append(result, tok)
			continue
		}
		macro := e.macros.Lookup(tok.Text)
		if macro == nil {
			result = append(result, tok)
			continue
		}

		if macro.Kind == MacroObject {
			expanded, err := e.expandObjectMacro(macro, tok.Loc)
			if err != nil {
				return nil, err
			}
			result = append(result, expanded...)
			continue
		}

		// A function-like macro name not followed by '(' is left alone.
		parenIdx := i + 1
		for parenIdx < len(tokens) && (tokens[parenIdx].Type == TokSpace || tokens[parenIdx].Type == TokNewline) {
			parenIdx++
		}
		if parenIdx >= len(tokens) || tokens[parenIdx].Type != TokPunct || tokens[parenIdx].Text != "(" {
			result = append(result, tok)
			continue
		}

		args, endIdx, err := e.parseArguments(tokens, parenIdx, macro)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", tok.Loc.File, tok.Loc.Line, err)
		}
		expanded, err := e.expandFunctionMacro(macro, args, tok.Loc)
		if err != nil {
			return nil, err
		}
		result = append(result, expanded...)
		for _, skipped := range tokens[i+1 : endIdx+1] {
			if skipped.Type == TokNewline {
				result = append(result, skipped)
			}
		}
		i = endIdx
	}
	return result, nil
}

func relocate(tokens []Token, loc SourceLoc) []Token {
	out := make([]Token, len(tokens))
	for i, tok := range tokens {
		tok.Loc = loc
		out[i] = tok
	}
	return out
}

func (e *Expander) expandObjectMacro(macro *Macro, loc SourceLoc) ([]Token, error) {
	e.hideset[macro.Name] = true
	defer delete(e.hideset, macro.Name)

	replacement, err := e.handleTokenPasting(relocate(macro.Replacement, loc))
	if err != nil {
		return nil, fmt.Errorf("macro %s: %w", macro.Name, err)
	}
	return e.expandTokens(replacement)
}

func (e *Expander) expandFunctionMacro(macro *Macro, args [][]Token, loc SourceLoc) ([]Token, error) {
	paramMap := make(map[string][]Token, len(macro.Params)+1)
	for i, param := range macro.Params {
		if i < len(args) {
			paramMap[param] = args[i]
		} else {
			paramMap[param] = nil
		}
	}
	if macro.IsVariadic {
		paramMap["__VA_ARGS__"] = buildVAArgs(args, len(macro.Params))
	}

	// Arguments are fully expanded before the macro itself is hidden.
	expandedArgs := make(map[string][]Token, len(paramMap))
	for name, toks := range paramMap {
		expanded, err := e.expandTokens(toks)
		if err != nil {
			return nil, err
		}
		expandedArgs[name] = expanded
	}

	e.hideset[macro.Name] = true
	defer delete(e.hideset, macro.Name)

	replacement := macro.Replacement
	var result []Token
	for i := 0; i < len(replacement); i++ {
		tok := replacement[i]

		// # param
		if tok.Text == "#" && (tok.Type == TokPunct || tok.Type == TokDirective) {
			next := i + 1
			for next < len(replacement) && replacement[next].Type == TokSpace {
				next++
			}
			if next < len(replacement) && replacement[next].Type == TokIdent {
				if paramTokens, ok := paramMap[replacement[next].Text]; ok {
					result = append(result, stringify(paramTokens, loc))
					i = next
					continue
				}
			}
		}

		paramTokens, isParam := paramMap[tok.Text]
		if tok.Type != TokIdent || !isParam {
			tok.Loc = loc
			result = append(result, tok)
			continue
		}

		// Operands of ## are substituted unexpanded.
		if pasteOperand(replacement, i) {
			if len(paramTokens) == 0 {
				result = append(result, Token{Type: TokPlaceholder, Loc: loc})
			}
			result = append(result, relocate(paramTokens, loc)...)
			continue
		}
		result = append(result, relocate(expandedArgs[tok.Text], loc)...)
	}

	result, err := e.handleTokenPasting(result)
	if err != nil {
		return nil, fmt.Errorf("macro %s: %w", macro.Name, err)
	}
	return e.expandTokens(result)
}

// pasteOperand reports whether replacement[i] is next to a ## operator.
func pasteOperand(replacement []Token, i int) bool {
	prev := i - 1
	for prev >= 0 && replacement[prev].Type == TokSpace {
		prev--
	}
	next := i + 1
	for next < len(replacement) && replacement[next].Type == TokSpace {
		next++
	}
	return (prev >= 0 && replacement[prev].Type == TokPaste) ||
		(next < len(replacement) && replacement[next].Type == TokPaste)
}

// parseArguments collects the arguments of an invocation whose '(' is at startIdx.
// It returns the arguments and the index of the closing ')'. Newlines inside the
// arguments become spaces.
func (e *Expander) parseArguments(tokens []Token, startIdx int, macro *Macro) ([][]Token, int, error) {
	var args [][]Token
	var current []Token
	depth := 1

	for i := startIdx + 1; i < len(tokens); i++ {
		tok := tokens[i]
		if tok.Type == TokNewline {
			tok = Token{Type: TokSpace, Text: " ", Loc: tok.Loc}
		}
		if tok.Type == TokPunct {
			switch tok.Text {
			case "(":
				depth++
			case ")":
				depth--
				if depth == 0 {
					if len(current) > 0 || len(args) > 0 || len(macro.Params) > 0 {
						args = append(args, trimWhitespace(current))
					}
					if err := validateArgCount(macro, args); err != nil {
						return nil, 0, err
					}
					return args, i, nil
				}
			case ",":
				if depth == 1 {
					args = append(args, trimWhitespace(current))
					current = nil
					continue
				}
			}
		}
		current = append(current, tok)
	}
	return nil, 0, fmt.Errorf("unterminated argument list invoking macro %s", macro.Name)
}

func validateArgCount(macro *Macro, args [][]Token) error {
	expected := len(macro.Params)
	if macro.IsVariadic {
		if len(args) < expected {
			return fmt.Errorf("macro %s requires at least %d arguments, got %d", macro.Name, expected, len(args))
		}
		return nil
	}
	if len(args) != expected {
		return fmt.Errorf("macro %s requires %d arguments, got %d", macro.Name, expected, len(args))
	}
	return nil
}

// buildVAArgs joins the arguments past the named parameters.
func buildVAArgs(args [][]Token, numParams int) []Token {
	if len(args) <= numParams {
		return nil
	}
	var result []Token
	for i, arg := range args[numParams:] {
		if i > 0 {
			result = append(result, Token{Type: TokPunct, Text: ","}, Token{Type: TokSpace, Text: " "})
		}
		result = append(result, arg...)
	}
	return result
}

// stringify implements the # operator.
func stringify(tokens []Token, loc SourceLoc) Token {
	var sb strings.Builder
	pendingSpace := false
	for _, tok := range tokens {
		if tok.Type == TokSpace || tok.Type == TokNewline {
			pendingSpace = sb.Len() > 0
			continue
		}
		if pendingSpace {
			sb.WriteByte(' ')
			pendingSpace = false
		}
		if tok.Type == TokString || tok.Type == TokChar {
			for _, c := range tok.Text {
				if c == '"' || c == '\\' {
					sb.WriteByte('\\')
				}
				sb.WriteRune(c)
			}
			continue
		}
		sb.WriteString(tok.Text)
	}
	return Token{Type: TokString, Text: `"` + sb.String() + `"`, Loc: loc}
}

// handleTokenPasting applies the ## operator.
func (e *Expander) handleTokenPasting(tokens []Token) ([]Token, error) {
	var result []Token
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok.Type != TokPaste {
			result = append(result, tok)
			continue
		}
		for len(result) > 0 && result[len(result)-1].Type == TokSpace {
			result = result[:len(result)-1]
		}
		if len(result) == 0 {
			return nil, fmt.Errorf("'##' cannot appear at either end of a macro expansion")
		}
		next := i + 1
		for next < len(tokens) && tokens[next].Type == TokSpace {
			next++
		}
		if next >= len(tokens) {
			return nil, fmt.Errorf("'##' cannot appear at either end of a macro expansion")
		}

		left := result[len(result)-1]
		right := tokens[next]
		result = result[:len(result)-1]
		i = next

		switch {
		case left.Type == TokPlaceholder:
			result = append(result, right)
		case right.Type == TokPlaceholder:
			result = append(result, left)
		default:
			pasted := retokenize(left.Text+right.Text, left.Loc)
			if len(pasted) == 0 {
				pasted = []Token{{Type: TokPlaceholder, Loc: left.Loc}}
			}
			result = append(result, pasted...)
		}
	}

	filtered := result[:0]
	for _, tok := range result {
		if tok.Type != TokPlaceholder {
			filtered = append(filtered, tok)
		}
	}
	return filtered, nil
}

// retokenize lexes the text produced by pasting.
func retokenize(text string, loc SourceLoc) []Token {
	var tokens []Token
	for _, tok := range significant(Tokenize(text, loc.File)) {
		tok.Loc = loc
		tokens = append(tokens, tok)
	}
	return tokens
}

// trimWhitespace removes leading and trailing whitespace tokens.
func trimWhitespace(tokens []Token) []Token {
	start := 0
	for start < len(tokens) && tokens[start].Type == TokSpace {
		start++
	}
	end := len(tokens)
	for end > start && tokens[end-1].Type == TokSpace {
		end--
	}
	if start >= end {
		return nil
	}
	return tokens[start:end]
}

// ExpandString expands macros in a string.
func (e *Expander) ExpandString(input string) (string, error) {
	expanded, err := e.Expand(Tokenize(input, "<string>"))
	if err != nil {
		return "", err
	}
	return TokensToString(expanded), nil
}
