// conditional.go implements conditional compilation (#if, #ifdef, etc.)
package cpp

import (
	"fmt"

	"github.com/raymyers/ralph-bindgen/pkg/literal"
)

// ConditionState tracks one level of nested conditional compilation.
type ConditionState struct {
	active    bool // current branch is included
	seenElse  bool
	anyActive bool // some branch at this level was taken
	loc       SourceLoc
}

// ConditionalProcessor handles conditional compilation directives.
type ConditionalProcessor struct {
	macros   *MacroTable
	expander *Expander
	stack    []ConditionState
}

// NewConditionalProcessor creates a new conditional processor.
func NewConditionalProcessor(macros *MacroTable) *ConditionalProcessor {
	return &ConditionalProcessor{
		macros:   macros,
		expander: NewExpander(macros),
	}
}

// IsActive returns true if lines at the current point are included.
func (cp *ConditionalProcessor) IsActive() bool {
	return cp.activeBelow(len(cp.stack))
}

// activeBelow reports whether the first n levels are all active.
func (cp *ConditionalProcessor) activeBelow(n int) bool {
	for _, state := range cp.stack[:n] {
		if !state.active {
			return false
		}
	}
	return true
}

func (cp *ConditionalProcessor) push(active bool, loc SourceLoc) {
	cp.stack = append(cp.stack, ConditionState{active: active, anyActive: active, loc: loc})
}

// ProcessIf handles #if. The condition is only evaluated in active regions.
func (cp *ConditionalProcessor) ProcessIf(expr []Token, loc SourceLoc) error {
	if !cp.IsActive() {
		cp.push(false, loc)
		return nil
	}
	result, err := cp.evaluateCondition(expr)
	if err != nil {
		// Treat the branch as not taken so the nesting stays balanced.
		cp.push(false, loc)
		return fmt.Errorf("#if: %w", err)
	}
	cp.push(result, loc)
	return nil
}

// ProcessIfdef handles #ifdef.
func (cp *ConditionalProcessor) ProcessIfdef(name string, loc SourceLoc) error {
	cp.push(cp.IsActive() && cp.macros.IsDefined(name), loc)
	return nil
}

// ProcessIfndef handles #ifndef.
func (cp *ConditionalProcessor) ProcessIfndef(name string, loc SourceLoc) error {
	cp.push(cp.IsActive() && !cp.macros.IsDefined(name), loc)
	return nil
}

// ProcessElif handles #elif.
func (cp *ConditionalProcessor) ProcessElif(expr []Token) error {
	if len(cp.stack) == 0 {
		return fmt.Errorf("#elif without matching #if")
	}
	state := &cp.stack[len(cp.stack)-1]
	if state.seenElse {
		return fmt.Errorf("#elif after #else")
	}
	if state.anyActive || !cp.activeBelow(len(cp.stack)-1) {
		state.active = false
		return nil
	}
	result, err := cp.evaluateCondition(expr)
	if err != nil {
		state.active = false
		return fmt.Errorf("#elif: %w", err)
	}
	state.active = result
	state.anyActive = result
	return nil
}

// ProcessElse handles #else.
func (cp *ConditionalProcessor) ProcessElse() error {
	if len(cp.stack) == 0 {
		return fmt.Errorf("#else without matching #if")
	}
	state := &cp.stack[len(cp.stack)-1]
	if state.seenElse {
		return fmt.Errorf("duplicate #else")
	}
	state.seenElse = true
	state.active = cp.activeBelow(len(cp.stack)-1) && !state.anyActive
	if state.active {
		state.anyActive = true
	}
	return nil
}

// ProcessEndif handles #endif.
func (cp *ConditionalProcessor) ProcessEndif() error {
	if len(cp.stack) == 0 {
		return fmt.Errorf("#endif without matching #if")
	}
	cp.stack = cp.stack[:len(cp.stack)-1]
	return nil
}

// Depth returns the nesting depth of conditionals.
func (cp *ConditionalProcessor) Depth() int {
	return len(cp.stack)
}

// CheckBalanced returns an error naming the innermost unclosed conditional.
func (cp *ConditionalProcessor) CheckBalanced() error {
	if n := len(cp.stack); n > 0 {
		open := cp.stack[n-1].loc
		return fmt.Errorf("unterminated conditional directive opened at line %d, %d level(s) unclosed", open.Line, n)
	}
	return nil
}

// evaluateCondition evaluates a preprocessor constant expression.
func (cp *ConditionalProcessor) evaluateCondition(tokens []Token) (bool, error) {
	processed, err := cp.processDefinedAndExpand(tokens)
	if err != nil {
		return false, err
	}
	result, err := evaluateExpr(processed)
	if err != nil {
		return false, err
	}
	return result != 0, nil
}

// hasFeatureOperators are answered with 0: no include or attribute is known.
var hasFeatureOperators = map[string]bool{
	"__has_include":          true,
	"__has_include_next":     true,
	"__has_attribute":        true,
	"__has_cpp_attribute":    true,
	"__has_builtin":          true,
	"__has_feature":          true,
	"__has_extension":        true,
	"__has_declspec_attribute": true,
}

// processDefinedAndExpand replaces defined(X) and feature probes with 0/1,
// expands macros, then maps the remaining identifiers to 0 (true to 1).
func (cp *ConditionalProcessor) processDefinedAndExpand(tokens []Token) ([]Token, error) {
	tokens = significant(tokens)
	var result []Token
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok.Type != TokIdent {
			result = append(result, tok)
			continue
		}
		switch {
		case tok.Text == "defined":
			name, next, err := definedOperand(tokens, i+1)
			if err != nil {
				return nil, err
			}
			result = append(result, boolToken(cp.macros.IsDefined(name), tok.Loc))
			i = next - 1
		case hasFeatureOperators[tok.Text]:
			next, err := skipParenGroup(tokens, i+1)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", tok.Text, err)
			}
			result = append(result, boolToken(false, tok.Loc))
			i = next - 1
		default:
			result = append(result, tok)
		}
	}

	expanded, err := cp.expander.Expand(result)
	if err != nil {
		return nil, err
	}

	final := make([]Token, 0, len(expanded))
	for _, tok := range significant(expanded) {
		if tok.Type == TokIdent {
			tok = boolToken(tok.Text == "true", tok.Loc)
		}
		final = append(final, tok)
	}
	return final, nil
}

func boolToken(b bool, loc SourceLoc) Token {
	text := "0"
	if b {
		text = "1"
	}
	return Token{Type: TokNumber, Text: text, Loc: loc}
}

// definedOperand reads NAME or (NAME) starting at i and returns the index after it.
func definedOperand(tokens []Token, i int) (string, int, error) {
	if i < len(tokens) && tokens[i].Type == TokIdent {
		return tokens[i].Text, i + 1, nil
	}
	if i+2 < len(tokens) && tokens[i].Text == "(" && tokens[i+1].Type == TokIdent && tokens[i+2].Text == ")" {
		return tokens[i+1].Text, i + 3, nil
	}
	return "", 0, fmt.Errorf("defined operator requires an identifier")
}

// skipParenGroup skips a balanced (...) group starting at i.
func skipParenGroup(tokens []Token, i int) (int, error) {
	if i >= len(tokens) || tokens[i].Text != "(" {
		return 0, fmt.Errorf("expected '('")
	}
	depth := 0
	for ; i < len(tokens); i++ {
		switch tokens[i].Text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		}
	}
	return 0, fmt.Errorf("missing ')'")
}

// evaluateExpr evaluates a whitespace-free constant expression.
func evaluateExpr(tokens []Token) (int64, error) {
	if len(tokens) == 0 {
		return 0, fmt.Errorf("empty expression")
	}
	p := &exprParser{tokens: tokens}
	result, err := p.parseConditional()
	if err != nil {
		return 0, err
	}
	if p.pos < len(p.tokens) {
		return 0, fmt.Errorf("unexpected token after expression: %s", p.tokens[p.pos].Text)
	}
	return result, nil
}

// exprParser evaluates #if expressions in intmax_t arithmetic.
type exprParser struct {
	tokens []Token
	pos    int
}

func (p *exprParser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokEOF}
	}
	return p.tokens[p.pos]
}

func (p *exprParser) match(text string) bool {
	if tok := p.peek(); tok.Type == TokPunct && tok.Text == text {
		p.pos++
		return true
	}
	return false
}

// binaryLevels lists the binary operators from loosest to tightest binding.
var binaryLevels = [][]string{
	{"||"},
	{"&&"},
	{"|"},
	{"^"},
	{"&"},
	{"==", "!="},
	{"<", ">", "<=", ">="},
	{"<<", ">>"},
	{"+", "-"},
	{"*", "/", "%"},
}

func (p *exprParser) parseConditional() (int64, error) {
	cond, err := p.parseBinary(0)
	if err != nil {
		return 0, err
	}
	if !p.match("?") {
		return cond, nil
	}
	thenVal, err := p.parseConditional()
	if err != nil {
		return 0, err
	}
	if !p.match(":") {
		return 0, fmt.Errorf("expected ':' in conditional expression")
	}
	elseVal, err := p.parseConditional()
	if err != nil {
		return 0, err
	}
	if cond != 0 {
		return thenVal, nil
	}
	return elseVal, nil
}

func (p *exprParser) parseBinary(level int) (int64, error) {
	if level == len(binaryLevels) {
		return p.parseUnary()
	}
	left, err := p.parseBinary(level + 1)
	if err != nil {
		return 0, err
	}
	for {
		op := ""
		for _, candidate := range binaryLevels[level] {
			if p.match(candidate) {
				op = candidate
				break
			}
		}
		if op == "" {
			return left, nil
		}
		right, err := p.parseBinary(level + 1)
		if err != nil {
			return 0, err
		}
		left, err = applyBinary(op, left, right)
		if err != nil {
			return 0, err
		}
	}
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func applyBinary(op string, l, r int64) (int64, error) {
	switch op {
	case "||":
		return b2i(l != 0 || r != 0), nil
	case "&&":
		return b2i(l != 0 && r != 0), nil
	case "|":
		return l | r, nil
	case "^":
		return l ^ r, nil
	case "&":
		return l & r, nil
	case "==":
		return b2i(l == r), nil
	case "!=":
		return b2i(l != r), nil
	case "<":
		return b2i(l < r), nil
	case ">":
		return b2i(l > r), nil
	case "<=":
		return b2i(l <= r), nil
	case ">=":
		return b2i(l >= r), nil
	case "<<", ">>":
		if r < 0 || r > 63 {
			return 0, fmt.Errorf("shift count %d out of range", r)
		}
		if op == "<<" {
			return l << uint(r), nil
		}
		return l >> uint(r), nil
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/", "%":
		if r == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		if op == "/" {
			return l / r, nil
		}
		return l % r, nil
	}
	return 0, fmt.Errorf("unknown operator %s", op)
}

func (p *exprParser) parseUnary() (int64, error) {
	for _, op := range []string{"!", "-", "+", "~"} {
		if !p.match(op) {
			continue
		}
		val, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		switch op {
		case "!":
			return b2i(val == 0), nil
		case "-":
			return -val, nil
		case "~":
			return ^val, nil
		}
		return val, nil
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (int64, error) {
	tok := p.peek()
	switch tok.Type {
	case TokPunct:
		if p.match("(") {
			val, err := p.parseConditional()
			if err != nil {
				return 0, err
			}
			if !p.match(")") {
				return 0, fmt.Errorf("expected ')'")
			}
			return val, nil
		}
	case TokNumber:
		p.pos++
		lit, err := literal.Parse(tok.Text)
		if err != nil {
			return 0, err
		}
		return lit.Value.Int64(), nil
	case TokChar:
		p.pos++
		v, err := literal.ParseChar(tok.Text)
		if err != nil {
			return 0, err
		}
		return v.Int64(), nil
	case TokEOF:
		return 0, fmt.Errorf("unexpected end of expression")
	}
	return 0, fmt.Errorf("unexpected token in expression: %s (%v)", tok.Text, tok.Type)
}
