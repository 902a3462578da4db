package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Primitives is the fixed set of built-in physical quantities that may
// appear in any rate expression.
var Primitives = map[string]bool{
	"tgas":    true,
	"av":      true,
	"crate":   true,
	"ntot":    true,
	"hnuclei": true,
	"d2g":     true,
}

// Builtin functions with known evaluation and derivative rules. Any other
// function name parses into an opaque Call.
var builtinFuncs = map[string]bool{
	"exp":   true,
	"log":   true,
	"log10": true,
	"sqrt":  true,
	"min":   true,
	"max":   true,
}

// Parse parses an infix rate-law or bound expression into a tree.
// Identifiers are resolved in order: custom variable (per isCustom), then
// primitive variable, then UnknownIdentifierError. Exponentiation accepts
// both ** and ^ and is right-associative. Numeric literals accept both
// 1.2e-10 and the Fortran double-precision spelling 1.2d-10.
//
// Parse is total over any string a dialect parser accepts as a rate field:
// a failure here is a hard error, never a silent default.
func Parse(src string, isCustom func(string) bool) (Expr, error) {
	if isCustom == nil {
		isCustom = func(string) bool { return false }
	}
	p := &parser{src: src, isCustom: isCustom}
	p.next()
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at position %d in expression %q", p.tok.text, p.tok.pos, src)
	}
	return e, nil
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokNumber
	tokIdent
	tokOp     // + - * / ** ^
	tokLParen // (
	tokRParen // )
	tokComma
	tokInvalid // any byte the grammar has no use for
)

type token struct {
	kind tokKind
	text string
	pos  int
}

type parser struct {
	src      string
	pos      int
	tok      token
	isCustom func(string) bool
}

func (p *parser) next() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
	if p.pos >= len(p.src) {
		p.tok = token{kind: tokEOF, pos: p.pos}
		return
	}

	start := p.pos
	c := p.src[p.pos]
	switch {
	case c >= '0' && c <= '9' || c == '.' && p.peekDigit(p.pos+1):
		p.pos = scanNumber(p.src, p.pos)
		p.tok = token{kind: tokNumber, text: p.src[start:p.pos], pos: start}
	case isIdentStart(c):
		for p.pos < len(p.src) && isIdentPart(p.src[p.pos]) {
			p.pos++
		}
		p.tok = token{kind: tokIdent, text: p.src[start:p.pos], pos: start}
	case c == '*':
		if p.pos+1 < len(p.src) && p.src[p.pos+1] == '*' {
			p.pos += 2
			p.tok = token{kind: tokOp, text: "**", pos: start}
		} else {
			p.pos++
			p.tok = token{kind: tokOp, text: "*", pos: start}
		}
	case c == '^':
		p.pos++
		p.tok = token{kind: tokOp, text: "**", pos: start}
	case c == '+' || c == '-' || c == '/':
		p.pos++
		p.tok = token{kind: tokOp, text: string(c), pos: start}
	case c == '(':
		p.pos++
		p.tok = token{kind: tokLParen, text: "(", pos: start}
	case c == ')':
		p.pos++
		p.tok = token{kind: tokRParen, text: ")", pos: start}
	case c == ',':
		p.pos++
		p.tok = token{kind: tokComma, text: ",", pos: start}
	default:
		p.pos++
		p.tok = token{kind: tokInvalid, text: string(c), pos: start}
	}
}

func (p *parser) peekDigit(i int) bool {
	return i < len(p.src) && p.src[i] >= '0' && p.src[i] <= '9'
}

// scanNumber consumes a numeric literal starting at i and returns the end
// offset. The exponent marker may be e, E, d or D; the Fortran d spelling
// is normalized when the literal value is computed.
func scanNumber(src string, i int) int {
	for i < len(src) && src[i] >= '0' && src[i] <= '9' {
		i++
	}
	if i < len(src) && src[i] == '.' {
		i++
		for i < len(src) && src[i] >= '0' && src[i] <= '9' {
			i++
		}
	}
	if i < len(src) {
		switch src[i] {
		case 'e', 'E', 'd', 'D':
			j := i + 1
			if j < len(src) && (src[j] == '+' || src[j] == '-') {
				j++
			}
			if j < len(src) && src[j] >= '0' && src[j] <= '9' {
				for j < len(src) && src[j] >= '0' && src[j] <= '9' {
					j++
				}
				i = j
			}
		}
	}
	return i
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

// parseExpr handles + and - at the lowest precedence level.
func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "+" || p.tok.text == "-") {
		op := OpAdd
		if p.tok.text == "-" {
			op = OpSub
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

// parseTerm handles * and /.
func (p *parser) parseTerm() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "*" || p.tok.text == "/") {
		op := OpMul
		if p.tok.text == "/" {
			op = OpDiv
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

// parseUnary handles unary minus and plus. Unary minus binds looser than
// exponentiation, so -x**2 parses as -(x**2).
func (p *parser) parseUnary() (Expr, error) {
	if p.tok.kind == tokOp && p.tok.text == "-" {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if c, ok := operand.(*Constant); ok {
			return Num(-c.Value), nil
		}
		return Neg(operand), nil
	}
	if p.tok.kind == tokOp && p.tok.text == "+" {
		p.next()
		return p.parseUnary()
	}
	return p.parsePower()
}

// parsePower handles right-associative exponentiation.
func (p *parser) parsePower() (Expr, error) {
	base, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	if p.tok.kind == tokOp && p.tok.text == "**" {
		p.next()
		// Right operand goes through parseUnary so that x**-2 works.
		exponent, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Binary{Op: OpPow, Left: base, Right: exponent}, nil
	}
	return base, nil
}

func (p *parser) parseAtom() (Expr, error) {
	switch p.tok.kind {
	case tokNumber:
		text := p.tok.text
		p.next()
		v, err := strconv.ParseFloat(normalizeExponent(text), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid numeric literal %q in expression %q", text, p.src)
		}
		return Num(v), nil

	case tokIdent:
		name := p.tok.text
		p.next()
		if p.tok.kind == tokLParen {
			return p.parseCall(name)
		}
		if p.isCustom(name) {
			return &Custom{Name: name}, nil
		}
		if Primitives[name] {
			return &Primitive{Name: name}, nil
		}
		return nil, &UnknownIdentifierError{Name: name, Expr: p.src}

	case tokLParen:
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, fmt.Errorf("missing closing parenthesis in expression %q", p.src)
		}
		p.next()
		return e, nil
	}
	return nil, fmt.Errorf("unexpected %q at position %d in expression %q", p.tok.text, p.tok.pos, p.src)
}

func (p *parser) parseCall(name string) (Expr, error) {
	// Current token is the opening parenthesis.
	p.next()
	var args []Expr
	if p.tok.kind != tokRParen {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.tok.kind != tokComma {
				break
			}
			p.next()
		}
	}
	if p.tok.kind != tokRParen {
		return nil, fmt.Errorf("missing closing parenthesis in call to %q in expression %q", name, p.src)
	}
	p.next()
	return &Call{Func: strings.ToLower(name), Args: args}, nil
}

// normalizeExponent rewrites a Fortran double-precision exponent marker to
// the standard scientific one, so strconv can parse it.
func normalizeExponent(lit string) string {
	lit = strings.Replace(lit, "d", "e", 1)
	return strings.Replace(lit, "D", "E", 1)
}

// IsBuiltinFunc reports whether the named function has known evaluation and
// derivative rules.
func IsBuiltinFunc(name string) bool {
	return builtinFuncs[name]
}
