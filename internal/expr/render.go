package expr

import (
	"strconv"
	"strings"
)

// RenderOptions controls how a tree is printed as target-language text.
// The zero value renders python-style: y[i], k[i], ** and e-exponents.
type RenderOptions struct {
	// Power is the exponentiation spelling. "**" and "^" print infix;
	// any other non-empty value prints function-style, e.g. "std::pow".
	Power string

	// Exponent is the float exponent marker, "e" (default) or "d".
	Exponent string

	// Bracket is the 1D indexing pair for Conc and RateRef nodes,
	// default "[]".
	Bracket string

	// IndexBase is added to every Conc/RateRef index, so Fortran output
	// can address 1-based arrays.
	IndexBase int

	// ConcVar and RateVar name the concentration and rate coefficient
	// arrays, defaults "y" and "k".
	ConcVar string
	RateVar string
}

func (o RenderOptions) withDefaults() RenderOptions {
	if o.Power == "" {
		o.Power = "**"
	}
	if o.Exponent == "" {
		o.Exponent = "e"
	}
	if len(o.Bracket) != 2 {
		o.Bracket = "[]"
	}
	if o.ConcVar == "" {
		o.ConcVar = "y"
	}
	if o.RateVar == "" {
		o.RateVar = "k"
	}
	return o
}

// Operator precedence levels used to decide where parentheses are needed.
const (
	precAdd  = 1
	precMul  = 2
	precNeg  = 3
	precPow  = 4
	precAtom = 5
)

// Render prints e as target-language source text, inserting parentheses
// only where precedence requires them. Output is deterministic: the same
// tree always renders to the same bytes.
func Render(e Expr, opts RenderOptions) string {
	o := opts.withDefaults()
	var sb strings.Builder
	render(&sb, e, o)
	return sb.String()
}

func render(sb *strings.Builder, e Expr, o RenderOptions) {
	if operand, ok := IsNeg(e); ok {
		sb.WriteByte('-')
		renderChild(sb, operand, precNeg, o)
		return
	}

	switch n := e.(type) {
	case *Constant:
		sb.WriteString(formatFloat(n.Value, o.Exponent))

	case *Primitive:
		sb.WriteString(n.Name)

	case *Custom:
		sb.WriteString(n.Name)

	case *Conc:
		sb.WriteString(o.ConcVar)
		sb.WriteByte(o.Bracket[0])
		sb.WriteString(strconv.Itoa(n.Index + o.IndexBase))
		sb.WriteByte(o.Bracket[1])

	case *RateRef:
		sb.WriteString(o.RateVar)
		sb.WriteByte(o.Bracket[0])
		sb.WriteString(strconv.Itoa(n.Index + o.IndexBase))
		sb.WriteByte(o.Bracket[1])

	case *CSERef:
		sb.WriteString(n.Name)

	case *Binary:
		if n.Op == OpPow && o.Power != "**" && o.Power != "^" {
			sb.WriteString(o.Power)
			sb.WriteByte('(')
			render(sb, n.Left, o)
			sb.WriteString(", ")
			render(sb, n.Right, o)
			sb.WriteByte(')')
			return
		}
		switch n.Op {
		case OpAdd:
			renderChild(sb, n.Left, precAdd, o)
			sb.WriteString(" + ")
			renderChild(sb, n.Right, precAdd+1, o)
		case OpSub:
			renderChild(sb, n.Left, precAdd, o)
			sb.WriteString(" - ")
			renderChild(sb, n.Right, precAdd+1, o)
		case OpMul:
			renderChild(sb, n.Left, precMul, o)
			sb.WriteByte('*')
			renderChild(sb, n.Right, precMul, o)
		case OpDiv:
			renderChild(sb, n.Left, precMul, o)
			sb.WriteByte('/')
			renderChild(sb, n.Right, precMul+1, o)
		case OpPow:
			// Exponentiation is right-associative: the left child needs
			// parens at equal precedence, the right does not.
			renderChild(sb, n.Left, precPow+1, o)
			sb.WriteString(o.Power)
			renderChild(sb, n.Right, precPow, o)
		}

	case *Call:
		sb.WriteString(n.Func)
		sb.WriteByte('(')
		for i, a := range n.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			render(sb, a, o)
		}
		sb.WriteByte(')')
	}
}

// renderChild parenthesizes the child when its own precedence is below the
// level the context requires.
func renderChild(sb *strings.Builder, e Expr, need int, o RenderOptions) {
	if precedence(e, o) < need {
		sb.WriteByte('(')
		render(sb, e, o)
		sb.WriteByte(')')
		return
	}
	render(sb, e, o)
}

func precedence(e Expr, o RenderOptions) int {
	if _, ok := IsNeg(e); ok {
		return precNeg
	}
	b, ok := e.(*Binary)
	if !ok {
		return precAtom
	}
	switch b.Op {
	case OpAdd, OpSub:
		return precAdd
	case OpMul, OpDiv:
		return precMul
	case OpPow:
		if o.Power != "**" && o.Power != "^" {
			// function-style pow renders as an atom
			return precAtom
		}
		return precPow
	}
	return precAtom
}

// formatFloat prints v in the shortest round-trippable form, then rewrites
// the exponent marker for dialects that spell it differently (Fortran "d").
func formatFloat(v float64, exponent string) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if exponent != "e" {
		s = strings.Replace(s, "e", exponent, 1)
	}
	return s
}
