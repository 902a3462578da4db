// Package expr implements the symbolic expression trees used for reaction
// rate laws and their derived artifacts. Trees are immutable once built;
// every transformation returns a new tree. Structural identity is defined
// by Key, which makes hash-consing and common-subexpression detection
// independent of surface spelling.
package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Op identifies a binary arithmetic operator.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpPow
)

// String returns the conventional spelling of the operator.
func (op Op) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpPow:
		return "**"
	}
	return "?"
}

// Expr is a node of an expression tree. Implementations are Constant,
// Primitive, Custom, Conc, RateRef, CSERef, Binary and Call.
type Expr interface {
	// Key returns a canonical string for the subtree. Two subtrees are
	// structurally equal iff their keys are equal.
	Key() string
}

// Constant is a numeric literal. Fortran double-precision spellings are
// normalized to the same value at parse time, so 1.2d-10 and 1.2e-10
// produce identical constants.
type Constant struct {
	Value float64
}

// Primitive references one of the fixed built-in physical quantities
// (tgas, av, crate, ntot, hnuclei, d2g).
type Primitive struct {
	Name string
}

// Custom references a per-network custom variable. Custom nodes only exist
// transiently during parsing; the network builder inlines them before
// compilation.
type Custom struct {
	Name string
}

// Conc references the concentration of the species with the given model
// index (y[i] in generated code).
type Conc struct {
	Index int
}

// RateRef references the rate coefficient of the reaction with the given
// model index (k[i] in generated code).
type RateRef struct {
	Index int
}

// CSERef references a common-subexpression temporary by its synthetic name.
type CSERef struct {
	Name string
}

// Binary applies an arithmetic operator to two subtrees.
type Binary struct {
	Op          Op
	Left, Right Expr
}

// Call applies a named function to its arguments. Functions outside the
// builtin set (exp, log, log10, sqrt, min, max) are carried opaquely.
type Call struct {
	Func string
	Args []Expr
}

func (c *Constant) Key() string {
	return strconv.FormatFloat(c.Value, 'g', 17, 64)
}

func (p *Primitive) Key() string { return p.Name }

func (c *Custom) Key() string { return "@" + c.Name }

func (c *Conc) Key() string { return "y[" + strconv.Itoa(c.Index) + "]" }

func (r *RateRef) Key() string { return "k[" + strconv.Itoa(r.Index) + "]" }

func (c *CSERef) Key() string { return "$" + c.Name }

func (b *Binary) Key() string {
	return "(" + b.Left.Key() + b.Op.String() + b.Right.Key() + ")"
}

func (c *Call) Key() string {
	keys := make([]string, len(c.Args))
	for i, a := range c.Args {
		keys[i] = a.Key()
	}
	return c.Func + "(" + strings.Join(keys, ",") + ")"
}

// Num is shorthand for a constant node.
func Num(v float64) *Constant { return &Constant{Value: v} }

// Neg returns the negation of e, spelled as (-1)*e so that the tree stays
// within the binary-operator vocabulary. The renderer recognizes the shape
// and prints a plain unary minus.
func Neg(e Expr) Expr {
	return &Binary{Op: OpMul, Left: Num(-1), Right: e}
}

// IsNeg reports whether e has the canonical negation shape produced by Neg
// and, if so, returns the negated operand.
func IsNeg(e Expr) (Expr, bool) {
	b, ok := e.(*Binary)
	if !ok || b.Op != OpMul {
		return nil, false
	}
	c, ok := b.Left.(*Constant)
	if !ok || c.Value != -1 {
		return nil, false
	}
	return b.Right, true
}

// IsZero reports whether e is the literal constant 0.
func IsZero(e Expr) bool {
	c, ok := e.(*Constant)
	return ok && c.Value == 0
}

// IsOne reports whether e is the literal constant 1.
func IsOne(e Expr) bool {
	c, ok := e.(*Constant)
	return ok && c.Value == 1
}

// Substitute returns a copy of e where every subtree structurally equal to
// the target is replaced by repl. The input tree is never mutated.
func Substitute(e Expr, target, repl Expr) Expr {
	if e.Key() == target.Key() {
		return repl
	}
	switch n := e.(type) {
	case *Binary:
		left := Substitute(n.Left, target, repl)
		right := Substitute(n.Right, target, repl)
		if left == n.Left && right == n.Right {
			return n
		}
		return &Binary{Op: n.Op, Left: left, Right: right}
	case *Call:
		args := make([]Expr, len(n.Args))
		changed := false
		for i, a := range n.Args {
			args[i] = Substitute(a, target, repl)
			if args[i] != a {
				changed = true
			}
		}
		if !changed {
			return n
		}
		return &Call{Func: n.Func, Args: args}
	default:
		return e
	}
}

// Contains reports whether any subtree of e is structurally equal to target.
func Contains(e Expr, target Expr) bool {
	if e.Key() == target.Key() {
		return true
	}
	switch n := e.(type) {
	case *Binary:
		return Contains(n.Left, target) || Contains(n.Right, target)
	case *Call:
		for _, a := range n.Args {
			if Contains(a, target) {
				return true
			}
		}
	}
	return false
}

// Walk calls fn for every node of e in depth-first pre-order.
func Walk(e Expr, fn func(Expr)) {
	fn(e)
	switch n := e.(type) {
	case *Binary:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *Call:
		for _, a := range n.Args {
			Walk(a, fn)
		}
	}
}

// FreeVariables returns the names of all Primitive and Custom nodes in e,
// deduplicated, in first-occurrence order.
func FreeVariables(e Expr) []string {
	var names []string
	seen := map[string]bool{}
	Walk(e, func(n Expr) {
		switch v := n.(type) {
		case *Primitive:
			if !seen[v.Name] {
				seen[v.Name] = true
				names = append(names, v.Name)
			}
		case *Custom:
			if !seen[v.Name] {
				seen[v.Name] = true
				names = append(names, v.Name)
			}
		}
	})
	return names
}

// UnknownIdentifierError reports an identifier that resolved to neither a
// custom variable nor a primitive variable.
type UnknownIdentifierError struct {
	Name string
	Expr string
}

func (e *UnknownIdentifierError) Error() string {
	return fmt.Sprintf("unknown identifier %q in expression %q", e.Name, e.Expr)
}
