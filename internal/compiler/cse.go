package compiler

import (
	"fmt"

	"github.com/vk/jaffgo/internal/expr"
)

// Def is one common-subexpression temporary. Value may reference earlier
// temporaries but never later ones.
type Def struct {
	Name  string
	Value expr.Expr
}

// Table is a deterministic common-subexpression table: every compound
// subtree occurring at least twice across the input expressions becomes a
// temporary, numbered cse0, cse1, ... in first-occurrence order with inner
// subtrees numbered before the trees containing them.
type Table struct {
	Defs []Def

	// names maps the key of an original subtree to its temporary.
	names map[string]string
}

// NewTable builds the table over the given expressions. Identical input
// slices always produce identical tables, whatever the platform.
func NewTable(exprs []expr.Expr) *Table {
	counts := map[string]int{}
	var order []string
	for _, e := range exprs {
		if e == nil {
			continue
		}
		postorder(e, func(n expr.Expr) {
			if !compound(n) {
				return
			}
			k := n.Key()
			if counts[k] == 0 {
				order = append(order, k)
			}
			counts[k]++
		})
	}

	t := &Table{names: map[string]string{}}
	for _, k := range order {
		if counts[k] >= 2 {
			t.names[k] = fmt.Sprintf("cse%d", len(t.names))
		}
	}

	// Materialize the definitions in numbering order. Rewriting a
	// candidate's own subtree assigns inner temporaries first, so each
	// Value only references temporaries already defined.
	defined := map[string]bool{}
	for _, e := range exprs {
		if e != nil {
			t.define(e, defined)
		}
	}
	return t
}

func (t *Table) define(e expr.Expr, defined map[string]bool) {
	postorder(e, func(n expr.Expr) {
		name, ok := t.names[n.Key()]
		if !ok || defined[name] {
			return
		}
		defined[name] = true
		t.Defs = append(t.Defs, Def{Name: name, Value: t.rewriteInner(n)})
	})
}

// Rewrite returns e with every tabled subtree replaced by its temporary.
func (t *Table) Rewrite(e expr.Expr) expr.Expr {
	if e == nil {
		return nil
	}
	if name, ok := t.names[e.Key()]; ok {
		return &expr.CSERef{Name: name}
	}
	return t.rewriteInner(e)
}

// rewriteInner rewrites the children of e but not e itself.
func (t *Table) rewriteInner(e expr.Expr) expr.Expr {
	switch n := e.(type) {
	case *expr.Binary:
		return &expr.Binary{Op: n.Op, Left: t.Rewrite(n.Left), Right: t.Rewrite(n.Right)}
	case *expr.Call:
		args := make([]expr.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = t.Rewrite(a)
		}
		return &expr.Call{Func: n.Func, Args: args}
	}
	return e
}

// Prune returns the subset of definitions needed by the given rewritten
// expressions, in table order. Temporaries referenced only through other
// temporaries are kept transitively.
func (t *Table) Prune(rewritten []expr.Expr) []Def {
	byName := make(map[string]expr.Expr, len(t.Defs))
	for _, d := range t.Defs {
		byName[d.Name] = d.Value
	}

	needed := map[string]bool{}
	var mark func(e expr.Expr)
	mark = func(e expr.Expr) {
		expr.Walk(e, func(n expr.Expr) {
			if ref, ok := n.(*expr.CSERef); ok && !needed[ref.Name] {
				needed[ref.Name] = true
				if v, ok := byName[ref.Name]; ok {
					mark(v)
				}
			}
		})
	}
	for _, e := range rewritten {
		if e != nil {
			mark(e)
		}
	}

	var out []Def
	for _, d := range t.Defs {
		if needed[d.Name] {
			out = append(out, d)
		}
	}
	return out
}

// compound reports whether a node is worth naming: operators and calls,
// but never opaque photorates calls, which are unique per reaction.
func compound(e expr.Expr) bool {
	switch n := e.(type) {
	case *expr.Binary:
		return true
	case *expr.Call:
		return n.Func != "photorates"
	}
	return false
}

// postorder visits children before parents, which makes first-occurrence
// numbering give inner temporaries smaller indices.
func postorder(e expr.Expr, visit func(expr.Expr)) {
	switch n := e.(type) {
	case *expr.Binary:
		postorder(n.Left, visit)
		postorder(n.Right, visit)
	case *expr.Call:
		for _, a := range n.Args {
			postorder(a, visit)
		}
	}
	visit(e)
}
