package expr

import (
	"fmt"
	"math"
)

// Env supplies the numeric bindings for evaluation.
type Env struct {
	// Vars binds primitive and custom variable names to values.
	Vars map[string]float64

	// Conc and Rates back the Conc/RateRef nodes by index.
	Conc  []float64
	Rates []float64

	// CSE binds common-subexpression temporary names.
	CSE map[string]float64
}

// UnboundVariableError reports a variable with no binding in the Env.
type UnboundVariableError struct {
	Name string
}

func (e *UnboundVariableError) Error() string {
	return fmt.Sprintf("variable %q is not bound", e.Name)
}

// OpaqueCallError reports an attempt to numerically evaluate a function
// with no builtin implementation (e.g. photorates).
type OpaqueCallError struct {
	Func string
}

func (e *OpaqueCallError) Error() string {
	return fmt.Sprintf("cannot evaluate opaque function %q", e.Func)
}

// Eval numerically evaluates e against env. Builtin functions (exp, log,
// log10, sqrt, min, max) are computed directly; any other call is an
// OpaqueCallError.
func Eval(e Expr, env Env) (float64, error) {
	switch n := e.(type) {
	case *Constant:
		return n.Value, nil

	case *Primitive:
		v, ok := env.Vars[n.Name]
		if !ok {
			return 0, &UnboundVariableError{Name: n.Name}
		}
		return v, nil

	case *Custom:
		v, ok := env.Vars[n.Name]
		if !ok {
			return 0, &UnboundVariableError{Name: n.Name}
		}
		return v, nil

	case *Conc:
		if n.Index < 0 || n.Index >= len(env.Conc) {
			return 0, fmt.Errorf("concentration index %d out of range", n.Index)
		}
		return env.Conc[n.Index], nil

	case *RateRef:
		if n.Index < 0 || n.Index >= len(env.Rates) {
			return 0, fmt.Errorf("rate index %d out of range", n.Index)
		}
		return env.Rates[n.Index], nil

	case *CSERef:
		v, ok := env.CSE[n.Name]
		if !ok {
			return 0, &UnboundVariableError{Name: n.Name}
		}
		return v, nil

	case *Binary:
		l, err := Eval(n.Left, env)
		if err != nil {
			return 0, err
		}
		r, err := Eval(n.Right, env)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case OpAdd:
			return l + r, nil
		case OpSub:
			return l - r, nil
		case OpMul:
			return l * r, nil
		case OpDiv:
			return l / r, nil
		case OpPow:
			return math.Pow(l, r), nil
		}
		return 0, fmt.Errorf("unknown operator %v", n.Op)

	case *Call:
		args := make([]float64, len(n.Args))
		for i, a := range n.Args {
			v, err := Eval(a, env)
			if err != nil {
				return 0, err
			}
			args[i] = v
		}
		return evalCall(n.Func, args)
	}
	return 0, fmt.Errorf("unknown expression node %T", e)
}

func evalCall(name string, args []float64) (float64, error) {
	switch name {
	case "exp":
		if len(args) == 1 {
			return math.Exp(args[0]), nil
		}
	case "log":
		if len(args) == 1 {
			return math.Log(args[0]), nil
		}
	case "log10":
		if len(args) == 1 {
			return math.Log10(args[0]), nil
		}
	case "sqrt":
		if len(args) == 1 {
			return math.Sqrt(args[0]), nil
		}
	case "min":
		if len(args) == 2 {
			return math.Min(args[0], args[1]), nil
		}
	case "max":
		if len(args) == 2 {
			return math.Max(args[0], args[1]), nil
		}
	default:
		return 0, &OpaqueCallError{Func: name}
	}
	return 0, fmt.Errorf("wrong argument count for %s: got %d", name, len(args))
}
