package render

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/vk/jaffgo/internal/expr"
)

// Reserved loop-variable names: "idx" is the positional token, "cse"
// marks temporary-declaration lines.
func reservedVar(name string) bool { return name == "idx" || name == "cse" }

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func tokenRe(name string) *regexp.Regexp {
	return regexp.MustCompile(`\$` + regexp.QuoteMeta(name) + `(\s*[+\-*/]\s*\d+)?\s*\$`)
}

// expandSub emits the body once with the listed scalar tokens substituted.
func (e *Engine) expandSub(file string, b *block) (string, error) {
	names := splitList(b.Args)
	if len(names) == 0 {
		return "", &SyntaxError{File: file, Line: b.Line, Msg: "SUB needs at least one token name"}
	}
	values := make(map[string]scalar, len(names))
	for _, name := range names {
		v, ok := e.scalarToken(name)
		if !ok {
			if name == "e_idx" {
				return "", &ReferenceError{File: file, Line: b.Line, Msg: "network has no electron species"}
			}
			return "", &ReferenceError{File: file, Line: b.Line, Msg: fmt.Sprintf("unknown token %q", name)}
		}
		values[name] = v
	}

	var out strings.Builder
	for _, line := range b.Body {
		s, err := substituteScalars(line, values)
		if err != nil {
			return "", &SyntaxError{File: file, Line: b.Line, Msg: err.Error()}
		}
		out.WriteString(s + "\n")
	}
	return out.String(), nil
}

// expandRepeat handles "REPEAT vars IN property [SORT] [CSE TRUE|FALSE]"
// for both data properties and compiled-expression properties.
func (e *Engine) expandRepeat(file string, b *block) (string, error) {
	before, after, found := strings.Cut(b.Args, " IN ")
	if !found {
		return "", &SyntaxError{File: file, Line: b.Line, Msg: `REPEAT arguments must be "vars IN property"`}
	}

	valueVar := ""
	for _, v := range splitList(before) {
		if !reservedVar(v) {
			valueVar = v
			break
		}
	}

	rest := strings.Fields(after)
	if len(rest) == 0 {
		return "", &SyntaxError{File: file, Line: b.Line, Msg: "REPEAT needs a property name"}
	}
	prop := rest[0]

	doSort := false
	cseOn := true
	for i := 1; i < len(rest); i++ {
		switch rest[i] {
		case "SORT":
			doSort = true
		case "CSE":
			if i+1 >= len(rest) {
				return "", &SyntaxError{File: file, Line: b.Line, Msg: "CSE needs TRUE or FALSE"}
			}
			switch rest[i+1] {
			case "TRUE":
				cseOn = true
			case "FALSE":
				cseOn = false
			default:
				return "", &SyntaxError{File: file, Line: b.Line, Msg: fmt.Sprintf("CSE needs TRUE or FALSE, got %q", rest[i+1])}
			}
			i++
		default:
			return "", &SyntaxError{File: file, Line: b.Line, Msg: fmt.Sprintf("unknown REPEAT modifier %q", rest[i])}
		}
	}

	switch prop {
	case "rates", "flux_expressions", "odes", "rhses", "jacobian":
		if doSort {
			return "", &SyntaxError{File: file, Line: b.Line, Msg: "SORT does not apply to expression properties"}
		}
		return e.expandExpression(file, b, valueVar, prop, cseOn)
	case "ode_expressions":
		if doSort {
			return "", &SyntaxError{File: file, Line: b.Line, Msg: "SORT does not apply to expression properties"}
		}
		if valueVar == "" {
			valueVar = "ode_expression"
		}
		if e.art == nil {
			return "", &ReferenceError{File: file, Line: b.Line, Msg: "no compiled artifacts available"}
		}
		return e.expandSequence(file, b, valueVar, flatSeq(e.fluxSumExpressions()))
	}

	defVar, seq, ok := e.iterableProperty(prop)
	if !ok {
		return "", &ReferenceError{File: file, Line: b.Line, Msg: fmt.Sprintf("unknown property %q", prop)}
	}
	if valueVar == "" {
		valueVar = defVar
	}
	if doSort {
		if seq.dim() == 2 {
			return "", &SyntaxError{File: file, Line: b.Line, Msg: "SORT does not apply to matrix properties"}
		}
		sortSequence(&seq)
	}
	return e.expandSequence(file, b, valueVar, seq)
}

// expandSequence runs the per-line loop over a resolved item sequence.
// Lines with an inline bracket site expand horizontally; lines mentioning
// the value variable or $idx$ repeat per item; everything else is copied.
func (e *Engine) expandSequence(file string, b *block, valueVar string, seq sequence) (string, error) {
	varRe := tokenRe(valueVar)
	var out strings.Builder

	for _, line := range b.Body {
		if seq.dim() == 1 {
			if done := writeHorizontal(&out, line, valueVar, seq.Items); done {
				continue
			}
		}

		spans := findIdxSpans(line)
		if len(spans) == 0 && !varRe.MatchString(line) {
			out.WriteString(line + "\n")
			continue
		}

		emit := func(indices []int, item string) error {
			s := substituteIdx(line, spans, indices...)
			s, err := substituteScalars(s, map[string]scalar{valueVar: itemScalar(item)})
			if err != nil {
				return &SyntaxError{File: file, Line: b.Line, Msg: err.Error()}
			}
			out.WriteString(s + "\n")
			return nil
		}

		if seq.dim() == 1 {
			for i, item := range seq.Items {
				if err := emit(uniformIndices(i, len(spans)), item); err != nil {
					return "", err
				}
			}
			continue
		}
		for i, row := range seq.Rows {
			for j, item := range row {
				if err := emit(matrixIndices(i, j, len(spans)), item); err != nil {
					return "", err
				}
			}
		}
	}
	return out.String(), nil
}

func uniformIndices(i, n int) []int {
	out := make([]int, n)
	for k := range out {
		out[k] = i
	}
	return out
}

// matrixIndices fills the first span with the row index and the rest with
// the column index.
func matrixIndices(i, j, n int) []int {
	out := make([]int, n)
	for k := range out {
		out[k] = j
	}
	if n > 0 {
		out[0] = i
	}
	return out
}

func itemScalar(item string) scalar {
	if n, err := strconv.Atoi(item); err == nil {
		return intScalar(n)
	}
	return textScalar(item)
}

func sortSequence(s *sequence) {
	items := append([]string{}, s.Items...)
	if s.Numeric {
		sort.Slice(items, func(i, j int) bool {
			a, _ := strconv.ParseFloat(items[i], 64)
			b, _ := strconv.ParseFloat(items[j], 64)
			return a < b
		})
	} else {
		sort.Strings(items)
	}
	s.Items = items
}

// writeHorizontal expands an inline bracket site like {"$specie$", } into
// the full joined list on one line. Returns false when the line has no
// such site (or mismatched quotes), leaving it to vertical expansion.
func writeHorizontal(out *strings.Builder, line, valueVar string, items []string) bool {
	re := horizontalPattern(valueVar)
	m := re.FindStringSubmatchIndex(line)
	if m == nil {
		return false
	}
	quoteOpen := line[m[4]:m[5]]
	quoteClose := line[m[6]:m[7]]
	if quoteOpen != quoteClose {
		return false
	}
	sep := line[m[8]:m[9]]
	if sep == "" {
		sep = ", "
	}
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = quoteOpen + item + quoteClose
	}
	repl := line[m[2]:m[3]] + strings.Join(quoted, sep) + line[m[10]:m[11]]
	out.WriteString(line[:m[0]] + repl + line[m[1]:] + "\n")
	return true
}

// expandExpression renders one compiled-expression property. Lines with a
// $cse$ token declare the block's temporaries; lines with the value token
// repeat per expression.
func (e *Engine) expandExpression(file string, b *block, valueVar, prop string, cseOn bool) (string, error) {
	if e.art == nil {
		return "", &ReferenceError{File: file, Line: b.Line, Msg: "no compiled artifacts available"}
	}
	opts := e.renderOptions()

	var source []expr.Expr
	cseCapable := false
	photo := false
	switch prop {
	case "rates":
		source, cseCapable, photo = e.art.Rates, true, true
		if valueVar == "" {
			valueVar = "rate"
		}
	case "flux_expressions":
		source = e.art.Fluxes
		if valueVar == "" {
			valueVar = "flux_expression"
		}
	case "odes":
		source, cseCapable = e.art.ODEs, true
		if valueVar == "" {
			valueVar = "ode"
		}
	case "rhses":
		source, cseCapable = e.art.ODEs, true
		if valueVar == "" {
			valueVar = "rhs"
		}
	case "jacobian":
		if valueVar == "" {
			valueVar = "expr"
		}
		return e.expandJacobian(file, b, valueVar, cseOn)
	}

	useCSE := cseOn && cseCapable
	rewritten := make([]expr.Expr, len(source))
	for i, x := range source {
		if useCSE {
			rewritten[i] = e.art.CSE.Rewrite(x)
		} else {
			rewritten[i] = x
		}
	}

	varRe := tokenRe(valueVar)
	cseRe := tokenRe("cse")
	var out strings.Builder

	for _, line := range b.Body {
		if cseRe.MatchString(line) {
			if !useCSE {
				continue
			}
			for _, d := range e.art.CSE.Prune(rewritten) {
				decl := e.cseDecl(d.Name, d.Value, opts)
				s, err := substituteScalars(line, map[string]scalar{"cse": textScalar(decl)})
				if err != nil {
					return "", &SyntaxError{File: file, Line: b.Line, Msg: err.Error()}
				}
				out.WriteString(s + "\n")
			}
			continue
		}

		spans := findIdxSpans(line)
		if len(spans) == 0 && !varRe.MatchString(line) {
			out.WriteString(line + "\n")
			continue
		}
		offset := 0
		if len(spans) > 0 {
			offset = spans[0].offset
		}
		for i, x := range rewritten {
			if photo {
				x = withPhotoIndex(x, i+offset)
			}
			s := substituteIdx(line, spans, uniformIndices(i, len(spans))...)
			s, err := substituteScalars(s, map[string]scalar{valueVar: textScalar(expr.Render(x, opts))})
			if err != nil {
				return "", &SyntaxError{File: file, Line: b.Line, Msg: err.Error()}
			}
			out.WriteString(s + "\n")
		}
	}
	return out.String(), nil
}

// cseDecl formats one temporary declaration in the target language:
// definition prefix, name, value, statement terminator.
func (e *Engine) cseDecl(name string, value expr.Expr, opts expr.RenderOptions) string {
	return e.desc.DefPrefix + name + " = " + expr.Render(value, opts) + e.desc.StatementEnd
}

// expandJacobian is the 2D variant, filled row-major. Entry lines carry
// either a single $idx$ token, expanded to the index pair with the
// language's matrix separator, or two $idx$ tokens with matching offsets
// for templates that spell both brackets out.
func (e *Engine) expandJacobian(file string, b *block, valueVar string, cseOn bool) (string, error) {
	opts := e.renderOptions()
	jac := e.art.Jacobian

	rewritten := make([][]expr.Expr, len(jac))
	var flat []expr.Expr
	for i, row := range jac {
		rewritten[i] = make([]expr.Expr, len(row))
		for j, x := range row {
			if cseOn {
				x = e.art.CSE.Rewrite(x)
			}
			rewritten[i][j] = x
			flat = append(flat, x)
		}
	}

	varRe := tokenRe(valueVar)
	cseRe := tokenRe("cse")
	var out strings.Builder

	for _, line := range b.Body {
		if cseRe.MatchString(line) {
			if !cseOn {
				continue
			}
			for _, d := range e.art.CSE.Prune(flat) {
				decl := e.cseDecl(d.Name, d.Value, opts)
				s, err := substituteScalars(line, map[string]scalar{"cse": textScalar(decl)})
				if err != nil {
					return "", &SyntaxError{File: file, Line: b.Line, Msg: err.Error()}
				}
				out.WriteString(s + "\n")
			}
			continue
		}

		if !varRe.MatchString(line) {
			out.WriteString(line + "\n")
			continue
		}
		spans := findIdxSpans(line)
		var fill func(i, j int) string
		switch {
		case len(spans) == 1:
			s := spans[0]
			fill = func(i, j int) string {
				pair := strconv.Itoa(i+s.offset) + e.desc.MatrixSep + strconv.Itoa(j+s.offset)
				return line[:s.begin] + pair + line[s.end:]
			}
		case len(spans) == 2 && spans[0].offset == spans[1].offset:
			fill = func(i, j int) string {
				return substituteIdx(line, spans, i, j)
			}
		default:
			return "", &SyntaxError{File: file, Line: b.Line, Msg: "jacobian entry lines need one or two $idx$ tokens with matching offsets"}
		}
		for i, row := range rewritten {
			for j, x := range row {
				s := fill(i, j)
				s, err := substituteScalars(s, map[string]scalar{valueVar: textScalar(expr.Render(x, opts))})
				if err != nil {
					return "", &SyntaxError{File: file, Line: b.Line, Msg: err.Error()}
				}
				out.WriteString(s + "\n")
			}
		}
	}
	return out.String(), nil
}

// fluxSumExpressions builds the per-species right-hand side as a signed
// sum over the flux array, e.g. "-flux[0] + 2*flux[3]".
func (e *Engine) fluxSumExpressions() []string {
	d := e.desc
	fluxRef := func(j int) string {
		return "flux" + d.Left() + strconv.Itoa(j+d.IndexBase) + d.Right()
	}

	net := make([]map[int]int, len(e.net.Reactions))
	for j, r := range e.net.Reactions {
		net[j] = map[int]int{}
		for _, entry := range r.Reactants {
			if i, ok := e.net.SpeciesIndex(entry.Species.Name); ok {
				net[j][i] -= entry.Coeff
			}
		}
		for _, entry := range r.Products {
			if i, ok := e.net.SpeciesIndex(entry.Species.Name); ok {
				net[j][i] += entry.Coeff
			}
		}
	}

	out := make([]string, len(e.net.Species))
	for i := range e.net.Species {
		var sb strings.Builder
		for j := range e.net.Reactions {
			c := net[j][i]
			if c == 0 {
				continue
			}
			switch {
			case sb.Len() == 0 && c < 0:
				sb.WriteString("-")
			case sb.Len() > 0 && c < 0:
				sb.WriteString(" - ")
			case sb.Len() > 0:
				sb.WriteString(" + ")
			}
			abs := c
			if abs < 0 {
				abs = -abs
			}
			if abs != 1 {
				sb.WriteString(strconv.Itoa(abs) + "*")
			}
			sb.WriteString(fluxRef(j))
		}
		if sb.Len() == 0 {
			sb.WriteString("0")
		}
		out[i] = sb.String()
	}
	return out
}

// withPhotoIndex rebinds the counter argument of every photorates call to
// the concrete reaction index of the generated rate array.
func withPhotoIndex(x expr.Expr, idx int) expr.Expr {
	switch n := x.(type) {
	case *expr.Binary:
		return &expr.Binary{Op: n.Op, Left: withPhotoIndex(n.Left, idx), Right: withPhotoIndex(n.Right, idx)}
	case *expr.Call:
		args := make([]expr.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = withPhotoIndex(a, idx)
		}
		if n.Func == "photorates" && len(args) > 0 {
			args[0] = expr.Num(float64(idx))
		}
		return &expr.Call{Func: n.Func, Args: args}
	}
	return x
}

func (e *Engine) renderOptions() expr.RenderOptions {
	return expr.RenderOptions{
		Power:     e.desc.Power,
		Exponent:  e.desc.Exponent,
		Bracket:   e.desc.Bracket,
		IndexBase: e.desc.IndexBase,
	}
}

// expandGet resolves the listed properties of one named entity and emits
// the body once.
func (e *Engine) expandGet(file string, b *block) (string, error) {
	before, entity, found := strings.Cut(b.Args, " FOR ")
	if !found {
		return "", &SyntaxError{File: file, Line: b.Line, Msg: "GET requires FOR <entity>"}
	}
	entity = strings.TrimSpace(entity)
	if entity == "" {
		return "", &SyntaxError{File: file, Line: b.Line, Msg: "GET requires FOR <entity>"}
	}
	props := splitList(before)
	if len(props) == 0 {
		return "", &SyntaxError{File: file, Line: b.Line, Msg: "GET needs at least one property name"}
	}

	values := make(map[string]scalar, len(props))
	for _, p := range props {
		v, err := e.getProperty(p, entity)
		if err != nil {
			return "", &ReferenceError{File: file, Line: b.Line, Msg: err.Error()}
		}
		values[p] = v
	}

	var out strings.Builder
	for _, line := range b.Body {
		s, err := substituteScalars(line, values)
		if err != nil {
			return "", &SyntaxError{File: file, Line: b.Line, Msg: err.Error()}
		}
		out.WriteString(s + "\n")
	}
	return out.String(), nil
}

// expandHas emits 1 or 0 for an existence query, either standalone or
// substituted into the body's $has$ token.
func (e *Engine) expandHas(file string, b *block) (string, error) {
	fields := strings.Fields(b.Args)
	if len(fields) != 2 {
		return "", &SyntaxError{File: file, Line: b.Line, Msg: "HAS requires an entity kind and a name"}
	}
	v, err := e.hasEntity(fields[0], fields[1])
	if err != nil {
		return "", &SyntaxError{File: file, Line: b.Line, Msg: err.Error()}
	}
	if len(b.Body) == 0 {
		return strconv.Itoa(v) + "\n", nil
	}

	var out strings.Builder
	for _, line := range b.Body {
		s, err := substituteScalars(line, map[string]scalar{"has": intScalar(v)})
		if err != nil {
			return "", &SyntaxError{File: file, Line: b.Line, Msg: err.Error()}
		}
		out.WriteString(s + "\n")
	}
	return out.String(), nil
}

var reduceFormulaRe = regexp.MustCompile(`\$\((.*)\)\$`)

// expandReduce joins one copy of the formula per item. The separator is
// the literal text between two bound-variable mentions; a single mention
// joins with ", ".
func (e *Engine) expandReduce(file string, b *block) (string, error) {
	varName, prop, found := strings.Cut(b.Args, " IN ")
	if !found {
		return "", &SyntaxError{File: file, Line: b.Line, Msg: `REDUCE arguments must be "var IN property"`}
	}
	varName = strings.TrimSpace(varName)
	prop = strings.TrimSpace(prop)

	_, seq, ok := e.iterableProperty(prop)
	if !ok {
		return "", &ReferenceError{File: file, Line: b.Line, Msg: fmt.Sprintf("unknown property %q", prop)}
	}
	if seq.dim() == 2 {
		return "", &SyntaxError{File: file, Line: b.Line, Msg: "REDUCE does not apply to matrix properties"}
	}

	mentionRe := regexp.MustCompile(`\$` + regexp.QuoteMeta(varName) + `\$`)
	var out strings.Builder
	for _, line := range b.Body {
		m := reduceFormulaRe.FindStringSubmatchIndex(line)
		if m == nil {
			out.WriteString(line + "\n")
			continue
		}
		formula := line[m[2]:m[3]]
		mentions := mentionRe.FindAllStringIndex(formula, -1)
		if len(mentions) == 0 {
			return "", &SyntaxError{File: file, Line: b.Line, Msg: "REDUCE formula must reference its bound variable"}
		}
		prefix := formula[:mentions[0][0]]
		suffix := formula[mentions[len(mentions)-1][1]:]
		sep := ", "
		if len(mentions) >= 2 {
			sep = formula[mentions[0][1]:mentions[1][0]]
		}
		out.WriteString(line[:m[0]] + prefix + strings.Join(seq.Items, sep) + suffix + line[m[1]:] + "\n")
	}
	return out.String(), nil
}
