package render

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// scalar is a resolved token value: Text is what gets substituted, Int is
// set when the value supports $token+N$ arithmetic.
type scalar struct {
	Text  string
	Int   int
	IsInt bool
}

func intScalar(v int) scalar     { return scalar{Text: strconv.Itoa(v), Int: v, IsInt: true} }
func textScalar(s string) scalar { return scalar{Text: s} }

// substituteScalars replaces every $token$ or $token±N$ occurrence of the
// given tokens in one line. Arithmetic applies to integer tokens only;
// using it on a text token is an error.
func substituteScalars(line string, values map[string]scalar) (string, error) {
	if len(values) == 0 {
		return line, nil
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, regexp.QuoteMeta(name))
	}
	// Longest name first so $nspec_ne$ never matches as $nspec$.
	sortByLengthDesc(names)
	re := regexp.MustCompile(`\$(?:` + strings.Join(names, "|") + `)(\s*[+\-*/]\s*\d+)?\s*\$`)

	var substErr error
	out := re.ReplaceAllStringFunc(line, func(match string) string {
		inner := strings.TrimSuffix(strings.TrimPrefix(match, "$"), "$")
		inner = strings.TrimSpace(inner)
		name := inner
		var op byte
		var operand int
		if i := strings.IndexAny(inner, "+-*/"); i >= 0 {
			name = strings.TrimSpace(inner[:i])
			op = inner[i]
			n, err := strconv.Atoi(strings.TrimSpace(inner[i+1:]))
			if err != nil {
				substErr = fmt.Errorf("invalid arithmetic in %q: %w", match, err)
				return match
			}
			operand = n
		}
		v, ok := values[name]
		if !ok {
			return match
		}
		if op == 0 {
			return v.Text
		}
		if !v.IsInt {
			substErr = fmt.Errorf("arithmetic on non-integer token %q", name)
			return match
		}
		switch op {
		case '+':
			return strconv.Itoa(v.Int + operand)
		case '-':
			return strconv.Itoa(v.Int - operand)
		case '*':
			return strconv.Itoa(v.Int * operand)
		case '/':
			if operand == 0 {
				substErr = fmt.Errorf("division by zero in %q", match)
				return match
			}
			return strconv.Itoa(v.Int / operand)
		}
		return match
	})
	return out, substErr
}

var idxTokenRe = regexp.MustCompile(`\$idx([+-]\d+)?\$`)

// idxSpan is one $idx$ or $idx+N$ occurrence in a template line.
type idxSpan struct {
	begin, end int
	offset     int
}

func findIdxSpans(line string) []idxSpan {
	var spans []idxSpan
	for _, m := range idxTokenRe.FindAllStringSubmatchIndex(line, -1) {
		off := 0
		if m[2] >= 0 {
			off, _ = strconv.Atoi(line[m[2]:m[3]])
		}
		spans = append(spans, idxSpan{begin: m[0], end: m[1], offset: off})
	}
	return spans
}

// substituteIdx replaces the idx token spans with concrete indices, right
// to left so earlier spans stay valid.
func substituteIdx(line string, spans []idxSpan, indices ...int) string {
	for i := len(spans) - 1; i >= 0; i-- {
		s := spans[i]
		line = line[:s.begin] + strconv.Itoa(indices[i]+s.offset) + line[s.end:]
	}
	return line
}

// horizontalPattern matches an inline sequence site for the given value
// variable: an opening bracket, the quoted-or-bare token, an optional
// separator run and a closing bracket, e.g. {"$specie$", } or [$mass$].
func horizontalPattern(varName string) *regexp.Regexp {
	return regexp.MustCompile(
		`([\(\{<\[])\s*(["']?)\$` + regexp.QuoteMeta(varName) + `\$` + `(["']?)([,;:\s]*)\s*([\)\}>\]])`)
}

func sortByLengthDesc(names []string) {
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
}
