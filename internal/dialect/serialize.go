package dialect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vk/jaffgo/internal/expr"
	"github.com/vk/jaffgo/internal/model"
)

// SerializePrizmo renders a network back into PRIZMO line format,
// "A + B -> C + D [tmin, tmax] rate", one reaction per line. Unbounded
// temperature limits serialize as empty fields.
func SerializePrizmo(n *model.Network) string {
	var b strings.Builder
	if len(n.CustomVars) > 0 {
		b.WriteString("VARIABLES{\n")
		for _, v := range n.CustomVars {
			fmt.Fprintf(&b, "  %s = %s\n", v.Name, expr.Render(v.Expr, expr.RenderOptions{}))
		}
		b.WriteString("}\n\n")
	}
	for _, r := range n.Reactions {
		fmt.Fprintf(&b, "%s [%s, %s] %s\n", r.Equation(), boundText(r.Tmin, ""), boundText(r.Tmax, ""), r.RawRate)
	}
	return b.String()
}

// SerializeKrome renders a network into KROME line format under the
// default @format declaration. Reactions with more than three reactants
// or four products do not fit the column layout and are an error.
func SerializeKrome(n *model.Network) (string, error) {
	var b strings.Builder
	for _, v := range n.CustomVars {
		fmt.Fprintf(&b, "@var:%s=%s\n", v.Name, expr.Render(v.Expr, expr.RenderOptions{}))
	}
	b.WriteString(defaultKromeFormat + "\n")
	for _, r := range n.Reactions {
		rr := expandNames(r.Reactants)
		pp := expandNames(r.Products)
		if len(rr) > 3 {
			return "", fmt.Errorf("reaction %d (%s): %d reactants exceed the krome column layout", r.Index, r.Equation(), len(rr))
		}
		if len(pp) > 4 {
			return "", fmt.Errorf("reaction %d (%s): %d products exceed the krome column layout", r.Index, r.Equation(), len(pp))
		}
		fields := []string{strconv.Itoa(r.Index + 1)}
		fields = append(fields, pad(rr, 3)...)
		fields = append(fields, pad(pp, 4)...)
		fields = append(fields, boundText(r.Tmin, "none"), boundText(r.Tmax, "none"), r.RawRate)
		b.WriteString(strings.Join(fields, ",") + "\n")
	}
	return b.String(), nil
}

func expandNames(entries []model.StoichEntry) []string {
	var names []string
	for _, e := range entries {
		for i := 0; i < e.Coeff; i++ {
			names = append(names, e.Species.Name)
		}
	}
	return names
}

func pad(names []string, n int) []string {
	out := make([]string, n)
	copy(out, names)
	return out
}

func boundText(v *float64, none string) string {
	if v == nil {
		return none
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
