// Package builder resolves parsed network files into the canonical model:
// species are interned in first-appearance order, custom variables are
// checked for cycles and inlined, rate text becomes expression trees with
// temperature clamping applied.
package builder

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/vk/jaffgo/internal/ctxlog"
	"github.com/vk/jaffgo/internal/dag"
	"github.com/vk/jaffgo/internal/dialect"
	"github.com/vk/jaffgo/internal/expr"
	"github.com/vk/jaffgo/internal/model"
)

// kromeShortcuts are the customary KROME rate-table abbreviations, seeded
// before any file-declared variable so networks may use them freely.
var kromeShortcuts = []dialect.Variable{
	{Name: "t32", Expr: "tgas/3e2"},
	{Name: "te", Expr: "tgas*8.617343e-5"},
	{Name: "invt32", Expr: "1e0/t32"},
	{Name: "invte", Expr: "1e0/te"},
	{Name: "invtgas", Expr: "1e0/tgas"},
	{Name: "sqrtgas", Expr: "sqrt(tgas)"},
}

// Options tweaks network assembly. The zero value is usable.
type Options struct {
	// Label names the network; empty means the file name is used.
	Label string

	// Masses overrides the built-in element mass table.
	Masses model.MassTable
}

// photoCall matches the parenthesized photo-rate form "photo(args...)".
var photoCall = regexp.MustCompile(`(?i)^photo\((.*)\)`)

// defaultPhotoThreshold is the energy threshold used when a photo rate
// does not declare one.
const defaultPhotoThreshold = "1e99"

// Build assembles a Network from a parsed file.
func Build(ctx context.Context, f *dialect.File, opts Options) (*model.Network, error) {
	log := ctxlog.FromContext(ctx)

	masses := opts.Masses
	if masses == nil {
		masses = model.DefaultMassTable()
	}
	label := opts.Label
	if label == "" {
		label = f.Name
	}

	vars, err := resolveVariables(ctx, append(append([]dialect.Variable{}, kromeShortcuts...), f.Variables...))
	if err != nil {
		return nil, err
	}
	varTable := make(map[string]expr.Expr, len(vars))
	for _, v := range vars {
		varTable[v.Name] = v.Expr
	}
	isCustom := func(name string) bool {
		_, ok := varTable[name]
		return ok
	}

	var (
		species     []*model.Species
		speciesIdx  = map[string]int{}
		reactions   []*model.Reaction
		nPhoto      int
		usedSymbols = map[string]bool{}
	)

	intern := func(name string) (*model.Species, error) {
		if i, ok := speciesIdx[name]; ok {
			return species[i], nil
		}
		s, err := model.NewSpecies(name, len(species), masses)
		if err != nil {
			return nil, err
		}
		speciesIdx[name] = len(species)
		species = append(species, s)
		return s, nil
	}

	for _, d := range f.Drafts {
		rateText := strings.TrimSpace(strings.ToLower(d.Rate))

		var rate expr.Expr
		if strings.Contains(rateText, "photo") {
			rate, err = buildPhotoRate(rateText, nPhoto, isCustom)
			if err != nil {
				return nil, &dialect.ParseError{File: f.Name, Line: d.Line, Dialect: d.Dialect, Msg: err.Error()}
			}
			nPhoto++
		} else {
			rate, err = expr.Parse(rateText, isCustom)
			if err != nil {
				return nil, &dialect.ParseError{File: f.Name, Line: d.Line, Dialect: d.Dialect, Msg: err.Error()}
			}
		}

		// Inline custom variables, then clamp tgas to the validity range.
		// Clamping is sequential so the upper bound applies inside the
		// lower one: tgas -> max(min(tgas, tmax), tmin).
		for i := len(vars) - 1; i >= 0; i-- {
			rate = expr.Substitute(rate, &expr.Custom{Name: vars[i].Name}, vars[i].Expr)
		}
		tgas := &expr.Primitive{Name: "tgas"}
		if d.Tmin != nil && *d.Tmin > 0 {
			rate = expr.Substitute(rate, tgas, &expr.Call{Func: "max", Args: []expr.Expr{tgas, expr.Num(*d.Tmin)}})
		}
		if d.Tmax != nil && *d.Tmax > 0 {
			rate = expr.Substitute(rate, tgas, &expr.Call{Func: "min", Args: []expr.Expr{tgas, expr.Num(*d.Tmax)}})
		}

		for _, name := range expr.FreeVariables(rate) {
			usedSymbols[name] = true
		}

		rr, err := internSide(d.Reactants, intern)
		if err != nil {
			return nil, &dialect.ParseError{File: f.Name, Line: d.Line, Dialect: d.Dialect, Msg: err.Error()}
		}
		pp, err := internSide(d.Products, intern)
		if err != nil {
			return nil, &dialect.ParseError{File: f.Name, Line: d.Line, Dialect: d.Dialect, Msg: err.Error()}
		}

		reactions = append(reactions, &model.Reaction{
			Index:     len(reactions),
			Reactants: rr,
			Products:  pp,
			Rate:      rate,
			RawRate:   rateText,
			Tmin:      d.Tmin,
			Tmax:      d.Tmax,
			Dialect:   d.Dialect,
			Verbatim:  d.Verbatim,
		})
	}

	customVars := make([]model.CustomVar, len(vars))
	for i, v := range vars {
		customVars[i] = model.CustomVar{Name: v.Name, Expr: v.Expr}
	}

	log.Info("network loaded",
		"label", label,
		"species", len(species),
		"reactions", len(reactions),
		"photo_reactions", nPhoto,
		"variables", symbolList(usedSymbols))

	return model.NewNetwork(label, f.Name, species, reactions, customVars), nil
}

// resolvedVar is a custom variable with its expression fully inlined: no
// references to other custom variables remain.
type resolvedVar struct {
	Name string
	Expr expr.Expr
}

// resolveVariables parses the declarations, rejects circular references
// and inlines each variable's dependencies. Later declarations of the
// same name override earlier ones. Declarations that fail to parse are
// dropped with a warning; rates referencing them will fail resolution.
func resolveVariables(ctx context.Context, decls []dialect.Variable) ([]resolvedVar, error) {
	log := ctxlog.FromContext(ctx)

	// Deduplicate by name, keeping the first position and the last text.
	var order []string
	byName := map[string]string{}
	for _, d := range decls {
		if _, seen := byName[d.Name]; !seen {
			order = append(order, d.Name)
		}
		byName[d.Name] = d.Expr
	}

	declared := func(name string) bool {
		_, ok := byName[name]
		return ok
	}

	parsed := map[string]expr.Expr{}
	g := dag.New()
	for _, name := range order {
		e, err := expr.Parse(byName[name], declared)
		if err != nil {
			log.Warn("dropping unparsable variable", "name", name, "error", err)
			continue
		}
		parsed[name] = e
		g.AddNode(name)
	}
	for name, e := range parsed {
		expr.Walk(e, func(n expr.Expr) {
			if c, ok := n.(*expr.Custom); ok && g.Has(c.Name) {
				// Edge direction: dependency first.
				_ = g.AddEdge(c.Name, name)
			}
		})
	}
	if err := g.DetectCycles(); err != nil {
		return nil, fmt.Errorf("circular custom variable definition: %w", err)
	}
	topo, err := g.TopoSort()
	if err != nil {
		return nil, err
	}

	inlined := map[string]expr.Expr{}
	for _, name := range topo {
		e := parsed[name]
		expr.Walk(parsed[name], func(n expr.Expr) {
			if c, ok := n.(*expr.Custom); ok {
				if dep, ok := inlined[c.Name]; ok {
					e = expr.Substitute(e, c, dep)
				}
			}
		})
		inlined[name] = e
	}

	out := make([]resolvedVar, 0, len(order))
	for _, name := range order {
		if e, ok := inlined[name]; ok {
			out = append(out, resolvedVar{Name: name, Expr: e})
		}
	}
	return out, nil
}

// buildPhotoRate turns photo-tagged rate text into an opaque photorates
// call carrying the running photo-reaction index and the threshold
// arguments: "photo(a, b)" or "photo, a, b" with a 1e99 default.
func buildPhotoRate(rateText string, nPhoto int, isCustom func(string) bool) (expr.Expr, error) {
	var argTexts []string
	if m := photoCall.FindStringSubmatch(rateText); m != nil {
		for _, a := range strings.Split(m[1], ",") {
			argTexts = append(argTexts, strings.TrimSpace(a))
		}
		if len(argTexts) < 2 {
			argTexts = append(argTexts, defaultPhotoThreshold)
		}
	} else {
		parts := strings.Split(rateText, ",")
		if len(parts) < 3 {
			parts = append(parts, defaultPhotoThreshold)
		}
		for _, a := range parts[1:3] {
			argTexts = append(argTexts, strings.TrimSpace(a))
		}
	}

	args := []expr.Expr{expr.Num(float64(nPhoto))}
	for _, a := range argTexts {
		e, err := expr.Parse(a, isCustom)
		if err != nil {
			return nil, fmt.Errorf("invalid photo rate argument %q: %w", a, err)
		}
		args = append(args, e)
	}
	return &expr.Call{Func: "photorates", Args: args}, nil
}

// internSide converts one side's species names into stoichiometric
// entries, folding repeats into coefficients while keeping first-
// occurrence order.
func internSide(names []string, intern func(string) (*model.Species, error)) ([]model.StoichEntry, error) {
	var entries []model.StoichEntry
	pos := map[string]int{}
	for _, name := range names {
		if i, ok := pos[name]; ok {
			entries[i].Coeff++
			continue
		}
		s, err := intern(name)
		if err != nil {
			return nil, err
		}
		pos[name] = len(entries)
		entries = append(entries, model.StoichEntry{Species: s, Coeff: 1})
	}
	return entries, nil
}

func symbolList(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
