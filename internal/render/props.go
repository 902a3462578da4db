package render

import (
	"fmt"
	"strconv"

	"github.com/vk/jaffgo/internal/model"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatBound(v *float64) string {
	if v == nil {
		return "NONE"
	}
	return formatFloat(*v)
}

// scalarToken resolves one SUB token against the network.
func (e *Engine) scalarToken(name string) (scalar, bool) {
	switch name {
	case "nspec":
		return intScalar(len(e.net.Species)), true
	case "nspec_ne":
		return intScalar(len(e.net.SpeciesNE())), true
	case "nreact":
		return intScalar(len(e.net.Reactions)), true
	case "nelem":
		return intScalar(len(e.net.Elements)), true
	case "label":
		return textScalar(e.net.Label), true
	case "filename":
		return textScalar(e.net.FileName), true
	case "e_idx":
		if i, ok := e.net.ElectronIndex(); ok {
			return intScalar(i), true
		}
		return scalar{}, false
	}
	return scalar{}, false
}

// sequence is the resolved value of an iterable REPEAT/REDUCE property:
// rows of pre-rendered item strings. Flat sequences have one row per item
// with a single column collapsed into Items; matrices keep Rows.
type sequence struct {
	Items   []string   // dim 1
	Rows    [][]string // dim 2
	Numeric bool       // numeric ordering under SORT
}

func (s sequence) dim() int {
	if s.Rows != nil {
		return 2
	}
	return 1
}

func flatSeq(items []string) sequence    { return sequence{Items: items} }
func numericSeq(items []string) sequence { return sequence{Items: items, Numeric: true} }
func matrixSeq(rows [][]string) sequence { return sequence{Rows: rows} }

// iterableProperty resolves a REPEAT/REDUCE property name to its bound
// value-variable name and item sequence.
func (e *Engine) iterableProperty(name string) (varName string, seq sequence, ok bool) {
	speciesNames := func(list []*model.Species) []string {
		out := make([]string, len(list))
		for i, s := range list {
			out[i] = s.Name
		}
		return out
	}
	intItems := func(vals []int) []string {
		out := make([]string, len(vals))
		for i, v := range vals {
			out[i] = strconv.Itoa(v)
		}
		return out
	}

	switch name {
	case "species":
		return "specie", flatSeq(speciesNames(e.net.Species)), true
	case "species_ne":
		return "specie", flatSeq(speciesNames(e.net.SpeciesNE())), true
	case "species_with_normalized_sign":
		names := speciesNames(e.net.Species)
		for i, n := range names {
			names[i] = normalizeSign(n)
		}
		return "specie", flatSeq(names), true
	case "fidxs":
		out := make([]string, len(e.net.Species))
		for i, s := range e.net.Species {
			out[i] = s.Fidx
		}
		return "fidx", flatSeq(out), true
	case "elements":
		return "element", flatSeq(append([]string{}, e.net.Elements...)), true
	case "masses":
		return "mass", numericSeq(massItems(e.net.Species)), true
	case "masses_ne", "specie_masses_ne":
		v := "mass"
		if name == "specie_masses_ne" {
			v = "specie_mass_ne"
		}
		return v, numericSeq(massItems(e.net.SpeciesNE())), true
	case "charges":
		return "charge", numericSeq(chargeItems(e.net.Species)), true
	case "charges_ne":
		return "charge", numericSeq(chargeItems(e.net.SpeciesNE())), true
	case "charged_species":
		return "charged_specie", flatSeq(speciesNames(e.net.ChargedSpecies())), true
	case "uncharged_species":
		return "uncharged_specie", flatSeq(speciesNames(e.net.UnchargedSpecies())), true
	case "charged_specie_indices_ne":
		var idx []int
		for i, s := range e.net.Species {
			if s.Charge != 0 && !s.IsElectron {
				idx = append(idx, i)
			}
		}
		return "charged_specie_index_ne", numericSeq(intItems(idx)), true
	case "non_zero_charge_indices":
		var idx []int
		for i, s := range e.net.Species {
			if s.Charge != 0 {
				idx = append(idx, i)
			}
		}
		return "non_zero_charge_index", numericSeq(intItems(idx)), true
	case "zero_charge_indices":
		var idx []int
		for i, s := range e.net.Species {
			if s.Charge == 0 {
				idx = append(idx, i)
			}
		}
		return "zero_charge_index", numericSeq(intItems(idx)), true
	case "charge_truth_values":
		vals := make([]int, len(e.net.Species))
		for i, s := range e.net.Species {
			if s.Charge != 0 {
				vals[i] = 1
			}
		}
		return "charge_truth_value", numericSeq(intItems(vals)), true
	case "reactions":
		out := make([]string, len(e.net.Reactions))
		for i, r := range e.net.Reactions {
			out[i] = r.Equation()
		}
		return "reaction", flatSeq(out), true
	case "reactants", "products":
		rows := make([][]string, len(e.net.Reactions))
		for i, r := range e.net.Reactions {
			side := r.Reactants
			if name == "products" {
				side = r.Products
			}
			for _, entry := range side {
				for c := 0; c < entry.Coeff; c++ {
					rows[i] = append(rows[i], entry.Species.Name)
				}
			}
		}
		v := "reactant"
		if name == "products" {
			v = "product"
		}
		return v, matrixSeq(rows), true
	case "photo_reactions":
		var out []string
		for _, r := range e.net.Reactions {
			if r.GuessType() == "photo" {
				out = append(out, r.Equation())
			}
		}
		return "photo_reaction", flatSeq(out), true
	case "photo_reaction_indices":
		var idx []int
		for i, r := range e.net.Reactions {
			if r.GuessType() == "photo" {
				idx = append(idx, i)
			}
		}
		return "photo_reaction_index", numericSeq(intItems(idx)), true
	case "photo_reaction_truth_values":
		vals := make([]int, len(e.net.Reactions))
		for i, r := range e.net.Reactions {
			if r.GuessType() == "photo" {
				vals[i] = 1
			}
		}
		return "photo_reaction_truth_value", numericSeq(intItems(vals)), true
	case "tmins":
		out := make([]string, len(e.net.Reactions))
		for i, r := range e.net.Reactions {
			out[i] = formatBound(r.Tmin)
		}
		return "tmin", flatSeq(out), true
	case "tmaxes":
		out := make([]string, len(e.net.Reactions))
		for i, r := range e.net.Reactions {
			out[i] = formatBound(r.Tmax)
		}
		return "tmax", flatSeq(out), true
	case "element_density_matrix":
		m := e.net.ElementCountMatrix()
		rows := make([][]string, len(m))
		for i, row := range m {
			rows[i] = intItems(row)
		}
		return "element", matrixSeq(rows), true
	case "element_truth_matrix":
		m := e.net.ElementCountMatrix()
		rows := make([][]string, len(m))
		for i, row := range m {
			vals := make([]int, len(row))
			for j, v := range row {
				if v > 0 {
					vals[j] = 1
				}
			}
			rows[i] = intItems(vals)
		}
		return "element", matrixSeq(rows), true
	}
	return "", sequence{}, false
}

func massItems(list []*model.Species) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = formatFloat(s.Mass)
	}
	return out
}

func chargeItems(list []*model.Species) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = strconv.Itoa(s.Charge)
	}
	return out
}

func normalizeSign(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '+':
			out = append(out, 'p')
		case '-':
			out = append(out, 'n')
		default:
			out = append(out, name[i])
		}
	}
	return string(out)
}

// getProperty resolves one GET token for the named entity.
func (e *Engine) getProperty(prop, entity string) (scalar, error) {
	speciesFor := func() (*model.Species, error) {
		i, ok := e.net.SpeciesIndex(entity)
		if !ok {
			return nil, fmt.Errorf("unknown species %q", entity)
		}
		return e.net.Species[i], nil
	}
	reactionFor := func() (*model.Reaction, error) {
		i, ok := e.net.ReactionIndex(entity)
		if !ok {
			return nil, fmt.Errorf("unknown reaction %q", entity)
		}
		return e.net.Reactions[i], nil
	}

	switch prop {
	case "specie_idx":
		i, ok := e.net.SpeciesIndex(entity)
		if !ok {
			return scalar{}, fmt.Errorf("unknown species %q", entity)
		}
		return intScalar(i), nil
	case "specie_mass":
		s, err := speciesFor()
		if err != nil {
			return scalar{}, err
		}
		return textScalar(formatFloat(s.Mass)), nil
	case "specie_charge":
		s, err := speciesFor()
		if err != nil {
			return scalar{}, err
		}
		return intScalar(s.Charge), nil
	case "element_idx":
		i, ok := e.net.ElementIndex(entity)
		if !ok {
			return scalar{}, fmt.Errorf("unknown element %q", entity)
		}
		return intScalar(i), nil
	case "reaction_idx":
		r, err := reactionFor()
		if err != nil {
			return scalar{}, err
		}
		return intScalar(r.Index), nil
	case "reaction_tmin":
		r, err := reactionFor()
		if err != nil {
			return scalar{}, err
		}
		return textScalar(formatBound(r.Tmin)), nil
	case "reaction_tmax":
		r, err := reactionFor()
		if err != nil {
			return scalar{}, err
		}
		return textScalar(formatBound(r.Tmax)), nil
	case "reaction_verbatim":
		r, err := reactionFor()
		if err != nil {
			return scalar{}, err
		}
		return textScalar(r.Verbatim), nil
	}
	return scalar{}, fmt.Errorf("unknown property %q", prop)
}

// hasEntity answers HAS queries for the three entity kinds.
func (e *Engine) hasEntity(kind, entity string) (int, error) {
	switch kind {
	case "specie":
		if _, ok := e.net.SpeciesIndex(entity); ok {
			return 1, nil
		}
		return 0, nil
	case "reaction":
		if _, ok := e.net.ReactionIndex(entity); ok {
			return 1, nil
		}
		return 0, nil
	case "element":
		if _, ok := e.net.ElementIndex(entity); ok {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("unknown entity kind %q", kind)
}
