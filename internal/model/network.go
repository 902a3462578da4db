package model

import (
	"sort"

	"github.com/vk/jaffgo/internal/expr"
)

// CustomVar is one per-network custom variable macro in declaration order.
// The builder resolves chains and rejects cycles before networks exist, so
// Expr here is already free of other custom variables.
type CustomVar struct {
	Name string
	Expr expr.Expr
}

// Network is the canonical in-memory model every dialect normalizes into.
// Species and reaction order is insertion order and is significant for
// generated output. A Network is read-only after building.
type Network struct {
	Label    string
	FileName string

	Species   []*Species
	Reactions []*Reaction

	// Elements is the sorted set of element symbols appearing in any
	// species' composition.
	Elements []string

	// CustomVars keeps the resolved custom variable table for
	// diagnostics and re-serialization.
	CustomVars []CustomVar

	speciesIdx  map[string]int
	reactionIdx map[string]int
}

// NewNetwork assembles the lookup tables and the element set. The builder
// is the only caller; everything downstream treats the result as immutable.
func NewNetwork(label, fileName string, species []*Species, reactions []*Reaction, customVars []CustomVar) *Network {
	n := &Network{
		Label:       label,
		FileName:    fileName,
		Species:     species,
		Reactions:   reactions,
		CustomVars:  customVars,
		speciesIdx:  make(map[string]int, len(species)),
		reactionIdx: make(map[string]int, len(reactions)),
	}
	for i, s := range species {
		n.speciesIdx[s.Name] = i
	}
	for i, r := range reactions {
		if _, exists := n.reactionIdx[r.Equation()]; !exists {
			n.reactionIdx[r.Equation()] = i
		}
	}

	elemSet := map[string]bool{}
	for _, s := range species {
		for sym := range s.Composition {
			elemSet[sym] = true
		}
	}
	n.Elements = make([]string, 0, len(elemSet))
	for sym := range elemSet {
		n.Elements = append(n.Elements, sym)
	}
	sort.Strings(n.Elements)

	return n
}

// SpeciesIndex returns the model index of the named species.
func (n *Network) SpeciesIndex(name string) (int, bool) {
	i, ok := n.speciesIdx[name]
	return i, ok
}

// ReactionIndex returns the model index of the reaction with the given
// canonical equation ("A + B -> C").
func (n *Network) ReactionIndex(equation string) (int, bool) {
	i, ok := n.reactionIdx[equation]
	return i, ok
}

// ElementIndex returns the position of an element symbol in the sorted
// element list.
func (n *Network) ElementIndex(symbol string) (int, bool) {
	for i, sym := range n.Elements {
		if sym == symbol {
			return i, true
		}
	}
	return 0, false
}

// ElectronIndex returns the model index of the electron species, if present.
func (n *Network) ElectronIndex() (int, bool) {
	for i, s := range n.Species {
		if s.IsElectron {
			return i, true
		}
	}
	return 0, false
}

// SpeciesNE returns the species list with exactly the electron excluded,
// preserving relative order.
func (n *Network) SpeciesNE() []*Species {
	out := make([]*Species, 0, len(n.Species))
	for _, s := range n.Species {
		if !s.IsElectron {
			out = append(out, s)
		}
	}
	return out
}

// ChargedSpecies returns the species with nonzero charge in model order.
func (n *Network) ChargedSpecies() []*Species {
	var out []*Species
	for _, s := range n.Species {
		if s.Charge != 0 {
			out = append(out, s)
		}
	}
	return out
}

// UnchargedSpecies returns the species with zero charge in model order.
func (n *Network) UnchargedSpecies() []*Species {
	var out []*Species
	for _, s := range n.Species {
		if s.Charge == 0 {
			out = append(out, s)
		}
	}
	return out
}

// ElementCountMatrix returns the (nelem x nspecies) matrix of atom counts:
// entry [i][j] is the number of atoms of element i in species j.
func (n *Network) ElementCountMatrix() [][]int {
	matrix := make([][]int, len(n.Elements))
	for i, sym := range n.Elements {
		row := make([]int, len(n.Species))
		for j, s := range n.Species {
			row[j] = s.Composition[sym]
		}
		matrix[i] = row
	}
	return matrix
}
