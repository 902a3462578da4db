package model

import (
	"fmt"
	"sort"
	"strings"
)

// Species is one chemical species of a network. Instances are created once
// by the builder and read-only afterwards.
type Species struct {
	// Name is the unique id, e.g. "H2O+".
	Name string

	// Index is the stable model index: order of first appearance.
	Index int

	// Mass in grams, summed over the atomic composition. The charge
	// markers contribute nothing; the electron species carries the
	// electron rest mass.
	Mass float64

	// Charge is the signed integer charge from trailing +/- markers.
	Charge int

	// Composition maps element symbol to atom count.
	Composition map[string]int

	// Exploded is the sorted atom multiset, e.g. H2O+ -> [H H O].
	// Isomers share the same exploded form.
	Exploded []string

	// IsElectron flags the canonical electron species "e-".
	IsElectron bool

	// Fidx is the generated index identifier, "idx_" + name with "+"
	// mapped to "j" and "-" mapped to "k".
	Fidx string
}

// NewSpecies parses a species id into its composition and derived
// properties. Digits after an element symbol give the atom count (absent
// digit = 1); trailing +/- markers set the charge and are excluded from
// composition.
func NewSpecies(name string, index int, masses MassTable) (*Species, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("empty species name")
	}
	if isElectronAlias(name) && name != "e-" {
		return nil, fmt.Errorf("electron species must be named \"e-\", found %q", name)
	}

	s := &Species{
		Name:        name,
		Index:       index,
		Composition: map[string]int{},
		Fidx:        "idx_" + strings.ReplaceAll(strings.ReplaceAll(name, "+", "j"), "-", "k"),
	}

	if name == "e-" {
		s.IsElectron = true
		s.Charge = -1
		s.Mass = ElectronMass
		return s, nil
	}

	// Trailing charge markers, possibly repeated (e.g. "He++").
	core := name
	for strings.HasSuffix(core, "+") || strings.HasSuffix(core, "-") {
		if strings.HasSuffix(core, "+") {
			s.Charge++
		} else {
			s.Charge--
		}
		core = core[:len(core)-1]
	}

	if err := s.parseComposition(core, masses); err != nil {
		return nil, err
	}

	s.Exploded = make([]string, 0, len(s.Composition))
	for sym, n := range s.Composition {
		for i := 0; i < n; i++ {
			s.Exploded = append(s.Exploded, sym)
		}
		s.Mass += masses[sym] * float64(n)
	}
	sort.Strings(s.Exploded)

	return s, nil
}

// parseComposition scans core left to right, matching the longest known
// element symbol at each position, then an optional digit run as the count.
// Phase tags such as _DUST or _ORTHO are ignored for composition.
func (s *Species) parseComposition(core string, masses MassTable) error {
	symbols := masses.Symbols()
	i := 0
	for i < len(core) {
		// Phase/state suffix: skip to the end of the tag.
		if core[i] == '_' {
			j := i + 1
			for j < len(core) && core[j] != '_' {
				j++
			}
			i = j
			continue
		}

		matched := ""
		for _, sym := range symbols {
			if strings.HasPrefix(core[i:], sym) {
				matched = sym
				break
			}
		}
		if matched == "" {
			return fmt.Errorf("species %q: unknown element at %q", s.Name, core[i:])
		}
		i += len(matched)

		count := 0
		for i < len(core) && core[i] >= '0' && core[i] <= '9' {
			count = count*10 + int(core[i]-'0')
			i++
		}
		if count == 0 {
			count = 1
		}
		s.Composition[matched] += count
	}
	return nil
}

// Serialized returns the canonical composition form: sorted atoms joined by
// "/" with the charge markers appended. Isomers like H2O+ and OH2+ share
// one serialized form.
func (s *Species) Serialized() string {
	parts := append([]string{}, s.Exploded...)
	if s.Charge > 0 {
		for i := 0; i < s.Charge; i++ {
			parts = append(parts, "+")
		}
	}
	if s.Charge < 0 {
		for i := 0; i < -s.Charge; i++ {
			parts = append(parts, "-")
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, "/")
}

func isElectronAlias(name string) bool {
	switch strings.ToLower(name) {
	case "e", "el", "els", "electron", "electrons", "e-":
		return true
	}
	return false
}
