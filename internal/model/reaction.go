package model

import (
	"sort"
	"strings"

	"github.com/vk/jaffgo/internal/expr"
)

// StoichEntry pairs a species with its stoichiometric coefficient on one
// side of a reaction. Duplicate appearances in the source are folded into
// the coefficient at build time.
type StoichEntry struct {
	Species *Species
	Coeff   int
}

// Reaction is one reaction of a network. Index equals insertion order and
// is significant for generated output.
type Reaction struct {
	Index     int
	Reactants []StoichEntry
	Products  []StoichEntry

	// Rate is the rate-coefficient expression with custom variables
	// inlined and temperature clamping applied.
	Rate expr.Expr

	// RawRate is the normalized rate text as parsed from the source,
	// before clamping. Kept for re-serialization and diagnostics.
	RawRate string

	// ReverseRate is the optional reverse rate expression; nil when the
	// source dialect does not provide one.
	ReverseRate expr.Expr

	// Tmin/Tmax bound the validity interval; nil means unbounded.
	Tmin *float64
	Tmax *float64

	// Dialect tags the source grammar (kida, udfa, prizmo, krome, uclchem).
	Dialect string

	// Verbatim is the source line the reaction was parsed from.
	Verbatim string
}

// Equation renders the canonical "A + B -> C + D" form with duplicates
// expanded, which doubles as the reaction's lookup key.
func (r *Reaction) Equation() string {
	return strings.Join(expand(r.Reactants), " + ") + " -> " + strings.Join(expand(r.Products), " + ")
}

// Serialized returns the name-based canonical form "A_B__C_D" with each
// side sorted, used for duplicate detection and network comparison.
func (r *Reaction) Serialized() string {
	return sortedJoined(expand(r.Reactants)) + "__" + sortedJoined(expand(r.Products))
}

// SerializedExploded is like Serialized but uses the composition form of
// each species, so isomer variants of the same reaction collapse together.
func (r *Reaction) SerializedExploded() string {
	rr := make([]string, 0, len(r.Reactants))
	for _, e := range r.Reactants {
		for i := 0; i < e.Coeff; i++ {
			rr = append(rr, e.Species.Serialized())
		}
	}
	pp := make([]string, 0, len(r.Products))
	for _, e := range r.Products {
		for i := 0; i < e.Coeff; i++ {
			pp = append(pp, e.Species.Serialized())
		}
	}
	return sortedJoined(rr) + "__" + sortedJoined(pp)
}

// GuessType classifies the reaction from its rate expression: "photo" for
// photorates calls, "cosmic_ray" when crate appears, "photo_av" when av
// appears, "3_body" when ntot appears, else "unknown".
func (r *Reaction) GuessType() string {
	if r.Rate == nil {
		return "unknown"
	}
	photo := false
	expr.Walk(r.Rate, func(n expr.Expr) {
		if c, ok := n.(*expr.Call); ok && c.Func == "photorates" {
			photo = true
		}
	})
	if photo {
		return "photo"
	}
	for _, name := range expr.FreeVariables(r.Rate) {
		switch name {
		case "crate":
			return "cosmic_ray"
		case "av":
			return "photo_av"
		case "ntot":
			return "3_body"
		}
	}
	return "unknown"
}

// OverlapsTemperature reports whether the validity intervals of two
// reactions intersect. An unbounded side always overlaps.
func (r *Reaction) OverlapsTemperature(other *Reaction) bool {
	lo1, hi1 := bounds(r)
	lo2, hi2 := bounds(other)
	return lo1 <= hi2 && lo2 <= hi1
}

func bounds(r *Reaction) (float64, float64) {
	lo := -1.0e300
	hi := 1.0e300
	if r.Tmin != nil {
		lo = *r.Tmin
	}
	if r.Tmax != nil {
		hi = *r.Tmax
	}
	return lo, hi
}

// MassBalance returns the reactant and product mass sums in grams.
func (r *Reaction) MassBalance() (float64, float64) {
	var rm, pm float64
	for _, e := range r.Reactants {
		rm += float64(e.Coeff) * e.Species.Mass
	}
	for _, e := range r.Products {
		pm += float64(e.Coeff) * e.Species.Mass
	}
	return rm, pm
}

// ChargeBalance returns the reactant and product signed charge sums.
func (r *Reaction) ChargeBalance() (int, int) {
	var rc, pc int
	for _, e := range r.Reactants {
		rc += e.Coeff * e.Species.Charge
	}
	for _, e := range r.Products {
		pc += e.Coeff * e.Species.Charge
	}
	return rc, pc
}

func expand(entries []StoichEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		for i := 0; i < e.Coeff; i++ {
			names = append(names, e.Species.Name)
		}
	}
	return names
}

func sortedJoined(names []string) string {
	s := append([]string{}, names...)
	sort.Strings(s)
	return strings.Join(s, "_")
}
