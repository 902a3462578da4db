package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/jaffgo/internal/expr"
)

func mustSpecies(t *testing.T, names ...string) []*Species {
	t.Helper()
	masses := DefaultMassTable()
	out := make([]*Species, len(names))
	for i, name := range names {
		s, err := NewSpecies(name, i, masses)
		require.NoError(t, err)
		out[i] = s
	}
	return out
}

func find(t *testing.T, species []*Species, name string) *Species {
	t.Helper()
	for _, s := range species {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("species %q not prepared", name)
	return nil
}

func ptr(v float64) *float64 { return &v }

func testNetwork(t *testing.T) *Network {
	t.Helper()
	species := mustSpecies(t, "H", "H+", "e-", "H2", "O", "OH")
	reactions := []*Reaction{
		{
			Index:     0,
			Reactants: []StoichEntry{{find(t, species, "H"), 2}},
			Products:  []StoichEntry{{find(t, species, "H2"), 1}},
			Rate:      expr.Num(1e-17),
		},
		{
			Index:     1,
			Reactants: []StoichEntry{{find(t, species, "H+"), 1}, {find(t, species, "e-"), 1}},
			Products:  []StoichEntry{{find(t, species, "H"), 1}},
			Rate:      expr.Num(2.5e-12),
		},
		{
			Index:     2,
			Reactants: []StoichEntry{{find(t, species, "O"), 1}, {find(t, species, "H2"), 1}},
			Products:  []StoichEntry{{find(t, species, "OH"), 1}, {find(t, species, "H"), 1}},
			Rate:      expr.Num(3e-14),
		},
	}
	return NewNetwork("test", "test.dat", species, reactions, nil)
}

func TestNetworkLookups(t *testing.T) {
	n := testNetwork(t)

	i, ok := n.SpeciesIndex("H2")
	require.True(t, ok)
	assert.Equal(t, 3, i)

	_, ok = n.SpeciesIndex("CO")
	assert.False(t, ok)

	j, ok := n.ReactionIndex("H+ + e- -> H")
	require.True(t, ok)
	assert.Equal(t, 1, j)

	e, ok := n.ElectronIndex()
	require.True(t, ok)
	assert.Equal(t, 2, e)
}

func TestNetworkElements(t *testing.T) {
	n := testNetwork(t)
	assert.Equal(t, []string{"H", "O"}, n.Elements)

	i, ok := n.ElementIndex("O")
	require.True(t, ok)
	assert.Equal(t, 1, i)
}

func TestNetworkViews(t *testing.T) {
	n := testNetwork(t)

	ne := n.SpeciesNE()
	require.Len(t, ne, 5)
	for _, s := range ne {
		assert.False(t, s.IsElectron)
	}

	charged := n.ChargedSpecies()
	require.Len(t, charged, 2)
	assert.Equal(t, "H+", charged[0].Name)
	assert.Equal(t, "e-", charged[1].Name)

	assert.Len(t, n.UnchargedSpecies(), 4)
}

func TestNetworkElementCountMatrix(t *testing.T) {
	n := testNetwork(t)
	m := n.ElementCountMatrix()
	require.Len(t, m, 2)
	// Species order: H, H+, e-, H2, O, OH.
	assert.Equal(t, []int{1, 1, 0, 2, 0, 1}, m[0]) // H row
	assert.Equal(t, []int{0, 0, 0, 0, 1, 1}, m[1]) // O row
}

func TestValidateConservation(t *testing.T) {
	species := mustSpecies(t, "H", "H+", "e-", "H2")

	t.Run("balanced network is clean", func(t *testing.T) {
		n := NewNetwork("ok", "", species, []*Reaction{
			{
				Index:     0,
				Reactants: []StoichEntry{{find(t, species, "H+"), 1}, {find(t, species, "e-"), 1}},
				Products:  []StoichEntry{{find(t, species, "H"), 1}},
			},
		}, nil)
		require.NoError(t, n.StrictValidate(ValidateOptions{SkipSinkSource: true}))
	})

	t.Run("mass imbalance", func(t *testing.T) {
		n := NewNetwork("bad", "", species, []*Reaction{
			{
				Index:     0,
				Reactants: []StoichEntry{{find(t, species, "H"), 1}},
				Products:  []StoichEntry{{find(t, species, "H2"), 1}},
			},
		}, nil)
		findings := n.Validate(ValidateOptions{SkipCharge: true, SkipSinkSource: true})
		require.Len(t, findings, 1)
		assert.Equal(t, FindingMass, findings[0].Kind)

		var verr *ValidationError
		require.ErrorAs(t, n.StrictValidate(ValidateOptions{SkipCharge: true, SkipSinkSource: true}), &verr)
	})

	t.Run("ionization within electron-mass tolerance", func(t *testing.T) {
		n := NewNetwork("ion", "", species, []*Reaction{
			{
				Index:     0,
				Reactants: []StoichEntry{{find(t, species, "H"), 1}},
				Products:  []StoichEntry{{find(t, species, "H+"), 1}, {find(t, species, "e-"), 1}},
			},
		}, nil)
		findings := n.Validate(ValidateOptions{SkipSinkSource: true})
		assert.Empty(t, findings)
	})

	t.Run("charge imbalance", func(t *testing.T) {
		n := NewNetwork("bad", "", species, []*Reaction{
			{
				Index:     0,
				Reactants: []StoichEntry{{find(t, species, "H"), 1}},
				Products:  []StoichEntry{{find(t, species, "H+"), 1}},
			},
		}, nil)
		findings := n.Validate(ValidateOptions{SkipMass: true, SkipSinkSource: true})
		require.Len(t, findings, 1)
		assert.Equal(t, FindingCharge, findings[0].Kind)
	})
}

func TestValidateDuplicates(t *testing.T) {
	species := mustSpecies(t, "H", "H2")
	r := func(idx int, tmin, tmax *float64) *Reaction {
		return &Reaction{
			Index:     idx,
			Reactants: []StoichEntry{{find(t, species, "H"), 2}},
			Products:  []StoichEntry{{find(t, species, "H2"), 1}},
			Tmin:      tmin,
			Tmax:      tmax,
		}
	}

	t.Run("overlapping ranges are duplicates", func(t *testing.T) {
		n := NewNetwork("dup", "", species, []*Reaction{
			r(0, ptr(10), ptr(300)),
			r(1, ptr(200), ptr(1000)),
		}, nil)
		findings := n.Validate(ValidateOptions{SkipMass: true, SkipCharge: true, SkipSinkSource: true})
		require.Len(t, findings, 1)
		assert.Equal(t, FindingDuplicate, findings[0].Kind)
		assert.Equal(t, 1, findings[0].Reaction)
	})

	t.Run("disjoint ranges are not duplicates", func(t *testing.T) {
		n := NewNetwork("split", "", species, []*Reaction{
			r(0, ptr(10), ptr(300)),
			r(1, ptr(301), ptr(1000)),
		}, nil)
		findings := n.Validate(ValidateOptions{SkipMass: true, SkipCharge: true, SkipSinkSource: true})
		assert.Empty(t, findings)
	})

	t.Run("unbounded range overlaps everything", func(t *testing.T) {
		n := NewNetwork("dup", "", species, []*Reaction{
			r(0, nil, nil),
			r(1, ptr(500), ptr(600)),
		}, nil)
		findings := n.Validate(ValidateOptions{SkipMass: true, SkipCharge: true, SkipSinkSource: true})
		require.Len(t, findings, 1)
	})
}

func TestValidateSinkSource(t *testing.T) {
	n := testNetwork(t)
	findings := n.Validate(ValidateOptions{SkipMass: true, SkipCharge: true, SkipDuplicates: true, SkipDangling: true})

	byKind := map[FindingKind][]string{}
	for _, f := range findings {
		assert.True(t, f.Advisory)
		byKind[f.Kind] = append(byKind[f.Kind], f.Species)
	}
	// O is only consumed; OH is only produced.
	assert.Equal(t, []string{"O"}, byKind[FindingSink])
	assert.Equal(t, []string{"OH"}, byKind[FindingSource])

	// Advisory findings never fail strict validation.
	require.NoError(t, n.StrictValidate(ValidateOptions{SkipMass: true, SkipCharge: true, SkipDuplicates: true, SkipDangling: true}))
}

func TestReactionGuessType(t *testing.T) {
	parse := func(src string) expr.Expr {
		e, err := expr.Parse(src, nil)
		require.NoError(t, err)
		return e
	}

	assert.Equal(t, "cosmic_ray", (&Reaction{Rate: parse("1.3e-17 * crate")}).GuessType())
	assert.Equal(t, "photo_av", (&Reaction{Rate: parse("1e-9 * exp(-2.3 * av)")}).GuessType())
	assert.Equal(t, "3_body", (&Reaction{Rate: parse("1e-30 * ntot")}).GuessType())
	assert.Equal(t, "photo", (&Reaction{Rate: parse("photorates(0, 1e99)")}).GuessType())
	assert.Equal(t, "unknown", (&Reaction{Rate: parse("1e-10 * sqrt(tgas)")}).GuessType())
}

func TestNetworkCompare(t *testing.T) {
	speciesA := mustSpecies(t, "H", "H2", "HNC")
	speciesB := mustSpecies(t, "H", "H2", "HCN")

	mk := func(species []*Species) *Network {
		return NewNetwork("", "", species, []*Reaction{
			{
				Index:     0,
				Reactants: []StoichEntry{{find(t, species, "H"), 2}},
				Products:  []StoichEntry{{find(t, species, "H2"), 1}},
			},
		}, nil)
	}

	t.Run("isomer renames compare equal", func(t *testing.T) {
		d := mk(speciesA).Compare(mk(speciesB))
		assert.True(t, d.Empty())
	})

	t.Run("missing species and reactions are reported", func(t *testing.T) {
		a := mk(speciesA)
		b := NewNetwork("", "", speciesB[:2], nil, nil)
		d := a.Compare(b)
		assert.False(t, d.Empty())
		require.Len(t, d.SpeciesOnlyInA, 1)
		assert.Len(t, d.ReactionsOnlyInA, 1)
		assert.Empty(t, d.SpeciesOnlyInB)
	})
}
