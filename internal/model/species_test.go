package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpeciesComposition(t *testing.T) {
	masses := DefaultMassTable()

	cases := []struct {
		name   string
		want   map[string]int
		charge int
	}{
		{"H2O", map[string]int{"H": 2, "O": 1}, 0},
		{"H2O+", map[string]int{"H": 2, "O": 1}, 1},
		{"He++", map[string]int{"He": 1}, 2},
		{"CH3OH", map[string]int{"C": 1, "H": 4, "O": 1}, 0},
		{"HC3N", map[string]int{"H": 1, "C": 3, "N": 1}, 0},
		{"H2O_DUST", map[string]int{"H": 2, "O": 1}, 0},
		{"GRAIN-", map[string]int{"GRAIN": 1}, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := NewSpecies(tc.name, 0, masses)
			require.NoError(t, err)
			assert.Equal(t, tc.want, s.Composition)
			assert.Equal(t, tc.charge, s.Charge)
		})
	}
}

func TestNewSpeciesElectron(t *testing.T) {
	masses := DefaultMassTable()

	s, err := NewSpecies("e-", 3, masses)
	require.NoError(t, err)
	assert.True(t, s.IsElectron)
	assert.Equal(t, -1, s.Charge)
	assert.Equal(t, ElectronMass, s.Mass)
	assert.Equal(t, "idx_ek", s.Fidx)

	for _, alias := range []string{"E", "el", "electron"} {
		_, err := NewSpecies(alias, 0, masses)
		assert.Error(t, err, alias)
	}
}

func TestNewSpeciesLongestMatch(t *testing.T) {
	masses := DefaultMassTable()

	s, err := NewSpecies("HeH+", 0, masses)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"He": 1, "H": 1}, s.Composition)

	_, err = NewSpecies("Xq", 0, masses)
	assert.Error(t, err)
}

func TestSpeciesSerializedIsomers(t *testing.T) {
	masses := DefaultMassTable()

	a, err := NewSpecies("HNC", 0, masses)
	require.NoError(t, err)
	b, err := NewSpecies("HCN", 1, masses)
	require.NoError(t, err)
	assert.Equal(t, a.Serialized(), b.Serialized())

	c, err := NewSpecies("HCN+", 2, masses)
	require.NoError(t, err)
	assert.NotEqual(t, b.Serialized(), c.Serialized())
}

func TestSpeciesFidx(t *testing.T) {
	masses := DefaultMassTable()

	s, err := NewSpecies("H3O+", 0, masses)
	require.NoError(t, err)
	assert.Equal(t, "idx_H3Oj", s.Fidx)
}

func TestSpeciesMass(t *testing.T) {
	masses := DefaultMassTable()

	h2, err := NewSpecies("H2", 0, masses)
	require.NoError(t, err)
	assert.InEpsilon(t, 2*masses["H"], h2.Mass, 1e-12)

	// The cation is parsed as the neutral composition; charge carries no
	// mass of its own.
	h2plus, err := NewSpecies("H2+", 1, masses)
	require.NoError(t, err)
	assert.InEpsilon(t, h2.Mass, h2plus.Mass, 1e-12)
}
