package ratetable

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/jaffgo/internal/builder"
	"github.com/vk/jaffgo/internal/dialect"
	"github.com/vk/jaffgo/internal/model"
)

func buildNetwork(t *testing.T, src string) *model.Network {
	t.Helper()
	ctx := context.Background()
	f, err := dialect.Parse(ctx, strings.NewReader(src), "test.dat")
	require.NoError(t, err)
	n, err := builder.Build(ctx, f, builder.Options{Label: "test"})
	require.NoError(t, err)
	return n
}

func TestBuildConstantRate(t *testing.T) {
	n := buildNetwork(t, "H + H -> H2 [,] 1d-10\n")
	tab, err := Build(context.Background(), n, Options{TMin: 10, TMax: 1000, NT: 4})
	require.NoError(t, err)

	// One refinement round always runs, so the grid has 2*4-1 samples.
	require.Len(t, tab.Temps, 7)
	require.Len(t, tab.Rates, 1)
	for _, v := range tab.Rates[0] {
		assert.InEpsilon(t, 1e-10, v, 1e-12)
	}
}

func TestBuildPowerLaw(t *testing.T) {
	n := buildNetwork(t, "H2 + O -> OH + H [,] 1d-10 * (tgas / 3d2)**(0.5)\n")
	tab, err := Build(context.Background(), n, Options{TMin: 10, TMax: 1000, NT: 8})
	require.NoError(t, err)

	for j, temp := range tab.Temps {
		want := 1e-10 * math.Sqrt(temp/3e2)
		assert.InEpsilon(t, want, tab.Rates[0][j], 1e-10)
	}
}

func TestBuildGridEndpoints(t *testing.T) {
	n := buildNetwork(t, "H + H -> H2 [,] 1d-10\n")
	tab, err := Build(context.Background(), n, Options{TMin: 10, TMax: 1000, NT: 4})
	require.NoError(t, err)

	assert.InEpsilon(t, 10.0, tab.Temps[0], 1e-12)
	assert.InEpsilon(t, 1000.0, tab.Temps[len(tab.Temps)-1], 1e-12)
	for j := 1; j < len(tab.Temps); j++ {
		assert.Greater(t, tab.Temps[j], tab.Temps[j-1])
	}
}

func TestBuildRefinesCurvedRates(t *testing.T) {
	// log k is not linear in log T, so midpoint interpolation misses and
	// the grid must grow past the first doubling.
	n := buildNetwork(t, "H2 + O -> OH + H [,] 1d-10 * exp(-300.0 / tgas)\n")
	tab, err := Build(context.Background(), n, Options{TMin: 10, TMax: 1000, NT: 4})
	require.NoError(t, err)

	assert.Greater(t, len(tab.Temps), 7)
	for j, temp := range tab.Temps {
		want := 1e-10 * math.Exp(-300.0/temp)
		assert.InEpsilon(t, want, tab.Rates[0][j], 1e-10)
	}
}

func TestBuildSubstitutesAvAndCrate(t *testing.T) {
	n := buildNetwork(t, ""+
		"H2 -> H + H [,] 1.3d-17 * crate\n"+
		"CO -> C + O [,] 1d-10 * exp(-2.0 * av)\n")
	tab, err := Build(context.Background(), n, Options{TMin: 10, TMax: 1000, NT: 4})
	require.NoError(t, err)

	// crate=1 and av=0 reduce both rates to constants.
	assert.InEpsilon(t, 1.3e-17, tab.Rates[0][0], 1e-12)
	assert.InEpsilon(t, 1e-10, tab.Rates[1][0], 1e-12)
}

func TestBuildUntabulableRates(t *testing.T) {
	n := buildNetwork(t, ""+
		"CO -> C + O [,] photo, 1d2\n"+
		"H + H -> H2 [,] 1d-30 * ntot\n"+
		"H2 + O -> OH + H [,] 1d-10\n")
	tab, err := Build(context.Background(), n, Options{TMin: 10, TMax: 1000, NT: 4})
	require.NoError(t, err)

	for j := range tab.Temps {
		assert.True(t, math.IsNaN(tab.Rates[0][j]))
		assert.True(t, math.IsNaN(tab.Rates[1][j]))
		assert.False(t, math.IsNaN(tab.Rates[2][j]))
	}
}

func TestBuildRangeFromReactionBounds(t *testing.T) {
	n := buildNetwork(t, "H2 + O -> OH + H [10.0, 1000.0] 1d-10\n")
	tab, err := Build(context.Background(), n, Options{NT: 4})
	require.NoError(t, err)

	assert.InEpsilon(t, 10.0, tab.Temps[0], 1e-12)
	assert.InEpsilon(t, 1000.0, tab.Temps[len(tab.Temps)-1], 1e-12)
}

func TestBuildNoRangeFails(t *testing.T) {
	n := buildNetwork(t, "H + H -> H2 [,] 1d-10\n")
	_, err := Build(context.Background(), n, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temperature range")
}

func TestWriteTo(t *testing.T) {
	n := buildNetwork(t, "H + H -> H2 [,] 1d-10\nH2 + O -> OH + H [,] 2d-10\n")
	tab, err := Build(context.Background(), n, Options{TMin: 10, TMax: 1000, NT: 4})
	require.NoError(t, err)

	var sb strings.Builder
	_, err = tab.WriteTo(&sb)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(sb.String(), "\n"), "\n")
	require.Len(t, lines, len(tab.Temps))
	assert.Len(t, strings.Fields(lines[0]), 3)
}
