package builder

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/jaffgo/internal/dialect"
	"github.com/vk/jaffgo/internal/expr"
	"github.com/vk/jaffgo/internal/model"
)

func buildString(t *testing.T, src string) *model.Network {
	t.Helper()
	ctx := context.Background()
	f, err := dialect.Parse(ctx, strings.NewReader(src), "test.dat")
	require.NoError(t, err)
	n, err := Build(ctx, f, Options{Label: "test"})
	require.NoError(t, err)
	return n
}

func TestBuildSpeciesOrder(t *testing.T) {
	n := buildString(t, `
H+ + e- -> H [,] 1d-12
H + H -> H2 [,] 1d-17
`)
	require.Len(t, n.Species, 4)
	names := make([]string, len(n.Species))
	for i, s := range n.Species {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"H+", "e-", "H", "H2"}, names)
	for i, s := range n.Species {
		assert.Equal(t, i, s.Index)
	}
}

func TestBuildStoichFolding(t *testing.T) {
	n := buildString(t, "H + H + H -> H2 + H [,] 6d-32\n")
	r := n.Reactions[0]
	require.Len(t, r.Reactants, 1)
	assert.Equal(t, 3, r.Reactants[0].Coeff)
	require.Len(t, r.Products, 2)
	assert.Equal(t, "H2", r.Products[0].Species.Name)
	assert.Equal(t, 1, r.Products[1].Coeff)
	assert.Equal(t, "H + H + H -> H2 + H", r.Equation())
}

func TestBuildKromeShortcuts(t *testing.T) {
	n := buildString(t, "H+ + e- -> H [,] 1d-10 * invt32\n")
	r := n.Reactions[0]

	// invt32 = 1/(tgas/300) must be fully inlined.
	v, err := expr.Eval(r.Rate, expr.Env{Vars: map[string]float64{"tgas": 600}})
	require.NoError(t, err)
	assert.InEpsilon(t, 1e-10*0.5, v, 1e-12)
}

func TestBuildCustomVariables(t *testing.T) {
	t.Run("nested declarations are inlined", func(t *testing.T) {
		n := buildString(t, `VARIABLES{
  a = tgas * 2d0
  b = a + 1d0
}
H + H -> H2 [,] 1d-17 * b
`)
		r := n.Reactions[0]
		v, err := expr.Eval(r.Rate, expr.Env{Vars: map[string]float64{"tgas": 10}})
		require.NoError(t, err)
		assert.InEpsilon(t, 1e-17*21, v, 1e-12)

		// No custom references survive in the rate.
		expr.Walk(r.Rate, func(e expr.Expr) {
			_, isCustom := e.(*expr.Custom)
			assert.False(t, isCustom)
		})
	})

	t.Run("circular declarations are rejected", func(t *testing.T) {
		ctx := context.Background()
		f, err := dialect.Parse(ctx, strings.NewReader(`VARIABLES{
  a = b + 1d0
  b = a + 1d0
}
H + H -> H2 [,] 1d-17
`), "test.dat")
		require.NoError(t, err)
		_, err = Build(ctx, f, Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "circular")
	})
}

func TestBuildClamping(t *testing.T) {
	n := buildString(t, "H2 + O -> OH + H [1d1, 1d3] 1d-13 * sqrt(tgas)\n")
	r := n.Reactions[0]

	eval := func(tgas float64) float64 {
		v, err := expr.Eval(r.Rate, expr.Env{Vars: map[string]float64{"tgas": tgas}})
		require.NoError(t, err)
		return v
	}
	// Inside the validity range the rate tracks tgas; outside it is held
	// at the boundary value.
	assert.InEpsilon(t, eval(100), 1e-13*10, 1e-12)
	assert.Equal(t, eval(10), eval(1))
	assert.Equal(t, eval(1000), eval(50000))
}

func TestBuildPhotoRates(t *testing.T) {
	n := buildString(t, `
CO -> C + O [,] PHOTO(2.0d1)
H2 -> H + H [,] photo, 1d2
`)
	require.Len(t, n.Reactions, 2)

	first, ok := n.Reactions[0].Rate.(*expr.Call)
	require.True(t, ok)
	assert.Equal(t, "photorates", first.Func)
	require.Len(t, first.Args, 3)
	assert.Equal(t, expr.Num(0).Key(), first.Args[0].Key())
	assert.Equal(t, expr.Num(20).Key(), first.Args[1].Key())
	assert.Equal(t, expr.Num(1e99).Key(), first.Args[2].Key())

	second, ok := n.Reactions[1].Rate.(*expr.Call)
	require.True(t, ok)
	require.Len(t, second.Args, 3)
	assert.Equal(t, expr.Num(1).Key(), second.Args[0].Key(), "photo counter advances per reaction")
	assert.Equal(t, expr.Num(100).Key(), second.Args[1].Key())

	assert.Equal(t, "photo", n.Reactions[0].GuessType())
}

func TestBuildUnknownIdentifier(t *testing.T) {
	ctx := context.Background()
	f, err := dialect.Parse(ctx, strings.NewReader("H + H -> H2 [,] 1d-17 * zeta\n"), "test.dat")
	require.NoError(t, err)
	_, err = Build(ctx, f, Options{})
	var perr *dialect.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Line)
	assert.Contains(t, perr.Msg, "zeta")
}

func TestBuildMixedDialects(t *testing.T) {
	src := "H + H -> H2 [,] 1d-17\n" +
		"@format:idx,R,R,P,tmin,tmax,rate\n" +
		"1,H2,H2,H,none,none,1d-9\n"
	n := buildString(t, src)
	require.Len(t, n.Reactions, 2)
	assert.Equal(t, dialect.PRIZMO, n.Reactions[0].Dialect)
	assert.Equal(t, dialect.KROME, n.Reactions[1].Dialect)
	// Species are shared across dialects.
	assert.Len(t, n.Species, 2)
}
