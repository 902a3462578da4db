package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// numericDerivative approximates d(e)/d(wrt) by central difference for
// cross-checking the symbolic result.
func numericDerivative(t *testing.T, e Expr, name string, at float64) float64 {
	t.Helper()
	h := 1e-6 * at
	hi, err := Eval(e, Env{Vars: map[string]float64{name: at + h}})
	require.NoError(t, err)
	lo, err := Eval(e, Env{Vars: map[string]float64{name: at - h}})
	require.NoError(t, err)
	return (hi - lo) / (2 * h)
}

func TestDifferentiateTable(t *testing.T) {
	wrt := &Primitive{Name: "tgas"}

	cases := []string{
		"exp(-100 / tgas)",
		"log(tgas)",
		"log10(tgas)",
		"sqrt(tgas / 3e2)",
		"tgas ** 2.5",
		"(tgas / 3e2) ** (-0.5)",
		"1e-10 * sqrt(tgas) * exp(-50 / tgas)",
		"1e0 / tgas",
	}
	for _, src := range cases {
		t.Run(src, func(t *testing.T) {
			e, err := Parse(src, nil)
			require.NoError(t, err)

			d, err := Differentiate(e, wrt)
			require.NoError(t, err)

			at := 250.0
			got, err := Eval(d, Env{Vars: map[string]float64{"tgas": at}})
			require.NoError(t, err)
			want := numericDerivative(t, e, "tgas", at)
			assert.InEpsilon(t, want, got, 1e-4)
		})
	}
}

func TestDifferentiateConc(t *testing.T) {
	// flux = k[0] * y[0]**2 * y[1]
	flux := Mul(Mul(&RateRef{Index: 0}, Pow(&Conc{Index: 0}, Num(2))), &Conc{Index: 1})

	d0, err := Differentiate(flux, &Conc{Index: 0})
	require.NoError(t, err)
	got, err := Eval(d0, Env{Rates: []float64{3}, Conc: []float64{2, 5}})
	require.NoError(t, err)
	assert.InDelta(t, 3*2*2*5, got, 1e-12) // 2*k*y0*y1

	d2, err := Differentiate(flux, &Conc{Index: 2})
	require.NoError(t, err)
	assert.True(t, IsZero(d2), "absent species differentiates to zero")
}

func TestDifferentiateOpaqueCalls(t *testing.T) {
	t.Run("opaque call without the variable is zero", func(t *testing.T) {
		e, err := Parse("photorates(0, 1e99)", nil)
		require.NoError(t, err)
		d, err := Differentiate(e, &Conc{Index: 0})
		require.NoError(t, err)
		assert.True(t, IsZero(d))
	})

	t.Run("opaque call containing the variable is an error", func(t *testing.T) {
		e := &Call{Func: "shield", Args: []Expr{&Conc{Index: 0}}}
		_, err := Differentiate(e, &Conc{Index: 0})
		var unsupported *UnsupportedDerivativeError
		require.ErrorAs(t, err, &unsupported)
		assert.Equal(t, "shield", unsupported.Func)
	})
}

func TestRender(t *testing.T) {
	e, err := Parse("1.2e-10 * (tgas / 3e2) ** 0.5", nil)
	require.NoError(t, err)

	t.Run("python style", func(t *testing.T) {
		assert.Equal(t, "1.2e-10*(tgas/300)**0.5", Render(e, RenderOptions{}))
	})

	t.Run("function-style pow", func(t *testing.T) {
		got := Render(e, RenderOptions{Power: "std::pow"})
		assert.Equal(t, "1.2e-10*std::pow(tgas/300, 0.5)", got)
	})

	t.Run("fortran exponent and one-based indexing", func(t *testing.T) {
		f := Mul(Num(1.2e-10), &Conc{Index: 0})
		got := Render(f, RenderOptions{Exponent: "d", Bracket: "()", IndexBase: 1})
		assert.Equal(t, "1.2d-10*y(1)", got)
	})

	t.Run("unary minus", func(t *testing.T) {
		n, err := Parse("-tgas * 2", nil)
		require.NoError(t, err)
		got := Render(n, RenderOptions{})
		assert.Equal(t, "-tgas*2", got)
	})

	t.Run("idempotent round trip", func(t *testing.T) {
		first := Render(e, RenderOptions{})
		back, err := Parse(first, nil)
		require.NoError(t, err)
		assert.Equal(t, first, Render(back, RenderOptions{}))
	})
}
