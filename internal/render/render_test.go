package render

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/jaffgo/internal/builder"
	"github.com/vk/jaffgo/internal/compiler"
	"github.com/vk/jaffgo/internal/dialect"
	"github.com/vk/jaffgo/internal/langspec"
)

func testDescriptor() langspec.Descriptor {
	return langspec.Descriptor{
		Name:     "py",
		Comment:  "# ",
		Bracket:  "[]",
		Power:    "**",
		Exponent: "e",
	}
}

func testEngine(t *testing.T, src string) *Engine {
	t.Helper()
	return testEngineWith(t, src, testDescriptor())
}

func testEngineWith(t *testing.T, src string, desc langspec.Descriptor) *Engine {
	t.Helper()
	ctx := context.Background()
	f, err := dialect.Parse(ctx, strings.NewReader(src), "test.dat")
	require.NoError(t, err)
	n, err := builder.Build(ctx, f, builder.Options{Label: "test"})
	require.NoError(t, err)
	a, err := compiler.Compile(ctx, n, compiler.Options{})
	require.NoError(t, err)
	return New(n, a, desc)
}

const plainNetwork = `
H+ + e- -> H [,] 1d0
C + H -> C + H [,] 1d0
`

const rateNetwork = `
H + H -> H2 [,] 1d-17 * sqrt(tgas)
H2 + O -> OH + H [,] 3d-14 * sqrt(tgas)
`

func TestRenderSubArithmetic(t *testing.T) {
	e := testEngine(t, plainNetwork)
	out, err := e.Render("t.py", ""+
		"$JAFF SUB nspec, nreact\n"+
		"n = $nspec$, n1 = $nspec+1$, r = $nreact$\n"+
		"$JAFF END\n")
	require.NoError(t, err)
	assert.Equal(t, "n = 4, n1 = 5, r = 2\n", out)
}

func TestRenderSubElectronIndex(t *testing.T) {
	e := testEngine(t, plainNetwork)
	out, err := e.Render("t.py", ""+
		"# $JAFF SUB e_idx\n"+
		"e_idx = $e_idx$\n"+
		"# $JAFF END\n")
	require.NoError(t, err)
	assert.Equal(t, "e_idx = 1\n", out)
}

func TestRenderSubUnknownToken(t *testing.T) {
	e := testEngine(t, plainNetwork)
	_, err := e.Render("t.py", "$JAFF SUB nope\nx = $nope$\n$JAFF END\n")
	var refErr *ReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Contains(t, refErr.Msg, "nope")
}

func TestRenderRepeatSort(t *testing.T) {
	e := testEngine(t, plainNetwork)
	out, err := e.Render("t.py", ""+
		"$JAFF REPEAT idx, specie IN species SORT\n"+
		"$idx$: $specie$\n"+
		"$JAFF END\n")
	require.NoError(t, err)
	assert.Equal(t, "0: C\n1: H\n2: H+\n3: e-\n", out)
}

func TestRenderRepeatHorizontal(t *testing.T) {
	e := testEngine(t, plainNetwork)
	out, err := e.Render("t.py", ""+
		"$JAFF REPEAT specie IN species\n"+
		"names = {\"$specie$\", };\n"+
		"$JAFF END\n")
	require.NoError(t, err)
	assert.Equal(t, "names = {\"H+\", \"e-\", \"H\", \"C\"};\n", out)
}

func TestRenderRepeatMatrix(t *testing.T) {
	e := testEngine(t, plainNetwork)
	out, err := e.Render("t.py", ""+
		"$JAFF REPEAT element IN element_density_matrix\n"+
		"m[$idx$][$idx$] = $element$\n"+
		"$JAFF END\n")
	require.NoError(t, err)
	// Elements sorted: C, H. Species order: H+, e-, H, C.
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, "m[0][0] = 0", lines[0])
	assert.Equal(t, "m[0][3] = 1", lines[3])
	assert.Equal(t, "m[1][0] = 1", lines[4])
	assert.Equal(t, "m[1][1] = 0", lines[5])
}

func TestRenderGet(t *testing.T) {
	e := testEngine(t, plainNetwork)
	out, err := e.Render("t.py", ""+
		"$JAFF GET specie_idx, specie_charge FOR H+\n"+
		"i = $specie_idx$, q = $specie_charge$\n"+
		"$JAFF END\n")
	require.NoError(t, err)
	assert.Equal(t, "i = 0, q = 1\n", out)
}

func TestRenderGetMissingFor(t *testing.T) {
	e := testEngine(t, plainNetwork)
	_, err := e.Render("t.py", "$JAFF GET specie_idx H+\nx\n$JAFF END\n")
	var synErr *SyntaxError
	require.ErrorAs(t, err, &synErr)
	assert.Contains(t, synErr.Msg, "FOR")
}

func TestRenderGetUnknownEntity(t *testing.T) {
	e := testEngine(t, plainNetwork)
	_, err := e.Render("t.py", "$JAFF GET specie_idx FOR Xe\nx\n$JAFF END\n")
	var refErr *ReferenceError
	require.ErrorAs(t, err, &refErr)
}

func TestRenderHas(t *testing.T) {
	e := testEngine(t, plainNetwork)

	out, err := e.Render("t.py", "$JAFF HAS specie H+\n$JAFF END\n")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	out, err = e.Render("t.py", "$JAFF HAS specie H2O\nfound = $has$\n$JAFF END\n")
	require.NoError(t, err)
	assert.Equal(t, "found = 0\n", out)
}

func TestRenderReduce(t *testing.T) {
	e := testEngine(t, "H+ + e- -> H [,] 1d0\nC+ + e- -> C [,] 1d0\n")
	// Charged non-electron species sit at indices 0 and 3.
	out, err := e.Render("t.py", ""+
		"$JAFF REDUCE charged_specie_index_ne IN charged_specie_indices_ne\n"+
		"ne = $(x[$charged_specie_index_ne$] + x[$charged_specie_index_ne$])$;\n"+
		"$JAFF END\n")
	require.NoError(t, err)
	assert.Equal(t, "ne = x[0] + x[3];\n", out)
}

func TestRenderReduceMissingVariable(t *testing.T) {
	e := testEngine(t, plainNetwork)
	_, err := e.Render("t.py", ""+
		"$JAFF REDUCE specie IN species\n"+
		"x = $(1 + 1)$\n"+
		"$JAFF END\n")
	var synErr *SyntaxError
	require.ErrorAs(t, err, &synErr)
	assert.Contains(t, synErr.Msg, "bound variable")
}

func TestRenderReplaceChain(t *testing.T) {
	e := testEngine(t, plainNetwork)
	out, err := e.Render("t.py", ""+
		`$JAFF SUB label $[REPLACE H_(\d+) Hydrogen_\1 REPLACE He Helium]$`+"\n"+
		"H_1 H_2 He $label$\n"+
		"$JAFF END\n")
	require.NoError(t, err)
	assert.Equal(t, "Hydrogen_1 Hydrogen_2 Helium test\n", out)
}

func TestRenderReplaceInvalidPattern(t *testing.T) {
	e := testEngine(t, plainNetwork)
	_, err := e.Render("t.py", ""+
		"$JAFF SUB label $[REPLACE ( x]$\n"+
		"$label$\n"+
		"$JAFF END\n")
	var synErr *SyntaxError
	require.ErrorAs(t, err, &synErr)
}

func TestRenderRatesWithCSE(t *testing.T) {
	e := testEngine(t, rateNetwork)
	out, err := e.Render("t.py", ""+
		"$JAFF REPEAT idx, rate, cse IN rates\n"+
		"$cse$\n"+
		"k[$idx$] = $rate$\n"+
		"$JAFF END\n")
	require.NoError(t, err)
	assert.Equal(t, ""+
		"cse0 = sqrt(tgas)\n"+
		"k[0] = 1e-17*cse0\n"+
		"k[1] = 3e-14*cse0\n", out)
}

func TestRenderRatesCSEDisabled(t *testing.T) {
	e := testEngine(t, rateNetwork)
	out, err := e.Render("t.py", ""+
		"$JAFF REPEAT idx, rate, cse IN rates CSE FALSE\n"+
		"$cse$\n"+
		"k[$idx$] = $rate$\n"+
		"$JAFF END\n")
	require.NoError(t, err)
	assert.Equal(t, ""+
		"k[0] = 1e-17*sqrt(tgas)\n"+
		"k[1] = 3e-14*sqrt(tgas)\n", out)
}

func TestRenderFluxExpressions(t *testing.T) {
	e := testEngine(t, rateNetwork)
	out, err := e.Render("t.py", ""+
		"$JAFF REPEAT idx, flux_expression IN flux_expressions\n"+
		"flux[$idx$] = $flux_expression$\n"+
		"$JAFF END\n")
	require.NoError(t, err)
	assert.Equal(t, ""+
		"flux[0] = k[0]*y[0]*y[0]\n"+
		"flux[1] = k[1]*y[1]*y[2]\n", out)
}

func TestRenderOdeExpressions(t *testing.T) {
	e := testEngine(t, rateNetwork)
	out, err := e.Render("t.py", ""+
		"$JAFF REPEAT idx, ode_expression IN ode_expressions\n"+
		"dy[$idx$] = $ode_expression$\n"+
		"$JAFF END\n")
	require.NoError(t, err)
	// Species order: H, H2, O, OH.
	assert.Equal(t, ""+
		"dy[0] = -2*flux[0] + flux[1]\n"+
		"dy[1] = flux[0] - flux[1]\n"+
		"dy[2] = -flux[1]\n"+
		"dy[3] = flux[1]\n", out)
}

func TestRenderJacobian(t *testing.T) {
	e := testEngine(t, rateNetwork)
	out, err := e.Render("t.py", ""+
		"$JAFF REPEAT idx, expr, cse IN jacobian CSE FALSE\n"+
		"J[$idx$][$idx$] = $expr$\n"+
		"$JAFF END\n")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 16)
	assert.True(t, strings.HasPrefix(lines[0], "J[0][0] = "))
	assert.Equal(t, "J[3][3] = 0", lines[15])
}

func TestRenderCSEDeclarationSyntax(t *testing.T) {
	e := testEngineWith(t, rateNetwork, langspec.Builtins()["cxx"])
	out, err := e.Render("t.cpp", ""+
		"$JAFF REPEAT idx, rate, cse IN rates\n"+
		"$cse$\n"+
		"k[$idx$] = $rate$;\n"+
		"$JAFF END\n")
	require.NoError(t, err)
	assert.Equal(t, ""+
		"const double cse0 = sqrt(tgas);\n"+
		"k[0] = 1e-17*cse0;\n"+
		"k[1] = 3e-14*cse0;\n", out)
}

func TestRenderJacobianMatrixSep(t *testing.T) {
	e := testEngineWith(t, rateNetwork, langspec.Builtins()["cxx"])
	out, err := e.Render("t.cpp", ""+
		"$JAFF REPEAT idx, expr IN jacobian CSE FALSE\n"+
		"J[$idx$] = $expr$;\n"+
		"$JAFF END\n")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 16)
	assert.True(t, strings.HasPrefix(lines[0], "J[0][0] = "))
	assert.True(t, strings.HasPrefix(lines[1], "J[0][1] = "))
	assert.Equal(t, "J[3][3] = 0;", lines[15])
}

func TestRenderIdxNegativeOffset(t *testing.T) {
	e := testEngine(t, plainNetwork)
	out, err := e.Render("t.py", ""+
		"$JAFF REPEAT idx, specie IN species\n"+
		"s[$idx-1$] = \"$specie$\"\n"+
		"$JAFF END\n")
	require.NoError(t, err)
	assert.Equal(t, ""+
		"s[-1] = \"H+\"\n"+
		"s[0] = \"e-\"\n"+
		"s[1] = \"H\"\n"+
		"s[2] = \"C\"\n", out)
}

func TestRenderIdempotence(t *testing.T) {
	e := testEngine(t, rateNetwork)
	tmpl := "$JAFF REPEAT idx, rate, cse IN rates\n$cse$\nk[$idx$] = $rate$\n$JAFF END\n"
	first, err := e.Render("t.py", tmpl)
	require.NoError(t, err)
	second, err := e.Render("t.py", tmpl)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRenderUnterminatedBlock(t *testing.T) {
	e := testEngine(t, plainNetwork)
	_, err := e.Render("t.py", "$JAFF SUB nspec\n$nspec$\n")
	var synErr *SyntaxError
	require.ErrorAs(t, err, &synErr)
	assert.Contains(t, synErr.Msg, "unterminated")
}

func TestRenderEndWithoutBlock(t *testing.T) {
	e := testEngine(t, plainNetwork)
	_, err := e.Render("t.py", "plain text\n$JAFF END\n")
	var synErr *SyntaxError
	require.ErrorAs(t, err, &synErr)
	assert.Equal(t, 2, synErr.Line)
}

func TestRenderOutsideTextCopied(t *testing.T) {
	e := testEngine(t, plainNetwork)
	out, err := e.Render("t.py", "before\n$JAFF SUB nspec\n$nspec$\n$JAFF END\nafter\n")
	require.NoError(t, err)
	assert.Equal(t, "before\n4\nafter\n", out)
}
