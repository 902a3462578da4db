// Package ratetable tabulates rate coefficients as a function of gas
// temperature. Sampling is logarithmic in temperature and adaptively
// refined: the grid doubles (geometric midpoints) until logarithmic
// interpolation between neighbouring samples reproduces the exact rate
// within tolerance, or the doubling cap is reached. Rates depending on
// extinction or the cosmic-ray flux are evaluated at av=0, crate=1; rates
// depending on anything else are untabulable and fill their row with NaN.
package ratetable

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/vk/jaffgo/internal/ctxlog"
	"github.com/vk/jaffgo/internal/expr"
	"github.com/vk/jaffgo/internal/model"
)

// Options control grid placement and refinement.
type Options struct {
	// TMin/TMax bound the tabulated temperature range. Zero values are
	// derived from the reaction validity intervals.
	TMin float64
	TMax float64

	// NT is the initial sample count, default 64.
	NT int

	// ErrTol is the relative interpolation error tolerance, default 0.01.
	// A negative value disables refinement.
	ErrTol float64

	// RateMin is added to the denominator of the error estimate so that
	// vanishing rates do not demand infinite resolution. Default 1e-30.
	RateMin float64

	// RateMax clips tabulated rates to prevent overflow. Default 1e100.
	RateMax float64

	// MaxDoublings caps refinement rounds, default 16.
	MaxDoublings int
}

func (o Options) withDefaults() Options {
	if o.NT == 0 {
		o.NT = 64
	}
	if o.ErrTol == 0 {
		o.ErrTol = 0.01
	}
	if o.RateMin == 0 {
		o.RateMin = 1e-30
	}
	if o.RateMax == 0 {
		o.RateMax = 1e100
	}
	if o.MaxDoublings == 0 {
		o.MaxDoublings = 16
	}
	return o
}

// Table is the tabulation result. Rates is indexed [reaction][sample];
// untabulable reactions hold NaN in every sample.
type Table struct {
	Temps []float64
	Rates [][]float64
}

// rateFunc evaluates one reaction's log-rate at a temperature, or is
// marked constant/untabulable.
type rateFunc struct {
	logConst    float64
	isConst     bool
	untabulable bool
	eval        func(t float64) float64
}

// Build tabulates every reaction of the network.
func Build(ctx context.Context, n *model.Network, opts Options) (*Table, error) {
	log := ctxlog.FromContext(ctx)
	o := opts.withDefaults()

	tmin, tmax, err := temperatureRange(n, o)
	if err != nil {
		return nil, err
	}

	funcs := make([]rateFunc, len(n.Reactions))
	tabulable := 0
	for i, r := range n.Reactions {
		funcs[i] = classify(r.Rate, o.RateMax)
		if !funcs[i].untabulable {
			tabulable++
		}
	}

	temps := logspace(tmin, tmax, o.NT)
	logRates := sample(funcs, temps)

	rounds := 0
	if o.ErrTol > 0 && tabulable > 0 {
		for ; rounds < o.MaxDoublings; rounds++ {
			mids := midpoints(temps)
			exact := sample(funcs, mids)

			maxErr := 0.0
			for i := range funcs {
				if funcs[i].untabulable {
					continue
				}
				for j := range mids {
					approx := 0.5 * (logRates[i][j] + logRates[i][j+1])
					e := math.Abs((math.Exp(approx) - math.Exp(exact[i][j])) /
						(math.Exp(exact[i][j]) + o.RateMin))
					if !math.IsNaN(e) && e > maxErr {
						maxErr = e
					}
				}
			}

			temps = interleave(temps, mids)
			for i := range logRates {
				logRates[i] = interleave(logRates[i], exact[i])
			}

			if maxErr < o.ErrTol {
				break
			}
		}
	}

	rates := make([][]float64, len(logRates))
	for i, row := range logRates {
		rates[i] = make([]float64, len(row))
		for j, v := range row {
			rates[i][j] = math.Exp(v)
		}
	}

	log.Info("rate table built",
		"samples", len(temps),
		"reactions", len(n.Reactions),
		"untabulable", len(n.Reactions)-tabulable,
		"refinements", rounds)
	return &Table{Temps: temps, Rates: rates}, nil
}

func temperatureRange(n *model.Network, o Options) (float64, float64, error) {
	tmin, tmax := o.TMin, o.TMax
	if tmin == 0 {
		for _, r := range n.Reactions {
			if r.Tmin != nil && (tmin == 0 || *r.Tmin < tmin) {
				tmin = *r.Tmin
			}
		}
	}
	if tmax == 0 {
		for _, r := range n.Reactions {
			if r.Tmax != nil && *r.Tmax > tmax {
				tmax = *r.Tmax
			}
		}
	}
	if tmin <= 0 || tmax <= 0 || tmin >= tmax {
		return 0, 0, fmt.Errorf("cannot determine a temperature range from the reaction list; set TMin and TMax")
	}
	return tmin, tmax, nil
}

// classify folds av=0 and crate=1 into the rate, then decides whether the
// result is a constant, a pure function of tgas, or untabulable.
func classify(rate expr.Expr, rateMax float64) rateFunc {
	if rate == nil {
		return rateFunc{untabulable: true}
	}
	r := expr.Substitute(rate, &expr.Primitive{Name: "av"}, expr.Num(0))
	r = expr.Substitute(r, &expr.Primitive{Name: "crate"}, expr.Num(1))

	opaque := false
	expr.Walk(r, func(n expr.Expr) {
		switch c := n.(type) {
		case *expr.Call:
			switch c.Func {
			case "exp", "log", "log10", "sqrt", "min", "max":
			default:
				opaque = true
			}
		case *expr.Conc, *expr.RateRef, *expr.CSERef:
			opaque = true
		}
	})
	free := expr.FreeVariables(r)
	if opaque || len(free) > 1 || (len(free) == 1 && free[0] != "tgas") {
		return rateFunc{untabulable: true}
	}

	logCap := math.Log(rateMax)
	eval := func(t float64) float64 {
		v, err := expr.Eval(r, expr.Env{Vars: map[string]float64{"tgas": t}})
		if err != nil {
			return math.NaN()
		}
		lv := math.Log(v)
		if lv > logCap {
			lv = logCap
		}
		return lv
	}

	if len(free) == 0 {
		return rateFunc{logConst: eval(0), isConst: true}
	}
	return rateFunc{eval: eval}
}

func sample(funcs []rateFunc, temps []float64) [][]float64 {
	out := make([][]float64, len(funcs))
	for i, f := range funcs {
		out[i] = make([]float64, len(temps))
		for j, t := range temps {
			switch {
			case f.untabulable:
				out[i][j] = math.NaN()
			case f.isConst:
				out[i][j] = f.logConst
			default:
				out[i][j] = f.eval(t)
			}
		}
	}
	return out
}

func logspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	llo, lhi := math.Log10(lo), math.Log10(hi)
	for i := range out {
		out[i] = math.Pow(10, llo+(lhi-llo)*float64(i)/float64(n-1))
	}
	return out
}

// midpoints returns the geometric midpoint of each adjacent sample pair.
func midpoints(temps []float64) []float64 {
	out := make([]float64, len(temps)-1)
	for i := range out {
		out[i] = math.Sqrt(temps[i] * temps[i+1])
	}
	return out
}

// interleave merges a grid with its midpoints: a0 b0 a1 b1 ... an.
func interleave(a, b []float64) []float64 {
	out := make([]float64, 0, len(a)+len(b))
	for i := range a {
		out = append(out, a[i])
		if i < len(b) {
			out = append(out, b[i])
		}
	}
	return out
}

// WriteTo writes the table as whitespace-separated columns: temperature
// first, one rate column per reaction.
func (t *Table) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64

	count := func(n int, err error) error {
		written += int64(n)
		return err
	}

	for j, temp := range t.Temps {
		if err := count(fmt.Fprintf(bw, "%s", format(temp))); err != nil {
			return written, err
		}
		for i := range t.Rates {
			if err := count(fmt.Fprintf(bw, " %s", format(t.Rates[i][j]))); err != nil {
				return written, err
			}
		}
		if err := count(bw.WriteString("\n")); err != nil {
			return written, err
		}
	}
	return written, bw.Flush()
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'e', 8, 64)
}
