// Package compiler derives the symbolic artifacts of a network: rate
// expressions, per-reaction fluxes, the species ODE right-hand sides and
// their Jacobian, plus a deterministic common-subexpression table over
// all of them.
package compiler

import (
	"context"
	"fmt"

	"github.com/vk/jaffgo/internal/ctxlog"
	"github.com/vk/jaffgo/internal/expr"
	"github.com/vk/jaffgo/internal/model"
)

// Options selects optional derivations.
type Options struct {
	// SkipJacobian leaves Artifacts.Jacobian nil, for workflows that only
	// emit rates and fluxes.
	SkipJacobian bool
}

// Artifacts holds every derived expression, indexed like the network:
// Rates and Fluxes per reaction, ODEs and Jacobian rows per species.
type Artifacts struct {
	Network *model.Network

	Rates  []expr.Expr
	Fluxes []expr.Expr
	ODEs   []expr.Expr

	// Jacobian[i][j] = d(ODE_i)/d(y_j); nil when skipped.
	Jacobian [][]expr.Expr

	// CSE is the shared subexpression table over rates, fluxes, ODEs and
	// Jacobian in that order.
	CSE *Table
}

// Compile derives all artifacts for a network.
func Compile(ctx context.Context, n *model.Network, opts Options) (*Artifacts, error) {
	log := ctxlog.FromContext(ctx)

	a := &Artifacts{Network: n}

	a.Rates = make([]expr.Expr, len(n.Reactions))
	a.Fluxes = make([]expr.Expr, len(n.Reactions))
	for i, r := range n.Reactions {
		a.Rates[i] = r.Rate
		flux, err := reactionFlux(n, r)
		if err != nil {
			return nil, err
		}
		a.Fluxes[i] = flux
	}

	a.ODEs = speciesODEs(n, a.Fluxes)

	if !opts.SkipJacobian {
		a.Jacobian = make([][]expr.Expr, len(n.Species))
		for i, ode := range a.ODEs {
			row := make([]expr.Expr, len(n.Species))
			for j := range n.Species {
				d, err := expr.Differentiate(ode, &expr.Conc{Index: j})
				if err != nil {
					return nil, fmt.Errorf("jacobian entry (%d,%d): %w", i, j, err)
				}
				row[j] = d
			}
			a.Jacobian[i] = row
		}
	}

	a.CSE = NewTable(a.allExpressions())

	log.Debug("network compiled",
		"rates", len(a.Rates),
		"odes", len(a.ODEs),
		"jacobian", a.Jacobian != nil,
		"cse_temps", len(a.CSE.Defs))

	return a, nil
}

// allExpressions lists every derived expression in the canonical order
// the CSE table is numbered by: rates, fluxes, ODEs, Jacobian row-major.
func (a *Artifacts) allExpressions() []expr.Expr {
	var all []expr.Expr
	all = append(all, a.Rates...)
	all = append(all, a.Fluxes...)
	all = append(all, a.ODEs...)
	for _, row := range a.Jacobian {
		all = append(all, row...)
	}
	return all
}

// reactionFlux is k[i] times the product of reactant concentrations with
// their stoichiometric powers.
func reactionFlux(n *model.Network, r *model.Reaction) (expr.Expr, error) {
	flux := expr.Expr(&expr.RateRef{Index: r.Index})
	for _, e := range r.Reactants {
		idx, ok := n.SpeciesIndex(e.Species.Name)
		if !ok {
			return nil, fmt.Errorf("reaction %d: species %q not in network", r.Index, e.Species.Name)
		}
		for c := 0; c < e.Coeff; c++ {
			flux = expr.Mul(flux, &expr.Conc{Index: idx})
		}
	}
	return flux, nil
}

// speciesODEs folds the fluxes into one right-hand side per species:
// consumed species subtract the flux per stoichiometric unit, produced
// species add it. Reaction order fixes the term order.
func speciesODEs(n *model.Network, fluxes []expr.Expr) []expr.Expr {
	odes := make([]expr.Expr, len(n.Species))
	for i := range odes {
		odes[i] = expr.Num(0)
	}
	for ri, r := range n.Reactions {
		for _, e := range r.Reactants {
			idx, _ := n.SpeciesIndex(e.Species.Name)
			for c := 0; c < e.Coeff; c++ {
				odes[idx] = expr.Sub(odes[idx], fluxes[ri])
			}
		}
		for _, e := range r.Products {
			idx, _ := n.SpeciesIndex(e.Species.Name)
			for c := 0; c < e.Coeff; c++ {
				odes[idx] = expr.Add(odes[idx], fluxes[ri])
			}
		}
	}
	return odes
}
