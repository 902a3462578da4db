package model

import (
	"fmt"
	"math"
	"strings"
)

// FindingKind classifies a validation finding.
type FindingKind string

const (
	FindingMass      FindingKind = "mass"
	FindingCharge    FindingKind = "charge"
	FindingDuplicate FindingKind = "duplicate"
	FindingDangling  FindingKind = "dangling"
	FindingSink      FindingKind = "sink"
	FindingSource    FindingKind = "source"
)

// Finding is one validation result. Errors fail strict validation,
// advisory findings (sink/source) never do.
type Finding struct {
	Kind     FindingKind
	Reaction int // -1 for species-level findings
	Species  string
	Message  string
	Advisory bool
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// ValidateOptions selects the checks to run. The zero value runs all of
// them with the default mass tolerance.
type ValidateOptions struct {
	SkipMass       bool
	SkipCharge     bool
	SkipDuplicates bool
	SkipDangling   bool
	SkipSinkSource bool

	// MassRelTol is the relative mass-imbalance tolerance; on top of it an
	// absolute allowance of one electron mass covers ionization reactions.
	// Zero means the default of 1e-3.
	MassRelTol float64
}

// ValidationError wraps the non-advisory findings when strict validation
// fails.
type ValidationError struct {
	Findings []Finding
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Findings))
	for i, f := range e.Findings {
		msgs[i] = f.String()
	}
	return fmt.Sprintf("network validation failed with %d finding(s): %s", len(e.Findings), strings.Join(msgs, "; "))
}

// Validate runs the selected consistency checks and returns every finding
// in deterministic order: reaction-level checks by reaction index, then
// species-level checks by species index.
func (n *Network) Validate(opts ValidateOptions) []Finding {
	relTol := opts.MassRelTol
	if relTol == 0 {
		relTol = 1e-3
	}

	var findings []Finding

	for _, r := range n.Reactions {
		if !opts.SkipMass {
			rm, pm := r.MassBalance()
			tol := relTol*math.Max(rm, pm) + ElectronMass
			if math.Abs(rm-pm) > tol {
				findings = append(findings, Finding{
					Kind:     FindingMass,
					Reaction: r.Index,
					Message: fmt.Sprintf("reaction %d (%s): mass not conserved, reactants %.6e g vs products %.6e g",
						r.Index, r.Equation(), rm, pm),
				})
			}
		}
		if !opts.SkipCharge {
			rc, pc := r.ChargeBalance()
			if rc != pc {
				findings = append(findings, Finding{
					Kind:     FindingCharge,
					Reaction: r.Index,
					Message: fmt.Sprintf("reaction %d (%s): charge not conserved, reactants %+d vs products %+d",
						r.Index, r.Equation(), rc, pc),
				})
			}
		}
	}

	if !opts.SkipDuplicates {
		findings = append(findings, n.findDuplicates()...)
	}
	if !opts.SkipDangling {
		findings = append(findings, n.findDangling()...)
	}
	if !opts.SkipSinkSource {
		findings = append(findings, n.findSinkSource()...)
	}

	return findings
}

// StrictValidate returns a ValidationError when any non-advisory finding
// exists.
func (n *Network) StrictValidate(opts ValidateOptions) error {
	var hard []Finding
	for _, f := range n.Validate(opts) {
		if !f.Advisory {
			hard = append(hard, f)
		}
	}
	if len(hard) > 0 {
		return &ValidationError{Findings: hard}
	}
	return nil
}

// findDuplicates flags reactions with the same serialized form whose
// temperature validity intervals overlap. Same reaction split across
// disjoint temperature ranges is legitimate.
func (n *Network) findDuplicates() []Finding {
	var findings []Finding
	seen := map[string][]*Reaction{}
	for _, r := range n.Reactions {
		key := r.Serialized()
		for _, prev := range seen[key] {
			if r.OverlapsTemperature(prev) {
				findings = append(findings, Finding{
					Kind:     FindingDuplicate,
					Reaction: r.Index,
					Message: fmt.Sprintf("reaction %d duplicates reaction %d (%s) with overlapping temperature ranges",
						r.Index, prev.Index, r.Equation()),
				})
			}
		}
		seen[key] = append(seen[key], r)
	}
	return findings
}

// findDangling flags reactions whose stoichiometry references a species
// missing from the network's species list.
func (n *Network) findDangling() []Finding {
	var findings []Finding
	for _, r := range n.Reactions {
		for _, side := range [][]StoichEntry{r.Reactants, r.Products} {
			for _, e := range side {
				if _, ok := n.speciesIdx[e.Species.Name]; !ok {
					findings = append(findings, Finding{
						Kind:     FindingDangling,
						Reaction: r.Index,
						Species:  e.Species.Name,
						Message: fmt.Sprintf("reaction %d (%s): species %q not in network",
							r.Index, r.Equation(), e.Species.Name),
					})
				}
			}
		}
	}
	return findings
}

// findSinkSource reports species that only ever appear as products (sources)
// or only ever as reactants (sinks). These are advisory: incomplete networks
// are common and sometimes intentional.
func (n *Network) findSinkSource() []Finding {
	consumed := make([]bool, len(n.Species))
	produced := make([]bool, len(n.Species))
	for _, r := range n.Reactions {
		for _, e := range r.Reactants {
			if i, ok := n.speciesIdx[e.Species.Name]; ok {
				consumed[i] = true
			}
		}
		for _, e := range r.Products {
			if i, ok := n.speciesIdx[e.Species.Name]; ok {
				produced[i] = true
			}
		}
	}

	var findings []Finding
	for i, s := range n.Species {
		switch {
		case consumed[i] && !produced[i]:
			findings = append(findings, Finding{
				Kind:     FindingSink,
				Reaction: -1,
				Species:  s.Name,
				Advisory: true,
				Message:  fmt.Sprintf("species %q is only consumed, never produced", s.Name),
			})
		case produced[i] && !consumed[i]:
			findings = append(findings, Finding{
				Kind:     FindingSource,
				Reaction: -1,
				Species:  s.Name,
				Advisory: true,
				Message:  fmt.Sprintf("species %q is only produced, never consumed", s.Name),
			})
		}
	}
	return findings
}
