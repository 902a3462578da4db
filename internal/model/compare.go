package model

import "sort"

// Diff summarizes the structural differences between two networks in
// composition-canonical form, so renamed isomers still match.
type Diff struct {
	SpeciesOnlyInA   []string
	SpeciesOnlyInB   []string
	ReactionsOnlyInA []string
	ReactionsOnlyInB []string
}

// Empty reports whether the two networks are structurally identical.
func (d Diff) Empty() bool {
	return len(d.SpeciesOnlyInA) == 0 && len(d.SpeciesOnlyInB) == 0 &&
		len(d.ReactionsOnlyInA) == 0 && len(d.ReactionsOnlyInB) == 0
}

// Compare diffs two networks as multisets of serialized species and
// reactions. Results are sorted for stable reporting.
func (n *Network) Compare(other *Network) Diff {
	var d Diff
	d.SpeciesOnlyInA, d.SpeciesOnlyInB = multisetDiff(speciesKeys(n), speciesKeys(other))
	d.ReactionsOnlyInA, d.ReactionsOnlyInB = multisetDiff(reactionKeys(n), reactionKeys(other))
	return d
}

func speciesKeys(n *Network) []string {
	keys := make([]string, len(n.Species))
	for i, s := range n.Species {
		keys[i] = s.Serialized()
	}
	return keys
}

func reactionKeys(n *Network) []string {
	keys := make([]string, len(n.Reactions))
	for i, r := range n.Reactions {
		keys[i] = r.SerializedExploded()
	}
	return keys
}

func multisetDiff(a, b []string) (onlyA, onlyB []string) {
	counts := map[string]int{}
	for _, k := range a {
		counts[k]++
	}
	for _, k := range b {
		counts[k]--
	}
	for k, c := range counts {
		for i := 0; i < c; i++ {
			onlyA = append(onlyA, k)
		}
		for i := 0; i < -c; i++ {
			onlyB = append(onlyB, k)
		}
	}
	sort.Strings(onlyA)
	sort.Strings(onlyB)
	return onlyA, onlyB
}
