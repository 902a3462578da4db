package dialect

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// parsePrizmo handles "R1 + R2 -> P1 + P2 [tmin, tmax] rate" lines.
// Bounds at or below zero and at or above 1e8 mean unbounded.
func parsePrizmo(srow string) (Draft, error) {
	parts := strings.Split(strings.ReplaceAll(srow, "[", "]"), "]")
	if len(parts) != 3 {
		return Draft{}, fmt.Errorf("expected \"reaction [tmin, tmax] rate\", got %q", srow)
	}
	reaction := strings.TrimSpace(parts[0])
	tlims := strings.TrimSpace(parts[1])
	rate := strings.TrimSpace(parts[2])

	var tminText, tmaxText string
	if strings.Contains(tlims, ",") {
		lohi := strings.SplitN(tlims, ",", 2)
		tminText = strings.TrimSpace(lohi[0])
		tmaxText = strings.TrimSpace(lohi[1])
	}
	tmin, err := parseBound(tminText, func(v float64) bool { return v <= 0 })
	if err != nil {
		return Draft{}, err
	}
	tmax, err := parseBound(tmaxText, func(v float64) bool { return v >= 1e8 })
	if err != nil {
		return Draft{}, err
	}

	reaction = strings.ReplaceAll(reaction, "HE", "He")
	reaction = strings.ReplaceAll(reaction, " E", " e-")
	reaction = strings.ReplaceAll(reaction, "E ", "e- ")
	reaction = strings.ReplaceAll(reaction, "GRAIN0", "GRAIN")

	rate = strings.ReplaceAll(rate, "user_crflux", "crate")
	rate = strings.ReplaceAll(rate, "user_av", "av")

	sides := strings.SplitN(reaction, "->", 2)
	rr := splitSpecies(sides[0], nil)
	pp := splitSpecies(sides[1], nil)

	return Draft{Reactants: rr, Products: pp, Rate: rate, Tmin: tmin, Tmax: tmax, Dialect: PRIZMO}, nil
}

// parseUDFA handles colon-separated UDFA (RATE12-style) lines. Bounds at
// or below 10 K and at or above 41000 K mean unbounded.
func parseUDFA(srow string) (Draft, error) {
	arow := strings.Split(srow, ":")
	if len(arow) < 14 {
		return Draft{}, fmt.Errorf("expected at least 14 colon-separated fields, got %d", len(arow))
	}
	rtype := arow[1]
	ka, kb, kc, err := parseCoefficients(arow[9:12])
	if err != nil {
		return Draft{}, err
	}
	tminV, err := strconv.ParseFloat(strings.TrimSpace(arow[12]), 64)
	if err != nil {
		return Draft{}, fmt.Errorf("invalid tmin %q: %w", arow[12], err)
	}
	tmaxV, err := strconv.ParseFloat(strings.TrimSpace(arow[13]), 64)
	if err != nil {
		return Draft{}, fmt.Errorf("invalid tmax %q: %w", arow[13], err)
	}
	var tmin, tmax *float64
	if tminV > 1e1 {
		tmin = &tminV
	}
	if tmaxV < 41000 {
		tmax = &tmaxV
	}

	var rate string
	switch rtype {
	case "CR":
		rate = fmt.Sprintf("%.2e * crate", kc)
	case "PH":
		rate = fmt.Sprintf("%.2e * exp(-%.2f * av)", ka, kc)
	default:
		rate = fmt.Sprintf("%.2e", ka)
		if kb != 0 {
			rate += fmt.Sprintf(" * (tgas / 3e2)**(%.2f)", kb)
		}
		if kc != 0 {
			rate += fmt.Sprintf(" * exp(-%.2f / tgas)", kc)
		}
	}

	skip := map[string]bool{"CR": true, "CRP": true, "PHOTON": true, "CRPHOT": true, "": true}
	rr := splitFiltered(arow[2:4], skip, nil)
	pp := splitFiltered(arow[4:8], skip, nil)

	return Draft{Reactants: rr, Products: pp, Rate: rate, Tmin: tmin, Tmax: tmax, Dialect: UDFA}, nil
}

// KIDA column layout: reactants end at byte 34, products at byte 91, the
// numeric block follows.
const (
	kidaProductsPos = 34
	kidaNumbersPos  = 91
)

// parseKIDA handles fixed-column KIDA lines. Bounds at or below zero and
// at or above 9999 K mean unbounded.
func parseKIDA(srow string) (Draft, error) {
	if len(srow) <= kidaNumbersPos {
		return Draft{}, fmt.Errorf("line too short for fixed-column layout (%d bytes)", len(srow))
	}
	rrFields := strings.Fields(srow[:kidaProductsPos])
	ppFields := strings.Fields(srow[kidaProductsPos:kidaNumbersPos])
	arow := strings.Fields(srow[kidaNumbersPos:])
	if len(arow) < 10 {
		return Draft{}, fmt.Errorf("expected at least 10 numeric fields, got %d", len(arow))
	}
	ka, kb, kc, err := parseCoefficients(arow[:3])
	if err != nil {
		return Draft{}, err
	}
	tminV, err := strconv.ParseFloat(arow[7], 64)
	if err != nil {
		return Draft{}, fmt.Errorf("invalid tmin %q: %w", arow[7], err)
	}
	tmaxV, err := strconv.ParseFloat(arow[8], 64)
	if err != nil {
		return Draft{}, fmt.Errorf("invalid tmax %q: %w", arow[8], err)
	}
	formula, err := strconv.Atoi(arow[9])
	if err != nil {
		return Draft{}, fmt.Errorf("invalid formula id %q: %w", arow[9], err)
	}
	var tmin, tmax *float64
	if tminV > 0 {
		tmin = &tminV
	}
	if tmaxV < 9999 {
		tmax = &tmaxV
	}

	var rate string
	switch formula {
	case 1:
		rate = fmt.Sprintf("%e * crate", ka)
	case 2:
		rate = fmt.Sprintf("%.2e * exp(-%e*av)", ka, kc)
	case 3:
		rate = fmt.Sprintf("%.2e", ka)
		if kb != 0 {
			rate += fmt.Sprintf(" * (tgas / 3e2)**(% .2f)", kb)
		}
		if kc != 0 {
			rate += fmt.Sprintf(" * exp(-% .2f / tgas)", kc)
		}
	case 4:
		rate = fmt.Sprintf("%.2e", ka*kb)
		if kc != 0 {
			rate += fmt.Sprintf(" * (0.62 + 0.4767 * %.2e * sqrt(3e2 / tgas))", kc)
		}
	case 5:
		rate = fmt.Sprintf("%.2e", ka*kb)
		if kc != 0 {
			rate += fmt.Sprintf(" * (1e0 + 0.0967 * %.2e * sqrt(3e2 / tgas + %e * 3e2 / 10.526 / tgas))", kc, kc*kc)
		}
	default:
		return Draft{}, fmt.Errorf("formula %d not supported", formula)
	}

	skip := map[string]bool{"CR": true, "CRP": true, "Photon": true}
	rr := splitFiltered(rrFields, skip, nil)
	pp := splitFiltered(ppFields, skip, nil)

	return Draft{Reactants: rr, Products: pp, Rate: rate, Tmin: tmin, Tmax: tmax, Dialect: KIDA}, nil
}

// parseKrome handles comma-separated KROME lines against the active
// @format declaration. Column names: idx, r, p, tmin, tmax, rate.
func parseKrome(srow, format string) (Draft, error) {
	line := strings.ReplaceAll(srow, " ", "")

	_, spec, _ := strings.Cut(strings.ToLower(strings.TrimSpace(format)), ":")
	afmt := strings.Split(spec, ",")
	for i := range afmt {
		afmt[i] = strings.TrimSpace(afmt[i])
	}
	arow := strings.Split(line, ",")
	if len(arow) != len(afmt) {
		return Draft{}, fmt.Errorf("format %q has %d columns but line has %d", format, len(afmt), len(arow))
	}

	var (
		rr, pp     []string
		tmin, tmax *float64
		rate       string
	)
	for i, col := range afmt {
		switch col {
		case "r":
			rr = append(rr, arow[i])
		case "p":
			pp = append(pp, arow[i])
		case "tmin":
			v, err := parseKromeBound(arow[i])
			if err != nil {
				return Draft{}, fmt.Errorf("invalid tmin %q: %w", arow[i], err)
			}
			tmin = v
		case "tmax":
			v, err := parseKromeBound(arow[i])
			if err != nil {
				return Draft{}, fmt.Errorf("invalid tmax %q: %w", arow[i], err)
			}
			tmax = v
		case "rate":
			rate = strings.ToLower(strings.TrimSpace(arow[i]))
		case "idx":
			// index column is ignored, the model renumbers
		default:
			return Draft{}, fmt.Errorf("unknown column %q", col)
		}
	}

	rate = strings.ReplaceAll(rate, "user_crflux", "crate")
	rate = strings.ReplaceAll(rate, "user_crate", "crate")
	rate = strings.ReplaceAll(rate, "user_av", "av")
	rate = f90Convert(rate)
	rate = strings.ReplaceAll(rate, "auto", "photo, 1e99")

	rr = kromeSpecies(rr)
	pp = kromeSpecies(pp)

	return Draft{Reactants: rr, Products: pp, Rate: rate, Tmin: tmin, Tmax: tmax, Dialect: KROME}, nil
}

// parseKromeBound handles "none" and Fortran comparison decoration like
// ".le.300" or ">10d0".
func parseKromeBound(s string) (*float64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "none" {
		return nil, nil
	}
	s = strings.ReplaceAll(s, "d", "e")
	for _, tok := range []string{".le.", ".ge.", ".lt.", ".gt.", ">", "<"} {
		s = strings.ReplaceAll(s, tok, "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func kromeSpecies(in []string) []string {
	var out []string
	for _, s := range in {
		switch s {
		case "E", "e":
			s = "e-"
		case "g":
			s = ""
		}
		s = strings.TrimSpace(strings.ReplaceAll(s, "HE", "He"))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseUCLCHEM handles comma-separated UCLCHEM rows. Gas-phase cosmic-ray
// rate formulas are built; surface-process rows (FREEZE, PHOTON and the
// grain mechanisms) depend on grain parameters outside the rate grammar
// and get a zero rate.
func parseUCLCHEM(srow string) (Draft, error) {
	arow := strings.Split(strings.TrimSpace(srow), ",")
	if len(arow) < 13 {
		return Draft{}, fmt.Errorf("expected at least 13 comma-separated fields, got %d", len(arow))
	}
	for i := range arow {
		arow[i] = strings.TrimSpace(arow[i])
	}
	ka, kb, _, err := parseCoefficients(arow[7:10])
	if err != nil {
		return Draft{}, err
	}

	var tmin, tmax *float64
	if strings.EqualFold(arow[12], "true") {
		lo, hi := 3e0, 1e6
		tmin, tmax = &lo, &hi
	} else {
		lo, err := strconv.ParseFloat(arow[10], 64)
		if err != nil {
			return Draft{}, fmt.Errorf("invalid tmin %q: %w", arow[10], err)
		}
		hi, err := strconv.ParseFloat(arow[11], 64)
		if err != nil {
			return Draft{}, fmt.Errorf("invalid tmax %q: %w", arow[11], err)
		}
		tmin, tmax = &lo, &hi
	}

	var rate string
	switch {
	case strings.Contains(srow, ",CRP,"):
		rate = fmt.Sprintf("%.2e * crate", ka)
	case strings.Contains(srow, ",CRPHOT,"):
		rate = fmt.Sprintf("%.2e * (tgas/3e2)**(%.2f) * crate", ka, kb)
	default:
		rate = "0e0"
	}

	ignore := map[string]bool{
		"CR": true, "CRP": true, "CRPHOT": true, "PHOTON": true, "NAN": true, "": true,
		"ER": true, "ERDES": true, "FREEZE": true, "H2FORM": true, "BULKSWAP": true,
		"DESCR": true, "DESOH2": true, "DEUVCR": true, "LH": true, "LHDES": true,
		"SURFSWAP": true, "THERM": true,
	}
	rr := splitFiltered(arow[:3], ignore, uclchemSpecies)
	pp := splitFiltered(arow[3:7], ignore, uclchemSpecies)

	return Draft{Reactants: rr, Products: pp, Rate: rate, Tmin: tmin, Tmax: tmax, Dialect: UCLCHEM}, nil
}

// uclchemSpecies maps UCLCHEM phase markers and all-caps element spellings
// to the canonical species grammar: "#X" is the dust-surface phase, "@X"
// the bulk-ice phase.
func uclchemSpecies(s string) string {
	if strings.HasPrefix(s, "#") {
		s = s[1:] + "_DUST"
	}
	if strings.HasPrefix(s, "@") {
		s = s[1:] + "_BULK"
	}
	if s == "E-" {
		s = "e-"
	}
	for old, new := range map[string]string{"HE": "He", "SI": "Si", "CL": "Cl", "MG": "Mg"} {
		s = strings.ReplaceAll(s, old, new)
	}
	return s
}

var f90Exponent = regexp.MustCompile(`([0-9_.])d([0-9_+-])`)

// f90Convert normalizes Fortran rate text: dexp -> exp, array slices
// dropped, double-precision literals to scientific notation.
func f90Convert(s string) string {
	s = strings.ReplaceAll(s, "dexp(", "exp(")
	s = strings.ReplaceAll(s, "(:)", "")
	return f90Exponent.ReplaceAllString(s, "${1}e${2}")
}

func parseBound(s string, unbounded func(float64) bool) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, "d", "e"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid temperature bound %q: %w", s, err)
	}
	if unbounded(v) {
		return nil, nil
	}
	return &v, nil
}

func parseCoefficients(fields []string) (ka, kb, kc float64, err error) {
	vals := make([]float64, 3)
	for i := 0; i < 3; i++ {
		vals[i], err = strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid rate coefficient %q: %w", fields[i], err)
		}
	}
	return vals[0], vals[1], vals[2], nil
}

func splitSpecies(side string, convert func(string) string) []string {
	var out []string
	for _, s := range strings.Split(side, " + ") {
		s = strings.TrimSpace(s)
		if convert != nil {
			s = convert(s)
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func splitFiltered(fields []string, skip map[string]bool, convert func(string) string) []string {
	var out []string
	for _, s := range fields {
		s = strings.TrimSpace(s)
		if skip[s] {
			continue
		}
		if convert != nil {
			s = convert(s)
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
