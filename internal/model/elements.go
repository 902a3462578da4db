package model

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// ElectronMass is the electron rest mass in grams.
const ElectronMass = 9.1093837e-28

// amu is the atomic mass unit in grams.
const amu = 1.66053906660e-24

// MassTable maps element symbols to atomic masses in grams. The electron
// carries its own entry so charge bookkeeping stays mass-aware.
type MassTable map[string]float64

// DefaultMassTable returns the built-in element masses covering the
// astrochemistry element set. Values are in grams.
func DefaultMassTable() MassTable {
	table := MassTable{
		"e-":    ElectronMass,
		"GRAIN": 2.5e-22,
	}
	amuMasses := map[string]float64{
		"H":  1.00794,
		"D":  2.014102,
		"He": 4.002602,
		"Li": 6.941,
		"C":  12.0107,
		"N":  14.0067,
		"O":  15.9994,
		"F":  18.9984032,
		"Na": 22.98976928,
		"Mg": 24.305,
		"Si": 28.0855,
		"P":  30.973762,
		"S":  32.065,
		"Cl": 35.453,
		"Ar": 39.948,
		"Ca": 40.078,
		"Fe": 55.845,
		"Ni": 58.6934,
	}
	for sym, m := range amuMasses {
		table[sym] = m * amu
	}
	return table
}

// LoadMassTable reads a two-column "symbol mass" file, skipping blank lines
// and # comments, and merges it over the built-in table. Masses are in
// grams, matching the built-in entries.
func LoadMassTable(path string) (MassTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mass table: %w", err)
	}
	defer f.Close()

	table := DefaultMassTable()
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("mass table %s:%d: expected \"symbol mass\", got %q", path, lineNo, line)
		}
		mass, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("mass table %s:%d: invalid mass %q: %w", path, lineNo, fields[1], err)
		}
		table[fields[0]] = mass
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read mass table: %w", err)
	}
	return table, nil
}

// Symbols returns the element symbols of the table sorted longest-first,
// which is the order composition parsing must try them in so that "He"
// never matches as "H" followed by garbage.
func (t MassTable) Symbols() []string {
	symbols := make([]string, 0, len(t))
	for sym := range t {
		symbols = append(symbols, sym)
	}
	sort.Slice(symbols, func(i, j int) bool {
		if len(symbols[i]) != len(symbols[j]) {
			return len(symbols[i]) > len(symbols[j])
		}
		return symbols[i] < symbols[j]
	})
	return symbols
}
