// Package langspec defines the target-language descriptor consumed by the
// rendering step. A descriptor captures every piece of target-language
// syntax knowledge the generator needs: comment prefix, array bracket
// style, matrix index separator, index base, power spelling and float
// exponent marker. The rest of the pipeline is language-agnostic.
package langspec

import (
	"fmt"
	"strings"
)

// Descriptor holds the syntax choices of one target language.
type Descriptor struct {
	// Name is the canonical identifier, e.g. "cxx" or "f90".
	Name string

	// Comment is the line-comment prefix, including any trailing space.
	Comment string

	// Bracket is a two-rune pair used for 1D array indexing, e.g. "[]".
	Bracket string

	// MatrixSep separates the two indices of a 2D access. "][" yields
	// J[i][j], ", " yields J[i, j].
	MatrixSep string

	// IndexBase is the first valid array index, 0 or 1.
	IndexBase int

	// Power is the exponentiation spelling. "**" and "^" are emitted as
	// infix operators; anything else is treated as a function name,
	// e.g. "std::pow" yields std::pow(a, b).
	Power string

	// Exponent is the marker used in floating point literals, "e" or "d".
	Exponent string

	// StatementEnd terminates generated statements, e.g. ";" for C++.
	StatementEnd string

	// DefPrefix introduces a new scalar definition, e.g. "const double ".
	DefPrefix string
}

// Left returns the opening bracket rune as a string.
func (d Descriptor) Left() string { return d.Bracket[:1] }

// Right returns the closing bracket rune as a string.
func (d Descriptor) Right() string { return d.Bracket[1:] }

// Validate checks the descriptor for values the renderer cannot work with.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("language descriptor has no name")
	}
	if len(d.Bracket) != 2 {
		return fmt.Errorf("language %q: bracket must be a two-character pair, got %q", d.Name, d.Bracket)
	}
	if d.IndexBase != 0 && d.IndexBase != 1 {
		return fmt.Errorf("language %q: index base must be 0 or 1, got %d", d.Name, d.IndexBase)
	}
	if d.Exponent != "e" && d.Exponent != "d" {
		return fmt.Errorf("language %q: exponent marker must be \"e\" or \"d\", got %q", d.Name, d.Exponent)
	}
	if d.Power == "" {
		return fmt.Errorf("language %q: power spelling must not be empty", d.Name)
	}
	return nil
}

// Builtins returns the descriptors that ship with the tool. User-supplied
// HCL files may add to or override these.
func Builtins() map[string]Descriptor {
	return map[string]Descriptor{
		"cxx": {
			Name:         "cxx",
			Comment:      "// ",
			Bracket:      "[]",
			MatrixSep:    "][",
			IndexBase:    0,
			Power:        "std::pow",
			Exponent:     "e",
			StatementEnd: ";",
			DefPrefix:    "const double ",
		},
		"c": {
			Name:         "c",
			Comment:      "// ",
			Bracket:      "[]",
			MatrixSep:    "][",
			IndexBase:    0,
			Power:        "pow",
			Exponent:     "e",
			StatementEnd: ";",
			DefPrefix:    "const double ",
		},
		"f90": {
			Name:         "f90",
			Comment:      "!! ",
			Bracket:      "()",
			MatrixSep:    ", ",
			IndexBase:    1,
			Power:        "**",
			Exponent:     "d",
			StatementEnd: "",
			DefPrefix:    "",
		},
		"py": {
			Name:         "py",
			Comment:      "# ",
			Bracket:      "[]",
			MatrixSep:    ", ",
			IndexBase:    0,
			Power:        "**",
			Exponent:     "e",
			StatementEnd: "",
			DefPrefix:    "",
		},
	}
}

// extensions maps template file extensions to builtin descriptor names.
var extensions = map[string]string{
	"cpp": "cxx",
	"cxx": "cxx",
	"cc":  "cxx",
	"hpp": "cxx",
	"hxx": "cxx",
	"hh":  "cxx",
	"h":   "cxx",
	"c":   "c",
	"f":   "f90",
	"for": "f90",
	"f90": "f90",
	"f95": "f90",
	"f03": "f90",
	"f08": "f90",
	"py":  "py",
}

// ForExtension resolves a template file extension (without the leading dot)
// to a descriptor name. The second return value reports whether the
// extension is known.
func ForExtension(ext string) (string, bool) {
	name, ok := extensions[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return name, ok
}
