// Package dialect reads chemical network files in the five supported
// textual grammars (KIDA, UDFA, PRIZMO, KROME, UCLCHEM) and normalizes
// each reaction line into a dialect-independent draft. One file may mix
// dialects line by line; the grammar is detected per line.
package dialect

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vk/jaffgo/internal/ctxlog"
)

// Dialect names as tagged on drafts.
const (
	KIDA    = "kida"
	UDFA    = "udfa"
	PRIZMO  = "prizmo"
	KROME   = "krome"
	UCLCHEM = "uclchem"
)

// defaultKromeFormat is assumed until the file declares its own @format.
const defaultKromeFormat = "@format:idx,R,R,R,P,P,P,P,tmin,tmax,rate"

// Draft is one parsed reaction line before species and rate resolution.
// Reactants and products are raw species names; Rate is normalized rate
// text in the shared expression grammar (or a "photo, ..." tag resolved
// by the builder).
type Draft struct {
	Reactants []string
	Products  []string
	Rate      string
	Tmin      *float64
	Tmax      *float64
	Dialect   string
	Verbatim  string
	Line      int
}

// Variable is a custom variable declaration (PRIZMO VARIABLES block or
// KROME @var line): normalized name and unparsed expression text.
type Variable struct {
	Name string
	Expr string
	Line int
}

// File is the result of parsing one network file.
type File struct {
	Name      string
	Drafts    []Draft
	Variables []Variable
}

// ParseError reports a malformed line with its position.
type ParseError struct {
	File    string
	Line    int
	Dialect string
	Msg     string
}

func (e *ParseError) Error() string {
	if e.Dialect == "" {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s:%d: %s: %s", e.File, e.Line, e.Dialect, e.Msg)
}

// ParseFile reads and parses the named network file.
func ParseFile(ctx context.Context, path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open network file: %w", err)
	}
	defer f.Close()
	return Parse(ctx, f, path)
}

// Parse scans r line by line. Blank lines, "#" comments (except UCLCHEM
// rows, which carry ",NAN,") and "!" comments are dropped; header lines
// (PRIZMO VARIABLES block, KROME @format/@var) update parser state; every
// other line is dispatched to a dialect parser. Malformed reaction lines
// are skipped with a warning, matching lenient behavior of the upstream
// formats; malformed headers are hard errors.
func Parse(ctx context.Context, r io.Reader, name string) (*File, error) {
	log := ctxlog.FromContext(ctx)

	out := &File{Name: name}
	kromeFormat := defaultKromeFormat
	inVariables := false

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		srow := strings.TrimSpace(scanner.Text())
		if srow == "" {
			continue
		}
		if strings.HasPrefix(srow, "#") && !strings.Contains(srow, ",NAN,") {
			continue
		}
		if strings.HasPrefix(srow, "!") {
			continue
		}

		// PRIZMO variables block.
		if strings.HasPrefix(srow, "VARIABLES{") {
			inVariables = true
			continue
		}
		if inVariables {
			if strings.HasPrefix(srow, "}") {
				inVariables = false
				continue
			}
			v, err := parseVariable(srow, name, lineNo)
			if err != nil {
				return nil, err
			}
			log.Debug("custom variable", "name", v.Name, "line", lineNo)
			out.Variables = append(out.Variables, v)
			continue
		}

		// KROME headers.
		if strings.HasPrefix(srow, "@format:") {
			log.Debug("krome format", "format", srow, "line", lineNo)
			kromeFormat = srow
			continue
		}
		if strings.HasPrefix(srow, "@var:") {
			v, err := parseVariable(strings.TrimPrefix(srow, "@var:"), name, lineNo)
			if err != nil {
				return nil, err
			}
			log.Debug("custom variable", "name", v.Name, "line", lineNo)
			out.Variables = append(out.Variables, v)
			continue
		}
		if strings.HasPrefix(srow, "@") {
			continue
		}

		var (
			d   Draft
			err error
		)
		switch {
		case strings.Contains(srow, "->"):
			d, err = parsePrizmo(srow)
		case strings.Contains(srow, ":"):
			d, err = parseUDFA(srow)
		case strings.Count(srow, ",") > 3 && !strings.Contains(srow, ",NAN,"):
			d, err = parseKrome(srow, kromeFormat)
			if err != nil {
				// A format mismatch is a file-level defect, not a bad row.
				return nil, &ParseError{File: name, Line: lineNo, Dialect: KROME, Msg: err.Error()}
			}
		case strings.Contains(srow, ",NAN,"):
			d, err = parseUCLCHEM(srow)
		default:
			d, err = parseKIDA(srow)
		}
		if err != nil {
			log.Warn("skipping invalid line", "file", name, "line", lineNo, "error", err)
			continue
		}

		d.Verbatim = srow
		d.Line = lineNo
		out.Drafts = append(out.Drafts, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read network file: %w", err)
	}
	if inVariables {
		return nil, &ParseError{File: name, Line: lineNo, Msg: "unterminated VARIABLES block"}
	}

	return out, nil
}

// parseVariable normalizes a "name = expr" declaration: spaces stripped,
// lowercased, Fortran literals converted.
func parseVariable(srow, file string, lineNo int) (Variable, error) {
	s := strings.ToLower(strings.ReplaceAll(srow, " ", ""))
	s = f90Convert(s)
	name, val, ok := strings.Cut(s, "=")
	if !ok || name == "" || val == "" {
		return Variable{}, &ParseError{File: file, Line: lineNo, Msg: fmt.Sprintf("invalid variable declaration %q", srow)}
	}
	return Variable{Name: name, Expr: val, Line: lineNo}, nil
}
