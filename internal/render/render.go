// Package render implements the directive template engine: target-language
// template text with $JAFF blocks expanded against a network and its
// compiled expression artifacts. The engine owns no state beyond one
// rendering pass; target-language syntax comes exclusively from the
// language descriptor.
package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vk/jaffgo/internal/compiler"
	"github.com/vk/jaffgo/internal/langspec"
	"github.com/vk/jaffgo/internal/model"
)

// SyntaxError reports a malformed directive with its template position.
type SyntaxError struct {
	File string
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: template syntax error: %s", e.File, e.Line, e.Msg)
}

// ReferenceError reports a directive referencing an unknown property or
// entity.
type ReferenceError struct {
	File string
	Line int
	Msg  string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s:%d: reference error: %s", e.File, e.Line, e.Msg)
}

// Engine renders templates for one (network, artifacts, language) triple.
type Engine struct {
	net  *model.Network
	art  *compiler.Artifacts
	desc langspec.Descriptor
}

// New builds an engine. The artifacts must come from the same network.
func New(net *model.Network, art *compiler.Artifacts, desc langspec.Descriptor) *Engine {
	return &Engine{net: net, art: art, desc: desc}
}

// replaceRule is one compiled REPLACE pattern/replacement pair.
type replaceRule struct {
	pattern *regexp.Regexp
	repl    string
}

// block is one captured directive region.
type block struct {
	Command  string
	Args     string
	Replaces []replaceRule
	Body     []string
	Line     int
}

var (
	directiveRe = regexp.MustCompile(`^\$JAFF\s+(\S+)\s*(.*)$`)
	replaceTail = regexp.MustCompile(`\$\[(.*)\]\$\s*$`)
	backrefRe   = regexp.MustCompile(`\\(\d+)`)
)

// Render expands every directive block of the template text. Non-directive
// text outside blocks is copied byte for byte; each block is replaced by
// its expansion. Rendering is fail-fast: the first malformed directive
// aborts the pass.
func (e *Engine) Render(name, text string) (string, error) {
	lines := strings.Split(text, "\n")
	trailingNewline := strings.HasSuffix(text, "\n")
	if trailingNewline {
		lines = lines[:len(lines)-1]
	}

	var out strings.Builder
	var current *block

	for i, raw := range lines {
		lineNo := i + 1
		cmd, args, isDirective := e.matchDirective(raw)

		if current == nil {
			if !isDirective {
				out.WriteString(raw + "\n")
				continue
			}
			if cmd == "END" {
				return "", &SyntaxError{File: name, Line: lineNo, Msg: "END without an open block"}
			}
			b, err := e.newBlock(name, lineNo, cmd, args)
			if err != nil {
				return "", err
			}
			current = b
			continue
		}

		if isDirective {
			if cmd != "END" {
				return "", &SyntaxError{File: name, Line: lineNo, Msg: fmt.Sprintf("nested %s directive inside an open block", cmd)}
			}
			expansion, err := e.expand(name, current)
			if err != nil {
				return "", err
			}
			out.WriteString(expansion)
			current = nil
			continue
		}

		current.Body = append(current.Body, raw)
	}

	if current != nil {
		return "", &SyntaxError{File: name, Line: current.Line, Msg: fmt.Sprintf("unterminated %s block", current.Command)}
	}

	result := out.String()
	if !trailingNewline {
		result = strings.TrimSuffix(result, "\n")
	}
	return result, nil
}

// matchDirective recognizes "$JAFF COMMAND args", optionally behind the
// language's comment prefix.
func (e *Engine) matchDirective(raw string) (cmd, args string, ok bool) {
	s := strings.TrimSpace(raw)
	if prefix := strings.TrimSpace(e.desc.Comment); prefix != "" && strings.HasPrefix(s, prefix) {
		s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
	}
	m := directiveRe.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	return m[1], strings.TrimSpace(m[2]), true
}

// newBlock validates the command name and compiles any REPLACE suffix.
func (e *Engine) newBlock(file string, lineNo int, cmd, args string) (*block, error) {
	switch cmd {
	case "SUB", "REPEAT", "GET", "HAS", "REDUCE":
	default:
		return nil, &SyntaxError{File: file, Line: lineNo, Msg: fmt.Sprintf("unknown command %q", cmd)}
	}

	b := &block{Command: cmd, Args: args, Line: lineNo}

	if m := replaceTail.FindStringSubmatchIndex(args); m != nil {
		spec := args[m[2]:m[3]]
		b.Args = strings.TrimSpace(args[:m[0]])
		rules, err := parseReplaceRules(file, lineNo, spec)
		if err != nil {
			return nil, err
		}
		b.Replaces = rules
	}
	return b, nil
}

// parseReplaceRules compiles "REPLACE pattern repl REPLACE pattern repl..."
// into an ordered rule chain. Backreferences use \1 style in templates.
func parseReplaceRules(file string, lineNo int, spec string) ([]replaceRule, error) {
	fields := strings.Fields(spec)
	var rules []replaceRule
	for i := 0; i < len(fields); {
		if fields[i] != "REPLACE" {
			return nil, &SyntaxError{File: file, Line: lineNo, Msg: fmt.Sprintf("expected REPLACE, got %q", fields[i])}
		}
		if i+2 >= len(fields) {
			return nil, &SyntaxError{File: file, Line: lineNo, Msg: "REPLACE needs a pattern and a replacement"}
		}
		re, err := regexp.Compile(fields[i+1])
		if err != nil {
			return nil, &SyntaxError{File: file, Line: lineNo, Msg: fmt.Sprintf("invalid REPLACE pattern %q: %v", fields[i+1], err)}
		}
		repl := backrefRe.ReplaceAllString(fields[i+2], "${$1}")
		rules = append(rules, replaceRule{pattern: re, repl: repl})
		i += 3
	}
	if len(rules) == 0 {
		return nil, &SyntaxError{File: file, Line: lineNo, Msg: "empty REPLACE suffix"}
	}
	return rules, nil
}

// expand runs a block's command and applies its REPLACE chain.
func (e *Engine) expand(file string, b *block) (string, error) {
	var (
		text string
		err  error
	)
	switch b.Command {
	case "SUB":
		text, err = e.expandSub(file, b)
	case "REPEAT":
		text, err = e.expandRepeat(file, b)
	case "GET":
		text, err = e.expandGet(file, b)
	case "HAS":
		text, err = e.expandHas(file, b)
	case "REDUCE":
		text, err = e.expandReduce(file, b)
	default:
		err = &SyntaxError{File: file, Line: b.Line, Msg: fmt.Sprintf("unknown command %q", b.Command)}
	}
	if err != nil {
		return "", err
	}
	// Rules compose sequentially over the fully expanded block text.
	for _, r := range b.Replaces {
		text = r.pattern.ReplaceAllString(text, r.repl)
	}
	return text, nil
}
