package langspec

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/jaffgo/internal/ctxlog"
)

// evalContext exposes named constants to descriptor files, so a block can
// say "index_base = fortran_base" instead of a bare number.
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"c_base":       cty.NumberIntVal(0),
			"fortran_base": cty.NumberIntVal(1),
		},
	}
}

// languageFile mirrors the HCL layout of a descriptor file:
//
//	language "rust" {
//	  comment   = "// "
//	  bracket   = "[]"
//	  index_base = 0
//	  power     = "powf"
//	  exponent  = "e"
//	}
type languageFile struct {
	Languages []languageBlock `hcl:"language,block"`
}

type languageBlock struct {
	Name         string  `hcl:"name,label"`
	Comment      *string `hcl:"comment,optional"`
	Bracket      *string `hcl:"bracket,optional"`
	MatrixSep    *string `hcl:"matrix_sep,optional"`
	IndexBase    *int    `hcl:"index_base,optional"`
	Power        *string `hcl:"power,optional"`
	Exponent     *string `hcl:"exponent,optional"`
	StatementEnd *string `hcl:"statement_end,optional"`
	DefPrefix    *string `hcl:"def_prefix,optional"`
}

// Load parses the HCL descriptor files at the given paths and merges them
// over the builtin set. A block whose label matches a builtin overrides only
// the attributes it sets; a new label starts from zero values plus sensible
// defaults.
func Load(ctx context.Context, paths ...string) (map[string]Descriptor, error) {
	logger := ctxlog.FromContext(ctx)
	descriptors := Builtins()

	parser := hclparse.NewParser()
	for _, path := range paths {
		hclFile, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse language file %s: %w", path, diags)
		}

		var file languageFile
		if diags := gohcl.DecodeBody(hclFile.Body, evalContext(), &file); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode language file %s: %w", path, diags)
		}

		for _, block := range file.Languages {
			base, ok := descriptors[block.Name]
			if !ok {
				// New language: start from py-like defaults so partial
				// blocks stay usable.
				base = Descriptor{
					Name:      block.Name,
					Comment:   "# ",
					Bracket:   "[]",
					MatrixSep: ", ",
					Power:     "**",
					Exponent:  "e",
				}
			}
			applyBlock(&base, block)

			if err := base.Validate(); err != nil {
				return nil, fmt.Errorf("language file %s: %w", path, err)
			}
			descriptors[block.Name] = base
			logger.Debug("Language descriptor loaded.", "name", block.Name, "file", path)
		}
	}

	return descriptors, nil
}

func applyBlock(d *Descriptor, block languageBlock) {
	d.Name = block.Name
	if block.Comment != nil {
		d.Comment = *block.Comment
	}
	if block.Bracket != nil {
		d.Bracket = *block.Bracket
	}
	if block.MatrixSep != nil {
		d.MatrixSep = *block.MatrixSep
	}
	if block.IndexBase != nil {
		d.IndexBase = *block.IndexBase
	}
	if block.Power != nil {
		d.Power = *block.Power
	}
	if block.Exponent != nil {
		d.Exponent = *block.Exponent
	}
	if block.StatementEnd != nil {
		d.StatementEnd = *block.StatementEnd
	}
	if block.DefPrefix != nil {
		d.DefPrefix = *block.DefPrefix
	}
}
