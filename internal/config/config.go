// Package config defines the YAML configuration document that declares the
// output columns and the helpers that load it.
//
// A document looks like this:
//
//	version: 1
//	columns:
//	  name: Name                       # shorthand: copy input column "Name"
//	  city:
//	    - input: [City, Town]          # first alias present in the header
//	    - uppercase
//	  when:
//	    - input: Date
//	    - date: ["%Y-%m-%d", "%m/%d/%Y"]
//	  source:
//	    - var: batch                   # YSV_VAR_batch from the environment
//
// Output column order is the order of keys under columns. The document is
// decoded through yaml.Node so that order survives, and every column
// specification is matched against the shapes declared in grammar.go.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ysv-rs/ysv/internal/diag"
)

// Document is the decoded configuration file.
type Document struct {
	Version int
	// Columns in declaration order.
	Columns []Column
}

// Column is one declared output column.
type Column struct {
	Name string
	Spec ColumnSpec
	// Line is the 1-based line of the column key in the document.
	Line int
}

// ColumnSpec is either a shorthand input name or an ordered list of steps.
type ColumnSpec struct {
	// Shorthand is set when the column was declared as a bare input name.
	Shorthand   string
	IsShorthand bool
	Steps       []Expression
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a configuration document. Structural problems are reported
// as *diag.ConfigParseError.
func Parse(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&root); err != nil {
		return nil, &diag.ConfigParseError{Kind: diag.KindConfig, Description: err.Error()}
	}
	top := &root
	if top.Kind == yaml.DocumentNode && len(top.Content) > 0 {
		top = top.Content[0]
	}
	top = deref(top)
	if top.Kind != yaml.MappingNode {
		return nil, &diag.ConfigParseError{
			Kind:        diag.KindConfig,
			Line:        top.Line,
			Description: "configuration must be a mapping with version and columns",
		}
	}

	doc := &Document{}
	var columns *yaml.Node
	for i := 0; i+1 < len(top.Content); i += 2 {
		key, val := top.Content[i], deref(top.Content[i+1])
		switch key.Value {
		case "version":
			if err := val.Decode(&doc.Version); err != nil {
				return nil, &diag.ConfigParseError{
					Kind:        diag.KindConfig,
					Line:        val.Line,
					Description: fmt.Sprintf("version must be an integer: %v", err),
				}
			}
		case "columns":
			columns = val
		}
	}
	if columns == nil {
		return nil, &diag.ConfigParseError{Kind: diag.KindConfig, Line: top.Line, Description: "columns are not declared"}
	}
	if columns.Kind != yaml.MappingNode {
		if columns.ShortTag() == "!!null" {
			return doc, nil
		}
		return nil, &diag.ConfigParseError{Kind: diag.KindConfig, Line: columns.Line, Description: "columns must be a mapping of output name to specification"}
	}

	seen := make(map[string]int, len(columns.Content)/2)
	for i := 0; i+1 < len(columns.Content); i += 2 {
		key, val := columns.Content[i], columns.Content[i+1]
		if prev, dup := seen[key.Value]; dup {
			return nil, &diag.ConfigParseError{
				Column:      key.Value,
				Kind:        diag.KindConfig,
				Line:        key.Line,
				Description: fmt.Sprintf("output column declared twice (first at line %d)", prev),
			}
		}
		seen[key.Value] = key.Line

		spec, err := parseColumnSpec(val)
		if err != nil {
			var cpe *diag.ConfigParseError
			if errors.As(err, &cpe) {
				cpe.Column = key.Value
				return nil, cpe
			}
			return nil, err
		}
		doc.Columns = append(doc.Columns, Column{Name: key.Value, Spec: spec, Line: key.Line})
	}
	return doc, nil
}

// Names returns the output column names in declaration order.
func (d *Document) Names() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Name
	}
	return out
}

// deref follows YAML aliases (*anchor) to the anchored node.
func deref(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}
