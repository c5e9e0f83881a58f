package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Definition describes a language for the rule scanner.
type Definition struct {
	// Name identifies the language.
	Name string `toml:"name" yaml:"name"`

	// Extensions lists the file extensions of the language, with or without
	// the leading dot.
	Extensions []string `toml:"extensions" yaml:"extensions"`

	// Root is the type of the root node. Defaults to "DOCUMENT".
	Root string `toml:"root" yaml:"root"`

	// Content is the content type of the root. Defaults to "text".
	Content string `toml:"content" yaml:"content"`

	// Fill is the type of the nodes covering root text outside regions.
	// Empty leaves that text to the root.
	Fill string `toml:"fill" yaml:"fill"`

	// Regions are the top-level regions, tried in order of decreasing
	// begin delimiter length.
	Regions []Region `toml:"regions" yaml:"regions"`
}

// Region describes a delimited range of text.
type Region struct {
	Type    string `toml:"type" yaml:"type"`
	Content string `toml:"content" yaml:"content"`

	Begin string `toml:"begin" yaml:"begin"`
	End   string `toml:"end" yaml:"end"`

	// Escape is a single byte that makes the following byte literal. Only
	// regions without nested regions or fill support it.
	Escape string `toml:"escape" yaml:"escape"`

	// EOL ends the region at the next newline, which is not part of it.
	EOL bool `toml:"eol" yaml:"eol"`

	OpenBegin bool `toml:"open_begin" yaml:"open_begin"`
	OpenEnd   bool `toml:"open_end" yaml:"open_end"`

	// Fill is the type of the nodes covering text outside nested regions.
	Fill string `toml:"fill" yaml:"fill"`

	Regions []Region `toml:"regions" yaml:"regions"`
}

// Load reads a definition from a .toml, .yaml or .yml file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading definition %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse decodes a definition. The format follows the extension of name.
// Unknown fields are rejected.
func Parse(name string, data []byte) (*Definition, error) {
	var def Definition
	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&def); err != nil {
			perr := &ParseError{Path: name, Message: err.Error(), Err: err}
			var derr *toml.DecodeError
			if errors.As(err, &derr) {
				perr.Line, perr.Column = derr.Position()
			}
			return nil, perr
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, &ParseError{Path: name, Message: "empty document", Err: err}
			}
			return nil, &ParseError{Path: name, Message: err.Error(), Err: err}
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
	return &def, nil
}

// Validate checks the definition and returns the first problem found.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return &DefinitionError{Field: "name", Message: "required"}
	}
	v := validator{lang: d.Name}
	v.regions("regions", d.Regions, d.Fill)
	return v.err
}

type validator struct {
	lang string
	err  error
}

func (v *validator) fail(field, format string, args ...any) {
	if v.err == nil {
		v.err = &DefinitionError{Language: v.lang, Field: field, Message: fmt.Sprintf(format, args...)}
	}
}

func (v *validator) regions(path string, regions []Region, fill string) {
	seen := make(map[string]bool, len(regions))
	for i, r := range regions {
		field := fmt.Sprintf("%s[%d]", path, i)
		switch {
		case r.Type == "":
			v.fail(field+".type", "required")
		case r.Type == fill:
			v.fail(field+".type", "%q is also the fill type", r.Type)
		case seen[r.Type]:
			v.fail(field+".type", "duplicate type %q", r.Type)
		}
		seen[r.Type] = true

		if r.Begin == "" {
			v.fail(field+".begin", "required")
		}
		if r.End == "" && !r.EOL {
			v.fail(field+".end", "required unless eol is set")
		}
		if len(r.Escape) > 1 {
			v.fail(field+".escape", "must be a single byte, got %q", r.Escape)
		}
		if r.Escape != "" && (len(r.Regions) > 0 || r.Fill != "") {
			v.fail(field+".escape", "not supported on regions with nested regions or fill")
		}
		v.regions(field+".regions", r.Regions, r.Fill)
	}
}
