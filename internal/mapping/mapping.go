// Package mapping models the hierarchical loop-nest mapping consumed and produced by
// the mapper engine, and reads/writes it in the engine's YAML mapping-file format.
package mapping

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid mapping")

// Type tells whether a level iterates in time or unrolls in space.
type Type string

const (
	Temporal Type = "temporal"
	Spatial  Type = "spatial"
)

// Factor is a single DIM=EXTENT loop bound.
type Factor struct {
	Dim    string
	Extent int
}

func (f Factor) String() string {
	return f.Dim + "=" + strconv.Itoa(f.Extent)
}

// Factors keeps the order the factors were written in.
type Factors []Factor

// ParseFactors parses whitespace separated DIM=EXTENT tokens.
func ParseFactors(s string) (Factors, error) {
	var out Factors
	for _, tok := range strings.Fields(s) {
		dim, ext, ok := strings.Cut(tok, "=")
		if !ok || dim == "" {
			return nil, fmt.Errorf("%w: factor %q is not DIM=EXTENT", ErrInvalid, tok)
		}
		n, err := strconv.Atoi(ext)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: factor %q has a bad extent", ErrInvalid, tok)
		}
		out = append(out, Factor{Dim: dim, Extent: n})
	}
	return out, nil
}

func (fs Factors) String() string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = f.String()
	}
	return strings.Join(parts, " ")
}

// Extent returns the bound for dim, or 0 when the dimension is absent.
func (fs Factors) Extent(dim string) int {
	for _, f := range fs {
		if f.Dim == dim {
			return f.Extent
		}
	}
	return 0
}

func (fs Factors) MarshalYAML() (interface{}, error) {
	return fs.String(), nil
}

func (fs *Factors) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseFactors(s)
	if err != nil {
		return err
	}
	*fs = parsed
	return nil
}

// Entry is one level of a mapping.
type Entry struct {
	Target      string  `yaml:"target"`
	Type        Type    `yaml:"type"`
	Factors     Factors `yaml:"factors"`
	Permutation string  `yaml:"permutation"`
	Split       *int    `yaml:"split,omitempty"`
}

// Validate checks the per-entry invariants: known type, unique dimensions, and a
// permutation that orders exactly the factor dimensions.
func (e Entry) Validate() error {
	if e.Target == "" {
		return fmt.Errorf("%w: entry without target", ErrInvalid)
	}
	if e.Type != Temporal && e.Type != Spatial {
		return fmt.Errorf("%w: %s: unknown type %q", ErrInvalid, e.Target, e.Type)
	}
	seen := make(map[string]bool, len(e.Factors))
	for _, f := range e.Factors {
		if seen[f.Dim] {
			return fmt.Errorf("%w: %s: dimension %s repeated", ErrInvalid, e.Target, f.Dim)
		}
		seen[f.Dim] = true
	}
	if len(e.Permutation) != len(e.Factors) {
		return fmt.Errorf("%w: %s: permutation %q does not cover factors %q", ErrInvalid, e.Target, e.Permutation, e.Factors)
	}
	for _, r := range e.Permutation {
		d := string(r)
		if !seen[d] {
			return fmt.Errorf("%w: %s: permutation %q does not cover factors %q", ErrInvalid, e.Target, e.Permutation, e.Factors)
		}
		delete(seen, d)
	}
	if e.Split != nil && *e.Split < 0 {
		return fmt.Errorf("%w: %s: negative split", ErrInvalid, e.Target)
	}
	return nil
}

// Mapping is ordered outer to inner.
type Mapping []Entry

func (m Mapping) Validate() error {
	if len(m) == 0 {
		return fmt.Errorf("%w: no entries", ErrInvalid)
	}
	for i, e := range m {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return nil
}

type document struct {
	Mapping Mapping `yaml:"mapping"`
}

// Parse decodes a mapping file and validates it.
func Parse(data []byte) (Mapping, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := doc.Mapping.Validate(); err != nil {
		return nil, err
	}
	return doc.Mapping, nil
}

// Load reads and parses the mapping file at path.
func Load(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Check reports whether data is a mapping document the engine can read back.
func Check(data []byte) error {
	_, err := Parse(data)
	return err
}

// Marshal renders m as a mapping file.
func Marshal(m Mapping) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(document{Mapping: m}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write marshals m to path.
func Write(path string, m Mapping) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
