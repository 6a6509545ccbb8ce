package engine

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Specification is the engine input document: architecture, workload, variables
// and an optional mapper section. Keys this package does not model are kept in
// Rest and written back untouched.
type Specification struct {
	Architecture *Architecture `yaml:"architecture,omitempty"`
	Variables    *Variables    `yaml:"variables,omitempty"`
	Mapper       *SearchConfig `yaml:"mapper,omitempty"`
	Rest         map[string]any `yaml:",inline"`
}

// ParseSpecification decodes a YAML specification.
func ParseSpecification(data []byte) (*Specification, error) {
	spec := &Specification{}
	if err := yaml.Unmarshal(data, spec); err != nil {
		return nil, err
	}
	if spec.Variables == nil {
		spec.Variables = NewVariables()
	}
	return spec, nil
}

// YAML renders the specification.
func (s *Specification) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile serializes the specification to path.
func (s *Specification) WriteFile(path string) error {
	data, err := s.YAML()
	if err != nil {
		return fmt.Errorf("serialize specification: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Architecture is the hardware hierarchy, outermost node first.
type Architecture struct {
	Nodes []*Node        `yaml:"nodes"`
	Rest  map[string]any `yaml:",inline"`
}

// Node is a container or leaf component of the architecture.
type Node struct {
	Name       string         `yaml:"name"`
	Class      string         `yaml:"class,omitempty"`
	Attributes map[string]any `yaml:"attributes,omitempty"`
	Nodes      []*Node        `yaml:"nodes,omitempty"`
	Rest       map[string]any `yaml:",inline"`
}

// Leaf finds the first node without children named name, depth first.
func (a *Architecture) Leaf(name string) (*Node, bool) {
	if a == nil {
		return nil, false
	}
	return findLeaf(a.Nodes, name)
}

func findLeaf(nodes []*Node, name string) (*Node, bool) {
	for _, n := range nodes {
		if len(n.Nodes) == 0 {
			if n.Name == name {
				return n, true
			}
			continue
		}
		if leaf, ok := findLeaf(n.Nodes, name); ok {
			return leaf, true
		}
	}
	return nil, false
}

// SetAttribute sets one attribute, allocating the map if needed.
func (n *Node) SetAttribute(key string, value any) {
	if n.Attributes == nil {
		n.Attributes = map[string]any{}
	}
	n.Attributes[key] = value
}

// Variables is an insertion-ordered key/value bag.
type Variables struct {
	keys   []string
	values map[string]any
}

func NewVariables() *Variables {
	return &Variables{values: map[string]any{}}
}

func (v *Variables) Get(key string) (any, bool) {
	val, ok := v.values[key]
	return val, ok
}

// Set adds key at the end, or replaces its value in place.
func (v *Variables) Set(key string, value any) {
	if v.values == nil {
		v.values = map[string]any{}
	}
	if _, ok := v.values[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.values[key] = value
}

func (v *Variables) Delete(key string) {
	if _, ok := v.values[key]; !ok {
		return
	}
	delete(v.values, key)
	for i, k := range v.keys {
		if k == key {
			v.keys = append(v.keys[:i], v.keys[i+1:]...)
			break
		}
	}
}

func (v *Variables) Keys() []string {
	return append([]string(nil), v.keys...)
}

func (v *Variables) Len() int {
	return len(v.keys)
}

// Map returns a copy of the bag.
func (v *Variables) Map() map[string]any {
	out := make(map[string]any, len(v.values))
	for k, val := range v.values {
		out[k] = val
	}
	return out
}

// Update sets every key of m. New keys are appended in sorted order.
func (v *Variables) Update(m map[string]any) {
	for _, k := range sortedKeys(m) {
		v.Set(k, m[k])
	}
}

// Rebind makes the bag hold exactly the bindings in m: values from m win, and
// keys m does not mention are dropped. Keys already present keep their position.
func (v *Variables) Rebind(m map[string]any) {
	v.Update(m)
	for _, k := range v.Keys() {
		if _, ok := m[k]; !ok {
			v.Delete(k)
		}
	}
}

func (v *Variables) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range v.keys {
		var val yaml.Node
		if err := val.Encode(v.values[k]); err != nil {
			return nil, fmt.Errorf("variable %s: %w", k, err)
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, &val)
	}
	return node, nil
}

func (v *Variables) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("variables: expected a mapping, got line %d", node.Line)
	}
	*v = Variables{values: map[string]any{}}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var val any
		if err := node.Content[i+1].Decode(&val); err != nil {
			return fmt.Errorf("variable %s: %w", node.Content[i].Value, err)
		}
		v.Set(node.Content[i].Value, val)
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
