// Package schema implements the ease.ml dataset schema language: a typed,
// graph-aware description of ML datasets with support for dimension
// variables, category classes and inter-node links. Schemas are loaded from
// generic JSON value trees, validated against structural and referential
// rules, and matched against each other to decide whether a concrete source
// schema is acceptable to a more abstract destination schema.
package schema

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/ohler55/ojg/oj"
)

var (
	nameFormat = regexp.MustCompile(`^[a-z_][0-9a-z_]*$`)
	dimFormat  = regexp.MustCompile(`^[a-z_][0-9a-z_]*[?+*]?$`)
)

// Error is a schema validation error. Path is a dotted JSON path pointing at
// the offending element, e.g. "nodes.x.fields.y". Matching never produces an
// Error; a failed match is an absent result.
type Error struct {
	Message string
	Path    string
}

func (e *Error) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func newError(message, path string) *Error {
	return &Error{Message: message, Path: path}
}

// Schema is the root of a schema description. It is an immutable value tree
// after construction; Match returns fresh schemas and never mutates its
// receiver or argument.
type Schema struct {
	Nodes   map[string]*Node
	Classes map[string]*Class

	// Referential constraints over the link graph.
	Cyclic     bool
	Undirected bool
	FanIn      bool

	// SrcDims maps dimension variable names to the concrete values that
	// resolved them. Populated only on the product of a successful match.
	SrcDims map[string]Dim
}

// Validate enforces the structural and referential schema rules. It returns
// a *Error describing the first violation found.
func (s *Schema) Validate() error {
	if len(s.Nodes) < 1 {
		return newError("Schema must have at least one node.", "nodes")
	}

	for _, k := range sortedNodeNames(s.Nodes) {
		if !nameFormat.MatchString(k) {
			return newError(
				"Schema node names may contain lowercase letters, numbers and underscores. "+
					"They must start with a letter.", "nodes."+k)
		}
	}
	for _, k := range sortedClassNames(s.Classes) {
		if !nameFormat.MatchString(k) {
			return newError(
				"Schema category class names may contain lowercase letters, numbers and "+
					"underscores. They must start with a letter.", "classes."+k)
		}
		if err := s.Classes[k].validate(); err != nil {
			return reroot(err, "classes."+k)
		}
	}

	// Reference checks. Every class must be referenced by some category field
	// and every link must point at an existing non-singleton node.
	orphans := make(map[string]bool, len(s.Classes))
	for k := range s.Classes {
		orphans[k] = true
	}
	for _, k := range sortedNodeNames(s.Nodes) {
		node := s.Nodes[k]
		if err := node.validate("nodes." + k); err != nil {
			return err
		}

		linkCount := 0
		for _, l := range sortedLinkNames(node.Links) {
			if _, ok := s.Nodes[l]; !ok {
				return newError("Node link points to unknown node.",
					"nodes."+k+".links."+l)
			}
			if s.Nodes[l].Singleton {
				return newError("Node link points to a singleton node.",
					"nodes."+k+".links."+l)
			}
			if s.Undirected && !s.FanIn {
				link := node.Links[l]
				if link.Unbounded {
					return newError(
						"Nodes in undirected schemas without fan-in cannot have infinite outgoing links.",
						"nodes."+k+".links."+l)
				}
				linkCount += link.Upper
			}
		}
		if s.Undirected && !s.FanIn && linkCount > 2 {
			return newError(
				"Nodes in undirected schemas without fan-in can have at most 2 outgoing links.",
				"nodes."+k)
		}

		for _, f := range sortedFieldNames(node.Fields) {
			if cat, ok := node.Fields[f].(*Category); ok {
				if _, ok := s.Classes[cat.Class]; !ok {
					return newError("Field category class undefined.",
						"nodes."+k+".fields."+f)
				}
				orphans[cat.Class] = false
			}
		}
	}
	for _, k := range sortedClassNames(s.Classes) {
		if orphans[k] {
			return newError("Every declared class must be referenced in a category.",
				"classes."+k)
		}
	}

	for _, k := range sortedDimNames(s.SrcDims) {
		v := s.SrcDims[k]
		if v.Name == "" && v.Value < 1 {
			return newError("Source dimension values must be strings or positive integers.",
				"src-dims."+k)
		}
	}

	return nil
}

// IsVariable reports whether the schema contains any unresolved dimension
// variable, either in a tensor dim list or in a class cardinality.
func (s *Schema) IsVariable() bool {
	for _, node := range s.Nodes {
		if node.isVariable() {
			return true
		}
	}
	for _, class := range s.Classes {
		if class.isVariable() {
			return true
		}
	}
	return false
}

// Dump serializes the schema into a generic JSON value tree using the
// hyphenated wire keys.
func (s *Schema) Dump() map[string]any {
	result := map[string]any{
		"ref-constraints": map[string]any{
			"cyclic":     s.Cyclic,
			"undirected": s.Undirected,
			"fan-in":     s.FanIn,
		},
	}

	nodes := make(map[string]any, len(s.Nodes))
	for k, v := range s.Nodes {
		nodes[k] = v.dump()
	}
	result["nodes"] = nodes

	if len(s.Classes) > 0 {
		classes := make(map[string]any, len(s.Classes))
		for k, v := range s.Classes {
			classes[k] = v.dump()
		}
		result["classes"] = classes
	}

	if s.SrcDims != nil {
		dims := make(map[string]any, len(s.SrcDims))
		for k, v := range s.SrcDims {
			dims[k] = v.dump()
		}
		result["src-dims"] = dims
	}

	return result
}

// Load builds a schema from a generic JSON value tree and validates it.
func Load(input any) (*Schema, error) {
	root, ok := asMap(input)
	if !ok {
		return nil, newError("Schema must be a key-value dictionary.", "")
	}

	rawNodes, ok := asMap(root["nodes"])
	if !ok {
		return nil, newError("Schema nodes must be a key-value dictionary.", "nodes")
	}
	nodes := make(map[string]*Node, len(rawNodes))
	for k, v := range rawNodes {
		node, err := loadNode(v)
		if err != nil {
			return nil, reroot(err, "nodes."+k)
		}
		nodes[k] = node
	}

	classes := map[string]*Class{}
	if rawClasses, present := root["classes"]; present {
		m, ok := asMap(rawClasses)
		if !ok {
			return nil, newError("Category classes must be a key-value dictionary.", "classes")
		}
		for k, v := range m {
			class, err := loadClass(v)
			if err != nil {
				return nil, reroot(err, "classes."+k)
			}
			classes[k] = class
		}
	}

	var cyclic, undirected, fanin bool
	if rawConstraints, present := root["ref-constraints"]; present {
		m, ok := asMap(rawConstraints)
		if !ok {
			return nil, newError("Reference constraints field must be a key-value dictionary.",
				"ref-constraints")
		}
		var err error
		if cyclic, err = loadBool(m, "cyclic"); err != nil {
			return nil, reroot(err, "ref-constraints")
		}
		if undirected, err = loadBool(m, "undirected"); err != nil {
			return nil, reroot(err, "ref-constraints")
		}
		if fanin, err = loadBool(m, "fan-in"); err != nil {
			return nil, reroot(err, "ref-constraints")
		}
	}

	var srcDims map[string]Dim
	if rawDims, present := root["src-dims"]; present {
		m, ok := asMap(rawDims)
		if !ok {
			return nil, newError("Source dimensions field must be a key-value dictionary.",
				"src-dims")
		}
		srcDims = make(map[string]Dim, len(m))
		for k, v := range m {
			d, ok := asDim(v)
			if !ok {
				return nil, newError("Source dimension values must be strings or integers.",
					"src-dims."+k)
			}
			srcDims[k] = d
		}
	}

	s := &Schema{
		Nodes:      nodes,
		Classes:    classes,
		Cyclic:     cyclic,
		Undirected: undirected,
		FanIn:      fanin,
		SrcDims:    srcDims,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// FromJSON parses raw JSON bytes and loads the schema they describe.
func FromJSON(data []byte) (*Schema, error) {
	v, err := oj.Parse(data)
	if err != nil {
		return nil, newError(fmt.Sprintf("invalid JSON: %v", err), "")
	}
	return Load(v)
}

// ToJSON renders the schema as indented JSON.
func (s *Schema) ToJSON() []byte {
	return []byte(oj.JSON(s.Dump(), 2))
}

func loadBool(m map[string]any, key string) (bool, error) {
	v, present := m[key]
	if !present {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, newError(fmt.Sprintf("Field '%s' must be a boolean.", key), "")
	}
	return b, nil
}

// reroot replaces the path of a schema error with a deeper anchor, keeping
// any path segments the inner loader already attached.
func reroot(err error, path string) error {
	if se, ok := err.(*Error); ok {
		if se.Path == "" {
			se.Path = path
		} else {
			se.Path = path + "." + se.Path
		}
		return se
	}
	return err
}

// ---------------------------------------------------------------------------
// Generic JSON value helpers
// ---------------------------------------------------------------------------

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// asInt accepts the integer encodings different JSON parsers produce.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int64(n)) {
			return int(n), true
		}
	}
	return 0, false
}

func sortedNodeNames(m map[string]*Node) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func sortedClassNames(m map[string]*Class) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func sortedLinkNames(m map[string]*Link) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func sortedFieldNames(m map[string]Field) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func sortedDimNames(m map[string]Dim) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
