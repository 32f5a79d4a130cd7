package schema

import "fmt"

// Dim is a single element of a tensor dimension list: either a concrete
// positive integer (Name empty) or a named dimension variable, optionally
// suffixed with one of the wildcards '?', '+' or '*'. The same type carries
// class cardinalities and resolved substitution values, where wildcards are
// not permitted.
type Dim struct {
	Value int
	Name  string
}

// DimOf builds a concrete dimension.
func DimOf(value int) Dim { return Dim{Value: value} }

// DimVar builds a named dimension variable.
func DimVar(name string) Dim { return Dim{Name: name} }

// IsVar reports whether the dimension is a variable rather than a concrete
// integer.
func (d Dim) IsVar() bool { return d.Name != "" }

// Equal compares two dimensions for exact equality.
func (d Dim) Equal(o Dim) bool { return d.Name == o.Name && d.Value == o.Value }

// split returns the variable base name and its wildcard suffix, or 0 when
// the dimension has no wildcard.
func (d Dim) split() (string, byte) {
	if d.Name == "" {
		return "", 0
	}
	last := d.Name[len(d.Name)-1]
	if last == '?' || last == '+' || last == '*' {
		return d.Name[:len(d.Name)-1], last
	}
	return d.Name, 0
}

func (d Dim) hasWildcard() bool {
	_, mod := d.split()
	return mod != 0
}

func (d Dim) dump() any {
	if d.IsVar() {
		return d.Name
	}
	return int64(d.Value)
}

func (d Dim) String() string {
	if d.IsVar() {
		return d.Name
	}
	return fmt.Sprintf("%d", d.Value)
}

// asDim decodes an int-or-string JSON value into a dimension.
func asDim(v any) (Dim, bool) {
	if n, ok := asInt(v); ok {
		return DimOf(n), true
	}
	if s, ok := v.(string); ok {
		return DimVar(s), true
	}
	return Dim{}, false
}

// validateDim checks one tensor dimension element. Wildcards are accepted
// only when allowWildcard is set.
func validateDim(d Dim, allowWildcard bool) error {
	if !d.IsVar() {
		if d.Value < 1 {
			return newError("Tensor dim fields that are integer must be positive numbers.", "")
		}
		return nil
	}
	if allowWildcard {
		if !dimFormat.MatchString(d.Name) {
			return newError(
				"Tensor dim fields that are strings may contain only lowercase letters, "+
					"numbers and underscores. They must start with a letter. They may be "+
					"suffixed by wildcard characters '?', '+' and '*' to denote variable "+
					"count dimensions.", "")
		}
		return nil
	}
	if !nameFormat.MatchString(d.Name) {
		return newError(
			"Dimension names may contain lowercase letters, numbers and underscores. "+
				"They must start with a letter.", "")
	}
	return nil
}

// Field is a typed component of a node: either a *Tensor or a *Category.
type Field interface {
	fieldKind() string
	dump() map[string]any
}

// Tensor is a field holding a dense numeric array with the given dimension
// list. SrcName and SrcDim are filled in on the product of a match.
type Tensor struct {
	Dim     []Dim
	SrcName string
	SrcDim  []Dim
}

func (*Tensor) fieldKind() string { return "tensor" }

func (t *Tensor) validate() error {
	if len(t.Dim) < 1 {
		return newError("Tensor must have at least one dimension.", "")
	}
	wildcards := 0
	for _, d := range t.Dim {
		if err := validateDim(d, true); err != nil {
			return err
		}
		if d.hasWildcard() {
			wildcards++
		}
	}
	if wildcards > 1 {
		return newError("Tensor can have at most one variable count dimension.", "")
	}
	if len(t.Dim) == 1 {
		if _, mod := t.Dim[0].split(); mod == '?' || mod == '*' {
			return newError(
				"Tensors cannot have zero dimensions. Having only one dimension "+
					"suffixed with '?' or '*' permits this.", "")
		}
	}
	for _, d := range t.SrcDim {
		if err := validateDim(d, true); err != nil {
			return err
		}
	}
	if t.SrcName != "" && !nameFormat.MatchString(t.SrcName) {
		return newError(
			"Source name may contain lowercase letters, numbers and underscores. "+
				"They must start with a letter.", "")
	}
	return nil
}

func (t *Tensor) isVariable() bool {
	for _, d := range t.Dim {
		if d.IsVar() {
			return true
		}
	}
	return false
}

func (t *Tensor) dump() map[string]any {
	result := map[string]any{"type": "tensor", "dim": dumpDimList(t.Dim)}
	if t.SrcName != "" {
		result["src-name"] = t.SrcName
	}
	if t.SrcDim != nil {
		result["src-dim"] = dumpDimList(t.SrcDim)
	}
	return result
}

// Category is a field holding one label (or one label per instance) drawn
// from the referenced class.
type Category struct {
	Class   string
	SrcName string
}

func (*Category) fieldKind() string { return "category" }

func (c *Category) validate() error {
	if !nameFormat.MatchString(c.Class) {
		return newError(
			"Category class may contain lowercase letters, numbers and underscores. "+
				"They must start with a letter.", "")
	}
	if c.SrcName != "" && !nameFormat.MatchString(c.SrcName) {
		return newError(
			"Source name may contain lowercase letters, numbers and underscores. "+
				"They must start with a letter.", "")
	}
	return nil
}

func (c *Category) dump() map[string]any {
	result := map[string]any{"type": "category", "class": c.Class}
	if c.SrcName != "" {
		result["src-name"] = c.SrcName
	}
	return result
}

func dumpDimList(dims []Dim) []any {
	out := make([]any, len(dims))
	for i, d := range dims {
		out[i] = d.dump()
	}
	return out
}

func loadDimList(v any) ([]Dim, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, newError("Tensor dim field must be a list of dimension definitions.", "")
	}
	dims := make([]Dim, len(list))
	for i, e := range list {
		d, ok := asDim(e)
		if !ok {
			return nil, newError("Tensor dim fields must all be integers or strings.", "")
		}
		dims[i] = d
	}
	return dims, nil
}

func loadField(v any) (Field, error) {
	m, ok := asMap(v)
	if !ok {
		return nil, newError("Field must be a key-value dictionary.", "")
	}
	kind, ok := m["type"].(string)
	if !ok {
		return nil, newError("Field must have a 'type' field.", "")
	}
	srcName, _ := m["src-name"].(string)

	switch kind {
	case "tensor":
		raw, present := m["dim"]
		if !present {
			return nil, newError("Tensor must have a 'dim' field.", "")
		}
		dim, err := loadDimList(raw)
		if err != nil {
			return nil, err
		}
		var srcDim []Dim
		if rawSrc, present := m["src-dim"]; present {
			if srcDim, err = loadDimList(rawSrc); err != nil {
				return nil, err
			}
		}
		return &Tensor{Dim: dim, SrcName: srcName, SrcDim: srcDim}, nil

	case "category":
		class, ok := m["class"].(string)
		if !ok {
			return nil, newError("Category must have a 'class' field.", "")
		}
		return &Category{Class: class, SrcName: srcName}, nil

	default:
		return nil, newError(fmt.Sprintf("Unknown field type '%s'.", kind), "")
	}
}
