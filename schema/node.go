package schema

// Node is a named member of a schema. A singleton node carries exactly one
// field and no links and represents a single value per sample. A
// non-singleton node represents an ordered collection of instances and may
// link to other non-singleton nodes.
type Node struct {
	Singleton bool
	Fields    map[string]Field
	Links     map[string]*Link
	SrcName   string
}

func (n *Node) validate(path string) error {
	if n.Singleton {
		if len(n.Fields) != 1 {
			return newError("Singleton nodes must have a single field.", path)
		}
		if len(n.Links) != 0 {
			return newError("Singleton nodes cannot have links.", path)
		}
	}
	if len(n.Fields)+len(n.Links) < 1 {
		return newError("Node must have at least one field or link.", path)
	}
	if n.SrcName != "" && !nameFormat.MatchString(n.SrcName) {
		return newError(
			"Source name may contain lowercase letters, numbers and underscores. "+
				"They must start with a letter.", path)
	}
	for _, k := range sortedFieldNames(n.Fields) {
		if !nameFormat.MatchString(k) {
			return newError(
				"Node field names may contain lowercase letters, numbers and underscores. "+
					"They must start with a letter.", path+".fields."+k)
		}
		switch f := n.Fields[k].(type) {
		case *Tensor:
			if err := f.validate(); err != nil {
				return reroot(err, path+".fields."+k)
			}
		case *Category:
			if err := f.validate(); err != nil {
				return reroot(err, path+".fields."+k)
			}
		}
	}
	for _, k := range sortedLinkNames(n.Links) {
		if !nameFormat.MatchString(k) {
			return newError(
				"Node link targets may contain lowercase letters, numbers and underscores. "+
					"They must start with a letter.", path+".links."+k)
		}
		if err := n.Links[k].validate(); err != nil {
			return reroot(err, path+".links."+k)
		}
	}
	return nil
}

func (n *Node) isVariable() bool {
	for _, f := range n.Fields {
		if t, ok := f.(*Tensor); ok && t.isVariable() {
			return true
		}
	}
	return false
}

func (n *Node) dump() map[string]any {
	result := map[string]any{"singleton": n.Singleton}

	if n.Singleton {
		// The single field is promoted into the node object itself.
		for _, f := range n.Fields {
			for k, v := range f.dump() {
				result[k] = v
			}
		}
	} else {
		fields := make(map[string]any, len(n.Fields))
		for k, f := range n.Fields {
			fields[k] = f.dump()
		}
		links := make(map[string]any, len(n.Links))
		for k, l := range n.Links {
			links[k] = l.dump()
		}
		result["fields"] = fields
		result["links"] = links
	}

	if n.SrcName != "" {
		result["src-name"] = n.SrcName
	}
	return result
}

func loadNode(v any) (*Node, error) {
	m, ok := asMap(v)
	if !ok {
		return nil, newError("Node must be a key-value dictionary.", "")
	}

	singleton, _ := m["singleton"].(bool)
	srcName, _ := m["src-name"].(string)

	fields := map[string]Field{}
	if rawFields, present := m["fields"]; present {
		fm, ok := asMap(rawFields)
		if !ok {
			return nil, newError("Node fields must be a key-value dictionary.", "fields")
		}
		for k, fv := range fm {
			f, err := loadField(fv)
			if err != nil {
				return nil, reroot(err, "fields."+k)
			}
			fields[k] = f
		}
	}
	if singleton && len(fields) == 0 {
		// Singleton nodes may promote their single field into the node
		// object itself.
		f, err := loadField(v)
		if err != nil {
			return nil, err
		}
		fields["field"] = f
	}

	links := map[string]*Link{}
	if rawLinks, present := m["links"]; present {
		lm, ok := asMap(rawLinks)
		if !ok {
			return nil, newError("Node links must be a key-value dictionary.", "links")
		}
		for k, lv := range lm {
			l, err := loadLink(lv)
			if err != nil {
				return nil, reroot(err, "links."+k)
			}
			links[k] = l
		}
	}

	return &Node{Singleton: singleton, Fields: fields, Links: links, SrcName: srcName}, nil
}

// Link bounds the number of outgoing edges from each instance of a node to
// instances of the target node. Upper is ignored when Unbounded is set.
type Link struct {
	Lower     int
	Upper     int
	Unbounded bool
}

func (l *Link) validate() error {
	if l.Lower < 0 {
		return newError("Link lower bound must be a non-negative integer.", "")
	}
	if !l.Unbounded {
		if l.Upper < 1 {
			return newError("Link upper bound must be a positive integer or 'inf'.", "")
		}
		if l.Lower > l.Upper {
			return newError("Link lower bound cannot be greater than the upper bound.", "")
		}
	}
	return nil
}

// accepts reports whether this link, as a destination bound, can accept a
// source link: the source interval must be contained within this interval.
func (l *Link) accepts(src *Link) bool {
	if l.Lower > src.Lower {
		return false
	}
	if l.Unbounded {
		return true
	}
	if src.Unbounded || l.Upper < src.Upper {
		return false
	}
	return true
}

func (l *Link) clone() *Link {
	c := *l
	return &c
}

func (l *Link) dump() any {
	upper := any("inf")
	if !l.Unbounded {
		upper = int64(l.Upper)
	}
	return []any{int64(l.Lower), upper}
}

func loadLink(v any) (*Link, error) {
	// A bare integer n means the exact bound [n, n].
	if n, ok := asInt(v); ok {
		if n < 1 {
			return nil, newError("Link dimension must be a positive integer.", "")
		}
		return &Link{Lower: n, Upper: n}, nil
	}

	list, ok := v.([]any)
	if !ok {
		return nil, newError(
			"Link dimension must be either a positive integer or a two-element list.", "")
	}
	if len(list) != 2 {
		return nil, newError(
			"Link dimension must be a list of two elements representing the lower and upper bound.", "")
	}

	lower, ok := asInt(list[0])
	if !ok || lower < 0 {
		return nil, newError("Link lower bound must be a non-negative integer.", "")
	}

	link := &Link{Lower: lower}
	if s, ok := list[1].(string); ok {
		if s != "inf" {
			return nil, newError("Link upper bound must be a positive integer or 'inf'.", "")
		}
		link.Unbounded = true
	} else {
		upper, ok := asInt(list[1])
		if !ok || upper < 1 {
			return nil, newError("Link upper bound must be a positive integer or 'inf'.", "")
		}
		link.Upper = upper
	}
	if err := link.validate(); err != nil {
		return nil, err
	}
	return link, nil
}

// Class declares the cardinality of a set of category labels: either a
// concrete positive integer or a dimension variable resolved during
// matching.
type Class struct {
	Dim     Dim
	SrcName string
}

func (c *Class) validate() error {
	if c.Dim.IsVar() {
		if !nameFormat.MatchString(c.Dim.Name) {
			return newError(
				"Class dimension may contain lowercase letters, numbers and underscores. "+
					"They must start with a letter.", "")
		}
	} else if c.Dim.Value < 1 {
		return newError("Class dimension must be a positive integer.", "")
	}
	if c.SrcName != "" && !nameFormat.MatchString(c.SrcName) {
		return newError(
			"Source name may contain lowercase letters, numbers and underscores. "+
				"They must start with a letter.", "")
	}
	return nil
}

func (c *Class) isVariable() bool { return c.Dim.IsVar() }

// match unifies two class cardinalities under the dimension substitution.
// It returns the substitution extension on success.
func (c *Class) match(src *Class, dimMap map[string]Dim) (map[string]Dim, bool) {
	if !c.Dim.IsVar() {
		return nil, c.Dim.Equal(src.Dim)
	}
	bound, ok := dimMap[c.Dim.Name]
	if !ok {
		return map[string]Dim{c.Dim.Name: src.Dim}, true
	}
	return nil, bound.Equal(src.Dim)
}

func (c *Class) dump() map[string]any {
	result := map[string]any{"dim": c.Dim.dump()}
	if c.SrcName != "" {
		result["src-name"] = c.SrcName
	}
	return result
}

func loadClass(v any) (*Class, error) {
	m, ok := asMap(v)
	if !ok {
		return nil, newError("Class must be a key-value dictionary.", "")
	}
	raw, present := m["dim"]
	if !present {
		return nil, newError("Class must have a 'dim' field.", "")
	}
	dim, ok := asDim(raw)
	if !ok {
		return nil, newError("Class dimension must be an integer or a string.", "")
	}
	srcName, _ := m["src-name"].(string)
	class := &Class{Dim: dim, SrcName: srcName}
	if err := class.validate(); err != nil {
		return nil, err
	}
	return class, nil
}
