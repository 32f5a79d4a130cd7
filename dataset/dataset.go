// Package dataset implements the on-disk ease.ml dataset format: a directory
// tree of tensor, category, class and links files. It loads trees through a
// pluggable opener, infers the schema a laid-out dataset implies, and
// generates random datasets from fully concrete schemas.
package dataset

import (
	"fmt"
	"sort"
	"strings"
)

// Error is a dataset error. Path is a filesystem-style path pointing at the
// offending file or directory within the dataset root.
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

func errPath(parts ...string) string {
	return "/" + strings.Join(parts, "/")
}

// Kind identifies the type of a dataset tree entry, recognized from the
// file name extension. Unrecognized names are directories.
type Kind int

const (
	KindDirectory Kind = iota
	KindTensor
	KindCategory
	KindClass
	KindLinks
)

func (k Kind) String() string {
	switch k {
	case KindTensor:
		return "tensor"
	case KindCategory:
		return "category"
	case KindClass:
		return "class"
	case KindLinks:
		return "links"
	default:
		return "directory"
	}
}

// Subtype selects the serialization of a tensor payload.
type Subtype string

const (
	SubtypeDefault Subtype = "default"
	SubtypeCSV     Subtype = "csv"
)

var extensions = []struct {
	ext     string
	kind    Kind
	subtype Subtype
}{
	{".ten.npy", KindTensor, SubtypeDefault},
	{".ten.csv", KindTensor, SubtypeCSV},
	{".cat.txt", KindCategory, SubtypeDefault},
	{".class.txt", KindClass, SubtypeDefault},
	{".links.csv", KindLinks, SubtypeDefault},
}

// splitName strips a recognized extension off an entry name. Names without
// a recognized extension are directories.
func splitName(name string) (base string, kind Kind, subtype Subtype) {
	for _, e := range extensions {
		if strings.HasSuffix(name, e.ext) {
			return strings.TrimSuffix(name, e.ext), e.kind, e.subtype
		}
	}
	return name, KindDirectory, SubtypeDefault
}

// extensionFor is the inverse of splitName.
func extensionFor(kind Kind, subtype Subtype) string {
	for _, e := range extensions {
		if e.kind == kind && e.subtype == subtype {
			return e.ext
		}
	}
	return ""
}

// File is one entry of a dataset tree: a *Directory, *Tensor, *Category,
// *Class or *Links.
type File interface {
	FileName() string
	Kind() Kind
	dump(op Opener, root, rel string) error
}

// Directory is a plain directory with named children.
type Directory struct {
	Name     string
	Children map[string]File
}

// FileName implements File.
func (d *Directory) FileName() string { return d.Name }

// Kind implements File.
func (d *Directory) Kind() Kind { return KindDirectory }

func (d *Directory) dump(op Opener, root, rel string) error {
	for _, name := range sortedChildNames(d.Children) {
		child := d.Children[name]
		if err := child.dump(op, root, joinRel(rel, name)); err != nil {
			return err
		}
	}
	return nil
}

// Dataset is a loaded dataset tree rooted at Root.
type Dataset struct {
	Root     string
	Children map[string]File
}

// Load walks the tree under root through the opener. With metadataOnly set,
// .npy tensor payloads are skipped and only their headers are read, so
// validating a large dataset never loads their array data. CSV tensors are
// always parsed in full.
func Load(op Opener, root string, metadataOnly bool) (*Dataset, error) {
	children, err := loadChildren(op, root, "", metadataOnly)
	if err != nil {
		return nil, err
	}
	return &Dataset{Root: root, Children: children}, nil
}

// Dump writes the dataset tree under root through the opener.
func (d *Dataset) Dump(op Opener, root string) error {
	for _, name := range sortedChildNames(d.Children) {
		if err := d.Children[name].dump(op, root, name); err != nil {
			return err
		}
	}
	return nil
}

func loadChildren(op Opener, root, rel string, metadataOnly bool) (map[string]File, error) {
	names, err := op.List(root, rel)
	if err != nil {
		return nil, newError(fmt.Sprintf("cannot list directory: %v", err), errPath(rel))
	}
	sort.Strings(names)

	children := make(map[string]File, len(names))
	for _, name := range names {
		base, kind, subtype := splitName(name)
		childRel := joinRel(rel, name)

		var child File
		switch kind {
		case KindTensor:
			child, err = loadTensor(op, root, childRel, base, subtype, metadataOnly)
		case KindCategory:
			child, err = loadCategory(op, root, childRel, base)
		case KindClass:
			child, err = loadClass(op, root, childRel, base)
		case KindLinks:
			child, err = loadLinks(op, root, childRel, base)
		default:
			var sub map[string]File
			sub, err = loadChildren(op, root, childRel, metadataOnly)
			if err == nil {
				child = &Directory{Name: base, Children: sub}
			}
		}
		if err != nil {
			return nil, err
		}
		children[base] = child
	}
	return children, nil
}

func joinRel(rel, name string) string {
	if rel == "" {
		return name
	}
	return rel + "/" + name
}

func sortedChildNames(m map[string]File) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
