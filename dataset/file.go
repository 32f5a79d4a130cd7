package dataset

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Reserved pseudo-nodes marking implicit graph roots and leaves.
const (
	NodeSource = "SOURCE"
	NodeSink   = "SINK"
)

var linkNameFormat = regexp.MustCompile(`^[a-z_][0-9a-z_]*$`)

// Tensor is a dense numeric array file. Data is a flat row-major float64
// buffer, nil when an .npy file was loaded in metadata-only mode (CSV
// tensors always carry their data).
type Tensor struct {
	Name       string
	Dimensions []int
	Data       []float64
	Subtype    Subtype
}

// FileName implements File.
func (t *Tensor) FileName() string { return t.Name }

// Kind implements File.
func (t *Tensor) Kind() Kind { return KindTensor }

func loadTensor(op Opener, root, rel, base string, subtype Subtype, metadataOnly bool) (*Tensor, error) {
	f, err := op.Read(root, rel, KindTensor, true)
	if err != nil {
		return nil, newError(fmt.Sprintf("cannot open tensor file: %v", err), errPath(rel))
	}
	defer func() { _ = f.Close() }()

	var dims []int
	var data []float64
	if subtype == SubtypeCSV {
		dims, data, err = readCSVTensor(f)
	} else {
		dims, data, err = readNPY(f, metadataOnly)
	}
	if err != nil {
		return nil, newError(err.Error(), errPath(rel))
	}
	return &Tensor{Name: base, Dimensions: dims, Data: data, Subtype: subtype}, nil
}

func (t *Tensor) dump(op Opener, root, rel string) error {
	rel += extensionFor(KindTensor, t.Subtype)
	if t.Data == nil {
		return newError("Cannot write tensor without data.", errPath(rel))
	}
	f, err := op.Write(root, rel, KindTensor, true)
	if err != nil {
		return newError(fmt.Sprintf("cannot create tensor file: %v", err), errPath(rel))
	}
	defer func() { _ = f.Close() }()

	if t.Subtype == SubtypeCSV {
		err = writeCSVTensor(f, t.Dimensions, t.Data)
	} else {
		err = writeNPY(f, t.Dimensions, t.Data)
	}
	if err != nil {
		return newError(err.Error(), errPath(rel))
	}
	return nil
}

// Category is a label file: one label per instance of the owning node, or a
// single label for a singleton node.
type Category struct {
	Name       string
	Categories []string
}

// FileName implements File.
func (c *Category) FileName() string { return c.Name }

// Kind implements File.
func (c *Category) Kind() Kind { return KindCategory }

func loadCategory(op Opener, root, rel, base string) (*Category, error) {
	lines, err := readLines(op, root, rel, KindCategory)
	if err != nil {
		return nil, err
	}
	return &Category{Name: base, Categories: lines}, nil
}

func (c *Category) dump(op Opener, root, rel string) error {
	return writeLines(op, root, rel+extensionFor(KindCategory, SubtypeDefault),
		KindCategory, c.Categories)
}

// belongsToSet reports whether every label of the file is covered by the
// given class label set.
func (c *Category) belongsToSet(set map[string]bool) bool {
	for _, label := range c.Categories {
		if !set[label] {
			return false
		}
	}
	return true
}

// Class is a class file: the set of admissible labels for categories that
// reference it. Order is preserved but entries must be distinct.
type Class struct {
	Name       string
	Categories []string
}

// FileName implements File.
func (c *Class) FileName() string { return c.Name }

// Kind implements File.
func (c *Class) Kind() Kind { return KindClass }

func loadClass(op Opener, root, rel, base string) (*Class, error) {
	lines, err := readLines(op, root, rel, KindClass)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(lines))
	for _, line := range lines {
		if seen[line] {
			return nil, newError("Class file contains duplicate entries.", errPath(rel))
		}
		seen[line] = true
	}
	return &Class{Name: base, Categories: lines}, nil
}

func (c *Class) dump(op Opener, root, rel string) error {
	return writeLines(op, root, rel+extensionFor(KindClass, SubtypeDefault),
		KindClass, c.Categories)
}

// Link is one edge of a links file. An index of -1 marks the absent index
// of the SOURCE and SINK sentinels.
type Link struct {
	SrcNode  string
	SrcIndex int
	DstNode  string
	DstIndex int
}

// Reverse returns the same edge with endpoints swapped.
func (l Link) Reverse() Link {
	return Link{SrcNode: l.DstNode, SrcIndex: l.DstIndex, DstNode: l.SrcNode, DstIndex: l.SrcIndex}
}

func (l Link) String() string {
	return fmt.Sprintf("%s %s", endpointString(l.SrcNode, l.SrcIndex),
		endpointString(l.DstNode, l.DstIndex))
}

func endpointString(node string, index int) string {
	if index < 0 {
		return node
	}
	return fmt.Sprintf("%s/%d", node, index)
}

func parseEndpoint(token string, source bool) (string, int, error) {
	parts := strings.Split(token, "/")
	switch len(parts) {
	case 1:
		sentinel := NodeSink
		if source {
			sentinel = NodeSource
		}
		if parts[0] != sentinel {
			return "", 0, fmt.Errorf("link endpoint '%s' is missing an instance index", token)
		}
		return parts[0], -1, nil
	case 2:
		if !linkNameFormat.MatchString(parts[0]) {
			return "", 0, fmt.Errorf("link endpoint '%s' has an invalid node name", token)
		}
		index, err := strconv.Atoi(parts[1])
		if err != nil || index < 0 {
			return "", 0, fmt.Errorf("link endpoint '%s' has an invalid instance index", token)
		}
		return parts[0], index, nil
	default:
		return "", 0, fmt.Errorf("link endpoint '%s' is malformed", token)
	}
}

func parseLink(line string) (Link, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Link{}, fmt.Errorf(
			"link must have a source and a destination separated by whitespace")
	}
	srcNode, srcIndex, err := parseEndpoint(fields[0], true)
	if err != nil {
		return Link{}, err
	}
	dstNode, dstIndex, err := parseEndpoint(fields[1], false)
	if err != nil {
		return Link{}, err
	}
	return Link{SrcNode: srcNode, SrcIndex: srcIndex, DstNode: dstNode, DstIndex: dstIndex}, nil
}

// Links is a links file: the set of edges of one sample.
type Links struct {
	Name  string
	Links map[Link]bool
}

// FileName implements File.
func (l *Links) FileName() string { return l.Name }

// Kind implements File.
func (l *Links) Kind() Kind { return KindLinks }

func loadLinks(op Opener, root, rel, base string) (*Links, error) {
	lines, err := readLines(op, root, rel, KindLinks)
	if err != nil {
		return nil, err
	}
	links := make(map[Link]bool, len(lines))
	for _, line := range lines {
		link, err := parseLink(line)
		if err != nil {
			return nil, newError(err.Error(), errPath(rel))
		}
		links[link] = true
	}
	return &Links{Name: base, Links: links}, nil
}

func (l *Links) dump(op Opener, root, rel string) error {
	lines := make([]string, 0, len(l.Links))
	for link := range l.Links {
		lines = append(lines, link.String())
	}
	sort.Strings(lines)
	return writeLines(op, root, rel+extensionFor(KindLinks, SubtypeDefault),
		KindLinks, lines)
}

// ---------------------------------------------------------------------------
// Line-oriented text file helpers
// ---------------------------------------------------------------------------

func readLines(op Opener, root, rel string, kind Kind) ([]string, error) {
	f, err := op.Read(root, rel, kind, false)
	if err != nil {
		return nil, newError(fmt.Sprintf("cannot open %s file: %v", kind, err), errPath(rel))
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, newError(fmt.Sprintf("cannot read %s file: %v", kind, err), errPath(rel))
	}
	return lines, nil
}

func writeLines(op Opener, root, rel string, kind Kind, lines []string) error {
	f, err := op.Write(root, rel, kind, false)
	if err != nil {
		return newError(fmt.Sprintf("cannot create %s file: %v", kind, err), errPath(rel))
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return newError(fmt.Sprintf("cannot write %s file: %v", kind, err), errPath(rel))
		}
	}
	if err := w.Flush(); err != nil {
		return newError(fmt.Sprintf("cannot write %s file: %v", kind, err), errPath(rel))
	}
	return nil
}
