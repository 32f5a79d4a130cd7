package dataset

import (
	"fmt"
	"sort"

	"github.com/easeml/easemlschema/schema"
)

// pairKey is an ordered (source node, destination node) pair of a link.
type pairKey struct {
	src, dst string
}

// linkBounds accumulates the observed out-degree interval for one node
// pair.
type linkBounds struct {
	lower, upper int
}

// InferSchema derives the schema a loaded dataset implies, enforcing that
// all samples agree on node structure, that class references resolve, that
// links address real instances, and recording the observed graph
// properties.
func (d *Dataset) InferSchema() (*schema.Schema, error) {
	classes := map[string]*Class{}
	classSets := map[string]map[string]bool{}
	schClasses := map[string]*schema.Class{}
	samples := map[string]*Directory{}

	for _, name := range sortedChildNames(d.Children) {
		child := d.Children[name]
		switch c := child.(type) {
		case *Directory:
			samples[name] = c
		case *Class:
			classes[name] = c
			schClasses[name] = &schema.Class{Dim: schema.DimOf(len(c.Categories))}
			set := make(map[string]bool, len(c.Categories))
			for _, label := range c.Categories {
				set[label] = true
			}
			classSets[name] = set
		default:
			return nil, newError(
				fmt.Sprintf("Files of type '%s' are unexpected in dataset root.", child.Kind()),
				errPath(name))
		}
	}

	classNames := make([]string, 0, len(classes))
	for name := range classes {
		classNames = append(classNames, name)
	}
	sort.Strings(classNames)

	sampleNames := make([]string, 0, len(samples))
	for name := range samples {
		sampleNames = append(sampleNames, name)
	}
	sort.Strings(sampleNames)

	schNodes := map[string]*schema.Node{}
	accum := map[pairKey]linkBounds{}
	firstSample := true
	linksFound := false
	linkSamples := 0
	cyclic := false
	fanin := false
	undirected := true

	for _, sampleName := range sampleNames {
		sample := samples[sampleName]

		// Partition the sample's children by kind.
		tensors := map[string]*Tensor{}
		cats := map[string]*Category{}
		dirs := map[string]*Directory{}
		var linksFiles []*Links
		sampleNodes := map[string]bool{}

		for _, childName := range sortedChildNames(sample.Children) {
			switch c := sample.Children[childName].(type) {
			case *Tensor:
				tensors[childName] = c
				sampleNodes[childName] = true
			case *Category:
				cats[childName] = c
				sampleNodes[childName] = true
			case *Directory:
				dirs[childName] = c
				sampleNodes[childName] = true
			case *Links:
				linksFiles = append(linksFiles, c)
			default:
				return nil, newError(
					fmt.Sprintf("Files of type '%s' are unexpected in data sample.",
						sample.Children[childName].Kind()),
					errPath(sampleName, childName))
			}
		}

		if len(linksFiles) > 1 {
			return nil, newError("At most one links file per data sample is allowed.",
				errPath(sampleName))
		}

		// Either all samples carry a links file or none of them do.
		if firstSample {
			linksFound = len(linksFiles) > 0
		} else if (len(linksFiles) > 0) != linksFound {
			return nil, newError("Links file not found in all data samples.",
				errPath(sampleName))
		}

		// All samples must describe the same set of nodes.
		if !firstSample {
			for name := range schNodes {
				if !sampleNodes[name] {
					return nil, newError("Item expected but not found.",
						errPath(sampleName, name))
				}
			}
			for name := range sampleNodes {
				if _, ok := schNodes[name]; !ok {
					return nil, newError("Item found but not expected.",
						errPath(sampleName, name))
				}
			}
		}

		// Singleton nodes from top-level tensor files.
		for _, name := range sortedTensorNames(tensors) {
			file := tensors[name]
			if firstSample {
				field := &schema.Tensor{Dim: dimsOf(file.Dimensions)}
				schNodes[name] = &schema.Node{
					Singleton: true,
					Fields:    map[string]schema.Field{"field": field},
					Links:     map[string]*schema.Link{},
				}
				continue
			}
			node := schNodes[name]
			field, ok := singletonTensorField(node)
			if !ok {
				return nil, newError(
					fmt.Sprintf("Node '%s' not the same type in all samples.", name),
					errPath(sampleName))
			}
			if !dimsEqual(field.Dim, file.Dimensions) {
				return nil, newError("Tensor dimensions mismatch.",
					errPath(sampleName, name))
			}
		}

		// Singleton nodes from top-level category files.
		for _, name := range sortedCategoryNames(cats) {
			file := cats[name]
			className, ok := resolveClass(file, classNames, classSets)
			if !ok {
				return nil, newError("Category file does not match any class.",
					errPath(sampleName, name))
			}
			if firstSample {
				field := &schema.Category{Class: className}
				schNodes[name] = &schema.Node{
					Singleton: true,
					Fields:    map[string]schema.Field{"field": field},
					Links:     map[string]*schema.Link{},
				}
				continue
			}
			node := schNodes[name]
			field, ok := singletonCategoryField(node)
			if !ok {
				return nil, newError(
					fmt.Sprintf("Node '%s' not the same type in all samples.", name),
					errPath(sampleName))
			}
			if field.Class != className {
				return nil, newError("Category class mismatch.",
					errPath(sampleName, name))
			}
		}

		// Non-singleton nodes from sub-directories. The instance counts are
		// kept per sample to validate link indices below.
		instanceCount := map[string]int{}

		for _, name := range sortedDirNames(dirs) {
			dir := dirs[name]

			var fields map[string]schema.Field
			if firstSample {
				fields = map[string]schema.Field{}
			} else {
				node := schNodes[name]
				if node.Singleton {
					return nil, newError(
						fmt.Sprintf("Node '%s' not the same type in all samples.", name),
						errPath(sampleName))
				}
				fields = node.Fields

				for fieldName := range fields {
					if _, ok := dir.Children[fieldName]; !ok {
						return nil, newError("Item expected but not found.",
							errPath(sampleName, name, fieldName))
					}
				}
				for childName := range dir.Children {
					if _, ok := fields[childName]; !ok {
						return nil, newError("Item found but not expected.",
							errPath(sampleName, name, childName))
					}
				}
			}

			for _, fieldName := range sortedChildNames(dir.Children) {
				switch file := dir.Children[fieldName].(type) {
				case *Tensor:
					if len(file.Dimensions) < 1 {
						return nil, newError("Tensor dimensions mismatch.",
							errPath(sampleName, name, fieldName))
					}
					count := file.Dimensions[0]
					if prev, ok := instanceCount[name]; ok && prev != count {
						return nil, newError("Tensor instance count mismatch.",
							errPath(sampleName, name, fieldName))
					}
					instanceCount[name] = count

					if firstSample {
						fields[fieldName] = &schema.Tensor{Dim: dimsOf(file.Dimensions[1:])}
						continue
					}
					field, ok := fields[fieldName].(*schema.Tensor)
					if !ok {
						return nil, newError(
							fmt.Sprintf("Node '%s' not the same type in all samples.", name),
							errPath(sampleName, name, fieldName))
					}
					if !dimsEqual(field.Dim, file.Dimensions[1:]) {
						return nil, newError("Tensor dimensions mismatch.",
							errPath(sampleName, name, fieldName))
					}

				case *Category:
					className, ok := resolveClass(file, classNames, classSets)
					if !ok {
						return nil, newError("Category file does not match any class.",
							errPath(sampleName, name, fieldName))
					}
					count := len(file.Categories)
					if prev, ok := instanceCount[name]; ok && prev != count {
						return nil, newError("Category instance count mismatch.",
							errPath(sampleName, name, fieldName))
					}
					instanceCount[name] = count

					if firstSample {
						fields[fieldName] = &schema.Category{Class: className}
						continue
					}
					field, ok := fields[fieldName].(*schema.Category)
					if !ok {
						return nil, newError(
							fmt.Sprintf("Node '%s' not the same type in all samples.", name),
							errPath(sampleName, name, fieldName))
					}
					if field.Class != className {
						return nil, newError("Category class mismatch.",
							errPath(sampleName, name, fieldName))
					}

				default:
					return nil, newError(
						fmt.Sprintf("Files of type '%s' are unexpected in node directory.",
							dir.Children[fieldName].Kind()),
						errPath(sampleName, name, fieldName))
				}
			}

			if firstSample {
				schNodes[name] = &schema.Node{
					Fields: fields,
					Links:  map[string]*schema.Link{},
				}
			}
		}

		if len(linksFiles) == 0 {
			// Without a links file, non-singleton nodes form an implicit
			// directed chain per node type.
			for name, node := range schNodes {
				if !node.Singleton {
					node.Links[name] = &schema.Link{Lower: 1, Upper: 1}
					undirected = false
				}
			}
		} else {
			links := linksFiles[0]

			if len(instanceCount) == 0 {
				return nil, newError("Link file found but no non-singleton nodes.",
					errPath(sampleName))
			}

			// Every endpoint must name a known non-singleton node with an
			// index inside its instance count.
			for link := range links.Links {
				if link.SrcIndex < 0 {
					return nil, newError(
						fmt.Sprintf("Link references unknown node '%s'.", link.SrcNode),
						errPath(sampleName))
				}
				if link.DstIndex < 0 {
					return nil, newError(
						fmt.Sprintf("Link references unknown node '%s'.", link.DstNode),
						errPath(sampleName))
				}
			}
			indexSets := links.instanceIndexSets()
			indexNodes := make([]string, 0, len(indexSets))
			for node := range indexSets {
				indexNodes = append(indexNodes, node)
			}
			sort.Strings(indexNodes)
			for _, node := range indexNodes {
				target, ok := schNodes[node]
				if !ok {
					return nil, newError(
						fmt.Sprintf("Link references unknown node '%s'.", node),
						errPath(sampleName))
				}
				if target.Singleton {
					return nil, newError(
						fmt.Sprintf("Link references singleton node '%s'.", node),
						errPath(sampleName))
				}
				if max := int(indexSets[node].Maximum()); max >= instanceCount[node] {
					return nil, newError(
						fmt.Sprintf("Found link index %d to node with %d instances.",
							max, instanceCount[node]),
						errPath(sampleName))
				}
			}

			mergeLinkBounds(accum, sampleLinkBounds(links, instanceCount), linkSamples)
			linkSamples++

			// Graph properties, aggregated monotonically.
			if undirected {
				undirected = links.IsUndirected()
			}
			if !fanin {
				fanin = links.IsFanIn(undirected)
			}
			if !cyclic {
				cyclic = links.IsCyclic(undirected)
			}
		}

		firstSample = false
	}

	// Attach the accumulated link bounds.
	for pair, b := range accum {
		link := &schema.Link{Lower: b.lower, Upper: b.upper}
		schNodes[pair.src].Links[pair.dst] = link
	}

	// The degenerate dataset of singleton nodes only has no link graph to
	// speak of; all flags stay unset.
	hasMultis := false
	for _, node := range schNodes {
		if !node.Singleton {
			hasMultis = true
			break
		}
	}
	if !hasMultis {
		cyclic, undirected, fanin = false, false, false
	}

	result := &schema.Schema{
		Nodes:      schNodes,
		Classes:    schClasses,
		Cyclic:     cyclic,
		Undirected: undirected,
		FanIn:      fanin,
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

// sampleLinkBounds computes, for every node pair linked in the sample, the
// out-degree interval across all source instances. Instances with no
// outgoing link of a pair count as zero, so lower bounds can be zero.
func sampleLinkBounds(links *Links, instanceCount map[string]int) map[pairKey]linkBounds {
	perInstance := map[pairKey]map[int]int{}
	for link := range links.Links {
		key := pairKey{src: link.SrcNode, dst: link.DstNode}
		m, ok := perInstance[key]
		if !ok {
			m = map[int]int{}
			perInstance[key] = m
		}
		m[link.SrcIndex]++
	}

	bounds := make(map[pairKey]linkBounds, len(perInstance))
	for key, counts := range perInstance {
		b := linkBounds{lower: -1}
		for i := 0; i < instanceCount[key.src]; i++ {
			c := counts[i]
			if b.lower < 0 || c < b.lower {
				b.lower = c
			}
			if c > b.upper {
				b.upper = c
			}
		}
		bounds[key] = b
	}
	return bounds
}

// mergeLinkBounds folds one sample's bounds into the accumulated map. A
// pair missing from either side widens the lower bound to zero, because the
// other side observed instances without that link.
func mergeLinkBounds(accum map[pairKey]linkBounds, sample map[pairKey]linkBounds, priorSamples int) {
	for pair, b := range sample {
		if acc, ok := accum[pair]; ok {
			if b.lower < acc.lower {
				acc.lower = b.lower
			}
			if b.upper > acc.upper {
				acc.upper = b.upper
			}
			accum[pair] = acc
		} else {
			if priorSamples > 0 {
				b.lower = 0
			}
			accum[pair] = b
		}
	}
	for pair, acc := range accum {
		if _, ok := sample[pair]; !ok {
			acc.lower = 0
			accum[pair] = acc
		}
	}
}

// resolveClass finds the first class, in name order, whose label set covers
// every label of the category file.
func resolveClass(file *Category, classNames []string, classSets map[string]map[string]bool) (string, bool) {
	for _, name := range classNames {
		if file.belongsToSet(classSets[name]) {
			return name, true
		}
	}
	return "", false
}

func singletonTensorField(node *schema.Node) (*schema.Tensor, bool) {
	if !node.Singleton || len(node.Fields) != 1 {
		return nil, false
	}
	field, ok := node.Fields["field"].(*schema.Tensor)
	return field, ok
}

func singletonCategoryField(node *schema.Node) (*schema.Category, bool) {
	if !node.Singleton || len(node.Fields) != 1 {
		return nil, false
	}
	field, ok := node.Fields["field"].(*schema.Category)
	return field, ok
}

func dimsOf(dims []int) []schema.Dim {
	out := make([]schema.Dim, len(dims))
	for i, d := range dims {
		out[i] = schema.DimOf(d)
	}
	return out
}

func dimsEqual(dims []schema.Dim, shape []int) bool {
	if len(dims) != len(shape) {
		return false
	}
	for i, d := range dims {
		if d.IsVar() || d.Value != shape[i] {
			return false
		}
	}
	return true
}

func sortedTensorNames(m map[string]*Tensor) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func sortedCategoryNames(m map[string]*Category) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func sortedDirNames(m map[string]*Directory) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
