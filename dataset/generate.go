package dataset

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/easeml/easemlschema/internal/graphutil"
	"github.com/easeml/easemlschema/schema"
)

// GenerateConfig controls random dataset synthesis.
type GenerateConfig struct {
	Samples   int   // sample directories to emit (default 10)
	Instances int   // instances per non-singleton node (default 10)
	Seed      int64 // rng seed; identical seeds yield identical datasets
}

// DefaultGenerateConfig returns the standard generation knobs.
func DefaultGenerateConfig() GenerateConfig {
	return GenerateConfig{Samples: 10, Instances: 10}
}

const randomNameLen = 16

var randomNameChars = []byte("abcdefghijklmnopqrstuvwxyz0123456789")

func randomString(rng *rand.Rand, size int) string {
	out := make([]byte, size)
	for i := range out {
		out[i] = randomNameChars[rng.Intn(len(randomNameChars))]
	}
	return string(out)
}

// Generate synthesizes a random dataset that is valid under the given fully
// concrete schema. The link sets honor the schema's referential
// constraints; when candidate targets run out the fill is relaxed, but a
// link violating the declared flags is never emitted.
func Generate(s *schema.Schema, cfg GenerateConfig) (*Dataset, error) {
	if s.IsVariable() {
		return nil, fmt.Errorf("cannot generate from a schema with unresolved dimensions")
	}
	if cfg.Samples <= 0 {
		cfg.Samples = 10
	}
	if cfg.Instances <= 0 {
		cfg.Instances = 10
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	// Invent labels for every class.
	classFiles := map[string]*Class{}
	classNames := make([]string, 0, len(s.Classes))
	for name := range s.Classes {
		classNames = append(classNames, name)
	}
	sort.Strings(classNames)
	for _, name := range classNames {
		dim := s.Classes[name].Dim.Value
		labels := make([]string, 0, dim)
		seen := map[string]bool{}
		for len(labels) < dim {
			label := randomString(rng, randomNameLen)
			if seen[label] {
				continue
			}
			seen[label] = true
			labels = append(labels, label)
		}
		classFiles[name] = &Class{Name: name, Categories: labels}
	}

	nodeNames, multiNames := sortedSchemaNodes(s)

	children := make(map[string]File, cfg.Samples+len(classFiles))
	for name, class := range classFiles {
		children[name] = class
	}

	for i := 0; i < cfg.Samples; i++ {
		sampleName := randomString(rng, randomNameLen)
		nodes := map[string]File{}

		for _, nodeName := range nodeNames {
			node := s.Nodes[nodeName]
			if node.Singleton {
				nodes[nodeName] = generateSingleton(rng, nodeName, node, classFiles)
			} else {
				nodes[nodeName] = generateMulti(rng, nodeName, node, classFiles, cfg.Instances)
			}
		}

		if len(multiNames) > 0 {
			nodes["links"] = generateLinks(rng, s, multiNames, cfg.Instances)
		}

		children[sampleName] = &Directory{Name: sampleName, Children: nodes}
	}

	return &Dataset{Children: children}, nil
}

func generateSingleton(rng *rand.Rand, name string, node *schema.Node, classes map[string]*Class) File {
	for _, field := range node.Fields {
		switch f := field.(type) {
		case *schema.Tensor:
			dims := make([]int, len(f.Dim))
			count := 1
			for i, d := range f.Dim {
				dims[i] = d.Value
				count *= d.Value
			}
			data := make([]float64, count)
			for i := range data {
				data[i] = rng.Float64()
			}
			return &Tensor{Name: name, Dimensions: dims, Data: data, Subtype: SubtypeDefault}
		case *schema.Category:
			labels := classes[f.Class].Categories
			return &Category{Name: name, Categories: []string{labels[rng.Intn(len(labels))]}}
		}
	}
	return nil
}

func generateMulti(rng *rand.Rand, name string, node *schema.Node, classes map[string]*Class, instances int) File {
	children := map[string]File{}
	fieldNames := make([]string, 0, len(node.Fields))
	for f := range node.Fields {
		fieldNames = append(fieldNames, f)
	}
	sort.Strings(fieldNames)

	for _, fieldName := range fieldNames {
		switch f := node.Fields[fieldName].(type) {
		case *schema.Tensor:
			dims := make([]int, 0, len(f.Dim)+1)
			dims = append(dims, instances)
			count := instances
			for _, d := range f.Dim {
				dims = append(dims, d.Value)
				count *= d.Value
			}
			data := make([]float64, count)
			for i := range data {
				data[i] = rng.Float64()
			}
			children[fieldName] = &Tensor{
				Name: fieldName, Dimensions: dims, Data: data, Subtype: SubtypeDefault,
			}
		case *schema.Category:
			labels := classes[f.Class].Categories
			picked := make([]string, instances)
			for i := range picked {
				picked[i] = labels[rng.Intn(len(labels))]
			}
			children[fieldName] = &Category{Name: fieldName, Categories: picked}
		}
	}
	return &Directory{Name: name, Children: children}
}

// generateLinks draws a per-instance out-degree for every link and fills it
// from the candidate targets that the schema's referential constraints
// still allow.
func generateLinks(rng *rand.Rand, s *schema.Schema, multiNames []string, instances int) *Links {
	links := map[Link]bool{}
	countIn := map[graphutil.Vertex]int{}
	countOut := map[graphutil.Vertex]int{}

	type pairInstance struct {
		src    graphutil.Vertex
		target string
	}
	maxIdx := map[pairInstance]int{}

	inLimit := 1
	if s.Undirected {
		inLimit = 2
	}

	for _, nodeName := range multiNames {
		node := s.Nodes[nodeName]
		targets := make([]string, 0, len(node.Links))
		for t := range node.Links {
			targets = append(targets, t)
		}
		sort.Strings(targets)

		for i := 0; i < instances; i++ {
			src := graphutil.Vertex{Node: nodeName, Index: i}
			for _, target := range targets {
				link := node.Links[target]
				lower := link.Lower
				upper := instances
				if !link.Unbounded && link.Upper < upper {
					upper = link.Upper
				}
				if lower > upper {
					lower = upper
				}
				count := lower + rng.Intn(upper-lower+1) - countOut[src]
				if count <= 0 {
					continue
				}

				// Monotonically increasing targets per (source instance,
				// target node) keep cross-node links acyclic.
				minNext := 0
				if prev, ok := maxIdx[pairInstance{src: src, target: target}]; ok {
					minNext = prev + 1
				}

				var candidates []int
				for x := 0; x < instances; x++ {
					tgt := graphutil.Vertex{Node: target, Index: x}
					if !s.Cyclic {
						if s.Undirected {
							if x == i || countIn[tgt] != 0 {
								continue
							}
						} else if target == nodeName {
							if x <= i {
								continue
							}
						} else if x < minNext {
							continue
						}
					}
					if !s.FanIn && countIn[tgt] >= inLimit {
						continue
					}
					candidates = append(candidates, x)
				}

				if count > len(candidates) {
					count = len(candidates)
				}
				for _, x := range candidates[:count] {
					tgt := graphutil.Vertex{Node: target, Index: x}
					countOut[src]++
					countIn[tgt]++
					links[Link{SrcNode: nodeName, SrcIndex: i, DstNode: target, DstIndex: x}] = true

					key := pairInstance{src: src, target: target}
					if x > maxIdx[key] {
						maxIdx[key] = x
					}

					if s.Undirected {
						countOut[tgt]++
						countIn[src]++
						links[Link{SrcNode: target, SrcIndex: x, DstNode: nodeName, DstIndex: i}] = true

						rkey := pairInstance{src: tgt, target: nodeName}
						if i > maxIdx[rkey] {
							maxIdx[rkey] = i
						}
					}
				}
			}
		}
	}

	return &Links{Name: "links", Links: links}
}

func sortedSchemaNodes(s *schema.Schema) (all, multis []string) {
	for name, node := range s.Nodes {
		all = append(all, name)
		if !node.Singleton {
			multis = append(multis, name)
		}
	}
	sort.Strings(all)
	sort.Strings(multis)
	return all, multis
}
