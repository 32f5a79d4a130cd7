package dataset

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/easeml/easemlschema/internal/graphutil"
)

// Graph predicates over the link set of a single sample. Inference
// aggregates them monotonically across samples: cyclic and fan-in stick
// once observed, undirected must hold in every sample.

// IsFanIn reports whether any vertex receives more incoming links than the
// cap: one in a directed graph, two in an undirected one (each undirected
// edge appears twice).
func (l *Links) IsFanIn(undirected bool) bool {
	limit := 1
	if undirected {
		limit = 2
	}
	counts := map[graphutil.Vertex]int{}
	for link := range l.Links {
		dst := graphutil.Vertex{Node: link.DstNode, Index: link.DstIndex}
		counts[dst]++
		if counts[dst] > limit {
			return true
		}
	}
	return false
}

// IsUndirected reports whether every link has its reverse present.
func (l *Links) IsUndirected() bool {
	for link := range l.Links {
		if !l.Links[link.Reverse()] {
			return false
		}
	}
	return true
}

// IsCyclic reports whether the link set contains a cycle. The traversal is
// an iterative DFS with an explicit ancestor set; vertices are interned to
// dense ids and the sets are roaring bitmaps, so graphs far beyond any
// recursion limit are fine.
func (l *Links) IsCyclic(undirected bool) bool {
	in := graphutil.New()
	adjacency := map[uint32][]uint32{}
	unvisited := roaring.New()

	for link := range l.Links {
		src := in.ID(graphutil.Vertex{Node: link.SrcNode, Index: link.SrcIndex})
		dst := in.ID(graphutil.Vertex{Node: link.DstNode, Index: link.DstIndex})
		adjacency[src] = append(adjacency[src], dst)
		unvisited.Add(src)
		unvisited.Add(dst)
	}

	if undirected {
		return undirectedCycle(adjacency, unvisited)
	}
	return directedCycle(adjacency, unvisited)
}

// undirectedCycle walks each component remembering the immediate parent:
// reaching an already-visited vertex that is not the parent closes a cycle.
func undirectedCycle(adjacency map[uint32][]uint32, unvisited *roaring.Bitmap) bool {
	type edge struct{ parent, vertex uint32 }

	for !unvisited.IsEmpty() {
		x := unvisited.Minimum()
		unvisited.Remove(x)

		var stack []edge
		for _, y := range adjacency[x] {
			stack = append(stack, edge{parent: x, vertex: y})
		}

		for len(stack) > 0 {
			e := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if !unvisited.Contains(e.vertex) {
				return true
			}
			unvisited.Remove(e.vertex)

			// Every edge is bidirectional; re-entering the parent is not
			// a cycle.
			for _, y := range adjacency[e.vertex] {
				if y != e.parent {
					stack = append(stack, edge{parent: e.vertex, vertex: y})
				}
			}
		}
	}
	return false
}

// directedCycle finds a back edge: an edge pointing at a vertex currently
// on the DFS stack. Each vertex is encountered twice, once to expand and
// once to retire from the ancestor set.
func directedCycle(adjacency map[uint32][]uint32, unvisited *roaring.Bitmap) bool {
	for !unvisited.IsEmpty() {
		ancestors := roaring.New()
		stack := []uint32{unvisited.Minimum()}

		for len(stack) > 0 {
			x := stack[len(stack)-1]

			if !ancestors.Contains(x) {
				unvisited.Remove(x)
				ancestors.Add(x)

				for _, y := range adjacency[x] {
					if ancestors.Contains(y) {
						return true
					}
				}
				for _, y := range adjacency[x] {
					if unvisited.Contains(y) {
						stack = append(stack, y)
					}
				}
			} else {
				stack = stack[:len(stack)-1]
				ancestors.Remove(x)
			}
		}
	}
	return false
}

// instanceIndexSets collects, per node, the set of instance indices any
// link endpoint references. Inference uses the per-node maximum to reject
// out-of-range indices without a second pass over the links.
func (l *Links) instanceIndexSets() map[string]*roaring.Bitmap {
	sets := map[string]*roaring.Bitmap{}
	add := func(node string, index int) {
		if index < 0 {
			return
		}
		bm, ok := sets[node]
		if !ok {
			bm = roaring.New()
			sets[node] = bm
		}
		bm.Add(uint32(index))
	}
	for link := range l.Links {
		add(link.SrcNode, link.SrcIndex)
		add(link.DstNode, link.DstIndex)
	}
	return sets
}
