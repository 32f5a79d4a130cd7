package schema

import "sort"

// Match reports whether the source schema can be accepted by this
// (destination) schema. Matching never returns an error: an unacceptable
// source is simply a false result.
func (s *Schema) Match(src *Schema) bool {
	_, ok := s.match(src, false)
	return ok
}

// MatchBuild matches like Match and, on success, builds the resolved
// destination schema: node, field and class source names filled in, tensor
// source dimension lists recorded, and the full dimension substitution
// exposed under SrcDims.
func (s *Schema) MatchBuild(src *Schema) (*Schema, bool) {
	return s.match(src, true)
}

func (s *Schema) match(src *Schema, build bool) (*Schema, bool) {
	selfSingles, selfMultis := partitionNodes(s.Nodes)
	srcSingles, srcMultis := partitionNodes(src.Nodes)

	// Named entities are not positional, so the search tries permutations;
	// equal counts per partition are a precondition.
	if len(selfSingles) != len(srcSingles) || len(selfMultis) != len(srcMultis) {
		return nil, false
	}

	// Referential constraints only matter when the destination describes an
	// actual link graph.
	if len(selfMultis) > 0 {
		if src.Cyclic && !s.Cyclic {
			return nil, false
		}
		if !src.Undirected && s.Undirected {
			return nil, false
		}
		if src.FanIn && !s.FanIn {
			return nil, false
		}
	}

	dimMap := map[string]Dim{}
	classMap := map[string]string{}
	nodeNameMap := map[string]string{}
	nodes := map[string]*Node{}

	// Singleton partition. Singletons carry no links, so the node name map
	// is not consulted yet.
	var matched bool
	perm := append([]string(nil), srcSingles...)
	for {
		dimIter, classIter := dimMap, classMap
		nodesIter := map[string]*Node{}
		matched = true
		for i, selfName := range selfSingles {
			srcName := perm[i]
			node, dimNew, classNew, ok := s.Nodes[selfName].match(
				src.Nodes[srcName], dimIter, classIter, nodeNameMap,
				s.Classes, src.Classes, build)
			if !ok {
				matched = false
				break
			}
			dimIter, classIter = dimNew, classNew
			if build {
				node.SrcName = srcName
				nodesIter[selfName] = node
			}
		}
		if matched {
			dimMap, classMap = dimIter, classIter
			for i, selfName := range selfSingles {
				nodeNameMap[selfName] = perm[i]
			}
			for k, v := range nodesIter {
				nodes[k] = v
			}
			break
		}
		if !nextPerm(perm) {
			break
		}
	}
	if !matched {
		return nil, false
	}

	// Non-singleton partition. The candidate node name map is fixed up
	// front for the whole permutation because link matching consults it.
	matched = false
	perm = append([]string(nil), srcMultis...)
	for {
		dimIter, classIter := dimMap, classMap
		nameIter := make(map[string]string, len(nodeNameMap)+len(selfMultis))
		for k, v := range nodeNameMap {
			nameIter[k] = v
		}
		for i, selfName := range selfMultis {
			nameIter[selfName] = perm[i]
		}
		nodesIter := map[string]*Node{}
		matched = true
		for i, selfName := range selfMultis {
			srcName := perm[i]
			node, dimNew, classNew, ok := s.Nodes[selfName].match(
				src.Nodes[srcName], dimIter, classIter, nameIter,
				s.Classes, src.Classes, build)
			if !ok {
				matched = false
				break
			}
			dimIter, classIter = dimNew, classNew
			if build {
				node.SrcName = srcName
				nodesIter[selfName] = node
			}
		}
		if matched {
			dimMap, classMap = dimIter, classIter
			nodeNameMap = nameIter
			for k, v := range nodesIter {
				nodes[k] = v
			}
			break
		}
		if !nextPerm(perm) {
			break
		}
	}
	if !matched {
		return nil, false
	}

	if !build {
		return nil, true
	}

	classes := make(map[string]*Class, len(s.Classes))
	for name, class := range s.Classes {
		classes[name] = &Class{Dim: class.Dim, SrcName: classMap[name]}
	}

	return &Schema{
		Nodes:      nodes,
		Classes:    classes,
		Cyclic:     s.Cyclic,
		Undirected: s.Undirected,
		FanIn:      s.FanIn,
		SrcDims:    dimMap,
	}, true
}

// match matches a destination node against a source node. The substitution
// maps flow through as immutable values: the returned maps extend the inputs
// and the inputs are never mutated, so backtracking discards failed branches
// by simply dropping the returns.
func (n *Node) match(
	src *Node,
	dimMap map[string]Dim,
	classMap map[string]string,
	nodeNameMap map[string]string,
	selfClasses, srcClasses map[string]*Class,
	build bool,
) (*Node, map[string]Dim, map[string]string, bool) {

	selfTensors, selfCats := partitionFields(n.Fields)
	srcTensors, srcCats := partitionFields(src.Fields)

	if len(selfTensors) != len(srcTensors) ||
		len(selfCats) != len(srcCats) ||
		len(n.Links) != len(src.Links) {
		return nil, nil, nil, false
	}

	// Links first: the node name mapping is already fixed, so this is a
	// cheap direct check.
	for _, target := range sortedLinkNames(n.Links) {
		srcTarget, ok := nodeNameMap[target]
		if !ok {
			return nil, nil, nil, false
		}
		srcLink, ok := src.Links[srcTarget]
		if !ok || !n.Links[target].accepts(srcLink) {
			return nil, nil, nil, false
		}
	}

	fieldNameMap := map[string]string{}

	// Tensor fields: permutation search threading the dimension
	// substitution.
	dimCur := dimMap
	found := len(srcTensors) == 0
	perm := append([]string(nil), srcTensors...)
	for !found {
		cur := dimCur
		found = true
		for i, selfName := range selfTensors {
			dst := n.Fields[selfName].(*Tensor)
			srcField := src.Fields[perm[i]].(*Tensor)
			next, ok := MatchDimList(dst.Dim, srcField.Dim, cur)
			if !ok {
				found = false
				break
			}
			cur = next
		}
		if found {
			dimCur = cur
			for i, selfName := range selfTensors {
				fieldNameMap[selfName] = perm[i]
			}
			break
		}
		if !nextPerm(perm) {
			break
		}
	}
	if !found {
		return nil, nil, nil, false
	}

	// Category fields: same search, additionally threading the class name
	// substitution.
	classCur := classMap
	found = len(srcCats) == 0
	perm = append([]string(nil), srcCats...)
	for !found {
		dimIter, classIter := dimCur, classCur
		found = true
		for i, selfName := range selfCats {
			dst := n.Fields[selfName].(*Category)
			srcField := src.Fields[perm[i]].(*Category)
			dimNew, classNew, ok := dst.match(srcField, dimIter, classIter, selfClasses, srcClasses)
			if !ok {
				found = false
				break
			}
			dimIter, classIter = dimNew, classNew
		}
		if found {
			dimCur, classCur = dimIter, classIter
			for i, selfName := range selfCats {
				fieldNameMap[selfName] = perm[i]
			}
			break
		}
		if !nextPerm(perm) {
			break
		}
	}
	if !found {
		return nil, nil, nil, false
	}

	if !build {
		return nil, dimCur, classCur, true
	}

	fields := make(map[string]Field, len(n.Fields))
	for name, field := range n.Fields {
		srcName := fieldNameMap[name]
		switch f := field.(type) {
		case *Tensor:
			srcField := src.Fields[srcName].(*Tensor)
			fields[name] = &Tensor{
				Dim:     append([]Dim(nil), f.Dim...),
				SrcName: srcName,
				SrcDim:  append([]Dim(nil), srcField.Dim...),
			}
		case *Category:
			fields[name] = &Category{Class: f.Class, SrcName: srcName}
		}
	}
	links := make(map[string]*Link, len(n.Links))
	for name, link := range n.Links {
		links[name] = link.clone()
	}

	return &Node{Singleton: n.Singleton, Fields: fields, Links: links},
		dimCur, classCur, true
}

// match resolves a destination category field against a source one through
// the class name substitution, falling back to class cardinality
// unification when the class is not yet mapped.
func (c *Category) match(
	src *Category,
	dimMap map[string]Dim,
	classMap map[string]string,
	selfClasses, srcClasses map[string]*Class,
) (map[string]Dim, map[string]string, bool) {

	if mapped, ok := classMap[c.Class]; ok {
		if mapped != src.Class {
			return nil, nil, false
		}
		return dimMap, classMap, true
	}

	ext, ok := selfClasses[c.Class].match(srcClasses[src.Class], dimMap)
	if !ok {
		return nil, nil, false
	}
	dimNew := dimMap
	for k, v := range ext {
		dimNew = extend(dimNew, k, v)
	}
	return dimNew, extendStr(classMap, c.Class, src.Class), true
}

func extendStr(m map[string]string, key, val string) map[string]string {
	out := make(map[string]string, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[key] = val
	return out
}

// partitionNodes splits node names into singletons and non-singletons, both
// sorted so that permutation searches enumerate deterministically.
func partitionNodes(nodes map[string]*Node) (singles, multis []string) {
	for name, node := range nodes {
		if node.Singleton {
			singles = append(singles, name)
		} else {
			multis = append(multis, name)
		}
	}
	sort.Strings(singles)
	sort.Strings(multis)
	return singles, multis
}

// partitionFields splits field names into tensors and categories, sorted.
func partitionFields(fields map[string]Field) (tensors, cats []string) {
	for name, field := range fields {
		switch field.(type) {
		case *Tensor:
			tensors = append(tensors, name)
		case *Category:
			cats = append(cats, name)
		}
	}
	sort.Strings(tensors)
	sort.Strings(cats)
	return tensors, cats
}

// nextPerm rearranges s into the next lexicographic permutation, returning
// false when s was already the last one.
func nextPerm(s []string) bool {
	i := len(s) - 2
	for i >= 0 && s[i] >= s[i+1] {
		i--
	}
	if i < 0 {
		return false
	}
	j := len(s) - 1
	for s[j] <= s[i] {
		j--
	}
	s[i], s[j] = s[j], s[i]
	for l, r := i+1, len(s)-1; l < r; l, r = l+1, r-1 {
		s[l], s[r] = s[r], s[l]
	}
	return true
}
