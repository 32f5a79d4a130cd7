package schema

// MatchDimList unifies a destination dimension list against a source list
// under the given substitution. Destination wildcards absorb or skip source
// elements; a '+' or '*' on the source side lets one source element absorb
// several destination elements. On success the returned map extends the
// input substitution; the input map is never mutated. The branch order is
// fixed so that results are reproducible.
func MatchDimList(dst, src []Dim, subst map[string]Dim) (map[string]Dim, bool) {
	if subst == nil {
		subst = map[string]Dim{}
	}
	return matchDims(dst, src, subst)
}

func matchDims(a, b []Dim, subst map[string]Dim) (map[string]Dim, bool) {
	if len(a) == 0 && len(b) == 0 {
		return subst, true
	}

	// Only one side empty: the other side's head must be skippable.
	if len(a) == 0 {
		if _, mod := b[0].split(); mod == '?' || mod == '*' {
			return matchDims(a, b[1:], subst)
		}
		return nil, false
	}
	if len(b) == 0 {
		if _, mod := a[0].split(); mod == '?' || mod == '*' {
			return matchDims(a[1:], b, subst)
		}
		return nil, false
	}

	baseA, modA := a[0].split()
	baseB, modB := b[0].split()

	// The value a binding carries is the source head stripped of its
	// wildcard suffix. Wildcard-suffixed destination names are structural
	// only: they can absorb several source elements of different sizes, so
	// they never bind.
	bindVal := Dim{Value: b[0].Value, Name: baseB}

	canBind := false
	bound := subst
	switch {
	case a[0].IsVar() && modA != 0:
		canBind = true
	case a[0].IsVar():
		if prev, ok := subst[baseA]; ok {
			canBind = prev.Equal(bindVal)
		} else {
			canBind = true
			bound = extend(subst, baseA, bindVal)
		}
	default:
		canBind = !b[0].IsVar() && a[0].Value == b[0].Value
	}

	// Consume both heads.
	if canBind {
		if out, ok := matchDims(a[1:], b[1:], bound); ok {
			return out, true
		}
	}

	// Source head absorbs more than one destination element.
	if canBind && (modB == '+' || modB == '*') {
		if out, ok := matchDims(a[1:], b, bound); ok {
			return out, true
		}
	}

	// Skip the destination head.
	if modA == '?' || modA == '*' {
		if out, ok := matchDims(a[1:], b, subst); ok {
			return out, true
		}
	}

	// Destination head absorbs more than one source element.
	if canBind && (modA == '+' || modA == '*') {
		if out, ok := matchDims(a, b[1:], bound); ok {
			return out, true
		}
	}

	// Skip the source head.
	if modB == '?' || modB == '*' {
		if out, ok := matchDims(a, b[1:], subst); ok {
			return out, true
		}
	}

	return nil, false
}

func extend(subst map[string]Dim, name string, val Dim) map[string]Dim {
	out := make(map[string]Dim, len(subst)+1)
	for k, v := range subst {
		out[k] = v
	}
	out[name] = val
	return out
}
