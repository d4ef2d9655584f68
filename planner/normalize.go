package planner

// Normalize flattens nested, commutative-associative And/Or chains and
// pushes Not down via De Morgan's laws, so later phases see a canonical
// shape instead of needing to recurse through arbitrary nesting (spec §4.7
// phase 1 "Normalize").
func Normalize[R any](p Predicate[R]) Predicate[R] {
	switch v := p.(type) {
	case And[R]:
		return And[R]{Children: flattenAnd(v.Children)}
	case Or[R]:
		return Or[R]{Children: flattenOr(v.Children)}
	case Not[R]:
		return pushDownNot(v.Child)
	default:
		return p
	}
}

func flattenAnd[R any](children []Predicate[R]) []Predicate[R] {
	var out []Predicate[R]
	for _, c := range children {
		n := Normalize(c)
		if and, ok := n.(And[R]); ok {
			out = append(out, and.Children...)
		} else {
			out = append(out, n)
		}
	}
	return out
}

func flattenOr[R any](children []Predicate[R]) []Predicate[R] {
	var out []Predicate[R]
	for _, c := range children {
		n := Normalize(c)
		if or, ok := n.(Or[R]); ok {
			out = append(out, or.Children...)
		} else {
			out = append(out, n)
		}
	}
	return out
}

// pushDownNot applies De Morgan's laws recursively so a Not never wraps an
// And/Or/Not in the normalized tree.
func pushDownNot[R any](child Predicate[R]) Predicate[R] {
	switch v := child.(type) {
	case And[R]:
		negated := make([]Predicate[R], len(v.Children))
		for i, c := range v.Children {
			negated[i] = pushDownNot(c)
		}
		return Normalize[R](Or[R]{Children: negated})
	case Or[R]:
		negated := make([]Predicate[R], len(v.Children))
		for i, c := range v.Children {
			negated[i] = pushDownNot(c)
		}
		return Normalize[R](And[R]{Children: negated})
	case Not[R]:
		return Normalize(v.Child)
	default:
		return Not[R]{Child: Normalize(v)}
	}
}
