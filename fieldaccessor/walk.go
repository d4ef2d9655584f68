package fieldaccessor

// LeafPaths walks expr and returns the dotted path (or, for a range
// endpoint, "path.lowerBound"/"path.upperBound") each leaf reads. The
// planner uses this to match a predicate's referenced fields against an
// index's expression without needing to know the expression's concrete
// shape.
func LeafPaths[R any](expr KeyExpression[R]) []string {
	return leafPaths[R](expr, "")
}

func leafPaths[R any](expr KeyExpression[R], prefix string) []string {
	switch e := expr.(type) {
	case FieldKeyExpr[R]:
		return []string{joinLeafPath(prefix, e.Path)}
	case RangeKeyExpr[R]:
		return []string{joinLeafPath(prefix, e.Parent+"."+e.Component.String())}
	case ConcatenateExpr[R]:
		var out []string
		for _, c := range e.Children {
			out = append(out, leafPaths[R](c, prefix)...)
		}
		return out
	case NestExpr[R]:
		return leafPaths[R](e.Child, joinLeafPath(prefix, e.Parent))
	case EmptyExpr[R]:
		return nil
	default:
		return nil
	}
}

func joinLeafPath(prefix, path string) string {
	if prefix == "" {
		return path
	}
	return prefix + "." + path
}
