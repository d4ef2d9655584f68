package metadata

import "github.com/erigontech/fdbrecord/fieldaccessor"

// leafFieldPaths walks a key expression tree and returns the full dotted
// path of every plain FieldKey leaf it reads (RangeKey leaves are excluded:
// they already disambiguate which endpoint of a range field they read, so
// they can never trigger DirectRangeIndexForbidden).
func leafFieldPaths[R any](expr fieldaccessor.KeyExpression[R], prefix string) []string {
	switch e := expr.(type) {
	case fieldaccessor.FieldKeyExpr[R]:
		return []string{joinPath(prefix, e.Path)}
	case fieldaccessor.RangeKeyExpr[R]:
		return nil
	case fieldaccessor.ConcatenateExpr[R]:
		var out []string
		for _, c := range e.Children {
			out = append(out, leafFieldPaths[R](c, prefix)...)
		}
		return out
	case fieldaccessor.NestExpr[R]:
		return leafFieldPaths[R](e.Child, joinPath(prefix, e.Parent))
	case fieldaccessor.EmptyExpr[R]:
		return nil
	default:
		return nil
	}
}

func joinPath(prefix, path string) string {
	if prefix == "" {
		return path
	}
	return prefix + "." + path
}
