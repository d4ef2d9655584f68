package planner

import (
	"context"

	"github.com/erigontech/fdbrecord/fieldaccessor"
	"github.com/erigontech/fdbrecord/indexstate"
	"github.com/erigontech/fdbrecord/kv"
	"github.com/erigontech/fdbrecord/metadata"
	"github.com/erigontech/fdbrecord/rangeindex"
	"github.com/erigontech/fdbrecord/stats"
	"github.com/erigontech/fdbrecord/tuple"
)

// Budget bounds candidate-plan generation (spec §4.7 phase 4: "default 20
// plans, max DNF branches 10").
type Budget struct {
	MaxPlans       int
	MaxDNFBranches int
}

// DefaultBudget is the spec's stated default.
func DefaultBudget() Budget { return Budget{MaxPlans: 20, MaxDNFBranches: 10} }

// Planner compiles TypedQuery values into cost-estimated plans for one
// schema (spec §4.7).
type Planner[R any] struct {
	schema     *metadata.Schema[R]
	indexState *indexstate.Manager
	statsMgr   *stats.Manager
	budget     Budget
	cache      *planCache[R]
}

// Option configures a Planner at construction time (spec §11 functional
// options).
type Option[R any] func(*Planner[R])

// WithBudget overrides the candidate-generation budget.
func WithBudget[R any](b Budget) Option[R] { return func(p *Planner[R]) { p.budget = b } }

// WithCacheSize overrides the plan cache's capacity (default 256).
func WithCacheSize[R any](size int) Option[R] {
	return func(p *Planner[R]) {
		c, err := newPlanCache[R](size)
		if err == nil {
			p.cache = c
		}
	}
}

// New builds a Planner over schema, consulting indexState for readability
// and statsMgr (optional) for cost estimation.
func New[R any](schema *metadata.Schema[R], indexState *indexstate.Manager, statsMgr *stats.Manager, opts ...Option[R]) *Planner[R] {
	p := &Planner[R]{
		schema:     schema,
		indexState: indexState,
		statsMgr:   statsMgr,
		budget:     DefaultBudget(),
	}
	cache, _ := newPlanCache[R](256)
	p.cache = cache
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan compiles q into a selected physical plan for recordType (spec §4.7
// phases 1-7).
func (p *Planner[R]) Plan(ctx context.Context, tx kv.Tx, recordType string, q TypedQuery[R]) (*Plan[R], error) {
	key := cacheKey(recordType, q, p.schema.Version)
	if cached, ok := p.cache.get(key); ok {
		return cached, nil
	}

	pred := q.Predicate
	if pred == nil {
		pred = And[R]{}
	}
	normalized := Normalize(pred)

	windows, empty := extractRangeWindows(normalized)
	if empty {
		plan := emptyPlan[R]()
		p.cache.put(key, plan)
		return plan, nil
	}

	readable, err := p.gatherReadableIndexes(ctx, tx, recordType)
	if err != nil {
		return nil, err
	}

	candidates := p.generateCandidates(recordType, normalized, windows, readable, q.Sort)

	var best *Plan[R]
	var bestCost Cost
	for _, c := range candidates {
		cost, err := p.estimateCost(ctx, tx, c)
		if err != nil {
			return nil, err
		}
		c.Cost = cost

		if isUniqueEqualityScan(readable, c) {
			best = c
			break
		}
		if best == nil || cost.total() < bestCost.total() {
			best = c
			bestCost = cost
		}
	}
	if best == nil {
		best = &Plan[R]{Kind: FullScan, Predicate: normalized}
		best.Cost, _ = p.estimateCost(ctx, tx, best)
	}

	if q.Sort != nil && !best.PreservesSort {
		sortPlan := &Plan[R]{Kind: Sort, Child: best, Sort: q.Sort}
		sortPlan.Cost, _ = p.estimateCost(ctx, tx, sortPlan)
		best = sortPlan
	}
	if q.Limit > 0 {
		limitPlan := &Plan[R]{Kind: Limit, Child: best, LimitN: q.Limit}
		limitPlan.Cost, _ = p.estimateCost(ctx, tx, limitPlan)
		best = limitPlan
	}

	p.cache.put(key, best)
	return best, nil
}

func isUniqueEqualityScan[R any](readable map[string]metadata.Index[R], c *Plan[R]) bool {
	scan := c
	if scan.Kind == Filter {
		scan = scan.Child
	}
	if scan.Kind != IndexScan || scan.Window != nil {
		return false
	}
	idx, ok := readable[scan.IndexName]
	if !ok || !idx.Unique {
		return false
	}
	leafPaths := fieldaccessor.LeafPaths[R](idx.Expression)
	return len(scan.Grouping) == len(leafPaths) && len(leafPaths) > 0
}

func (p *Planner[R]) gatherReadableIndexes(ctx context.Context, tx kv.Tx, recordType string) (map[string]metadata.Index[R], error) {
	out := map[string]metadata.Index[R]{}
	for name, idx := range p.schema.Indexes {
		if !idx.AppliesTo(recordType) {
			continue
		}
		st, err := p.indexState.StateOf(ctx, tx, name)
		if err != nil {
			return nil, err
		}
		if st.IsReadable() {
			out[name] = idx
		}
	}
	return out, nil
}

// collectEqualities gathers path->value for top-level FieldCompare(Eq)
// conjuncts of an And predicate (or a bare leaf), matching spec §4.7's
// "prefix of ANDed equalities".
func collectEqualities[R any](pred Predicate[R]) map[string]tuple.Element {
	out := map[string]tuple.Element{}
	var conjuncts []Predicate[R]
	switch v := pred.(type) {
	case And[R]:
		conjuncts = v.Children
	default:
		conjuncts = []Predicate[R]{pred}
	}
	for _, c := range conjuncts {
		if fc, ok := c.(FieldCompare[R]); ok && fc.Op == Eq {
			out[fc.Path] = fc.Value
		}
	}
	return out
}

// collectRangeComparisons gathers every range comparison (Lt/Lte/Gt/Gte) a
// predicate places on each field path, for extractRangeWindows.
func collectRangeComparisons[R any](pred Predicate[R]) map[string][]FieldCompare[R] {
	out := map[string][]FieldCompare[R]{}
	var conjuncts []Predicate[R]
	switch v := pred.(type) {
	case And[R]:
		conjuncts = v.Children
	default:
		conjuncts = []Predicate[R]{pred}
	}
	for _, c := range conjuncts {
		fc, ok := c.(FieldCompare[R])
		if !ok {
			continue
		}
		switch fc.Op {
		case Lt, Lte, Gt, Gte:
			out[fc.Path] = append(out[fc.Path], fc)
		}
	}
	return out
}

// residualPredicate returns the conjuncts of pred an index scan matching
// consumedEq's equality paths (and, if windowPath is non-empty, the range
// comparisons on windowPath) does not already satisfy. An IndexScan plan
// carries no predicate field (spec §4.8), so any conjunct the matched key
// range doesn't pin on its own must still be evaluated after the scan.
func residualPredicate[R any](pred Predicate[R], consumedEq map[string]bool, windowPath string) Predicate[R] {
	var conjuncts []Predicate[R]
	switch v := pred.(type) {
	case And[R]:
		conjuncts = v.Children
	default:
		conjuncts = []Predicate[R]{pred}
	}

	var residual []Predicate[R]
	for _, c := range conjuncts {
		fc, ok := c.(FieldCompare[R])
		if !ok {
			residual = append(residual, c)
			continue
		}
		switch fc.Op {
		case Eq:
			if consumedEq[fc.Path] {
				continue
			}
		case Lt, Lte, Gt, Gte:
			if windowPath != "" && fc.Path == windowPath {
				continue
			}
		}
		residual = append(residual, c)
	}

	switch len(residual) {
	case 0:
		return nil
	case 1:
		return residual[0]
	default:
		return And[R]{Children: residual}
	}
}

// extractRangeWindows computes the intersection window per field with two
// or more range comparisons (spec §4.7 phase 2). empty is true if any
// field's window is provably unsatisfiable.
func extractRangeWindows[R any](pred Predicate[R]) (map[string]rangeindex.Window, bool) {
	byField := collectRangeComparisons(pred)
	windows := map[string]rangeindex.Window{}
	for path, comparisons := range byField {
		w := rangeindex.Unbounded()
		for _, fc := range comparisons {
			switch fc.Op {
			case Gt:
				w = w.IntersectLower(rangeindex.Bound{Value: fc.Value, Inclusive: false})
			case Gte:
				w = w.IntersectLower(rangeindex.Bound{Value: fc.Value, Inclusive: true})
			case Lt:
				w = w.IntersectUpper(rangeindex.Bound{Value: fc.Value, Inclusive: false})
			case Lte:
				w = w.IntersectUpper(rangeindex.Bound{Value: fc.Value, Inclusive: true})
			}
		}
		if w.IsEmpty() {
			return nil, true
		}
		windows[path] = w
	}
	return windows, false
}

// generateCandidates builds every candidate plan type the spec names,
// under the configured budget (spec §4.7 phase 4).
func (p *Planner[R]) generateCandidates(recordType string, pred Predicate[R], windows map[string]rangeindex.Window, readable map[string]metadata.Index[R], sort *SortSpec) []*Plan[R] {
	candidates := []*Plan[R]{{Kind: FullScan, Predicate: pred}}
	equalities := collectEqualities(pred)

	var singleIndexScans []*Plan[R]
	for name, idx := range readable {
		if !isPKAddressableKind(idx.Kind) {
			continue
		}
		leafPaths := fieldaccessor.LeafPaths[R](idx.Expression)
		if len(leafPaths) == 0 {
			continue
		}
		grouping := tuple.Tuple{}
		matched := 0
		for _, path := range leafPaths {
			v, ok := equalities[path]
			if !ok {
				break
			}
			grouping = append(grouping, v)
			matched++
		}
		if matched == 0 {
			continue
		}
		var window *rangeindex.Window
		windowPath := ""
		if matched < len(leafPaths) {
			if w, ok := windows[leafPaths[matched]]; ok {
				window = &w
				windowPath = leafPaths[matched]
			}
		}
		scan := &Plan[R]{
			Kind:          IndexScan,
			IndexName:     name,
			Grouping:      grouping,
			Window:        window,
			PreservesSort: sort != nil && indexOrderIsPrefixOfSort(leafPaths, sort),
		}

		consumedEq := make(map[string]bool, matched)
		for _, path := range leafPaths[:matched] {
			consumedEq[path] = true
		}
		plan := scan
		if residual := residualPredicate(pred, consumedEq, windowPath); residual != nil {
			plan = &Plan[R]{Kind: Filter, Child: scan, Predicate: residual, PreservesSort: scan.PreservesSort}
		}

		singleIndexScans = append(singleIndexScans, plan)
		candidates = append(candidates, plan)
		if len(candidates) >= p.budget.MaxPlans {
			return candidates
		}
	}

	candidates = append(candidates, p.generateRangeBoundPairs(windows, readable)...)

	if _, ok := pred.(And[R]); ok && len(singleIndexScans) >= 2 {
		candidates = append(candidates, &Plan[R]{Kind: Intersection, Children: singleIndexScans})
	}

	if or, ok := pred.(Or[R]); ok {
		branches := or.Children
		if len(branches) > p.budget.MaxDNFBranches {
			branches = branches[:p.budget.MaxDNFBranches]
		}
		var unionChildren []*Plan[R]
		matched := true
		for _, branch := range branches {
			branchEq := collectEqualities(branch)
			found := false
			for name, idx := range readable {
				if !isPKAddressableKind(idx.Kind) {
					continue
				}
				leafPaths := fieldaccessor.LeafPaths[R](idx.Expression)
				if len(leafPaths) != 1 {
					continue
				}
				if v, ok := branchEq[leafPaths[0]]; ok {
					scan := &Plan[R]{Kind: IndexScan, IndexName: name, Grouping: tuple.Tuple{v}}
					branchChild := scan
					if residual := residualPredicate(branch, map[string]bool{leafPaths[0]: true}, ""); residual != nil {
						branchChild = &Plan[R]{Kind: Filter, Child: scan, Predicate: residual}
					}
					unionChildren = append(unionChildren, branchChild)
					found = true
					break
				}
			}
			if !found {
				matched = false
				break
			}
		}
		if matched && len(unionChildren) == len(branches) && len(branches) > 0 {
			candidates = append(candidates, &Plan[R]{Kind: Union, Children: unionChildren})
		}
	}

	if len(candidates) > p.budget.MaxPlans {
		candidates = candidates[:p.budget.MaxPlans]
	}
	return candidates
}

// isPKAddressableKind reports whether an index's key layout is
// "evaluated-expression ++ primary-key" (spec §3 "Index key layouts"),
// the only shape IndexScan can recover a primary key from. Count and sum
// indexes key on grouping values alone; version indexes key on
// primary-key ++ versionstamp; vector and spatial have their own plan
// types and physical layouts entirely.
func isPKAddressableKind(k metadata.IndexKind) bool {
	switch k {
	case metadata.KindValue, metadata.KindPermuted, metadata.KindRank:
		return true
	default:
		return false
	}
}

// generateRangeBoundPairs builds the hybrid-intersection / single-scan
// plan a range-bound field gets, depending on which of its lowerBound /
// upperBound indexes are readable (spec §4.7 "Range-bound pairs", §4.6).
func (p *Planner[R]) generateRangeBoundPairs(windows map[string]rangeindex.Window, readable map[string]metadata.Index[R]) []*Plan[R] {
	type rangeIndexRef struct {
		name string
		idx  metadata.Index[R]
	}
	byParent := map[string]map[fieldaccessor.RangeComponent]rangeIndexRef{}
	for name, idx := range readable {
		if idx.Range == nil {
			continue
		}
		m, ok := byParent[idx.Range.ParentField]
		if !ok {
			m = map[fieldaccessor.RangeComponent]rangeIndexRef{}
			byParent[idx.Range.ParentField] = m
		}
		m[idx.Range.Component] = rangeIndexRef{name: name, idx: idx}
	}

	var out []*Plan[R]
	for parent, sides := range byParent {
		w, hasWindow := windows[parent+".lowerBound"]
		if !hasWindow {
			w, hasWindow = windows[parent+".upperBound"]
		}
		lower, hasLower := sides[fieldaccessor.LowerBound]
		upper, hasUpper := sides[fieldaccessor.UpperBound]

		switch {
		case hasLower && hasUpper:
			out = append(out,
				&Plan[R]{Kind: IndexScan, IndexName: lower.name, Window: windowPtr(w, hasWindow)},
				&Plan[R]{Kind: IndexScan, IndexName: upper.name, Window: windowPtr(w, hasWindow)},
			)
		case hasLower:
			out = append(out, &Plan[R]{Kind: IndexScan, IndexName: lower.name, Window: windowPtr(w, hasWindow)})
		case hasUpper:
			out = append(out, &Plan[R]{Kind: IndexScan, IndexName: upper.name, Window: windowPtr(w, hasWindow)})
		}
	}
	return out
}

func windowPtr(w rangeindex.Window, has bool) *rangeindex.Window {
	if !has {
		return nil
	}
	return &w
}

// indexOrderIsPrefixOfSort reports whether an index's leading fields match
// the requested sort order's leading fields, in which case the scan
// already emits rows in that order (spec §4.7 "Sort shortcut").
func indexOrderIsPrefixOfSort(leafPaths []string, sort *SortSpec) bool {
	if len(sort.Fields) == 0 || len(leafPaths) < len(sort.Fields) {
		return false
	}
	for i, f := range sort.Fields {
		if f.Descending {
			return false // an ascending-encoded index key can't satisfy a descending sort
		}
		if leafPaths[i] != f.Path {
			return false
		}
	}
	return true
}
