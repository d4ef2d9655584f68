package vector

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"github.com/erigontech/fdbrecord/kv"
	"github.com/erigontech/fdbrecord/metadata"
	"github.com/erigontech/fdbrecord/tuple"
)

// graph is the KV-backed handle for one vector index's HNSW structure. All
// state (vectors, per-layer adjacency, entry point) lives under subspace;
// graph itself holds no node data in memory beyond the scope of one call.
type graph struct {
	subspace tuple.Subspace
	opts     metadata.VectorOptions
	vecSub   tuple.Subspace
	edgeSub  tuple.Subspace
	entrySub tuple.Subspace
}

func newGraph(subspace tuple.Subspace, opts metadata.VectorOptions) *graph {
	if opts.M <= 0 {
		opts.M = 16
	}
	if opts.EfConstruction <= 0 {
		opts.EfConstruction = 100
	}
	if opts.EfSearch <= 0 {
		opts.EfSearch = 50
	}
	if opts.LevelMultiplier <= 0 {
		opts.LevelMultiplier = 1 / math.Ln2
	}
	return &graph{
		subspace: subspace,
		opts:     opts,
		vecSub:   subspace.Sub(tuple.Tuple{tuple.String("vec")}),
		edgeSub:  subspace.Sub(tuple.Tuple{tuple.String("edges")}),
		entrySub: subspace.Sub(tuple.Tuple{tuple.String("entry")}),
	}
}

func (g *graph) distance(a, b []float64) float64 {
	switch g.opts.Distance {
	case metadata.DistanceCosine:
		var dot, na, nb float64
		for i := range a {
			dot += a[i] * b[i]
			na += a[i] * a[i]
			nb += b[i] * b[i]
		}
		if na == 0 || nb == 0 {
			return 1
		}
		return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	case metadata.DistanceDotProduct:
		var dot float64
		for i := range a {
			dot += a[i] * b[i]
		}
		return -dot
	default: // DistanceEuclidean
		var sum float64
		for i := range a {
			d := a[i] - b[i]
			sum += d * d
		}
		return math.Sqrt(sum)
	}
}

func (g *graph) sampleLevel() int {
	u := rand.Float64()
	if u <= 0 {
		u = math.SmallestNonzeroFloat64
	}
	return int(math.Floor(-math.Log(u) * g.opts.LevelMultiplier))
}

func (g *graph) entryKey() []byte { return g.entrySub.Pack(tuple.Tuple{}) }

func (g *graph) readEntry(ctx context.Context, tx kv.Tx) (pk tuple.Tuple, topLayer int, ok bool, err error) {
	val, err := tx.Get(ctx, g.entryKey(), false)
	if err != nil || val == nil {
		return nil, 0, false, err
	}
	pk, topLayer, ok = decodeEntry(val)
	return pk, topLayer, ok, nil
}

func (g *graph) writeEntry(tx kv.Tx, pk tuple.Tuple, topLayer int) {
	tx.Set(g.entryKey(), encodeEntry(pk, topLayer))
}

func (g *graph) clearEntry(tx kv.Tx) { tx.Clear(g.entryKey()) }

func (g *graph) vecKey(pk tuple.Tuple) []byte { return g.vecSub.Pack(pk) }

func (g *graph) readVector(ctx context.Context, tx kv.Tx, pk tuple.Tuple) (v []float64, layer int, ok bool, err error) {
	val, err := tx.Get(ctx, g.vecKey(pk), false)
	if err != nil || val == nil {
		return nil, 0, false, err
	}
	v, layer, ok = decodeVector(val)
	return v, layer, ok, nil
}

func (g *graph) edgeKey(layer int, pk tuple.Tuple) []byte {
	return g.edgeSub.Pack(tuple.Concat(tuple.Tuple{tuple.Int(int64(layer))}, pk))
}

func (g *graph) readNeighbors(ctx context.Context, tx kv.Tx, layer int, pk tuple.Tuple) ([]tuple.Tuple, error) {
	val, err := tx.Get(ctx, g.edgeKey(layer, pk), false)
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, nil
	}
	return decodeNeighbors(val)
}

func (g *graph) writeNeighbors(tx kv.Tx, layer int, pk tuple.Tuple, neighbors []tuple.Tuple) {
	if len(neighbors) == 0 {
		tx.Clear(g.edgeKey(layer, pk))
		return
	}
	tx.Set(g.edgeKey(layer, pk), encodeNeighbors(neighbors))
}

type candidate struct {
	pk   tuple.Tuple
	dist float64
}

// searchLayer runs beam search for query starting from entry, within layer,
// returning up to ef nearest candidates sorted ascending by distance (spec
// §4.4 HNSW "greedy descent through upper layers, beam search at the base
// layer").
func (g *graph) searchLayer(ctx context.Context, tx kv.Tx, entry tuple.Tuple, query []float64, layer, ef int) ([]candidate, error) {
	entryVec, _, ok, err := g.readVector(ctx, tx, entry)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	visited := map[string]bool{string(tuple.Encode(entry)): true}
	entryDist := g.distance(query, entryVec)
	candidates := []candidate{{entry, entryDist}}
	result := []candidate{{entry, entryDist}}

	for len(candidates) > 0 {
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
		c := candidates[0]
		candidates = candidates[1:]

		worstResult := result[len(result)-1].dist
		if c.dist > worstResult && len(result) >= ef {
			break
		}

		neighbors, err := g.readNeighbors(ctx, tx, layer, c.pk)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			key := string(tuple.Encode(n))
			if visited[key] {
				continue
			}
			visited[key] = true
			nv, _, ok, err := g.readVector(ctx, tx, n)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			d := g.distance(query, nv)
			if len(result) < ef || d < result[len(result)-1].dist {
				candidates = append(candidates, candidate{n, d})
				result = insertSorted(result, candidate{n, d}, ef)
			}
		}
	}
	return result, nil
}

func insertSorted(result []candidate, c candidate, ef int) []candidate {
	i := sort.Search(len(result), func(i int) bool { return result[i].dist >= c.dist })
	result = append(result, candidate{})
	copy(result[i+1:], result[i:])
	result[i] = c
	if len(result) > ef {
		result = result[:ef]
	}
	return result
}

func selectNeighbors(candidates []candidate, m int) []tuple.Tuple {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
	if len(candidates) > m {
		candidates = candidates[:m]
	}
	out := make([]tuple.Tuple, len(candidates))
	for i, c := range candidates {
		out[i] = c.pk
	}
	return out
}

// Insert adds pk/vector to the graph (spec §4.4 HNSW insert algorithm).
func (g *graph) Insert(ctx context.Context, tx kv.Tx, pk tuple.Tuple, vec []float64) error {
	level := g.sampleLevel()
	epPk, topLayer, haveEntry, err := g.readEntry(ctx, tx)
	if err != nil {
		return err
	}
	tx.Set(g.vecKey(pk), encodeVector(vec, level))
	if !haveEntry {
		g.writeEntry(tx, pk, level)
		return nil
	}

	curr := epPk
	for lc := topLayer; lc > level; lc-- {
		res, err := g.searchLayer(ctx, tx, curr, vec, lc, 1)
		if err != nil {
			return err
		}
		if len(res) > 0 {
			curr = res[0].pk
		}
	}
	for lc := min(level, topLayer); lc >= 0; lc-- {
		res, err := g.searchLayer(ctx, tx, curr, vec, lc, g.opts.EfConstruction)
		if err != nil {
			return err
		}
		neighbors := selectNeighbors(res, g.opts.M)
		g.writeNeighbors(tx, lc, pk, neighbors)
		for _, n := range neighbors {
			existing, err := g.readNeighbors(ctx, tx, lc, n)
			if err != nil {
				return err
			}
			existing = appendUnique(existing, pk)
			if len(existing) > g.opts.M {
				existing, err = g.pruneNeighbors(ctx, tx, n, existing, lc)
				if err != nil {
					return err
				}
			}
			g.writeNeighbors(tx, lc, n, existing)
		}
		if len(res) > 0 {
			curr = res[0].pk
		}
	}
	if level > topLayer {
		g.writeEntry(tx, pk, level)
	}
	return nil
}

func (g *graph) pruneNeighbors(ctx context.Context, tx kv.Tx, of tuple.Tuple, neighbors []tuple.Tuple, layer int) ([]tuple.Tuple, error) {
	ofVec, _, ok, err := g.readVector(ctx, tx, of)
	if err != nil || !ok {
		return neighbors, err
	}
	cands := make([]candidate, 0, len(neighbors))
	for _, n := range neighbors {
		nv, _, ok, err := g.readVector(ctx, tx, n)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		cands = append(cands, candidate{n, g.distance(ofVec, nv)})
	}
	return selectNeighbors(cands, g.opts.M), nil
}

func appendUnique(list []tuple.Tuple, pk tuple.Tuple) []tuple.Tuple {
	enc := tuple.Encode(pk)
	for _, e := range list {
		if string(tuple.Encode(e)) == string(enc) {
			return list
		}
	}
	return append(list, pk)
}

// Delete removes pk from the graph, unlinking it from every neighbor at
// every layer it participated in, and promotes a neighbor to entry point if
// pk was the entry point (spec §4.4 "entry-point promotion on delete").
func (g *graph) Delete(ctx context.Context, tx kv.Tx, pk tuple.Tuple) error {
	_, layer, ok, err := g.readVector(ctx, tx, pk)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	neighborsByLayer := make([][]tuple.Tuple, layer+1)
	for lc := 0; lc <= layer; lc++ {
		neighbors, err := g.readNeighbors(ctx, tx, lc, pk)
		if err != nil {
			return err
		}
		neighborsByLayer[lc] = neighbors
		for _, n := range neighbors {
			nn, err := g.readNeighbors(ctx, tx, lc, n)
			if err != nil {
				return err
			}
			nn = removeTuple(nn, pk)
			g.writeNeighbors(tx, lc, n, nn)
		}
		tx.Clear(g.edgeKey(lc, pk))
	}
	tx.Clear(g.vecKey(pk))

	epPk, topLayer, haveEntry, err := g.readEntry(ctx, tx)
	if err != nil {
		return err
	}
	if haveEntry && tuple.Compare(epPk, pk) == 0 {
		// Replace with a neighbor from the highest layer that still has one,
		// not the first one found scanning up from layer 0, so the new entry
		// point's recorded top layer matches where it actually sits.
		var promoted tuple.Tuple
		for lc := layer; lc >= 0 && promoted == nil; lc-- {
			for _, n := range neighborsByLayer[lc] {
				promoted = n
				break
			}
		}
		if promoted != nil {
			newTop := topLayer
			if _, promotedTop, ok, err := g.readVector(ctx, tx, promoted); err != nil {
				return err
			} else if ok {
				newTop = promotedTop
			}
			g.writeEntry(tx, promoted, newTop)
		} else {
			g.clearEntry(tx)
		}
	}
	return nil
}

func removeTuple(list []tuple.Tuple, pk tuple.Tuple) []tuple.Tuple {
	out := list[:0]
	enc := tuple.Encode(pk)
	for _, e := range list {
		if string(tuple.Encode(e)) != string(enc) {
			out = append(out, e)
		}
	}
	return out
}

// Search returns the k nearest neighbors to query (spec §4.4 "vector top-k
// scan").
func (g *graph) Search(ctx context.Context, tx kv.Tx, query []float64, k int) ([]candidate, error) {
	epPk, topLayer, haveEntry, err := g.readEntry(ctx, tx)
	if err != nil || !haveEntry {
		return nil, err
	}
	curr := epPk
	for lc := topLayer; lc > 0; lc-- {
		res, err := g.searchLayer(ctx, tx, curr, query, lc, 1)
		if err != nil {
			return nil, err
		}
		if len(res) > 0 {
			curr = res[0].pk
		}
	}
	ef := g.opts.EfSearch
	if ef < k {
		ef = k
	}
	res, err := g.searchLayer(ctx, tx, curr, query, 0, ef)
	if err != nil {
		return nil, err
	}
	if len(res) > k {
		res = res[:k]
	}
	return res, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
