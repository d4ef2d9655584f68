package planner

import (
	"context"
	"math"

	"github.com/erigontech/fdbrecord/kv"
	"github.com/erigontech/fdbrecord/metadata"
)

// Heuristic selectivities used when no statistics are present for an index
// (spec §4.7 phase 5: "equality ≈ 0.01, range ≈ 0.33, startsWith ≈ 0.1").
// startsWith has no heuristic constant here because generateCandidates never
// turns a StartsWith comparison into an IndexScan's grouping prefix (only
// FieldCompare equalities feed the equality-prefix match); StartsWith stays
// an in-process Filter/FullScan predicate, so its selectivity never needs
// estimating against an index scan.
const (
	heuristicEqualitySelectivity = 0.01
	heuristicRangeSelectivity    = 0.33
	selectivityEpsilon           = 1e-6
	indexScanIOFactor            = 1.0
	fullScanIOFactor             = 4.0 // a full scan pays for every record's bytes, not just a key
	sortCostPerRow               = 1.0

	// defaultTotalRows is used when no statistics snapshot is available to
	// estimate the record type's size; it only affects relative plan
	// ordering, never correctness.
	defaultTotalRows int64 = 100000
)

func clampSelectivity(s float64) float64 {
	if s < selectivityEpsilon {
		return selectivityEpsilon
	}
	if s > 1 {
		return 1
	}
	return s
}

// estimateTotalRows approximates the record type's row count from any one
// attached index's observed entry count (a reasonable proxy since every
// value index roughly tracks the save rate), falling back to a constant
// default when no statistics manager is attached or no index has been
// observed yet.
func (p *Planner[R]) estimateTotalRows(ctx context.Context, tx kv.Tx) int64 {
	if p.statsMgr == nil {
		return defaultTotalRows
	}
	for name, idx := range p.schema.Indexes {
		if idx.Kind != metadata.KindValue {
			continue
		}
		snap, err := p.statsMgr.Load(ctx, tx, name)
		if err != nil || snap == nil {
			continue
		}
		if snap.EntryCount > 0 {
			return snap.EntryCount
		}
	}
	return defaultTotalRows
}

// selectivity estimates the fraction of rows an IndexScan plan's grouping +
// window selects, preferring the index's HyperLogLog distinct-count
// statistic over the flat heuristic when available.
func (p *Planner[R]) selectivity(ctx context.Context, tx kv.Tx, plan *Plan[R]) float64 {
	sel := 1.0
	if len(plan.Grouping) > 0 {
		equalitySel := heuristicEqualitySelectivity
		if p.statsMgr != nil {
			if snap, err := p.statsMgr.Load(ctx, tx, plan.IndexName); err == nil && snap != nil && snap.HLL != nil {
				if distinct := snap.HLL.Estimate(); distinct > 0 {
					equalitySel = 1.0 / float64(distinct)
				}
			}
		}
		// one equality factor per bound grouping element
		for range plan.Grouping {
			sel *= equalitySel
		}
	}
	if plan.Window != nil {
		sel *= heuristicRangeSelectivity
	}
	return clampSelectivity(sel)
}

// estimateCost computes {io_cost, cpu_cost, rows} for plan, recursing into
// children (spec §4.7 phase 5).
func (p *Planner[R]) estimateCost(ctx context.Context, tx kv.Tx, plan *Plan[R]) (Cost, error) {
	switch plan.Kind {
	case Empty:
		return Cost{}, nil

	case FullScan:
		rows := p.estimateTotalRows(ctx, tx)
		return Cost{IOCost: float64(rows) * fullScanIOFactor, CPUCost: float64(rows), Rows: rows}, nil

	case IndexScan:
		total := p.estimateTotalRows(ctx, tx)
		sel := p.selectivity(ctx, tx, plan)
		rows := int64(math.Ceil(float64(total) * sel))
		if rows < 1 {
			rows = 1
		}
		return Cost{IOCost: float64(rows) * indexScanIOFactor, CPUCost: float64(rows), Rows: rows}, nil

	case VectorTopK:
		rows := int64(plan.VectorK)
		if rows < 1 {
			rows = 1
		}
		return Cost{IOCost: float64(rows), CPUCost: float64(rows) * math.Log2(float64(rows)+1), Rows: rows}, nil

	case Intersection:
		var io, cpu float64
		minRows := int64(math.MaxInt64)
		for _, c := range plan.Children {
			cc, err := p.estimateCost(ctx, tx, c)
			if err != nil {
				return Cost{}, err
			}
			io += cc.IOCost
			cpu += cc.CPUCost
			if cc.Rows < minRows {
				minRows = cc.Rows
			}
		}
		if minRows == int64(math.MaxInt64) {
			minRows = 0
		}
		return Cost{IOCost: io, CPUCost: cpu, Rows: minRows}, nil

	case Union:
		var io, cpu float64
		var rows int64
		for _, c := range plan.Children {
			cc, err := p.estimateCost(ctx, tx, c)
			if err != nil {
				return Cost{}, err
			}
			io += cc.IOCost
			cpu += cc.CPUCost
			rows += cc.Rows
		}
		return Cost{IOCost: io, CPUCost: cpu, Rows: rows}, nil

	case Filter:
		cc, err := p.estimateCost(ctx, tx, plan.Child)
		if err != nil {
			return Cost{}, err
		}
		cc.CPUCost += float64(cc.Rows) * 0.1
		return cc, nil

	case Sort:
		cc, err := p.estimateCost(ctx, tx, plan.Child)
		if err != nil {
			return Cost{}, err
		}
		if !plan.Child.PreservesSort {
			n := float64(cc.Rows)
			if n > 1 {
				cc.CPUCost += n * math.Log2(n) * sortCostPerRow
			}
		}
		return cc, nil

	case Limit:
		cc, err := p.estimateCost(ctx, tx, plan.Child)
		if err != nil {
			return Cost{}, err
		}
		if plan.LimitN > 0 && int64(plan.LimitN) < cc.Rows {
			frac := float64(plan.LimitN) / float64(cc.Rows)
			cc.IOCost *= frac
			cc.CPUCost *= frac
			cc.Rows = int64(plan.LimitN)
		}
		return cc, nil

	default:
		return Cost{}, nil
	}
}
