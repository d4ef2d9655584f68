package planner

import (
	"github.com/erigontech/fdbrecord/rangeindex"
	"github.com/erigontech/fdbrecord/tuple"
)

// Kind is the physical plan node type a Plan carries (spec §4.8 "Plan
// types").
type Kind uint8

const (
	FullScan Kind = iota
	IndexScan
	Intersection
	Union
	Filter
	Sort
	Limit
	VectorTopK
	Empty
)

func (k Kind) String() string {
	switch k {
	case FullScan:
		return "FullScan"
	case IndexScan:
		return "IndexScan"
	case Intersection:
		return "Intersection"
	case Union:
		return "Union"
	case Filter:
		return "Filter"
	case Sort:
		return "Sort"
	case Limit:
		return "Limit"
	case VectorTopK:
		return "VectorTopK"
	case Empty:
		return "Empty"
	default:
		return "Unknown"
	}
}

// Cost is a plan's estimated resource usage (spec §4.7 phase 5).
type Cost struct {
	IOCost  float64
	CPUCost float64
	Rows    int64
}

func (c Cost) total() float64 { return c.IOCost + c.CPUCost }

// Plan is a node in a physical query plan tree (spec §4.8). It is a tagged
// struct rather than per-kind types, the way metadata.Index is tagged by
// Kind, since execplan.Build dispatches on Kind exactly the way
// recordstore.buildMaintainers dispatches on metadata.IndexKind.
type Plan[R any] struct {
	Kind Kind

	// FullScan, Filter: the post-filter predicate (nil means match-all).
	Predicate Predicate[R]

	// Filter, Sort, Limit: the single child plan.
	Child *Plan[R]

	// Intersection, Union: the child plans merged on primary key.
	Children []*Plan[R]

	// IndexScan: which index, and the window/grouping scoping the scan.
	IndexName string
	Grouping  tuple.Tuple
	Window    *rangeindex.Window
	Covering  bool

	// Sort: the requested order.
	Sort *SortSpec

	// Limit: the row cap.
	LimitN int

	// VectorTopK: the query vector and k.
	VectorQuery []float64
	VectorK     int

	PreservesSort bool
	Cost          Cost
}

func emptyPlan[R any]() *Plan[R] { return &Plan[R]{Kind: Empty} }
