// Package indexstate implements the per-index lifecycle state manager (spec
// §3 "Index state", §4.5). State transitions are compare-and-set within the
// caller's transaction so planner decisions and writer maintenance stay
// consistent across a query's scans (spec §4.5, §5).
package indexstate

import (
	"context"

	"github.com/erigontech/fdbrecord/apperr"
	"github.com/erigontech/fdbrecord/kv"
	"github.com/erigontech/fdbrecord/tuple"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// State is one point in an index's lifecycle (spec §3).
type State uint8

const (
	Disabled State = iota
	WriteOnly
	Readable
	ReadableUniquePending
)

func (s State) String() string {
	switch s {
	case Disabled:
		return "DISABLED"
	case WriteOnly:
		return "WRITE_ONLY"
	case Readable:
		return "READABLE"
	case ReadableUniquePending:
		return "READABLE_UNIQUE_PENDING"
	default:
		return "UNKNOWN"
	}
}

// IsReadable reports whether a query planner may consult this index (spec
// §4.5 invariant: "READABLE or READABLE_UNIQUE_PENDING").
func (s State) IsReadable() bool { return s == Readable || s == ReadableUniquePending }

// IsMaintainable reports whether a writer must maintain this index (spec
// §4.5 invariant: "WRITE_ONLY, READABLE, READABLE_UNIQUE_PENDING").
func (s State) IsMaintainable() bool {
	return s == WriteOnly || s == Readable || s == ReadableUniquePending
}

// Manager reads and transitions index state under S/<index-name> (spec §3).
type Manager struct {
	subspace tuple.Subspace
	logger   *zap.Logger
}

func NewManager(subspace tuple.Subspace, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{subspace: subspace, logger: logger}
}

func (m *Manager) key(name string) []byte {
	return m.subspace.Pack(tuple.Tuple{tuple.String(name)})
}

// StateOf reads name's state within tx. An index with no persisted entry is
// DISABLED (spec §3 "created DISABLED").
func (m *Manager) StateOf(ctx context.Context, tx kv.Tx, name string) (State, error) {
	val, err := tx.Get(ctx, m.key(name), false)
	if err != nil {
		return Disabled, errors.Wrapf(err, "indexstate: read %q", name)
	}
	if val == nil {
		return Disabled, nil
	}
	if len(val) != 1 {
		return Disabled, apperr.NewInternal("corrupt index state entry").WithIndex(name)
	}
	return State(val[0]), nil
}

// StatesOf batches reads of multiple index names within one transaction, so
// a planner's view of which indexes are readable is internally consistent
// (spec §4.5).
func (m *Manager) StatesOf(ctx context.Context, tx kv.Tx, names []string) (map[string]State, error) {
	out := make(map[string]State, len(names))
	for _, name := range names {
		st, err := m.StateOf(ctx, tx, name)
		if err != nil {
			return nil, err
		}
		out[name] = st
	}
	return out, nil
}

// Transition compares-and-sets name's state from `from` to `to`, failing
// with ConcurrentStateChange if the current state does not match `from`
// (spec §4.5).
func (m *Manager) Transition(ctx context.Context, tx kv.Tx, name string, from, to State) error {
	cur, err := m.StateOf(ctx, tx, name)
	if err != nil {
		return err
	}
	if cur != from {
		return errors.Wrapf(apperr.ErrConcurrentStateChange, "index %q: expected state %s, found %s", name, from, cur)
	}
	tx.Set(m.key(name), []byte{byte(to)})
	m.logger.Debug("index state transition", zap.String("index", name), zap.String("from", from.String()), zap.String("to", to.String()))
	return nil
}

// Create initializes a brand-new index in DISABLED state (spec §3
// lifecycle: "Index: created DISABLED").
func (m *Manager) Create(ctx context.Context, tx kv.Tx, name string) error {
	cur, err := m.StateOf(ctx, tx, name)
	if err != nil {
		return err
	}
	if cur != Disabled {
		return errors.Wrapf(apperr.ErrConcurrentStateChange, "index %q already has state %s", name, cur)
	}
	tx.Set(m.key(name), []byte{byte(Disabled)})
	return nil
}

// Rebuild reverts a READABLE (or READABLE_UNIQUE_PENDING) index back to
// WRITE_ONLY, the one permitted non-monotonic transition (spec §3
// "administrative rebuild"). It does not clear the index's built_ranges
// watermark, and onlineindex.Builder has no step that clears it: a Builder
// started afterwards resumes from the existing watermark.
func (m *Manager) Rebuild(ctx context.Context, tx kv.Tx, name string) error {
	cur, err := m.StateOf(ctx, tx, name)
	if err != nil {
		return err
	}
	if cur != Readable && cur != ReadableUniquePending {
		return errors.Wrapf(apperr.ErrConcurrentStateChange, "index %q: rebuild requires READABLE, found %s", name, cur)
	}
	tx.Set(m.key(name), []byte{byte(WriteOnly)})
	m.logger.Info("administrative index rebuild", zap.String("index", name), zap.String("from", cur.String()))
	return nil
}
