package indexstate

import (
	"context"
	"testing"

	"github.com/erigontech/fdbrecord/apperr"
	"github.com/erigontech/fdbrecord/kv/memkv"
	"github.com/erigontech/fdbrecord/tuple"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestLifecycleTransitions(t *testing.T) {
	ctx := context.Background()
	store := memkv.New()
	m := NewManager(tuple.NewSubspace([]byte("S")), nil)

	tx, _ := store.BeginTransaction(ctx)
	st, err := m.StateOf(ctx, tx, "byCity")
	require.NoError(t, err)
	require.Equal(t, Disabled, st)

	require.NoError(t, m.Create(ctx, tx, "byCity"))
	require.NoError(t, m.Transition(ctx, tx, "byCity", Disabled, WriteOnly))
	require.NoError(t, m.Transition(ctx, tx, "byCity", WriteOnly, Readable))
	require.NoError(t, tx.Commit(ctx))

	tx2, _ := store.BeginTransaction(ctx)
	st, err = m.StateOf(ctx, tx2, "byCity")
	require.NoError(t, err)
	require.Equal(t, Readable, st)
	require.True(t, st.IsReadable())
	require.True(t, st.IsMaintainable())
}

func TestConcurrentStateChangeRejected(t *testing.T) {
	ctx := context.Background()
	store := memkv.New()
	m := NewManager(tuple.NewSubspace([]byte("S")), nil)

	tx, _ := store.BeginTransaction(ctx)
	err := m.Transition(ctx, tx, "byCity", WriteOnly, Readable)
	require.True(t, errors.Is(err, apperr.ErrConcurrentStateChange))
}

func TestRebuildRevertsToWriteOnly(t *testing.T) {
	ctx := context.Background()
	store := memkv.New()
	m := NewManager(tuple.NewSubspace([]byte("S")), nil)

	tx, _ := store.BeginTransaction(ctx)
	require.NoError(t, m.Create(ctx, tx, "byCity"))
	require.NoError(t, m.Transition(ctx, tx, "byCity", Disabled, WriteOnly))
	require.NoError(t, m.Transition(ctx, tx, "byCity", WriteOnly, Readable))
	require.NoError(t, m.Rebuild(ctx, tx, "byCity"))
	st, err := m.StateOf(ctx, tx, "byCity")
	require.NoError(t, err)
	require.Equal(t, WriteOnly, st)
}
