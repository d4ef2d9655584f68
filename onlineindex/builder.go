package onlineindex

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/erigontech/fdbrecord/apperr"
	"github.com/erigontech/fdbrecord/fieldaccessor"
	"github.com/erigontech/fdbrecord/index"
	"github.com/erigontech/fdbrecord/indexstate"
	"github.com/erigontech/fdbrecord/kv"
	"github.com/erigontech/fdbrecord/metrics"
	"github.com/erigontech/fdbrecord/tuple"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Store is the slice of a record store a Builder backfills from: the raw
// record subspace plus the target index's own maintainer, resolved by
// name rather than imported as a concrete type so onlineindex stays
// decoupled from recordstore the same way execplan's Store does.
type Store[R any] interface {
	DataSubspace() tuple.Subspace
	Serializer() fieldaccessor.Serializer[R]
	Maintainer(name string) (index.Maintainer[R], bool)
}

// Config is a Builder's tunables (spec §4.10): batch size, inter-batch
// throttle, and the key-count estimate Progress divides by. There is no
// concurrency setting; a Builder runs its batches one after another.
type Config struct {
	BatchSize          int
	ThrottleDelay      time.Duration
	EstimatedTotalKeys int64
}

// DefaultConfig returns conservative defaults: small batches, a gentle
// throttle, sized to stay well inside the KV store's transaction-duration
// cap (spec §5 "Timeouts").
func DefaultConfig() Config {
	return Config{BatchSize: 500, ThrottleDelay: 50 * time.Millisecond, EstimatedTotalKeys: 100000}
}

// Builder drives one index's WRITE_ONLY backfill to READABLE (spec §4.10).
type Builder[R any] struct {
	kvStore    kv.KVStore
	store      Store[R]
	indexState *indexstate.Manager
	cfg        Config
	logger     *zap.Logger
	limiter    *rate.Limiter
	ranges     *builtRanges
	metrics    *metrics.Registry
}

// Option configures a Builder.
type Option[R any] func(*Builder[R])

// WithLogger overrides the builder's nop-default logger.
func WithLogger[R any](logger *zap.Logger) Option[R] {
	return func(b *Builder[R]) { b.logger = logger }
}

// WithMetrics records batch latency and progress against reg as the build
// runs. Without this option the builder tracks progress in memory only.
func WithMetrics[R any](reg *metrics.Registry) Option[R] {
	return func(b *Builder[R]) { b.metrics = reg }
}

// New builds a Builder for indexName. ranges is scoped beneath the target
// index's own name so two concurrently-building indexes never collide.
func New[R any](kvStore kv.KVStore, store Store[R], indexState *indexstate.Manager, indexName string, rangesSub tuple.Subspace, cfg Config, opts ...Option[R]) *Builder[R] {
	b := &Builder[R]{
		kvStore:    kvStore,
		store:      store,
		indexState: indexState,
		cfg:        cfg,
		logger:     zap.NewNop(),
		limiter:    rate.NewLimiter(rate.Every(cfg.ThrottleDelay), 1),
		ranges:     newBuiltRanges(rangesSub),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Progress reports covered_keys / estimated_total_keys from the
// in-memory bitmap mirror (spec "Progress ... exposed as a state query").
func (b *Builder[R]) Progress() float64 {
	return b.ranges.progress(b.cfg.BatchSize, b.cfg.EstimatedTotalKeys)
}

func (b *Builder[R]) recordProgress(indexName string) {
	if b.metrics == nil {
		return
	}
	b.metrics.IndexBuildProgress.WithLabelValues(indexName).Set(b.Progress())
}

// Run executes the full protocol for indexName: WRITE_ONLY transition,
// batched backfill with retry and throttle, and the final READABLE
// transition (spec §4.10 steps 1-5). It returns once the index is
// READABLE, resuming from any prior built_ranges watermark if this is a
// restart.
func (b *Builder[R]) Run(ctx context.Context, indexName string) error {
	if err := b.ensureWriteOnly(ctx, indexName); err != nil {
		return err
	}

	for {
		done, err := b.runBatchWithRetry(ctx, indexName)
		if err != nil {
			return err
		}
		if done {
			break
		}
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	return b.finalize(ctx, indexName)
}

func (b *Builder[R]) ensureWriteOnly(ctx context.Context, indexName string) error {
	tx, err := b.kvStore.BeginTransaction(ctx)
	if err != nil {
		return err
	}
	defer tx.Cancel()

	state, err := b.indexState.StateOf(ctx, tx, indexName)
	if err != nil {
		return err
	}
	switch state {
	case indexstate.Disabled:
		if err := b.indexState.Transition(ctx, tx, indexName, indexstate.Disabled, indexstate.WriteOnly); err != nil {
			return err
		}
		return tx.Commit(ctx)
	case indexstate.WriteOnly:
		return nil // resuming an interrupted build
	default:
		return apperr.NewInternal("online build requested for an index not DISABLED or WRITE_ONLY").WithIndex(indexName)
	}
}

// runBatchWithRetry wraps one batch attempt in exponential backoff, so a
// commit conflict or timeout retries the same not-yet-committed work
// rather than surfacing to the caller (spec "On retriable failure ...
// exponentially back off and retry the same batch; already-committed
// batches are idempotent because the marker makes them skippable").
func (b *Builder[R]) runBatchWithRetry(ctx context.Context, indexName string) (done bool, err error) {
	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	op := func() error {
		d, e := b.runBatch(ctx, indexName)
		done = d
		if e != nil && isRetriable(e) {
			return e
		}
		if e != nil {
			return backoff.Permanent(e)
		}
		return nil
	}
	if retryErr := backoff.Retry(op, policy); retryErr != nil {
		return false, retryErr
	}
	return done, nil
}

// runBatch scans up to BatchSize records starting at the persisted
// watermark, feeds each through the target maintainer's Scan path, and
// advances the watermark, all in one transaction (spec §4.10 step 2). done
// is true once a batch finds no records, meaning the watermark has
// reached the end of the record subspace.
func (b *Builder[R]) runBatch(ctx context.Context, indexName string) (done bool, err error) {
	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.IndexBuildBatchLatency.WithLabelValues(indexName).Observe(time.Since(start).Seconds())
		}
	}()

	tx, err := b.kvStore.BeginTransaction(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Cancel()

	maintainer, ok := b.store.Maintainer(indexName)
	if !ok {
		return false, apperr.ErrUnknownIndex
	}

	dataSub := b.store.DataSubspace()
	_, subEnd := dataSub.Range()

	watermark, err := b.ranges.load(ctx, tx)
	if err != nil {
		return false, err
	}
	begin := watermark
	if begin == nil {
		begin, _ = dataSub.Range()
	}

	it, err := tx.GetRange(ctx, begin, subEnd, b.cfg.BatchSize, false)
	if err != nil {
		return false, err
	}
	defer it.Close()

	var lastKey []byte
	count := 0
	for {
		pair, ok, err := it.Next()
		if err != nil {
			return false, err
		}
		if !ok {
			break
		}
		pk, err := dataSub.Unpack(pair.Key)
		if err != nil {
			return false, err
		}
		rec, err := b.store.Serializer().Deserialize(pair.Value)
		if err != nil {
			return false, err
		}
		if err := maintainer.Scan(ctx, tx, rec, pk); err != nil {
			return false, err
		}
		lastKey = pair.Key
		count++
	}

	if count == 0 {
		return true, nil
	}

	b.ranges.advance(tx, successor(lastKey))
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	b.logger.Debug("online index batch committed", zap.String("index", indexName), zap.Int("records", count))
	b.recordProgress(indexName)
	return false, nil
}

// finalize transitions WRITE_ONLY to READABLE, verifying no gap remains:
// a fresh batch scan from the persisted watermark must find nothing (spec
// §4.10 step 5 "verifies no uncovered gap exists").
func (b *Builder[R]) finalize(ctx context.Context, indexName string) error {
	tx, err := b.kvStore.BeginTransaction(ctx)
	if err != nil {
		return err
	}
	defer tx.Cancel()

	dataSub := b.store.DataSubspace()
	watermark, err := b.ranges.load(ctx, tx)
	if err != nil {
		return err
	}
	begin := watermark
	if begin == nil {
		begin, _ = dataSub.Range()
	}
	_, end := dataSub.Range()
	it, err := tx.GetRange(ctx, begin, end, 1, false)
	if err != nil {
		return err
	}
	_, hasMore, err := it.Next()
	it.Close()
	if err != nil {
		return err
	}
	if hasMore {
		return apperr.NewInternal("online build: gap remains past the watermark at finalize").WithIndex(indexName)
	}

	if err := b.indexState.Transition(ctx, tx, indexName, indexstate.WriteOnly, indexstate.Readable); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// isRetriable reports whether err represents a transient KV condition the
// builder should retry (spec §7 category 2 "commit conflict, timeout,
// unavailable"), as opposed to a contract violation or internal error that
// retrying cannot fix.
func isRetriable(err error) bool {
	var internal *apperr.InternalError
	if errors.As(err, &internal) {
		return false
	}
	switch {
	case errors.Is(err, apperr.ErrUniqueViolation), errors.Is(err, apperr.ErrVersionMismatch),
		errors.Is(err, apperr.ErrUnknownRecordType), errors.Is(err, apperr.ErrUnknownIndex),
		errors.Is(err, apperr.ErrDirectRangeIndexForbidden), errors.Is(err, apperr.ErrDimensionMismatch),
		errors.Is(err, apperr.ErrCoordinateOutOfRange), errors.Is(err, apperr.ErrSchemaIncompatible),
		errors.Is(err, apperr.ErrConcurrentStateChange), errors.Is(err, apperr.ErrNonNumericSummand),
		errors.Is(err, apperr.ErrVectorExpressionArity):
		return false
	default:
		return true
	}
}
