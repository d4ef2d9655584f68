package recordstore

import (
	"github.com/erigontech/fdbrecord/stats"
	"go.uber.org/zap"
)

// Option configures a Store at construction time (spec §11 "functional
// options", the teacher's own configuration idiom).
type Option[R any] func(*Store[R])

// WithLogger overrides the store's logger (defaults to a no-op logger).
func WithLogger[R any](logger *zap.Logger) Option[R] {
	return func(s *Store[R]) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStatistics attaches a statistics manager so Save/Delete can keep the
// planner's cost model current as indexes are maintained.
func WithStatistics[R any](mgr *stats.Manager) Option[R] {
	return func(s *Store[R]) { s.statsMgr = mgr }
}
