package execplan

import "context"

// limitCursor forwards up to n rows from child and then stops (spec §4.8
// "Limit").
type limitCursor[R any] struct {
	child     Cursor[R]
	remaining int
}

func newLimit[R any](child Cursor[R], n int) *limitCursor[R] {
	return &limitCursor[R]{child: child, remaining: n}
}

func (c *limitCursor[R]) Next(ctx context.Context) (Row[R], bool, error) {
	if c.remaining <= 0 {
		return Row[R]{}, false, nil
	}
	row, ok, err := c.child.Next(ctx)
	if err != nil || !ok {
		return Row[R]{}, false, err
	}
	c.remaining--
	return row, true, nil
}

func (c *limitCursor[R]) Close() { c.child.Close() }
