package qtrc

import "sync/atomic"

// Budget is a shared counter bounding the number of trace records admitted
// across every session that references it. It keeps tracing overhead on the
// query path bounded: once the budget is exhausted, new trace events are
// refused at admission.
//
// A nil Budget admits everything.
type Budget struct {
	n atomic.Int64
}

// NewBudget returns a budget with n units available.
func NewBudget(n int64) *Budget {
	b := &Budget{}
	b.n.Store(n)
	return b
}

// TryConsume takes one unit from the budget if any remain, reporting whether
// it did. It's the admission check for individual trace events.
func (b *Budget) TryConsume() bool {
	if b == nil {
		return true
	}
	for {
		cur := b.n.Load()
		if cur <= 0 {
			return false
		}
		if b.n.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

// Consume takes one unit from the budget unconditionally, allowing the count
// to go negative. Session records are accounted this way, so that a session
// which did nothing but open and close itself is still counted, without the
// accounting record stealing an admission slot from a real trace event.
func (b *Budget) Consume() {
	if b == nil {
		return
	}
	b.n.Add(-1)
}

// Remaining returns the current number of available units, which can be
// negative.
func (b *Budget) Remaining() int64 {
	if b == nil {
		return 0
	}
	return b.n.Load()
}
