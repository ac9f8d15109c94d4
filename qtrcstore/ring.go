package qtrcstore

import (
	"sync"

	"github.com/qtrclabs/qtrc"
)

// ring is a fixed-capacity buffer of written session records. New writes
// evict the oldest entries; reads walk backwards from the most recent write.
type ring struct {
	mtx sync.Mutex
	buf []*qtrc.Records // fully allocated at construction
	cur int             // index for next write, walk backwards to read
	len int             // count of actual values
}

func newRing(cap int) *ring {
	return &ring{
		buf: make([]*qtrc.Records, cap),
	}
}

func (rg *ring) add(r *qtrc.Records) {
	rg.mtx.Lock()
	defer rg.mtx.Unlock()

	if cap(rg.buf) <= 0 {
		return
	}

	rg.buf[rg.cur] = r

	if rg.len < len(rg.buf) {
		rg.len++
	}

	rg.cur++
	if rg.cur >= len(rg.buf) {
		rg.cur -= len(rg.buf)
	}
}

// snapshot returns the retained records, newest first.
func (rg *ring) snapshot() []*qtrc.Records {
	rg.mtx.Lock()
	defer rg.mtx.Unlock()

	out := make([]*qtrc.Records, 0, rg.len)
	for i := 0; i < rg.len; i++ {
		cur := rg.cur - 1 - i
		if cur < 0 {
			cur += len(rg.buf)
		}
		out = append(out, rg.buf[cur])
	}
	return out
}

func (rg *ring) count() int {
	rg.mtx.Lock()
	defer rg.mtx.Unlock()

	return rg.len
}
