package qtrc

import (
	"fmt"
	"sync"
	"time"
)

// SessionRecord is the summary record for one session: how long it took,
// whether it tripped the slow-query policy, and the rendered parameter map.
// It is distinct from the individual trace events collected alongside it.
type SessionRecord struct {
	Elapsed    time.Duration
	SlowQuery  bool
	Parameters map[string]string
}

// EventRecord is a single trace event appended by request code during the
// session's foreground phase.
type EventRecord struct {
	When time.Time
	What string
}

// Records is the budget-limited collection of one session's records: the
// session record plus whatever trace events were appended. It is exclusively
// owned by its session until the session stops, at which point ownership
// passes to the Service (on write) or the contents are discarded (on drop).
type Records struct {
	mtx            sync.Mutex
	budget         *Budget
	session        SessionRecord
	events         []EventRecord
	refusedEvents  int
	slowLogEnabled bool
}

// NewRecords returns an empty Records drawing event admission from the given
// shared budget.
func NewRecords(budget *Budget) *Records {
	return &Records{budget: budget}
}

// AddEvent appends one trace event, evaluating the arguments immediately.
// Admission is checked against the shared budget; refused events are counted
// and reported false.
func (r *Records) AddEvent(format string, args ...any) bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if !r.budget.TryConsume() {
		r.refusedEvents++
		return false
	}

	r.events = append(r.events, EventRecord{
		When: time.Now().UTC(),
		What: fmt.Sprintf(format, args...),
	})
	return true
}

// ConsumeFromBudget takes one unit from the shared budget for the session
// record itself. Unlike event admission this is unconditional: the session
// accounting record must never be crowded out, and must never crowd out a
// real trace event.
func (r *Records) ConsumeFromBudget() {
	r.budget.Consume()
}

// DropRecords discards all contents. It is idempotent, and is called on any
// unrecoverable error before persistence, or when persistence is
// intentionally skipped. A partially rendered parameter map is never left
// behind.
func (r *Records) DropRecords() {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.events = nil
	r.session.Parameters = nil
}

// Size reports the number of accumulated event records. Used for logging and
// introspection only.
func (r *Records) Size() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	return len(r.events)
}

// RefusedEvents reports how many events were refused admission by the budget.
func (r *Records) RefusedEvents() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	return r.refusedEvents
}

// SlowLog reports whether the owning session tripped the slow-query policy.
func (r *Records) SlowLog() bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	return r.slowLogEnabled
}

// Session returns a snapshot of the session record. The parameter map is
// copied.
func (r *Records) Session() SessionRecord {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	rec := r.session
	if r.session.Parameters != nil {
		rec.Parameters = make(map[string]string, len(r.session.Parameters))
		for k, v := range r.session.Parameters {
			rec.Parameters[k] = v
		}
	}
	return rec
}

// Events returns a snapshot of the accumulated event records.
func (r *Records) Events() []EventRecord {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	evs := make([]EventRecord, len(r.events))
	copy(evs, r.events)
	return evs
}

func (r *Records) setElapsed(d time.Duration) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.session.Elapsed = d
}

func (r *Records) setSlowLog(slow bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.slowLogEnabled = slow
	r.session.SlowQuery = slow
}

func (r *Records) setParameters(m map[string]string) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.session.Parameters = m
}
