package qtrc

import (
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Role distinguishes top-level sessions from nested sub-spans. Primary
// sessions own budget accounting and parameter capture; secondary sessions
// must complete before their primary is closed.
type Role uint8

const (
	RolePrimary Role = iota
	RoleSecondary
)

// String returns "primary" or "secondary".
func (r Role) String() string {
	if r == RoleSecondary {
		return "secondary"
	}
	return "primary"
}

// State is a session's position in its lifecycle. The only permitted
// transitions are inactive → foreground → background, never backward.
type State uint8

const (
	// StateInactive is a session that was constructed but never started.
	// Stopping it is a no-op.
	StateInactive State = iota

	// StateForeground is a session actively collecting events and
	// parameters.
	StateForeground

	// StateBackground is terminal: the write-or-drop decision has been
	// taken and no further mutation is permitted.
	StateBackground
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateForeground:
		return "foreground"
	case StateBackground:
		return "background"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

var sessionIDEntropy = ulid.DefaultEntropy()

// Options configure a new session.
type Options struct {
	// Role of the session. The zero value is RolePrimary.
	Role Role

	// Logger receives the session's diagnostic output. The session id is
	// attached as a field.
	Logger zerolog.Logger

	// Budget is the shared record budget, normally owned by the service.
	// A nil budget admits everything.
	Budget *Budget

	// ShouldWrite decides whether the session's records are persisted when
	// it stops. Supplied by the surrounding tracing policy. Nil means never
	// write.
	ShouldWrite func() bool

	// SlowQuery decides whether the session's elapsed time qualifies it for
	// slow-query logging. Nil means never.
	SlowQuery func(elapsed time.Duration) bool

	// WriteOnClose is passed through to the service on write, hinting that
	// the caller is blocked until the records are persisted.
	WriteOnClose bool
}

// Session is one traced unit of work. Session IDs are ULIDs, using a default
// monotonic source of entropy.
//
// A session is driven by whichever execution context owns the request it
// traces, and performs no I/O of its own: anything that could block is
// delegated to the Service when the records are handed off.
type Session struct {
	mtx          sync.Mutex
	id           ulid.ULID
	role         Role
	state        State
	start        time.Time
	elapsed      time.Duration
	params       *Params
	records      *Records
	svc          Service
	logger       zerolog.Logger
	shouldWrite  func() bool
	slowQuery    func(time.Duration) bool
	writeOnClose bool
	closed       bool
}

// NewSession constructs an inactive session against the given service. The
// service must outlive the session.
func NewSession(svc Service, opts Options) *Session {
	if svc == nil {
		panic("qtrc: NewSession with nil Service")
	}

	id := ulid.MustNew(ulid.Timestamp(time.Now().UTC()), sessionIDEntropy)

	return &Session{
		id:           id,
		role:         opts.Role,
		state:        StateInactive,
		records:      NewRecords(opts.Budget),
		svc:          svc,
		logger:       opts.Logger.With().Str("session_id", id.String()).Logger(),
		shouldWrite:  opts.ShouldWrite,
		slowQuery:    opts.SlowQuery,
		writeOnClose: opts.WriteOnClose,
	}
}

// Begin moves the session from inactive to foreground and captures the start
// time. Calling Begin on a session that already left the inactive state has
// no effect.
func (s *Session) Begin() {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.state != StateInactive {
		return
	}

	s.state = StateForeground
	s.start = time.Now().UTC()
}

// ID returns the session's unique identifier, used for logging and
// correlation only.
func (s *Session) ID() string {
	return s.id.String() // immutable
}

// Role returns the session's role.
func (s *Session) Role() Role {
	return s.role // immutable
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.state
}

// Started returns the time the session entered the foreground, or the zero
// time if it never did.
func (s *Session) Started() time.Time {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.start
}

// Duration returns the time the session has spent since entering the
// foreground. Once the session reaches the background state the value is
// frozen.
func (s *Session) Duration() time.Duration {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	switch s.state {
	case StateForeground:
		return time.Since(s.start)
	case StateBackground:
		return s.elapsed
	default:
		return 0
	}
}

// Records returns the session's record buffer. The buffer is owned by the
// session until the session stops.
func (s *Session) Records() *Records {
	return s.records // immutable
}

// Tracef appends one trace event to the session's records, evaluating the
// arguments immediately. Events are only collected while the session is in
// the foreground.
func (s *Session) Tracef(format string, args ...any) {
	s.mtx.Lock()
	if s.state != StateForeground {
		s.mtx.Unlock()
		return
	}
	s.mtx.Unlock()

	s.records.AddEvent(format, args...)
}

//
//
//

// lazyParams allocates the parameter bag on first use. Once allocated it is
// never reset: an absent bag means no parameter was ever recorded.
func (s *Session) lazyParams() *Params {
	if s.params == nil {
		s.params = &Params{}
	}
	return s.params
}

// SetBatchlogEndpoints replaces the captured set of batchlog endpoints.
// Duplicates are discarded.
func (s *Session) SetBatchlogEndpoints(eps []netip.Addr) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.state == StateBackground {
		return
	}
	s.lazyParams().setBatchlogEndpoints(eps)
}

// SetConsistency replaces the captured consistency level.
func (s *Session) SetConsistency(cl Consistency) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.state == StateBackground {
		return
	}
	s.lazyParams().setConsistency(cl)
}

// SetSerialConsistency replaces the captured serial consistency level, if one
// was supplied. A nil value is a no-op and preserves any previously set
// level.
func (s *Session) SetSerialConsistency(cl *Consistency) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.state == StateBackground {
		return
	}
	s.lazyParams().setSerialConsistency(cl)
}

// SetPageSize stores the page size. Zero and negative values are silently
// ignored.
func (s *Session) SetPageSize(n int) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.state == StateBackground {
		return
	}
	s.lazyParams().setPageSize(n)
}

// AddQuery appends one query string, preserving append order. A session with
// exactly one query is recorded as a single statement; more than one is
// recorded as a batch.
func (s *Session) AddQuery(q string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.state == StateBackground {
		return
	}
	s.lazyParams().addQuery(q)
}

// SetUserTimestamp replaces the captured user timestamp.
func (s *Session) SetUserTimestamp(ts int64) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.state == StateBackground {
		return
	}
	s.lazyParams().setUserTimestamp(ts)
}

//
//
//

// Stop moves the session from foreground to background, takes the
// write-or-drop decision, and reports completion to the service, exactly
// once. Calling Stop on a session that is inactive or already in the
// background is a no-op, which gives at-most-once semantics for budget
// consumption and the persistence decision.
//
// Stop never fails and never panics. The only fallible step, rendering the
// parameter map into the session record, is recovered locally: on failure
// the service's error counter is bumped, the records are dropped in full,
// and the stop runs to completion.
func (s *Session) Stop() {
	s.mtx.Lock()

	if s.state != StateForeground {
		s.mtx.Unlock()
		return
	}

	s.elapsed = time.Since(s.start)
	s.records.setSlowLog(s.slowQuery != nil && s.slowQuery(s.elapsed))

	write := s.shouldWrite != nil && s.shouldWrite()

	if s.role == RolePrimary {
		// The session record is accounted against the budget but not
		// admission-checked, so it can neither be crowded out nor steal a
		// slot from a real trace event.
		s.records.ConsumeFromBudget()
		s.records.setElapsed(s.elapsed)

		if write {
			if err := s.materializeParams(); err != nil {
				// Incomplete parameter data must never be persisted. Count
				// the error, drop everything, and carry on.
				s.svc.Stats().TraceErrors.Add(1)
				s.records.DropRecords()
			}
		}
	}

	s.state = StateBackground
	s.mtx.Unlock()

	s.logger.Trace().Int("records", s.records.Size()).Msg("current records count")

	if write {
		s.svc.WriteSessionRecords(s.records, s.writeOnClose)
	} else {
		s.records.DropRecords()
	}

	s.svc.EndSession(s)
}

// materializeParams renders the parameter bag, if one was ever allocated,
// into the session record. The map is built in full before it is stored, so
// a failure leaves no trace on the record. Panics out of rendering are
// converted to errors.
func (s *Session) materializeParams() (err error) {
	if s.params == nil {
		return nil
	}

	defer func() {
		if x := recover(); x != nil {
			err = fmt.Errorf("render parameters: %v", x)
		}
	}()

	m := map[string]string{}
	if err := s.params.render(m); err != nil {
		return err
	}

	s.records.setParameters(m)
	return nil
}

// Close ends the session: it stops the session if the session is still in
// the foreground, and emits the session's final diagnostics. Close is
// idempotent.
//
// A secondary session found already in the background state was finalized
// outside its own close path, which is a logic error in the caller. It is
// reported with an error log line and does not alter the close sequence.
func (s *Session) Close() {
	s.mtx.Lock()
	if s.closed {
		s.mtx.Unlock()
		return
	}
	s.closed = true
	stray := s.role == RoleSecondary && s.state == StateBackground
	s.mtx.Unlock()

	if stray {
		s.logger.Error().Msg("secondary session is in a background state")
	}

	s.Stop()

	s.logger.Trace().Msg("destructing")
}
