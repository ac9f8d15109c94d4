// Package qtrcstore provides an in-memory implementation of the qtrc Service
// interface. Session records handed off for persistence are queued, written
// by a background actor into a fixed-capacity ring buffer, and published to
// any streaming subscribers.
package qtrcstore

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/qtrclabs/qtrc"
)

const (
	defaultQueueSize = 1024
	defaultRetain    = 256
	defaultBudget    = 10000
)

// Config for a Store. The zero value is usable.
type Config struct {
	// Logger receives store and session diagnostics.
	Logger zerolog.Logger

	// QueueSize bounds the asynchronous write queue. Default 1024.
	QueueSize int

	// Retain is the number of written session records kept in memory.
	// Default 256.
	Retain int

	// Budget is the initial shared record budget. Default 10000.
	Budget int64

	// ShouldWrite is the default persistence policy for sessions created
	// via NewSession. Nil means always write.
	ShouldWrite func() bool

	// SlowQuery is the default slow-query policy for sessions created via
	// NewSession. Nil means never slow.
	SlowQuery func(elapsed time.Duration) bool

	// WriteOnClose is the default write-on-close hint for sessions created
	// via NewSession.
	WriteOnClose bool
}

// Store is an in-memory tracing service. It implements [qtrc.Service].
//
// Asynchronous writes are decoupled from the query path by a bounded queue:
// WriteSessionRecords never blocks, and records that don't fit are dropped
// and counted. The queue is drained by Run.
type Store struct {
	cfg    Config
	logger zerolog.Logger
	budget *qtrc.Budget
	stats  qtrc.Stats
	queue  chan *qtrc.Records
	ring   *ring
	broker *Broker
}

var _ qtrc.Service = (*Store)(nil)

// New constructs a Store with the given config.
func New(cfg Config) *Store {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Retain <= 0 {
		cfg.Retain = defaultRetain
	}
	if cfg.Budget <= 0 {
		cfg.Budget = defaultBudget
	}

	return &Store{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "qtrcstore").Logger(),
		budget: qtrc.NewBudget(cfg.Budget),
		queue:  make(chan *qtrc.Records, cfg.QueueSize),
		ring:   newRing(cfg.Retain),
		broker: NewBroker(),
	}
}

// NewSession constructs a session with the given role, drawing on the
// store's budget and default policies.
func (st *Store) NewSession(role qtrc.Role) *qtrc.Session {
	shouldWrite := st.cfg.ShouldWrite
	if shouldWrite == nil {
		shouldWrite = func() bool { return true }
	}

	return qtrc.NewSession(st, qtrc.Options{
		Role:         role,
		Logger:       st.cfg.Logger,
		Budget:       st.budget,
		ShouldWrite:  shouldWrite,
		SlowQuery:    st.cfg.SlowQuery,
		WriteOnClose: st.cfg.WriteOnClose,
	})
}

// EndSession implements Service.
func (st *Store) EndSession(s *qtrc.Session) {
	st.stats.SessionsEnded.Add(1)
	st.logger.Debug().Str("session_id", s.ID()).Stringer("role", s.Role()).Msg("session ended")
}

// WriteSessionRecords implements Service. A synchronous write happens
// inline; an asynchronous write is enqueued without blocking, and dropped if
// the queue is full.
func (st *Store) WriteSessionRecords(r *qtrc.Records, sync bool) {
	if sync {
		st.write(r)
		return
	}

	select {
	case st.queue <- r:
	default:
		st.stats.QueueDrops.Add(1)
		st.stats.RecordsDropped.Add(1)
		r.DropRecords()
	}
}

// Stats implements Service.
func (st *Store) Stats() *qtrc.Stats {
	return &st.stats
}

// Budget returns the store's shared record budget.
func (st *Store) Budget() *qtrc.Budget {
	return st.budget
}

// Written returns the retained session records, newest first.
func (st *Store) Written() []*qtrc.Records {
	return st.ring.snapshot()
}

// WrittenCount returns the number of retained session records.
func (st *Store) WrittenCount() int {
	return st.ring.count()
}

// Stream subscribes ch to every record written while ctx remains active,
// blocking until ctx is done.
func (st *Store) Stream(ctx context.Context, ch chan<- *qtrc.Records) (StreamStats, error) {
	return st.broker.Stream(ctx, ch)
}

// Run drains the write queue until ctx is done, then flushes whatever is
// still queued. It is designed to be an actor in a run group.
func (st *Store) Run(ctx context.Context) error {
	st.logger.Debug().Msg("writer started")
	defer st.logger.Debug().Msg("writer stopped")

	for {
		select {
		case r := <-st.queue:
			st.write(r)
		case <-ctx.Done():
			st.flush()
			return ctx.Err()
		}
	}
}

func (st *Store) flush() {
	for {
		select {
		case r := <-st.queue:
			st.write(r)
		default:
			return
		}
	}
}

func (st *Store) write(r *qtrc.Records) {
	st.ring.add(r)
	st.broker.Publish(r)
	st.stats.RecordsWritten.Add(1)
}
