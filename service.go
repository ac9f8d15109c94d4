package qtrc

import "sync/atomic"

// Service is the process-wide collaborator that every session references and
// none owns. It must outlive every session constructed against it.
//
// Implementations decide how session records are queued, batched, and
// persisted; sessions only hand records off and report completion.
type Service interface {
	// EndSession is called exactly once per session, when the session is
	// closed.
	EndSession(s *Session)

	// WriteSessionRecords takes ownership of the records for eventual
	// persistence. The sync flag is a hint that the caller is blocked on
	// completion and the write should not be deferred.
	WriteSessionRecords(r *Records, sync bool)

	// Stats returns the service-level counters. The returned pointer is
	// stable for the lifetime of the service.
	Stats() *Stats
}

// Stats holds service-level tracing counters. All fields are monotonically
// increasing and safe for concurrent use.
type Stats struct {
	// TraceErrors counts sessions whose parameter rendering failed. Each
	// such session drops its records rather than persisting partial data.
	TraceErrors atomic.Uint64

	// SessionsEnded counts sessions that completed their lifecycle.
	SessionsEnded atomic.Uint64

	// RecordsWritten counts record buffers accepted for persistence.
	RecordsWritten atomic.Uint64

	// RecordsDropped counts record buffers discarded without persistence.
	RecordsDropped atomic.Uint64

	// QueueDrops counts record buffers refused because the write queue was
	// full.
	QueueDrops atomic.Uint64
}
