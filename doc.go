// Package qtrc implements the lifecycle of a query trace session: a
// per-request value that accumulates diagnostic events and optional query
// parameters while a request executes, and hands them off for asynchronous
// persistence when the request completes.
//
// A [Session] is created for each traced request, or for each nested
// sub-request, and moves through three states. It starts inactive, enters the
// foreground when [Session.Begin] is called, and reaches the terminal
// background state when it is stopped or closed. While in the foreground,
// request code records trace events with [Session.Tracef] and captures query
// shape metadata through the parameter setters. When the session stops, it
// evaluates the slow-query policy, consumes one unit of the shared record
// budget, renders any captured parameters into its session record, and either
// hands its [Records] to the [Service] for persistence or drops them.
//
// Stopping is idempotent and never fails: the only fallible step, rendering
// the parameter map, is recovered locally by counting an error and dropping
// the session's records. A session therefore persists either a complete
// record or nothing at all.
//
// The actual persistence machinery is behind the [Service] interface. An
// in-memory implementation, which retains the most recent session records in
// a ring buffer and can stream them to subscribers, lives in
// [github.com/qtrclabs/qtrc/qtrcstore].
package qtrc
