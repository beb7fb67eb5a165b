// Package actor is an in-process actor runtime.
//
// Actors are isolated units of state addressed by an ID. They never share
// memory; they only exchange Messages. Every actor lives on exactly one
// thread for its whole life, and its handler never runs concurrently with
// itself, so actor code needs no locks.
//
// Three kinds of threads host actors:
//
//   - pooled threads (CreateThread) run many actors on one goroutine each,
//   - dedicated threads (AddDedicatedActor) run one actor and pulse it with
//     CodePulse when idle,
//   - external threads (RegisterExternalThread) hand every delivery to a
//     host-owned loop through a Dispatcher.
//
// Request/response is built on call ids: Call, RunAsCall, StartRead,
// ScheduleTimeout and friends return a CallID, and the caller later receives
// exactly one result message (CodeCompleted, CodeError, CodeCancelled or
// CodeTimeout) carrying it. Late or duplicate results are dropped.
//
// A handler that panics or returns an error does not take its thread down:
// the fault is logged and passed to the configured FaultHandler, which may
// replace the actor.
package actor
