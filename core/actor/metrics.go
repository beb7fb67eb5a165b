package actor

import "github.com/codewandler/actorrt/core/metrics"

// RuntimeMetrics receives runtime instrumentation. All methods must be safe
// for concurrent use.
type RuntimeMetrics interface {
	// Handler execution, labeled by thread name
	MessageDuration(thread string) metrics.Timer
	MessageHandled(thread string, success bool)
	ActorFault(thread string)
	ActorReplaced(thread string)

	// Thread state
	QueueDepth(thread string, depth int)
	ResidentActors(thread string, n int)

	// Calls
	CallStarted(kind string)
	CallResult(result Code)
	StaleResultDropped()
	TimersActive(n int)
}

type nopRuntimeMetrics struct{}

func (nopRuntimeMetrics) MessageDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopRuntimeMetrics) MessageHandled(string, bool)          {}
func (nopRuntimeMetrics) ActorFault(string)                    {}
func (nopRuntimeMetrics) ActorReplaced(string)                 {}
func (nopRuntimeMetrics) QueueDepth(string, int)               {}
func (nopRuntimeMetrics) ResidentActors(string, int)           {}
func (nopRuntimeMetrics) CallStarted(string)                   {}
func (nopRuntimeMetrics) CallResult(Code)                      {}
func (nopRuntimeMetrics) StaleResultDropped()                  {}
func (nopRuntimeMetrics) TimersActive(int)                     {}

// NopRuntimeMetrics returns a RuntimeMetrics that records nothing.
func NopRuntimeMetrics() RuntimeMetrics { return nopRuntimeMetrics{} }

// call kinds reported to CallStarted
const (
	callKindCall    = "call"
	callKindTimeout = "timeout"
	callKindOp      = "op"
	callKindRead    = "read"
	callKindWrite   = "write"
)
