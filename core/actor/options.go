package actor

import (
	"context"
	"log/slog"
	"time"
)

// Options configures a System. The zero value is usable.
type Options struct {
	// Context bounds the lifetime of adapted operations. Defaults to context.Background().
	Context context.Context
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// FaultHandler defaults to KeepOnFault.
	FaultHandler FaultHandler
	// Metrics defaults to NopRuntimeMetrics().
	Metrics RuntimeMetrics
	// MaxConcurrentOps caps adapted operations (RunAsCall, StartRead, ...)
	// running at once. Defaults to 64; negative means unlimited.
	MaxConcurrentOps int
	// PulseInterval is how long a dedicated thread waits for a message before
	// pulsing its actor. 0 pulses continuously.
	PulseInterval time.Duration
	// PlacementSeed salts keyed placement (AddActorWithKey).
	PlacementSeed string
	// ID names this runtime in logs. Defaults to a random nanoid.
	ID string
}

const defaultMaxConcurrentOps = 64

func (o *Options) applyDefaults() {
	if o.Context == nil {
		o.Context = context.Background()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.FaultHandler == nil {
		o.FaultHandler = KeepOnFault
	}
	if o.Metrics == nil {
		o.Metrics = NopRuntimeMetrics()
	}
	if o.MaxConcurrentOps == 0 {
		o.MaxConcurrentOps = defaultMaxConcurrentOps
	}
	if o.PulseInterval < 0 {
		o.PulseInterval = 0
	}
}
