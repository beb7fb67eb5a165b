// Package metrics declares the instrument interfaces the runtime reports to.
// Backends (see adapters/prometheus) implement them; the core only depends
// on this package.
package metrics

import "time"

// Counter only goes up.
type Counter interface {
	Inc()
	// Add increments by delta. delta must be >= 0.
	Add(delta float64)
}

// Gauge is a value that can go up and down.
type Gauge interface {
	Set(value float64)
	Inc()
	Dec()
	Add(delta float64)
}

// Histogram samples observations into buckets.
type Histogram interface {
	Observe(value float64)
}

// Timer measures one operation. Call ObserveDuration when it completes:
//
//	defer m.MessageDuration("T1").ObserveDuration()
type Timer interface {
	ObserveDuration()
}

// TimerFunc creates a started Timer.
type TimerFunc func() Timer

type funcTimer struct {
	start   time.Time
	observe func(time.Duration)
}

func (t *funcTimer) ObserveDuration() { t.observe(time.Since(t.start)) }

// StartTimer returns a Timer that passes the elapsed time to observe.
func StartTimer(observe func(time.Duration)) Timer {
	if observe == nil {
		return NopTimer()
	}
	return &funcTimer{start: time.Now(), observe: observe}
}
