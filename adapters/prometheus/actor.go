package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/actorrt/core/actor"
	"github.com/codewandler/actorrt/core/metrics"
)

// runtimeMetrics implements actor.RuntimeMetrics using Prometheus.
type runtimeMetrics struct {
	messageDuration *prometheus.HistogramVec
	messagesTotal   *prometheus.CounterVec
	faultsTotal     *prometheus.CounterVec
	replacedTotal   *prometheus.CounterVec
	queueDepth      *prometheus.GaugeVec
	residentActors  *prometheus.GaugeVec
	callsTotal      *prometheus.CounterVec
	resultsTotal    *prometheus.CounterVec
	staleTotal      prometheus.Counter
	timersActive    prometheus.Gauge
}

// NewRuntimeMetrics creates a Prometheus implementation of actor.RuntimeMetrics
// and registers it with reg.
func NewRuntimeMetrics(reg prometheus.Registerer) actor.RuntimeMetrics {
	m := &runtimeMetrics{
		messageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "actorrt_message_duration_seconds",
			Help:    "Handler execution time in seconds",
			Buckets: defaultBuckets,
		}, []string{"thread"}),

		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actorrt_messages_total",
			Help: "Total number of messages handled",
		}, []string{"thread", "success"}),

		faultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actorrt_actor_faults_total",
			Help: "Total number of handler errors and panics",
		}, []string{"thread"}),

		replacedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actorrt_actor_replacements_total",
			Help: "Total number of actors replaced by the fault handler",
		}, []string{"thread"}),

		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "actorrt_thread_queue_depth",
			Help: "Size of the batch a thread is currently processing",
		}, []string{"thread"}),

		residentActors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "actorrt_thread_resident_actors",
			Help: "Number of actors resident on a thread",
		}, []string{"thread"}),

		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actorrt_calls_total",
			Help: "Total number of calls, timers and adapted operations started",
		}, []string{"kind"}),

		resultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actorrt_call_results_total",
			Help: "Total number of call results delivered",
		}, []string{"result"}),

		staleTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "actorrt_stale_results_total",
			Help: "Total number of results dropped because the call already had one",
		}),

		timersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "actorrt_timers_active",
			Help: "Number of armed timers",
		}),
	}

	reg.MustRegister(
		m.messageDuration,
		m.messagesTotal,
		m.faultsTotal,
		m.replacedTotal,
		m.queueDepth,
		m.residentActors,
		m.callsTotal,
		m.resultsTotal,
		m.staleTotal,
		m.timersActive,
	)

	return m
}

func (m *runtimeMetrics) MessageDuration(thread string) metrics.Timer {
	return newTimer(m.messageDuration.WithLabelValues(thread))
}

func (m *runtimeMetrics) MessageHandled(thread string, success bool) {
	m.messagesTotal.WithLabelValues(thread, boolToStr(success)).Inc()
}

func (m *runtimeMetrics) ActorFault(thread string) {
	m.faultsTotal.WithLabelValues(thread).Inc()
}

func (m *runtimeMetrics) ActorReplaced(thread string) {
	m.replacedTotal.WithLabelValues(thread).Inc()
}

func (m *runtimeMetrics) QueueDepth(thread string, depth int) {
	m.queueDepth.WithLabelValues(thread).Set(float64(depth))
}

func (m *runtimeMetrics) ResidentActors(thread string, n int) {
	m.residentActors.WithLabelValues(thread).Set(float64(n))
}

func (m *runtimeMetrics) CallStarted(kind string) {
	m.callsTotal.WithLabelValues(kind).Inc()
}

func (m *runtimeMetrics) CallResult(result actor.Code) {
	m.resultsTotal.WithLabelValues(result.String()).Inc()
}

func (m *runtimeMetrics) StaleResultDropped() { m.staleTotal.Inc() }

func (m *runtimeMetrics) TimersActive(n int) { m.timersActive.Set(float64(n)) }

var _ actor.RuntimeMetrics = (*runtimeMetrics)(nil)

// RegisterStats exports a registry snapshot as gauges computed at scrape time.
//
//	prom.RegisterStats(reg, sys.Stats)
func RegisterStats(reg prometheus.Registerer, stats func() actor.Stats) {
	gauge := func(name, help string, v func(actor.Stats) int) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			return float64(v(stats()))
		})
	}
	reg.MustRegister(
		gauge("actorrt_actors", "Number of registered actors", func(s actor.Stats) int { return s.Actors }),
		gauge("actorrt_threads", "Number of registered threads", func(s actor.Stats) int { return s.Threads }),
		gauge("actorrt_outstanding_calls", "Number of calls awaiting a result", func(s actor.Stats) int { return s.OutstandingCalls }),
		gauge("actorrt_adapted_ops", "Number of adapted operations in flight", func(s actor.Stats) int { return s.Ops }),
	)
}
