package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-presence/internal/eventbus"
	"github.com/nerrad567/gray-logic-presence/internal/permission"
	"github.com/nerrad567/gray-logic-presence/internal/presence"
	"github.com/nerrad567/gray-logic-presence/internal/transition"
)

const namespace = "graylogic_presence"

// Collector holds the presence metrics.
type Collector struct {
	registry *prometheus.Registry

	transitions      *prometheus.CounterVec
	suppressed       *prometheus.CounterVec
	platformFailures *prometheus.CounterVec
	trackedRegions   prometheus.Gauge
	permissionState  prometheus.Gauge
}

var (
	_ transition.Observer = (*Collector)(nil)
	_ presence.Recorder   = (*Collector)(nil)
)

// New creates a Collector on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Room occupancy transitions emitted, by direction.",
		}, []string{"direction"}),
		suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suppressed_callbacks_total",
			Help:      "Region callbacks that produced no transition, by reason.",
		}, []string{"reason"}),
		platformFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "platform_failures_total",
			Help:      "Failures reported by or sending to the location platform, by kind.",
		}, []string{"kind"}),
		trackedRegions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_regions",
			Help:      "Regions currently monitored.",
		}),
		permissionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "permission_state",
			Help:      "Permission gate state: 0 unknown, 1 granted, 2 denied.",
		}),
	}

	c.registry.MustRegister(
		c.transitions,
		c.suppressed,
		c.platformFailures,
		c.trackedRegions,
		c.permissionState,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// WatchBus exports the per-stream count of events dropped on full
// subscriber buffers. Call it once per bus.
func (c *Collector) WatchBus(bus *eventbus.Bus) error {
	for _, s := range []*eventbus.Stream{bus.Enters(), bus.Exits()} {
		err := c.registry.Register(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "bus_dropped_events_total",
			Help:        "Events a subscriber missed because its buffer was full.",
			ConstLabels: prometheus.Labels{"stream": s.Name()},
		}, func() float64 { return float64(s.Dropped()) }))
		if err != nil {
			return err
		}
	}
	return nil
}

// OnTransition implements transition.Observer.
func (c *Collector) OnTransition(t transition.Transition) {
	direction := "exit"
	if t.Entered {
		direction = "enter"
	}
	c.transitions.WithLabelValues(direction).Inc()
}

// OnSuppressed implements transition.Observer.
func (c *Collector) OnSuppressed(_ transition.RegionEvent, outcome transition.Outcome) {
	c.suppressed.WithLabelValues(outcome.String()).Inc()
}

// PlatformFailure implements presence.Recorder.
func (c *Collector) PlatformFailure(kind string) {
	c.platformFailures.WithLabelValues(kind).Inc()
}

// TrackedRegions implements presence.Recorder.
func (c *Collector) TrackedRegions(n int) {
	c.trackedRegions.Set(float64(n))
}

// PermissionChanged implements presence.Recorder.
func (c *Collector) PermissionChanged(state permission.State) {
	c.permissionState.Set(float64(state))
}
