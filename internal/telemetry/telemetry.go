// Package telemetry exposes the control loop's behaviour as Prometheus metrics.
package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/guimove/rmqscaler/internal/model"
)

const namespace = "rmqscaler"

// Telemetry owns a private registry so tests can build as many as they like.
type Telemetry struct {
	Registry *prometheus.Registry

	ticks          *prometheus.CounterVec
	scaleEvents    *prometheus.CounterVec
	brokerMessages prometheus.Gauge
	brokerMaxQueue prometheus.Gauge
	publishRate    prometheus.Gauge
	consumeRate    prometheus.Gauge
	currentProfile *prometheus.GaugeVec
	targetProfile  *prometheus.GaugeVec
	lastTick       prometheus.Gauge

	mu       sync.RWMutex
	ready    bool
	lastSeen time.Time
}

func New() *Telemetry {
	t := &Telemetry{
		Registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Control loop ticks by outcome.",
		}, []string{"outcome"}),
		scaleEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scale_events_total",
			Help:      "Successful resource changes by direction.",
		}, []string{"direction"}),
		brokerMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "messages",
			Help:      "Messages across all queues at the last successful fetch.",
		}),
		brokerMaxQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "max_queue_depth",
			Help:      "Depth of the deepest queue at the last successful fetch.",
		}),
		publishRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "publish_rate",
			Help:      "Messages per second published.",
		}),
		consumeRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "consume_rate",
			Help:      "Messages per second delivered to consumers.",
		}),
		currentProfile: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_profile",
			Help:      "1 for the profile the resource is running, 0 otherwise.",
		}, []string{"profile"}),
		targetProfile: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_profile",
			Help:      "1 for the profile recommended by the last evaluation, 0 otherwise.",
		}, []string{"profile"}),
		lastTick: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_tick_timestamp_seconds",
			Help:      "Unix time of the last completed tick.",
		}),
	}

	t.Registry.MustRegister(
		t.ticks,
		t.scaleEvents,
		t.brokerMessages,
		t.brokerMaxQueue,
		t.publishRate,
		t.consumeRate,
		t.currentProfile,
		t.targetProfile,
		t.lastTick,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return t
}

// ObserveTick counts a finished tick.
func (t *Telemetry) ObserveTick(outcome string, now time.Time) {
	t.ticks.WithLabelValues(outcome).Inc()
	t.lastTick.Set(float64(now.Unix()))

	t.mu.Lock()
	t.lastSeen = now
	t.mu.Unlock()
}

func (t *Telemetry) ObserveSnapshot(s model.Snapshot) {
	t.brokerMessages.Set(s.TotalMessages)
	t.brokerMaxQueue.Set(s.MaxQueueDepth)
	t.publishRate.Set(s.PublishRate)
	t.consumeRate.Set(s.ConsumeRate)
}

// SetProfiles marks current and target as the active profiles. Empty values
// leave the corresponding gauge alone.
func (t *Telemetry) SetProfiles(current, target string) {
	if current != "" {
		t.currentProfile.Reset()
		t.currentProfile.WithLabelValues(current).Set(1)
	}
	if target != "" {
		t.targetProfile.Reset()
		t.targetProfile.WithLabelValues(target).Set(1)
	}
}

func (t *Telemetry) ObserveScale(d model.Direction) {
	t.scaleEvents.WithLabelValues(d.String()).Inc()
}

func (t *Telemetry) SetReady(ready bool) {
	t.mu.Lock()
	t.ready = ready
	t.mu.Unlock()
}

// Ready reports whether the loop has started and ticked within staleAfter.
// A zero staleAfter disables the staleness check.
func (t *Telemetry) Ready(now time.Time, staleAfter time.Duration) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.ready {
		return false
	}
	if staleAfter <= 0 || t.lastSeen.IsZero() {
		return true
	}
	return now.Sub(t.lastSeen) <= staleAfter
}
