// Package metrics exposes the relay core's internal counters as
// Prometheus collectors. No HTTP transport is wired here (non-IRC
// transports are out of scope per spec.md Non-goals) -- the registry and
// collectors are updated directly by internal/server's Context (command
// dispatch, session/user tracking, channel create/destroy, kills) so an
// embedding binary can mount them on whatever it likes.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Connections   prometheus.Gauge
	Users         prometheus.Gauge
	Channels      prometheus.Gauge
	CommandsTotal *prometheus.CounterVec
	KillsTotal    prometheus.Counter
	FloodKills    prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ircd",
			Name:      "connections",
			Help:      "Currently open connections, registered or not.",
		}),
		Users: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ircd",
			Name:      "users",
			Help:      "Currently registered users.",
		}),
		Channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ircd",
			Name:      "channels",
			Help:      "Currently active channels.",
		}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ircd",
			Name:      "commands_total",
			Help:      "Commands dispatched, by name.",
		}, []string{"command"}),
		KillsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ircd",
			Name:      "kills_total",
			Help:      "Connections killed by the server (flood, SendQ, timeout, KILL).",
		}),
		FloodKills: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ircd",
			Name:      "flood_kills_total",
			Help:      "Connections killed specifically for excess flood.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Connections, m.Users, m.Channels, m.CommandsTotal, m.KillsTotal, m.FloodKills)
	}
	return m
}
