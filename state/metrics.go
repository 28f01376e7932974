package state

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	channels    prometheus.Gauge
	users       prometheus.Gauge
	whoRequests prometheus.Counter
	listQueries prometheus.Counter
	dropped     prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ircstate",
			Name:      "tracked_channels",
			Help:      "Number of joined channels being tracked.",
		}),
		users: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ircstate",
			Name:      "tracked_users",
			Help:      "Number of users sharing a channel with the client, including itself.",
		}),
		whoRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ircstate",
			Name:      "who_refreshes_total",
			Help:      "WHO requests sent to complete a channel member list.",
		}),
		listQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ircstate",
			Name:      "list_mode_queries_total",
			Help:      "MODE requests sent to fetch the entries of a list mode.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ircstate",
			Name:      "dropped_mode_changes_total",
			Help:      "Mode changes ignored because they did not match the server modes or a member.",
		}),
	}
	if reg != nil {
		m.channels = register(reg, m.channels)
		m.users = register(reg, m.users)
		m.whoRequests = register(reg, m.whoRequests)
		m.listQueries = register(reg, m.listQueries)
		m.dropped = register(reg, m.dropped)
	}
	return m
}

// register registers c on reg.  Trackers sharing a registerer, one per
// connection, share the collectors registered by the first one.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
