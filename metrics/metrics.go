package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "messenger",
		Name:      "messages_sent_total",
		Help:      "Messages persisted by the delivery pipeline.",
	})

	MessagesDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "messenger",
		Name:      "messages_deleted_total",
		Help:      "Messages soft deleted by their sender.",
	})

	GateDenials = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "messenger",
		Name:      "gate_denials_total",
		Help:      "Requests refused because the conversation is locked.",
	}, []string{"operation"})

	Pushes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "messenger",
		Name:      "pushes_total",
		Help:      "Events pushed to live connections, by kind.",
	}, []string{"kind"})

	OnlineUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "messenger",
		Name:      "online_users",
		Help:      "Users with at least one live connection on this node.",
	})
)

// Register adds the messenger collectors to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		MessagesSent,
		MessagesDeleted,
		GateDenials,
		Pushes,
		OnlineUsers,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveOnline is a presence observer keeping the online gauge current.
func ObserveOnline(online []uint) {
	OnlineUsers.Set(float64(len(online)))
}
