package observability

// This file holds the domain-level Prometheus collectors. HTTP collectors live
// with the HTTP middleware; everything here is emitted by the core packages
// and exposed on the same /metrics endpoint.
//
// Label values are fixed small sets so cardinality stays bounded:
//
//   - result:     hit | miss | cooldown
//   - outcome:    the outcome code name (O_INSERTED, X_NOT_FOUND, ...)
//   - status:     ok | failed | dropped
//   - event:      activated | reactivated | extended | expired | deactivated
//   - collection: the storage collection name

import "github.com/prometheus/client_golang/prometheus"

var (
	// AutoReplyResolves counts resolve calls by result.
	AutoReplyResolves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoreply_resolve_total",
			Help: "Auto-reply resolve calls by result.",
		},
		[]string{"result"},
	)

	// AutoReplyAdds counts module add attempts by outcome.
	AutoReplyAdds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoreply_modules_added_total",
			Help: "Auto-reply module add attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// AsyncTasks counts fire-and-forget writes by final status.
	AsyncTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "async_tasks_total",
			Help: "Fire-and-forget tasks by status.",
		},
		[]string{"status"},
	)

	// RemoteControlSessions counts remote-control session events.
	RemoteControlSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_control_sessions_total",
			Help: "Remote-control session events.",
		},
		[]string{"event"},
	)

	// TTLSwept counts documents removed by the TTL sweeper.
	TTLSwept = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttl_swept_documents_total",
			Help: "Documents deleted by TTL expiry.",
		},
		[]string{"collection"},
	)
)

func init() {
	prometheus.MustRegister(AutoReplyResolves, AutoReplyAdds, AsyncTasks, RemoteControlSessions, TTLSwept)
}
