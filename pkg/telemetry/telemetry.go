// Package telemetry holds the server's prometheus collectors. Everything
// is registered on the default registry and served by promhttp at
// /metrics from the server main.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"chatline/pkg/store"
)

var (
	// ActiveConnections tracks live websocket connections on the hub.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatline",
		Name:      "active_connections",
		Help:      "Number of open event-channel connections.",
	})

	// EventsTotal counts channel events by name and direction
	// (received/broadcast).
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatline",
		Name:      "channel_events_total",
		Help:      "Channel events processed, by event kind and direction.",
	}, []string{"event", "direction"})

	// MessagesPersisted counts direct messages written to the store.
	MessagesPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatline",
		Name:      "messages_persisted_total",
		Help:      "Direct messages appended to conversation history.",
	})

	// RoomOccupants tracks the current ephemeral room roster size.
	RoomOccupants = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatline",
		Name:      "room_occupants",
		Help:      "Current number of names in the room roster.",
	})

	// SignAttempts counts login/registration outcomes.
	SignAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatline",
		Name:      "sign_attempts_total",
		Help:      "Outcomes of POST /sign.",
	}, []string{"outcome"})
)

func init() {
	// Best-effort on-disk size of the pebble directory.
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "chatline",
		Name:      "store_disk_bytes",
		Help:      "Total bytes on disk under the store path.",
	}, func() float64 { return float64(store.DiskUsage()) })
}
