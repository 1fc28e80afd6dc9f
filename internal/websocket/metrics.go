package websocket

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jobyojnahub-a11y/websevixof/internal/realtime"
)

var (
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_connections",
			Help: "Current number of active websocket connections.",
		},
	)
	wsRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_rooms",
			Help: "Current number of websocket rooms with local members.",
		},
	)
	wsMessagesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_ws_messages_delivered_total",
			Help: "Total websocket frames delivered to room members.",
		},
	)
	wsClientsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_ws_clients_dropped_total",
			Help: "Connections closed because their send buffer was full.",
		},
	)
	wsEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_events_total",
			Help: "Inbound realtime events by name and acknowledgement status.",
		},
		[]string{"event", "status"},
	)
)

func init() {
	prometheus.MustRegister(wsConnections, wsRooms, wsMessagesDelivered, wsClientsDropped, wsEvents)
}

func incConnections() {
	wsConnections.Inc()
}

func decConnections() {
	wsConnections.Dec()
}

func setRooms(count int) {
	wsRooms.Set(float64(count))
}

func addDelivered(count int) {
	wsMessagesDelivered.Add(float64(count))
}

func incDropped() {
	wsClientsDropped.Inc()
}

func observeEvent(event, status string) {
	if !realtime.IsInbound(event) {
		event = "unknown"
	}
	wsEvents.WithLabelValues(event, status).Inc()
}
