package server

import "github.com/prometheus/client_golang/prometheus"

var (
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "planning_poker_ws_connections",
			Help: "Current number of active websocket connections.",
		},
	)
	pokerRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "planning_poker_rooms",
			Help: "Current number of rooms in the registry.",
		},
	)
	pokerParticipants = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "planning_poker_participants",
			Help: "Current number of participants across all rooms.",
		},
	)
	wsMessagesHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planning_poker_messages_handled_total",
			Help: "Total inbound websocket messages handled, by type.",
		},
		[]string{"type"},
	)
	wsHandlerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planning_poker_handler_errors_total",
			Help: "Total inbound messages that failed, by type and error code.",
		},
		[]string{"type", "code"},
	)
)

func init() {
	prometheus.MustRegister(wsConnections, pokerRooms, pokerParticipants, wsMessagesHandled, wsHandlerErrors)
}

func setConnections(count int) {
	wsConnections.Set(float64(count))
}

func setRegistryStats(rooms, participants int) {
	pokerRooms.Set(float64(rooms))
	pokerParticipants.Set(float64(participants))
}

func incHandled(messageType string) {
	wsMessagesHandled.WithLabelValues(messageType).Inc()
}

func incHandlerError(messageType, code string) {
	wsHandlerErrors.WithLabelValues(messageType, code).Inc()
}
