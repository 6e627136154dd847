// Package observability provides metrics and tracing.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesSent counts persisted messages by scope (direct or project).
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liaison_messages_sent_total",
		Help: "Total number of messages persisted",
	}, []string{"scope"})

	// PermissionDenials counts denied send attempts by reason.
	PermissionDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liaison_permission_denials_total",
		Help: "Total number of denied messaging attempts",
	}, []string{"reason"})

	// DegradedConversationLists counts conversation listings that returned a
	// partial or empty result because a sub-step failed.
	DegradedConversationLists = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liaison_degraded_conversation_lists_total",
		Help: "Total number of conversation listings served degraded",
	})

	// MessagesRead counts rows flipped to read by mark-read calls.
	MessagesRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liaison_messages_read_total",
		Help: "Total number of messages marked read",
	})

	// WebSocketConnectionsTotal is the gauge of active WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "liaison_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketRoomConnections is the gauge of connections per project room.
	WebSocketRoomConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "liaison_websocket_room_connections",
		Help: "Number of WebSocket connections per project room",
	}, []string{"room"})

	// WebSocketEventsTotal counts WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liaison_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liaison_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// TypingSignals counts typing broadcasts by direction (start/stop).
	TypingSignals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liaison_typing_signals_total",
		Help: "Total typing signals broadcast",
	}, []string{"state"})
)
