package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"liaison/internal/observability"

	"github.com/gofiber/websocket/v2"
)

// maxConnsPerUser caps simultaneous devices per user; the connection cap
// is a hub concern, enforced at Register time.
const maxConnsPerUser = 8

// RoomHub manages WebSocket connections and their room membership. Every
// connection belongs to its user's personal room for the life of the
// connection; project rooms are joined and left explicitly while the user is
// viewing that project's thread.
type RoomHub struct {
	mu sync.RWMutex

	// Map: userID -> set of active Clients (multi-device support)
	userConns map[uint]map[*Client]bool

	// Map: projectID -> set of userIDs currently in the room
	projectRooms map[uint]map[uint]struct{}

	// Map: userID -> set of projectIDs they have joined
	userProjects map[uint]map[uint]struct{}
}

// Name returns a human-readable identifier for this hub.
func (h *RoomHub) Name() string { return "room hub" }

// Event is the envelope for everything broadcast to clients.
type Event struct {
	Type      string      `json:"type"` // "message:new", "typing:start", "typing:stop", "connected", "messages_dropped"
	ProjectID uint        `json:"project_id,omitempty"`
	UserID    uint        `json:"user_id,omitempty"`
	Payload   interface{} `json:"payload"`
}

// NewRoomHub creates a new RoomHub instance
func NewRoomHub() *RoomHub {
	return &RoomHub{
		userConns:    make(map[uint]map[*Client]bool),
		projectRooms: make(map[uint]map[uint]struct{}),
		userProjects: make(map[uint]map[uint]struct{}),
	}
}

// Register registers a user's websocket connection into their personal room.
// Returns the Client or an error if the per-user connection limit is hit.
func (h *RoomHub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()

	if h.userConns[userID] == nil {
		h.userConns[userID] = make(map[*Client]bool)
	}
	if len(h.userConns[userID]) >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, fmt.Errorf("user connection limit reached")
	}

	client := NewClient(h, conn, userID)
	h.userConns[userID][client] = true
	h.mu.Unlock()

	observability.WebSocketConnectionsTotal.Inc()
	log.Printf("RoomHub: Registered user %d (Active clients: %d)", userID, len(h.userConns[userID]))

	ack := Event{Type: "connected", UserID: userID, Payload: map[string]interface{}{"user_id": userID}}
	if jsonMsg, err := json.Marshal(ack); err == nil {
		client.TrySend(jsonMsg)
	}

	return client, nil
}

// UnregisterClient removes one of a user's connections. When the last
// connection goes, the user's project room memberships are cleaned up too;
// there is nothing else pending server-side per connection.
func (h *RoomHub) UnregisterClient(client *Client) {
	h.mu.Lock()

	clients, ok := h.userConns[client.UserID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, present := clients[client]; !present {
		h.mu.Unlock()
		return
	}
	delete(clients, client)
	observability.WebSocketConnectionsTotal.Dec()

	if len(clients) > 0 {
		h.mu.Unlock()
		log.Printf("RoomHub: Unregistered client for user %d (Remaining clients: %d)", client.UserID, len(clients))
		return
	}
	delete(h.userConns, client.UserID)

	// Last connection gone: drop the user from every project room
	if projects, ok := h.userProjects[client.UserID]; ok {
		for projectID := range projects {
			if members, ok := h.projectRooms[projectID]; ok {
				delete(members, client.UserID)
				observability.WebSocketRoomConnections.WithLabelValues(roomLabel(projectID)).Dec()
				if len(members) == 0 {
					delete(h.projectRooms, projectID)
				}
			}
		}
		delete(h.userProjects, client.UserID)
	}

	h.mu.Unlock()
	log.Printf("RoomHub: Unregistered user %d (All connections closed)", client.UserID)
}

// JoinProject subscribes a connected user to a project room.
func (h *RoomHub) JoinProject(userID, projectID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.userConns[userID]; !ok {
		log.Printf("RoomHub: User %d not connected, cannot join project %d", userID, projectID)
		return
	}

	if h.projectRooms[projectID] == nil {
		h.projectRooms[projectID] = make(map[uint]struct{})
	}
	if _, already := h.projectRooms[projectID][userID]; !already {
		h.projectRooms[projectID][userID] = struct{}{}
		observability.WebSocketRoomConnections.WithLabelValues(roomLabel(projectID)).Inc()
	}

	if h.userProjects[userID] == nil {
		h.userProjects[userID] = make(map[uint]struct{})
	}
	h.userProjects[userID][projectID] = struct{}{}

	log.Printf("RoomHub: User %d joined project %d", userID, projectID)
}

// LeaveProject unsubscribes a user from a project room.
func (h *RoomHub) LeaveProject(userID, projectID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.projectRooms[projectID]; ok {
		if _, present := members[userID]; present {
			delete(members, userID)
			observability.WebSocketRoomConnections.WithLabelValues(roomLabel(projectID)).Dec()
		}
		if len(members) == 0 {
			delete(h.projectRooms, projectID)
		}
	}
	if projects, ok := h.userProjects[userID]; ok {
		delete(projects, projectID)
	}

	log.Printf("RoomHub: User %d left project %d", userID, projectID)
}

// IsUserConnected reports whether the user has at least one active client.
func (h *RoomHub) IsUserConnected(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.userConns[userID]
	return ok && len(clients) > 0
}

// BroadcastToUser sends an event to every connection in a user's personal room.
func (h *RoomHub) BroadcastToUser(userID uint, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	jsonMsg, err := json.Marshal(event)
	if err != nil {
		log.Printf("RoomHub: Failed to marshal event: %v", err)
		return
	}

	observability.WebSocketEventsTotal.WithLabelValues(event.Type).Inc()
	for client := range h.userConns[userID] {
		client.TrySend(jsonMsg)
	}
}

// BroadcastToProject sends an event to every user in a project room.
func (h *RoomHub) BroadcastToProject(projectID uint, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.projectRooms[projectID]
	if !ok {
		return
	}

	jsonMsg, err := json.Marshal(event)
	if err != nil {
		log.Printf("RoomHub: Failed to marshal event: %v", err)
		return
	}

	observability.WebSocketEventsTotal.WithLabelValues(event.Type).Inc()
	for userID := range members {
		for client := range h.userConns[userID] {
			client.TrySend(jsonMsg)
		}
	}
}

// ProjectMembers returns the userIDs currently in a project room.
func (h *RoomHub) ProjectMembers(projectID uint) []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.projectRooms[projectID]
	if !ok {
		return []uint{}
	}
	result := make([]uint, 0, len(members))
	for userID := range members {
		result = append(result, userID)
	}
	return result
}

// StartWiring connects the RoomHub to Redis pub/sub so events published by
// any instance reach the connections held by this one.
func (h *RoomHub) StartWiring(ctx context.Context, n *Notifier) error {
	if err := n.StartNotificationSubscriber(ctx, func(channel, payload string) {
		var id uint
		if !scanChannel(channel, "notify:user:%d", &id) {
			log.Printf("RoomHub: Invalid notify channel format: %s", channel)
			return
		}
		var event Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			log.Printf("RoomHub: Failed to parse notification from channel %s: %v", channel, err)
			return
		}
		h.BroadcastToUser(id, event)
	}); err != nil {
		return err
	}

	return n.StartChatSubscriber(ctx, func(channel, payload string) {
		var id uint
		var eventType string
		var toProject bool

		switch {
		case scanChannel(channel, "msg:user:%d", &id):
			eventType = "message:new"
		case scanChannel(channel, "msg:project:%d", &id):
			eventType, toProject = "message:new", true
		case scanChannel(channel, "typing:user:%d", &id):
			eventType = "typing"
		case scanChannel(channel, "typing:project:%d", &id):
			eventType, toProject = "typing", true
		default:
			log.Printf("RoomHub: Invalid channel format: %s", channel)
			return
		}

		var event Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			log.Printf("RoomHub: Failed to parse event from channel %s: %v", channel, err)
			return
		}
		if event.Type == "" {
			event.Type = eventType
		}

		if toProject {
			event.ProjectID = id
			h.BroadcastToProject(id, event)
		} else {
			h.BroadcastToUser(id, event)
		}
	})
}

func scanChannel(channel, format string, id *uint) bool {
	_, err := fmt.Sscanf(channel, format, id)
	return err == nil
}

func roomLabel(projectID uint) string {
	return fmt.Sprintf("project:%d", projectID)
}

// Shutdown gracefully closes all websocket connections
func (h *RoomHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, clients := range h.userConns {
		for client := range clients {
			if err := client.Conn.WriteMessage(websocket.TextMessage,
				[]byte(`{"type":"server_shutdown","message":"Server is shutting down"}`)); err != nil {
				log.Printf("failed to write shutdown message for user %d: %v", userID, err)
			}
			if err := client.Conn.Close(); err != nil {
				log.Printf("failed to close websocket for user %d: %v", userID, err)
			}
		}
	}

	h.userConns = make(map[uint]map[*Client]bool)
	h.projectRooms = make(map[uint]map[uint]struct{})
	h.userProjects = make(map[uint]map[uint]struct{})

	return nil
}
