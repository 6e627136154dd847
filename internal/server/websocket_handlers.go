package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"liaison/internal/middleware"
	"liaison/internal/notifications"
	"liaison/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebSocketChatHandler handles WebSocket connections for real-time messaging.
// Every connection lives in its user's personal room; project rooms are
// joined and left explicitly via join_project/leave_project events.
func (s *Server) WebSocketChatHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		ctx := context.Background()

		// Get userID from connection locals (set by WebSocketAuthRequired)
		userIDVal := conn.Locals("userID")
		if userIDVal == nil {
			log.Printf("WebSocket: Unauthenticated connection attempt")
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}
		userID := userIDVal.(uint)

		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			log.Printf("WebSocket: Failed to get user %d: %v", userID, err)
			_ = conn.Close()
			return
		}
		name := user.Name

		client, err := s.roomHub.Register(userID, conn)
		if err != nil {
			log.Printf("WebSocket: Failed to register user %d: %v", userID, err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		// Connecting counts as activity
		s.presenceService.Touch(ctx, userID)

		client.IncomingHandler = func(c *notifications.Client, message []byte) {
			var incoming struct {
				Type          string `json:"type"`
				ProjectID     uint   `json:"project_id,omitempty"`
				ParticipantID uint   `json:"participant_id,omitempty"`
				IsTyping      bool   `json:"is_typing,omitempty"`
			}
			if err := json.Unmarshal(message, &incoming); err != nil {
				log.Printf("WebSocket: Invalid message format from user %d", userID)
				return
			}

			// Inbound traffic refreshes presence like any authenticated activity
			s.presenceService.Touch(ctx, userID)

			switch incoming.Type {
			case "join_project":
				if incoming.ProjectID == 0 {
					return
				}
				// Only project members may join the room
				member, err := s.projectRepo.IsMember(ctx, incoming.ProjectID, userID)
				if err != nil || !member {
					return
				}
				s.roomHub.JoinProject(userID, incoming.ProjectID)

				response := notifications.Event{
					Type:      "joined",
					ProjectID: incoming.ProjectID,
					Payload:   map[string]interface{}{"project_id": incoming.ProjectID},
				}
				if respJSON, err := json.Marshal(response); err == nil {
					c.TrySend(respJSON)
				}

			case "leave_project":
				if incoming.ProjectID == 0 {
					return
				}
				s.roomHub.LeaveProject(userID, incoming.ProjectID)

			case "typing":
				s.handleTyping(ctx, userID, name, incoming.ParticipantID, incoming.ProjectID, incoming.IsTyping)
			}
		}

		// Start write pump in a goroutine
		go client.WritePump()

		// Read pump runs in the main handler goroutine (blocking)
		client.ReadPump()
	})
}

// handleTyping relays an ephemeral typing signal. Nothing is persisted and
// delivery is best-effort: the sender re-emits on every keystroke and the
// receiver self-clears on a local timeout, so a dropped event heals itself.
func (s *Server) handleTyping(ctx context.Context, userID uint, name string, participantID, projectID uint, isTyping bool) {
	if !s.featureFlags.Enabled("typing", userID) {
		return
	}
	if participantID == 0 && projectID == 0 {
		return
	}

	// Rate limit typing signals to keep keystroke storms off the wire
	id := fmt.Sprintf("user:%d", userID)
	allowed, _ := middleware.CheckRateLimit(ctx, s.redis, "typing", id, 10, 10*time.Second)
	if !allowed {
		return
	}

	state := "stop"
	if isTyping {
		state = "start"
	}
	observability.TypingSignals.WithLabelValues(state).Inc()

	eventType := "typing:" + state

	if projectID != 0 {
		member, err := s.projectRepo.IsMember(ctx, projectID, userID)
		if err != nil || !member {
			return
		}
		if s.redis != nil {
			if perr := s.notifier.PublishTypingToProject(ctx, projectID, userID, name, isTyping); perr != nil {
				log.Printf("publish typing signal error: %v", perr)
			}
			return
		}
		s.roomHub.BroadcastToProject(projectID, notifications.Event{
			Type:      eventType,
			ProjectID: projectID,
			UserID:    userID,
			Payload:   typingPayload(userID, name, isTyping),
		})
		return
	}

	// Direct typing signal: the permission edge applies to soft signals too
	allowed, err := s.permissionService.CanMessage(ctx, userID, participantID)
	if err != nil || !allowed {
		return
	}
	if s.redis != nil {
		if perr := s.notifier.PublishTypingToUser(ctx, participantID, userID, name, isTyping); perr != nil {
			log.Printf("publish typing signal error: %v", perr)
		}
		return
	}
	s.roomHub.BroadcastToUser(participantID, notifications.Event{
		Type:    eventType,
		UserID:  userID,
		Payload: typingPayload(userID, name, isTyping),
	})
}

// typingPayload mirrors the envelope the Redis path publishes so clients see
// one shape either way. The expiry horizon is the receiver's self-clear
// timeout when no stop event arrives.
func typingPayload(userID uint, name string, isTyping bool) map[string]interface{} {
	return map[string]interface{}{
		"user_id":       userID,
		"name":          name,
		"is_typing":     isTyping,
		"expires_in_ms": 2000,
	}
}
