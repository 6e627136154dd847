package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Notifier publishes real-time events into Redis channels so every server
// instance can fan them out to its own connections. All publishes are
// fire-and-forget: the persisted message is the source of truth and a lost
// event surfaces on the next list fetch.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishMessageToUser sends a persisted-message payload to a user's personal channel.
func (n *Notifier) PublishMessageToUser(
	ctx context.Context, userID uint, payload string,
) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishMessageToProject sends a persisted-message payload to a project room channel.
func (n *Notifier) PublishMessageToProject(
	ctx context.Context, projectID uint, payload string,
) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, ProjectChannel(projectID), payload).Err()
}

// PublishTypingToUser publishes a typing indicator to the counterpart's
// personal channel. Never persisted and never retried; the sender re-emits
// on every keystroke and the receiver self-clears on a local timeout.
func (n *Notifier) PublishTypingToUser(
	ctx context.Context, recipientID, senderID uint, senderName string, isTyping bool,
) error {
	if n.rdb == nil {
		return nil
	}
	payload, err := typingEvent(senderID, senderName, isTyping)
	if err != nil {
		return err
	}
	channel := fmt.Sprintf("typing:user:%d", recipientID)
	return n.rdb.Publish(ctx, channel, payload).Err()
}

// PublishTypingToProject publishes a typing indicator to a project room.
func (n *Notifier) PublishTypingToProject(
	ctx context.Context, projectID, senderID uint, senderName string, isTyping bool,
) error {
	if n.rdb == nil {
		return nil
	}
	payload, err := typingEvent(senderID, senderName, isTyping)
	if err != nil {
		return err
	}
	channel := fmt.Sprintf("typing:project:%d", projectID)
	return n.rdb.Publish(ctx, channel, payload).Err()
}

// typingEvent builds the full Event envelope so subscribers fan it out
// without re-wrapping.
func typingEvent(senderID uint, senderName string, isTyping bool) (string, error) {
	eventType := "typing:stop"
	if isTyping {
		eventType = "typing:start"
	}
	event := Event{
		Type:   eventType,
		UserID: senderID,
		Payload: map[string]interface{}{
			"user_id":       senderID,
			"name":          senderName,
			"is_typing":     isTyping,
			"expires_in_ms": 2000,
		},
	}
	payloadJSON, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(payloadJSON), nil
}

// PublishNotification sends a generic notification payload to a user's
// notification channel, consumed by the notification fan-out UI.
func (n *Notifier) PublishNotification(ctx context.Context, userID uint, payload string) error {
	if n.rdb == nil {
		return nil
	}
	channel := fmt.Sprintf("notify:user:%d", userID)
	return n.rdb.Publish(ctx, channel, payload).Err()
}

// StartChatSubscriber subscribes to message and typing patterns and calls
// onMessage for each incoming event. Subscribes to: msg:user:*,
// msg:project:*, typing:user:*, typing:project:*
func (n *Notifier) StartChatSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "msg:user:*", "msg:project:*", "typing:user:*", "typing:project:*")
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in ChatSubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// StartNotificationSubscriber subscribes to `notify:user:*` and calls
// onMessage for each incoming notification.
func (n *Notifier) StartNotificationSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "notify:user:*")
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in NotificationSubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel derives the Redis channel name for a user's personal room.
func UserChannel(userID uint) string {
	return "msg:user:" + strconv.FormatUint(uint64(userID), 10)
}

// ProjectChannel derives the Redis channel name for a project room.
func ProjectChannel(projectID uint) string {
	return "msg:project:" + strconv.FormatUint(uint64(projectID), 10)
}
