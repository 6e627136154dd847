package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupNotifier(t *testing.T) (*Notifier, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewNotifier(client), client
}

func waitForEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "msg:user:42", UserChannel(42))
	assert.Equal(t, "msg:project:7", ProjectChannel(7))
}

func TestNotifier_PublishAndSubscribe(t *testing.T) {
	notifier, _ := setupNotifier(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type received struct {
		channel string
		payload string
	}
	got := make(chan received, 4)
	require.NoError(t, notifier.StartChatSubscriber(ctx, func(channel, payload string) {
		got <- received{channel, payload}
	}))

	// PSubscribe is asynchronous; give the subscriber a beat to attach
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, notifier.PublishMessageToUser(ctx, 5, `{"type":"message:new"}`))

	select {
	case r := <-got:
		assert.Equal(t, "msg:user:5", r.channel)
		assert.JSONEq(t, `{"type":"message:new"}`, r.payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}

	require.NoError(t, notifier.PublishMessageToProject(ctx, 7, `{"type":"message:new"}`))
	select {
	case r := <-got:
		assert.Equal(t, "msg:project:7", r.channel)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for project message")
	}
}

func TestNotifier_TypingEnvelope(t *testing.T) {
	notifier, _ := setupNotifier(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payloads := make(chan string, 2)
	require.NoError(t, notifier.StartChatSubscriber(ctx, func(_, payload string) {
		payloads <- payload
	}))
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, notifier.PublishTypingToUser(ctx, 3, 2, "Alice", true))

	var raw string
	select {
	case raw = <-payloads:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for typing event")
	}

	var event Event
	require.NoError(t, json.Unmarshal([]byte(raw), &event))
	assert.Equal(t, "typing:start", event.Type)
	assert.Equal(t, uint(2), event.UserID)

	payload, ok := event.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Alice", payload["name"])
	assert.Equal(t, true, payload["is_typing"])
	// Receivers self-clear after this horizon if no stop event arrives
	assert.EqualValues(t, 2000, payload["expires_in_ms"])

	t.Run("Stop event", func(t *testing.T) {
		require.NoError(t, notifier.PublishTypingToProject(ctx, 7, 2, "Alice", false))
		select {
		case raw = <-payloads:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for typing stop")
		}
		require.NoError(t, json.Unmarshal([]byte(raw), &event))
		assert.Equal(t, "typing:stop", event.Type)
	})
}

// End to end through the hub: a publish on one "instance" lands in the Send
// buffer of a connection registered on another.
func TestRoomHub_StartWiring(t *testing.T) {
	notifier, _ := setupNotifier(t)
	hub := NewRoomHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := hub.Register(5, nil)
	require.NoError(t, err)
	drainEvent(t, client)

	require.NoError(t, hub.StartWiring(ctx, notifier))
	time.Sleep(50 * time.Millisecond)

	events := make(chan Event, 4)
	go func() {
		for raw := range client.Send {
			var event Event
			if json.Unmarshal(raw, &event) == nil {
				events <- event
			}
		}
	}()

	t.Run("Personal channel", func(t *testing.T) {
		msgJSON, _ := json.Marshal(Event{Type: "message:new", UserID: 2, Payload: map[string]interface{}{"id": 10}})
		require.NoError(t, notifier.PublishMessageToUser(ctx, 5, string(msgJSON)))

		event := waitForEvent(t, events)
		assert.Equal(t, "message:new", event.Type)
	})

	t.Run("Project channel", func(t *testing.T) {
		hub.JoinProject(5, 7)

		msgJSON, _ := json.Marshal(Event{Type: "message:new", Payload: map[string]interface{}{"id": 11}})
		require.NoError(t, notifier.PublishMessageToProject(ctx, 7, string(msgJSON)))

		event := waitForEvent(t, events)
		assert.Equal(t, "message:new", event.Type)
		assert.Equal(t, uint(7), event.ProjectID)
	})

	t.Run("Typing fan-out", func(t *testing.T) {
		require.NoError(t, notifier.PublishTypingToUser(ctx, 5, 2, "Alice", true))

		event := waitForEvent(t, events)
		assert.Equal(t, "typing:start", event.Type)
		assert.Equal(t, uint(2), event.UserID)
	})

	t.Run("Notification channel", func(t *testing.T) {
		noticeJSON, _ := json.Marshal(Event{Type: "notification:new", UserID: 2,
			Payload: map[string]interface{}{"message_id": 12}})
		require.NoError(t, notifier.PublishNotification(ctx, 5, string(noticeJSON)))

		event := waitForEvent(t, events)
		assert.Equal(t, "notification:new", event.Type)
	})
}

func TestNotifier_NilRedisIsNoOp(t *testing.T) {
	notifier := NewNotifier(nil)
	ctx := context.Background()

	assert.NoError(t, notifier.PublishMessageToUser(ctx, 1, "x"))
	assert.NoError(t, notifier.PublishMessageToProject(ctx, 1, "x"))
	assert.NoError(t, notifier.PublishTypingToUser(ctx, 1, 2, "a", true))
	assert.NoError(t, notifier.PublishTypingToProject(ctx, 1, 2, "a", false))
	assert.NoError(t, notifier.PublishNotification(ctx, 1, "x"))
	assert.NoError(t, notifier.StartChatSubscriber(ctx, nil))
	assert.NoError(t, notifier.StartNotificationSubscriber(ctx, nil))
}
