package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConversations(t *testing.T) {
	f := newServerFixture(t)
	coordinatorApp := f.appAs(f.coordinator.ID)
	clientApp := f.appAs(f.client.ID)

	t.Run("Empty history still lists permitted contacts", func(t *testing.T) {
		resp, body := doJSON(t, clientApp, http.MethodGet, "/api/conversations", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, false, body["degraded"])

		// The client may reach the admin and their project coordinator
		conversations := body["conversations"].([]interface{})
		assert.Len(t, conversations, 2)
		for _, raw := range conversations {
			conv := raw.(map[string]interface{})
			assert.Empty(t, conv["last_message"])
			assert.EqualValues(t, 0, conv["unread_count"])
		}
	})

	t.Run("History threads sort above empty contacts", func(t *testing.T) {
		resp, _ := doJSON(t, coordinatorApp, http.MethodPost, "/api/messages/", map[string]interface{}{
			"recipient_id": f.client.ID,
			"content":      "newest thread",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		resp, body := doJSON(t, clientApp, http.MethodGet, "/api/conversations", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		conversations := body["conversations"].([]interface{})
		require.Len(t, conversations, 2)

		first := conversations[0].(map[string]interface{})
		counterpart := first["counterpart"].(map[string]interface{})
		assert.EqualValues(t, f.coordinator.ID, counterpart["id"])
		assert.Equal(t, "newest thread", first["last_message"])
		assert.EqualValues(t, 1, first["unread_count"])

		second := conversations[1].(map[string]interface{})
		secondCounterpart := second["counterpart"].(map[string]interface{})
		assert.EqualValues(t, f.admin.ID, secondCounterpart["id"])
	})

	t.Run("Read receipt clears the badge", func(t *testing.T) {
		resp, _ := doJSON(t, clientApp, http.MethodPost, "/api/messages/read", map[string]interface{}{
			"participant_id": f.coordinator.ID,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		_, body := doJSON(t, clientApp, http.MethodGet, "/api/conversations", nil)
		conversations := body["conversations"].([]interface{})
		first := conversations[0].(map[string]interface{})
		assert.EqualValues(t, 0, first["unread_count"])
	})

	t.Run("Coordinator sees the client thread too", func(t *testing.T) {
		_, body := doJSON(t, coordinatorApp, http.MethodGet, "/api/conversations", nil)
		conversations := body["conversations"].([]interface{})
		require.NotEmpty(t, conversations)

		first := conversations[0].(map[string]interface{})
		counterpart := first["counterpart"].(map[string]interface{})
		assert.EqualValues(t, f.client.ID, counterpart["id"])
		// Own sent messages are never unread
		assert.EqualValues(t, 0, first["unread_count"])
	})
}

func TestGetConversations_NeverErrors(t *testing.T) {
	f := newServerFixture(t)
	app := f.appAs(f.client.ID)

	// Sabotage the message log; the endpoint must still answer 200
	require.NoError(t, f.db.Migrator().DropTable("messages"))

	resp, body := doJSON(t, app, http.MethodGet, "/api/conversations", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["degraded"])
	assert.NotNil(t, body["conversations"])
}
