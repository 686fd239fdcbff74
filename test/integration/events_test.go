//go:build integration

package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-user-admin/internal/event"
)

func TestAdminEventStream(t *testing.T) {
	server := newTestServer(t)
	browser := newBrowser(t)
	loginAs(t, browser, server, "admin")

	dialer := gorillaws.Dialer{Jar: browser.Jar, HandshakeTimeout: 5 * time.Second}
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/admin/events"
	conn, resp, err := dialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = resp.Body.Close()

	messages := make(chan []byte, 1)
	go func() {
		_, message, err := conn.ReadMessage()
		if err == nil {
			messages <- message
		}
	}()

	// the hub registers the connection after the handshake returns, so keep
	// producing events until one arrives
	var got event.Event
	deadline := time.After(5 * time.Second)
	for i := 0; got.Type == ""; i++ {
		created, payload := do(t, browser, http.MethodPost, server.URL+"/api/admin/users", map[string]string{
			"username": fmt.Sprintf("live%d", i), "name": "Live", "email": "live@example.com",
		})
		require.Equal(t, http.StatusCreated, created.StatusCode, string(payload))

		select {
		case message := <-messages:
			require.NoError(t, json.Unmarshal(message, &got))
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("no event received over the websocket")
		}
	}

	assert.Equal(t, event.TypeUserCreated, got.Type)
}

func TestEventStreamRequiresAdmin(t *testing.T) {
	server := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/admin/events"

	_, resp, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.ErrorIs(t, err, gorillaws.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	browser := newBrowser(t)
	loginAs(t, browser, server, "user")
	dialer := gorillaws.Dialer{Jar: browser.Jar}
	_, resp, err = dialer.Dial(wsURL, nil)
	require.ErrorIs(t, err, gorillaws.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
