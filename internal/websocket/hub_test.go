package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"go-user-admin/internal/event"
)

func startHub(t *testing.T) (*event.InMemoryBus, *httptest.Server, context.CancelFunc) {
	t.Helper()

	bus := event.NewBus()
	hub := NewHub(bus)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(server.Close)
	t.Cleanup(cancel)

	return bus, server, cancel
}

func dial(t *testing.T, server *httptest.Server) *gorillaws.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = resp.Body.Close()
		_ = conn.Close()
	})
	return conn
}

// publishUntil keeps publishing e until stop is closed; registration with
// the hub completes asynchronously after the handshake.
func publishUntil(bus event.Bus, e event.Event, stop <-chan struct{}) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		bus.Publish(e)
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

func TestHub_BroadcastsBusEvents(t *testing.T) {
	bus, server, _ := startHub(t)
	conn := dial(t, server)

	stop := make(chan struct{})
	defer close(stop)
	go publishUntil(bus, event.Event{Type: event.TypeUserCreated, Subject: "u-1"}, stop)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var got event.Event
	require.NoError(t, json.Unmarshal(message, &got))
	require.Equal(t, event.TypeUserCreated, got.Type)
	require.Equal(t, "u-1", got.Subject)
	require.NotEmpty(t, got.ID)
}

func TestHub_ClosesClientsOnShutdown(t *testing.T) {
	bus, server, cancel := startHub(t)
	conn := dial(t, server)

	// wait until the client is registered and receiving
	stop := make(chan struct{})
	go publishUntil(bus, event.Event{Type: event.TypeUserUpdated, Subject: "u-2"}, stop)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	close(stop)
	require.NoError(t, err)

	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		if _, _, err = conn.ReadMessage(); err != nil {
			break
		}
	}
	require.True(t, gorillaws.IsCloseError(err, gorillaws.CloseNormalClosure, gorillaws.CloseNoStatusReceived) ||
		strings.Contains(err.Error(), "EOF") || strings.Contains(err.Error(), "close"), err.Error())
}
