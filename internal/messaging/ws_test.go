package messaging

import (
	"testing"

	"github.com/gorilla/websocket"
)

func TestGetHubReusesPerApplication(t *testing.T) {
	a := getHub("app-1")
	b := getHub("app-1")
	if a != b {
		t.Fatal("expected the same hub for the same application id")
	}
	if other := getHub("app-2"); other == a {
		t.Fatal("expected distinct hubs for distinct application ids")
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	h := getHub("app-register-test")
	conn := &websocket.Conn{}

	h.register(conn)
	h.mu.RLock()
	_, ok := h.clients[conn]
	h.mu.RUnlock()
	if !ok {
		t.Fatal("connection not registered")
	}

	h.unregister(conn)
	h.mu.RLock()
	_, ok = h.clients[conn]
	h.mu.RUnlock()
	if ok {
		t.Fatal("connection still registered after unregister")
	}

	// Unregistering twice must not panic
	h.unregister(conn)
}
