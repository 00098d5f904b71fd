package messaging

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

type wsEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type hub struct {
	applicationID string
	clients       map[*websocket.Conn]bool
	mu            sync.RWMutex
}

var (
	hubsMu sync.RWMutex
	hubs   = make(map[string]*hub)
)

func getHub(applicationID string) *hub {
	hubsMu.Lock()
	defer hubsMu.Unlock()
	if h, ok := hubs[applicationID]; ok {
		return h
	}
	h := &hub{applicationID: applicationID, clients: make(map[*websocket.Conn]bool)}
	hubs[applicationID] = h
	return h
}

func (h *hub) broadcast(evt wsEvent) {
	payload, _ := json.Marshal(evt)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		_ = c.WriteMessage(websocket.TextMessage, payload)
	}
}

func (h *hub) register(c *websocket.Conn) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

func (h *hub) unregister(c *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
	}
	h.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ThreadWS - websocket for realtime updates on an application thread
func ThreadWS(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	applicationID := c.Param("id")
	if applicationID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing application id"})
	}

	_, found, member, err := participants(applicationID, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch thread"})
	}
	if !found {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "thread not found"})
	}
	if !member {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this thread"})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	h := getHub(applicationID)
	h.register(ws)

	h.broadcast(wsEvent{Type: "presence_join", Data: echo.Map{"user_id": userID}})

	// Read loop (discard client messages; protocol is server push for now)
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			h.unregister(ws)
			_ = ws.Close()
			h.broadcast(wsEvent{Type: "presence_leave", Data: echo.Map{"user_id": userID}})
			break
		}
	}
	return nil
}

// BroadcastNewMessage - publish a new message event to the thread hub
func BroadcastNewMessage(applicationID string, message interface{}) {
	h := getHub(applicationID)
	h.broadcast(wsEvent{Type: "message_new", Data: message})
}

// BroadcastMessageRead - publish a message read event
func BroadcastMessageRead(applicationID string, payload interface{}) {
	h := getHub(applicationID)
	h.broadcast(wsEvent{Type: "message_read", Data: payload})
}

// BroadcastProposal - publish a schedule proposal state change
func BroadcastProposal(applicationID, messageID, status string) {
	h := getHub(applicationID)
	h.broadcast(wsEvent{Type: "schedule_proposal", Data: echo.Map{
		"message_id": messageID,
		"status":     status,
	}})
}
