package bus

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The SPA is served from the same origin in production; during
	// development the frontend runs on its own port.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades peer-relay connections and bridges them to the hub.
type Handler struct {
	hub *Hub
}

// NewHandler creates a websocket handler over the hub.
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// textPayload is the data half of send-message and submit-compliment events.
type textPayload struct {
	Text string `json:"text"`
}

// ServeWS handles GET /ws.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Bus] Upgrade failed err=%v", err)
		return
	}

	client := NewClient()
	log.Printf("[Bus] Client connected client_id=%s remote=%s", client.ID, r.RemoteAddr)

	go h.writePump(conn, client)
	h.readPump(conn, client)
}

// readPump decodes client events and dispatches them to the hub. Returning
// disconnects the client.
func (h *Handler) readPump(conn *websocket.Conn, client *Client) {
	defer func() {
		h.hub.Disconnect(client)
		close(client.Send)
		conn.Close()
	}()

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Bus] Read error client_id=%s err=%v", client.ID, err)
			}
			return
		}

		switch env.Type {
		case EventJoinQueue:
			h.hub.Join(client)
		case EventLeaveQueue:
			h.hub.Leave(client)
		case EventSendMessage:
			var p textPayload
			if err := json.Unmarshal(env.Data, &p); err != nil || p.Text == "" {
				continue
			}
			h.hub.SendMessage(client, p.Text)
		case EventSubmitCompliment:
			var p textPayload
			if err := json.Unmarshal(env.Data, &p); err != nil || p.Text == "" {
				continue
			}
			h.hub.SubmitCompliment(client, p.Text)
		default:
			log.Printf("[Bus] Unknown event type client_id=%s type=%s", client.ID, env.Type)
		}
	}
}

// writePump drains the client's send channel onto the connection.
func (h *Handler) writePump(conn *websocket.Conn, client *Client) {
	for env := range client.Send {
		if err := conn.WriteJSON(env); err != nil {
			log.Printf("[Bus] Write error client_id=%s err=%v", client.ID, err)
			return
		}
	}
}
