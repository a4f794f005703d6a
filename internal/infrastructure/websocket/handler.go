package websocket

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"auction-settlement/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// Handler upgrades HTTP requests to auction event subscriptions. The gateway
// is read-only: clients receive settlement events and place bids elsewhere,
// so inbound traffic is drained and only ping frames get a reply.
type Handler struct {
	manager *ConnectionManager
	log     logger.Logger
}

func NewHandler(manager *ConnectionManager, log logger.Logger) *Handler {
	return &Handler{
		manager: manager,
		log:     log,
	}
}

func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	auctionID := vars["auctionID"]

	memberID := r.URL.Query().Get("member_id")
	if memberID == "" {
		http.Error(w, "member_id required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewClientConnection(conn, memberID, auctionID)
	if err := h.manager.RegisterConnection(memberID, auctionID, client); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		conn.Close()
		return
	}

	go h.readLoop(client)
}

// readLoop drains the connection until the peer goes away, answering pings so
// idle clients can keep the subscription alive.
func (h *Handler) readLoop(client *ClientConnection) {
	defer func() {
		h.manager.UnregisterConnection(client.MemberID(), client.AuctionID())
		client.Close()
	}()

	for {
		var msg map[string]interface{}
		if err := client.conn.ReadJSON(&msg); err != nil {
			return
		}

		if msgType, ok := msg["type"].(string); ok && msgType == "ping" {
			client.Send(map[string]string{"type": "pong"})
		}
	}
}
