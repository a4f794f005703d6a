package websocket

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Connection is one member's live subscription to one auction's event feed.
type Connection interface {
	Send(message interface{}) error
	Close() error
	MemberID() string
	AuctionID() string
}

// ClientConnection wraps a gorilla websocket connection. Writes are
// serialized because broadcasts and control replies come from different
// goroutines.
type ClientConnection struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	memberID  string
	auctionID string
}

func NewClientConnection(conn *websocket.Conn, memberID, auctionID string) *ClientConnection {
	return &ClientConnection{
		conn:      conn,
		memberID:  memberID,
		auctionID: auctionID,
	}
}

func (c *ClientConnection) Send(message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(message)
}

func (c *ClientConnection) Close() error {
	return c.conn.Close()
}

func (c *ClientConnection) MemberID() string {
	return c.memberID
}

func (c *ClientConnection) AuctionID() string {
	return c.auctionID
}
