package websocket

import (
	"sync"

	"auction-settlement/pkg/logger"
)

// ConnectionManager keeps the live connections per auction and implements
// domain.AuctionBroadcaster for the event relay. One member holds at most one
// connection per auction; a reconnect replaces the old one.
type ConnectionManager struct {
	mutex       sync.RWMutex
	connections map[string]map[string]Connection // auctionID -> memberID -> connection
	log         logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]map[string]Connection),
		log:         log,
	}
}

func (cm *ConnectionManager) RegisterConnection(memberID, auctionID string, conn Connection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.connections[auctionID] == nil {
		cm.connections[auctionID] = make(map[string]Connection)
	}
	if old, exists := cm.connections[auctionID][memberID]; exists {
		old.Close()
	}
	cm.connections[auctionID][memberID] = conn

	cm.log.Info("Connection registered", "member_id", memberID, "auction_id", auctionID)
	return nil
}

func (cm *ConnectionManager) UnregisterConnection(memberID, auctionID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if auctionConns, exists := cm.connections[auctionID]; exists {
		delete(auctionConns, memberID)
		if len(auctionConns) == 0 {
			delete(cm.connections, auctionID)
		}
	}

	cm.log.Info("Connection unregistered", "member_id", memberID, "auction_id", auctionID)
	return nil
}

// BroadcastToAuction sends the message to every connection watching the
// auction. Send failures are logged per connection and do not stop the
// broadcast.
func (cm *ConnectionManager) BroadcastToAuction(auctionID string, message interface{}) error {
	for _, conn := range cm.ConnectionsForAuction(auctionID) {
		if err := conn.Send(message); err != nil {
			cm.log.Error("Failed to send message", "member_id", conn.MemberID(),
				"auction_id", auctionID, "error", err)
		}
	}
	return nil
}

// CloseAuctionConnections closes and drops every connection watching the
// auction. Called by the relay once the auction has closed.
func (cm *ConnectionManager) CloseAuctionConnections(auctionID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	auctionConns, exists := cm.connections[auctionID]
	if !exists {
		return nil
	}

	for memberID, conn := range auctionConns {
		if err := conn.Close(); err != nil {
			cm.log.Error("Failed to close connection", "member_id", memberID,
				"auction_id", auctionID, "error", err)
		}
	}
	delete(cm.connections, auctionID)

	cm.log.Info("Connections closed for auction", "auction_id", auctionID)
	return nil
}

func (cm *ConnectionManager) ConnectionsForAuction(auctionID string) []Connection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	var connections []Connection
	for _, conn := range cm.connections[auctionID] {
		connections = append(connections, conn)
	}
	return connections
}
