package websocket

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"auction-settlement/pkg/logger"
)

type fakeConn struct {
	memberID  string
	auctionID string
	sent      []interface{}
	closed    bool
	sendErr   error
}

func (c *fakeConn) Send(message interface{}) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, message)
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConn) MemberID() string  { return c.memberID }
func (c *fakeConn) AuctionID() string { return c.auctionID }

func register(t *testing.T, cm *ConnectionManager, memberID, auctionID string) *fakeConn {
	t.Helper()
	conn := &fakeConn{memberID: memberID, auctionID: auctionID}
	require.NoError(t, cm.RegisterConnection(memberID, auctionID, conn))
	return conn
}

func TestConnectionManager_BroadcastReachesOnlyWatchers(t *testing.T) {
	t.Parallel()

	cm := NewConnectionManager(logger.NewNop())
	alice := register(t, cm, "alice", "a1")
	bob := register(t, cm, "bob", "a1")
	carol := register(t, cm, "carol", "a2")

	require.NoError(t, cm.BroadcastToAuction("a1", "hello"))

	require.Equal(t, []interface{}{"hello"}, alice.sent)
	require.Equal(t, []interface{}{"hello"}, bob.sent)
	require.Empty(t, carol.sent)
}

func TestConnectionManager_BroadcastSurvivesSendFailure(t *testing.T) {
	t.Parallel()

	cm := NewConnectionManager(logger.NewNop())
	broken := &fakeConn{memberID: "alice", auctionID: "a1", sendErr: errors.New("write: broken pipe")}
	require.NoError(t, cm.RegisterConnection("alice", "a1", broken))
	bob := register(t, cm, "bob", "a1")

	require.NoError(t, cm.BroadcastToAuction("a1", "hello"))
	require.Equal(t, []interface{}{"hello"}, bob.sent)
}

func TestConnectionManager_ReconnectReplacesConnection(t *testing.T) {
	t.Parallel()

	cm := NewConnectionManager(logger.NewNop())
	old := register(t, cm, "alice", "a1")
	fresh := register(t, cm, "alice", "a1")

	require.True(t, old.closed)

	require.NoError(t, cm.BroadcastToAuction("a1", "hello"))
	require.Empty(t, old.sent)
	require.Equal(t, []interface{}{"hello"}, fresh.sent)
}

func TestConnectionManager_Unregister(t *testing.T) {
	t.Parallel()

	cm := NewConnectionManager(logger.NewNop())
	alice := register(t, cm, "alice", "a1")
	bob := register(t, cm, "bob", "a1")

	require.NoError(t, cm.UnregisterConnection("alice", "a1"))
	require.NoError(t, cm.BroadcastToAuction("a1", "hello"))

	require.Empty(t, alice.sent)
	require.Equal(t, []interface{}{"hello"}, bob.sent)
}

func TestConnectionManager_CloseAuctionConnections(t *testing.T) {
	t.Parallel()

	cm := NewConnectionManager(logger.NewNop())
	alice := register(t, cm, "alice", "a1")
	bob := register(t, cm, "bob", "a1")
	carol := register(t, cm, "carol", "a2")

	require.NoError(t, cm.CloseAuctionConnections("a1"))

	require.True(t, alice.closed)
	require.True(t, bob.closed)
	require.False(t, carol.closed)

	// The registry is empty for the closed auction: later broadcasts hit
	// nobody and closing again is a no-op.
	require.NoError(t, cm.BroadcastToAuction("a1", "hello"))
	require.Empty(t, alice.sent)
	require.Empty(t, bob.sent)
	require.NoError(t, cm.CloseAuctionConnections("a1"))
	require.Empty(t, cm.ConnectionsForAuction("a1"))
	require.Len(t, cm.ConnectionsForAuction("a2"), 1)
}
