package domain

import (
	"context"
)

// Repository ports

// AuctionRepository is the persistence collaborator the settlement engine
// drives. ListAuctions returns every known auction with its bids, fresh as of
// the call. SaveChanges persists all mutations made to the returned
// aggregates since the previous commit; after it returns, those mutations are
// durable and visible to subsequent ListAuctions calls. The engine holds no
// durable state of its own.
type AuctionRepository interface {
	ListAuctions(ctx context.Context) ([]*Auction, error)
	SaveChanges(ctx context.Context) error
}

// AuctionStore is the full collaborator surface used by API handlers and test
// fixtures to seed and read members, auctions and bids. The settlement engine
// never calls the Add or Get methods.
type AuctionStore interface {
	AuctionRepository
	AddMember(ctx context.Context, member *Member) error
	AddAuction(ctx context.Context, auction *Auction) error
	AddBid(ctx context.Context, auctionID string, bid *Bid) error
	GetAuction(ctx context.Context, auctionID string) (*Auction, error)
	GetMember(ctx context.Context, memberID string) (*Member, error)
}

// Event ports

// EventSink receives settlement notifications. Delivery is synchronous and
// happens in the same logical step as the mutation it describes: after the
// mutation is applied in memory and no later than the enclosing commit. A
// sink error aborts the cycle; the engine never suppresses it.
type EventSink interface {
	OnBidAccepted(ctx context.Context, auction *Auction, bid *Bid) error
	OnBidDeclined(ctx context.Context, auction *Auction, bid *Bid) error
	OnAuctionClosed(ctx context.Context, auction *Auction, successful bool) error
}

// EventHandler consumes one published settlement event.
type EventHandler func(event *AuctionEvent) error

// EventSubscriber feeds published settlement events to a handler until the
// context is cancelled.
type EventSubscriber interface {
	Subscribe(ctx context.Context, handler EventHandler) error
}

// AuctionBroadcaster fans a message out to every connection watching an
// auction. CloseAuctionConnections disconnects the watchers once the auction
// has closed.
type AuctionBroadcaster interface {
	BroadcastToAuction(auctionID string, message interface{}) error
	CloseAuctionConnections(auctionID string) error
}

// Leader election port

// LeaderElection guards the settlement cycle so that a store shared by
// several worker instances has exactly one settler at a time.
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}
