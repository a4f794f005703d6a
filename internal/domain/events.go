package domain

import (
	"time"
)

// EventType identifies a settlement notification.
type EventType string

const (
	EventBidAccepted   EventType = "bid_accepted"
	EventBidDeclined   EventType = "bid_declined"
	EventAuctionClosed EventType = "auction_closed"
)

// AuctionEvent is the wire form of a settlement notification as published to
// downstream consumers (message channel, websocket fan-out, logs). Successful
// and WinnerID are meaningful only on auction_closed events; BidID, MemberID
// and Amount only on bid events.
type AuctionEvent struct {
	Type         EventType `json:"type"`
	AuctionID    string    `json:"auction_id"`
	BidID        string    `json:"bid_id,omitempty"`
	MemberID     string    `json:"member_id,omitempty"`
	Amount       float64   `json:"amount,omitempty"`
	CurrentPrice float64   `json:"current_price"`
	Successful   bool      `json:"successful"`
	WinnerID     string    `json:"winner_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewBidAcceptedEvent builds the wire event for an accepted bid.
func NewBidAcceptedEvent(auction *Auction, bid *Bid) *AuctionEvent {
	return newBidEvent(EventBidAccepted, auction, bid)
}

// NewBidDeclinedEvent builds the wire event for a declined bid.
func NewBidDeclinedEvent(auction *Auction, bid *Bid) *AuctionEvent {
	return newBidEvent(EventBidDeclined, auction, bid)
}

func newBidEvent(t EventType, auction *Auction, bid *Bid) *AuctionEvent {
	ev := &AuctionEvent{
		Type:         t,
		AuctionID:    auction.ID,
		BidID:        bid.ID,
		Amount:       bid.Amount,
		CurrentPrice: auction.CurrentPrice,
		Timestamp:    time.Now().UTC(),
	}
	if bid.Bidder != nil {
		ev.MemberID = bid.Bidder.ID
	}
	return ev
}

// NewAuctionClosedEvent builds the wire event for a finalized auction. The
// event carries the close time stamped by the closer, not the publish time.
func NewAuctionClosedEvent(auction *Auction, successful bool) *AuctionEvent {
	ev := &AuctionEvent{
		Type:         EventAuctionClosed,
		AuctionID:    auction.ID,
		CurrentPrice: auction.CurrentPrice,
		Successful:   successful,
		Timestamp:    auction.ClosedAt,
	}
	if auction.Winner != nil {
		ev.WinnerID = auction.Winner.ID
	}
	return ev
}
