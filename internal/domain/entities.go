package domain

import (
	"time"
)

// Member is an auction participant: a seller or a bidder. Members are
// created by the surrounding application and are immutable as far as the
// settlement engine is concerned.
type Member struct {
	ID          string
	DisplayName string
	CreatedAt   time.Time
}

// BidState tracks the resolution of a bid. A bid starts out pending and is
// resolved exactly once by the settlement engine; a resolved state never
// changes again.
type BidState int

const (
	BidPending BidState = iota
	BidAccepted
	BidDeclined
)

func (s BidState) String() string {
	switch s {
	case BidPending:
		return "pending"
	case BidAccepted:
		return "accepted"
	case BidDeclined:
		return "declined"
	default:
		return "unknown"
	}
}

// Bid is one member's offer on one auction. A bid belongs to exactly one
// auction and is never reassigned or deleted.
type Bid struct {
	ID        string
	AuctionID string
	Bidder    *Member
	Amount    float64
	PlacedAt  time.Time // submission wall-clock, UTC
	State     BidState
}

// Auction is a timed listing together with its bids. Bids is kept in arrival
// order; the settlement engine relies on that order to break timestamp ties
// deterministically.
type Auction struct {
	ID           string
	Title        string
	Seller       *Member
	StartPrice   float64
	CurrentPrice float64
	StartTime    time.Time
	EndTime      time.Time
	Bids         []*Bid
	ActiveBid    *Bid // highest accepted bid, nil until the first accept
	Closed       bool
	ClosedAt     time.Time
	Winner       *Member
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PendingBids returns the auction's unresolved bids in arrival order.
func (a *Auction) PendingBids() []*Bid {
	var pending []*Bid
	for _, b := range a.Bids {
		if b.State == BidPending {
			pending = append(pending, b)
		}
	}
	return pending
}

// HasPendingBids reports whether any of the auction's bids is unresolved.
func (a *Auction) HasPendingBids() bool {
	for _, b := range a.Bids {
		if b.State == BidPending {
			return true
		}
	}
	return false
}

// Due reports whether the auction is open and its end time has passed.
func (a *Auction) Due(now time.Time) bool {
	return !a.Closed && !a.EndTime.After(now)
}
