package domain

import "errors"

// Integrity errors. These are fatal to a settlement cycle and must never be
// retried without fixing the upstream data or clock issue.
var (
	// ErrOutOfOrderBid reports a pending bid that would outbid the active bid
	// while carrying an earlier submission timestamp. Accepting it would
	// retroactively rewrite an already committed outcome, so the whole cycle
	// aborts before anything is published.
	ErrOutOfOrderBid = errors.New("bid timestamp precedes active bid")
)

// Repository-level errors.
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrMemberNotFound  = errors.New("member not found")
	ErrAuctionClosed   = errors.New("auction already closed")
)
