package services

import (
	"context"
	"fmt"
	"sort"

	"auction-settlement/internal/domain"
)

// ResolvePendingBids resolves every pending bid across all auctions, oldest
// submission first per auction. A bid above the auction's current price is
// accepted and becomes the active bid; everything else is declined. All
// mutations are committed in a single batch after the last auction.
func (e *SettlementEngine) ResolvePendingBids(ctx context.Context) error {
	auctions, err := e.repo.ListAuctions(ctx)
	if err != nil {
		return fmt.Errorf("resolve bids: list auctions: %w", err)
	}

	resolved := 0
	for _, auction := range auctions {
		n, err := e.resolveAuction(ctx, auction)
		if err != nil {
			return err
		}
		resolved += n
	}

	if resolved == 0 {
		return nil
	}

	if err := e.repo.SaveChanges(ctx); err != nil {
		return fmt.Errorf("resolve bids: commit: %w", err)
	}

	e.log.Info("Resolved pending bids", "count", resolved)
	return nil
}

func (e *SettlementEngine) resolveAuction(ctx context.Context, auction *domain.Auction) (int, error) {
	pending := auction.PendingBids()
	if len(pending) == 0 {
		return 0, nil
	}

	// Ascending submission time; the stable sort keeps arrival order for
	// bids placed in the same instant.
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].PlacedAt.Before(pending[j].PlacedAt)
	})

	for _, bid := range pending {
		if bid.Amount > auction.CurrentPrice {
			if err := e.acceptBid(ctx, auction, bid); err != nil {
				return 0, err
			}
		} else {
			if err := e.declineBid(ctx, auction, bid); err != nil {
				return 0, err
			}
		}
	}

	return len(pending), nil
}

func (e *SettlementEngine) acceptBid(ctx context.Context, auction *domain.Auction, bid *domain.Bid) error {
	// A bid that would outbid the active bid while predating it means the
	// feed delivered bids out of order after an outcome was committed. That
	// is a data integrity problem, not a business outcome: fail the cycle.
	if active := auction.ActiveBid; active != nil && bid.PlacedAt.Before(active.PlacedAt) {
		return fmt.Errorf("resolve bids: auction %s: pending bid %s predates active bid %s: %w",
			auction.ID, bid.ID, active.ID, domain.ErrOutOfOrderBid)
	}

	bid.State = domain.BidAccepted
	auction.ActiveBid = bid
	auction.CurrentPrice = bid.Amount
	auction.UpdatedAt = e.now().UTC()

	e.log.Info("Bid accepted",
		"auction_id", auction.ID, "bid_id", bid.ID, "amount", bid.Amount)

	return e.sink.OnBidAccepted(ctx, auction, bid)
}

func (e *SettlementEngine) declineBid(ctx context.Context, auction *domain.Auction, bid *domain.Bid) error {
	bid.State = domain.BidDeclined

	e.log.Info("Bid declined",
		"auction_id", auction.ID, "bid_id", bid.ID,
		"amount", bid.Amount, "current_price", auction.CurrentPrice)

	return e.sink.OnBidDeclined(ctx, auction, bid)
}
