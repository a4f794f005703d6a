package services

import (
	"context"
	"fmt"
	"time"

	"auction-settlement/internal/domain"
)

// CloseDueAuctions finalizes every open auction whose end time has passed at
// now and whose bids are all resolved. now is an explicit input so closing
// stays deterministic and testable; the closer never reads a wall clock.
// Each auction is committed individually, before its notification is emitted.
func (e *SettlementEngine) CloseDueAuctions(ctx context.Context, now time.Time) error {
	auctions, err := e.repo.ListAuctions(ctx)
	if err != nil {
		return fmt.Errorf("close auctions: list auctions: %w", err)
	}

	for _, auction := range auctions {
		if !auction.Due(now) {
			continue
		}
		if auction.HasPendingBids() {
			// Not an error: retried on a later cycle, once the resolver
			// has worked through the auction's backlog.
			e.log.Info("Deferring close, auction has pending bids", "auction_id", auction.ID)
			continue
		}
		if err := e.closeAuction(ctx, auction, now); err != nil {
			return err
		}
	}

	return nil
}

func (e *SettlementEngine) closeAuction(ctx context.Context, auction *domain.Auction, now time.Time) error {
	// No accepted bid means no winner; an auction whose every bid was
	// declined closes exactly like one that drew no bids at all.
	if auction.ActiveBid != nil {
		auction.Winner = auction.ActiveBid.Bidder
	}
	auction.Closed = true
	auction.ClosedAt = now
	auction.UpdatedAt = now

	if err := e.repo.SaveChanges(ctx); err != nil {
		return fmt.Errorf("close auctions: commit auction %s: %w", auction.ID, err)
	}

	successful := auction.Winner != nil
	e.log.Info("Auction closed",
		"auction_id", auction.ID, "successful", successful, "final_price", auction.CurrentPrice)

	return e.sink.OnAuctionClosed(ctx, auction, successful)
}
