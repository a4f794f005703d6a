package services

import (
	"context"
	"time"

	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"
)

// SettlementEngine resolves pending bids and closes due auctions. It is a
// single-threaded batch engine: one cycle runs to completion before the next
// starts, and the engine never overlaps cycles on its own. All durable state
// lives behind the repository; all outcomes leave through the event sink.
type SettlementEngine struct {
	repo domain.AuctionRepository
	sink domain.EventSink
	log  logger.Logger
	now  func() time.Time
}

func NewSettlementEngine(repo domain.AuctionRepository, sink domain.EventSink, log logger.Logger) *SettlementEngine {
	return &SettlementEngine{
		repo: repo,
		sink: sink,
		log:  log,
		now:  time.Now,
	}
}

// RunCycle executes one full settlement pass: resolve every pending bid, then
// close every due auction. The phases are strictly sequential so an auction
// whose last bid was just resolved can close within the same cycle. Any error
// aborts the cycle; re-running after a repository failure is safe because
// already-resolved bids are never revisited.
func (e *SettlementEngine) RunCycle(ctx context.Context) error {
	if err := e.ResolvePendingBids(ctx); err != nil {
		return err
	}
	return e.CloseDueAuctions(ctx, e.now().UTC())
}
