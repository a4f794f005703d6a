package services

import (
	"context"
	"time"

	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"
)

var testTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// fakeRepo serves a fixed working set and counts commits. Mutations made by
// the engine stick because the same aggregates are returned on every list.
type fakeRepo struct {
	auctions []*domain.Auction
	lists    int
	commits  int
	listErr  error
	saveErr  error
}

func (r *fakeRepo) ListAuctions(ctx context.Context) ([]*domain.Auction, error) {
	r.lists++
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.auctions, nil
}

func (r *fakeRepo) SaveChanges(ctx context.Context) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.commits++
	return nil
}

type sinkCall struct {
	kind       string // "accepted", "declined" or "closed"
	auctionID  string
	bidID      string
	amount     float64
	successful bool
	winnerID   string
	commits    int // repo commit count when the notification fired
}

// recordingSink captures notifications in emission order, together with the
// repo's commit count at the moment each one fired.
type recordingSink struct {
	repo  *fakeRepo
	calls []sinkCall
	err   error
}

func (s *recordingSink) OnBidAccepted(ctx context.Context, auction *domain.Auction, bid *domain.Bid) error {
	s.record(sinkCall{kind: "accepted", auctionID: auction.ID, bidID: bid.ID, amount: bid.Amount})
	return s.err
}

func (s *recordingSink) OnBidDeclined(ctx context.Context, auction *domain.Auction, bid *domain.Bid) error {
	s.record(sinkCall{kind: "declined", auctionID: auction.ID, bidID: bid.ID, amount: bid.Amount})
	return s.err
}

func (s *recordingSink) OnAuctionClosed(ctx context.Context, auction *domain.Auction, successful bool) error {
	call := sinkCall{kind: "closed", auctionID: auction.ID, successful: successful}
	if auction.Winner != nil {
		call.winnerID = auction.Winner.ID
	}
	s.record(call)
	return s.err
}

func (s *recordingSink) record(call sinkCall) {
	if s.repo != nil {
		call.commits = s.repo.commits
	}
	s.calls = append(s.calls, call)
}

func (s *recordingSink) kinds() []string {
	kinds := make([]string, 0, len(s.calls))
	for _, call := range s.calls {
		kinds = append(kinds, call.kind)
	}
	return kinds
}

func newTestEngine(repo domain.AuctionRepository, sink domain.EventSink) *SettlementEngine {
	engine := NewSettlementEngine(repo, sink, logger.NewNop())
	engine.now = func() time.Time { return testTime }
	return engine
}

func testMember(id string) *domain.Member {
	return &domain.Member{ID: id, DisplayName: id, CreatedAt: testTime.Add(-time.Hour)}
}

func pendingBid(id string, bidder *domain.Member, amount float64, placedAt time.Time) *domain.Bid {
	return &domain.Bid{
		ID:       id,
		Bidder:   bidder,
		Amount:   amount,
		PlacedAt: placedAt,
		State:    domain.BidPending,
	}
}

// acceptedBid builds a bid already settled in an earlier cycle.
func acceptedBid(id string, bidder *domain.Member, amount float64, placedAt time.Time) *domain.Bid {
	bid := pendingBid(id, bidder, amount, placedAt)
	bid.State = domain.BidAccepted
	return bid
}

func openAuction(id string, startPrice float64, endTime time.Time, bids ...*domain.Bid) *domain.Auction {
	auction := &domain.Auction{
		ID:           id,
		Title:        "auction " + id,
		Seller:       testMember("seller"),
		StartPrice:   startPrice,
		CurrentPrice: startPrice,
		StartTime:    testTime.Add(-24 * time.Hour),
		EndTime:      endTime,
		Bids:         bids,
		CreatedAt:    testTime.Add(-24 * time.Hour),
		UpdatedAt:    testTime.Add(-24 * time.Hour),
	}
	for _, bid := range bids {
		bid.AuctionID = id
	}
	return auction
}

// withActiveBid marks one of the auction's bids as the committed active bid
// and lifts the current price to it.
func withActiveBid(auction *domain.Auction, bid *domain.Bid) *domain.Auction {
	auction.ActiveBid = bid
	auction.CurrentPrice = bid.Amount
	return auction
}
