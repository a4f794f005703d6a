package memory

import (
	"context"
	"fmt"
	"sync"

	"auction-settlement/internal/domain"
)

// Store is a concurrency-safe in-memory implementation of
// domain.AuctionStore. It keeps a committed copy of every aggregate and hands
// out working copies through ListAuctions; mutations become visible to other
// callers only once SaveChanges merges the working set back. An aborted cycle
// that never commits therefore leaves the committed state untouched.
type Store struct {
	mu       sync.Mutex
	members  map[string]*domain.Member
	auctions map[string]*domain.Auction
	order    []string // auction IDs in insertion order
	session  map[string]*domain.Auction
	commits  int
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		members:  make(map[string]*domain.Member),
		auctions: make(map[string]*domain.Auction),
		session:  make(map[string]*domain.Auction),
	}
}

// AddMember registers a member. Members are immutable once added.
func (s *Store) AddMember(ctx context.Context, member *domain.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := *member
	s.members[m.ID] = &m
	return nil
}

// AddAuction registers an auction against the committed state.
func (s *Store) AddAuction(ctx context.Context, auction *domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.auctions[auction.ID]; !ok {
		s.order = append(s.order, auction.ID)
	}
	s.auctions[auction.ID] = copyAuction(auction)
	return nil
}

// AddBid appends a bid to an open auction. Bids land directly in the
// committed state so the next settlement cycle picks them up.
func (s *Store) AddBid(ctx context.Context, auctionID string, bid *domain.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, ok := s.auctions[auctionID]
	if !ok {
		return fmt.Errorf("add bid to auction %s: %w", auctionID, domain.ErrAuctionNotFound)
	}
	if auction.Closed {
		return fmt.Errorf("add bid to auction %s: %w", auctionID, domain.ErrAuctionClosed)
	}

	b := *bid
	b.AuctionID = auctionID
	auction.Bids = append(auction.Bids, &b)
	return nil
}

// GetAuction returns a snapshot of one committed auction.
func (s *Store) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, ok := s.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("get auction %s: %w", auctionID, domain.ErrAuctionNotFound)
	}
	return copyAuction(auction), nil
}

// GetMember returns a registered member.
func (s *Store) GetMember(ctx context.Context, memberID string) (*domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	member, ok := s.members[memberID]
	if !ok {
		return nil, fmt.Errorf("get member %s: %w", memberID, domain.ErrMemberNotFound)
	}
	m := *member
	return &m, nil
}

// ListAuctions starts a fresh working set: copies of every committed auction
// in insertion order. Mutating the copies has no effect until SaveChanges.
func (s *Store) ListAuctions(ctx context.Context) ([]*domain.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = make(map[string]*domain.Auction, len(s.auctions))
	out := make([]*domain.Auction, 0, len(s.order))
	for _, id := range s.order {
		c := copyAuction(s.auctions[id])
		s.session[id] = c
		out = append(out, c)
	}
	return out, nil
}

// SaveChanges merges the current working set back into the committed state.
// The merge is field-wise so bids added through AddBid while the working set
// was out do not get dropped.
func (s *Store) SaveChanges(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, changed := range s.session {
		committed, ok := s.auctions[id]
		if !ok {
			continue
		}
		mergeAuction(committed, changed)
	}
	s.commits++
	return nil
}

// CommitCount reports how many times SaveChanges has run. Intended for tests.
func (s *Store) CommitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func mergeAuction(committed, changed *domain.Auction) {
	committed.CurrentPrice = changed.CurrentPrice
	committed.Closed = changed.Closed
	committed.ClosedAt = changed.ClosedAt
	committed.Winner = changed.Winner
	committed.UpdatedAt = changed.UpdatedAt

	byID := make(map[string]*domain.Bid, len(committed.Bids))
	for _, b := range committed.Bids {
		byID[b.ID] = b
	}
	for _, b := range changed.Bids {
		if target, ok := byID[b.ID]; ok {
			target.State = b.State
		}
	}
	committed.ActiveBid = nil
	if changed.ActiveBid != nil {
		committed.ActiveBid = byID[changed.ActiveBid.ID]
	}
}

// copyAuction deep-copies an auction and its bids. Members are immutable and
// stay shared.
func copyAuction(a *domain.Auction) *domain.Auction {
	c := *a
	c.Bids = make([]*domain.Bid, len(a.Bids))
	c.ActiveBid = nil
	for i, b := range a.Bids {
		nb := *b
		c.Bids[i] = &nb
		if a.ActiveBid != nil && b.ID == a.ActiveBid.ID {
			c.ActiveBid = c.Bids[i]
		}
	}
	return &c
}
