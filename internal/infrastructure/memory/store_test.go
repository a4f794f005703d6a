package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"auction-settlement/internal/domain"
)

var testTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func seedMember(t *testing.T, store *Store, id string) *domain.Member {
	t.Helper()
	member := &domain.Member{ID: id, DisplayName: id, CreatedAt: testTime}
	require.NoError(t, store.AddMember(context.Background(), member))
	return member
}

func seedAuction(t *testing.T, store *Store, id string, startPrice float64) *domain.Auction {
	t.Helper()
	auction := &domain.Auction{
		ID:           id,
		Title:        "auction " + id,
		StartPrice:   startPrice,
		CurrentPrice: startPrice,
		StartTime:    testTime.Add(-time.Hour),
		EndTime:      testTime.Add(time.Hour),
		CreatedAt:    testTime,
		UpdatedAt:    testTime,
	}
	require.NoError(t, store.AddAuction(context.Background(), auction))
	return auction
}

func newBid(id string, bidder *domain.Member, amount float64, placedAt time.Time) *domain.Bid {
	return &domain.Bid{ID: id, Bidder: bidder, Amount: amount, PlacedAt: placedAt}
}

func TestStore_Members(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	seedMember(t, store, "alice")

	got, err := store.GetMember(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", got.DisplayName)

	_, err = store.GetMember(ctx, "nobody")
	require.True(t, errors.Is(err, domain.ErrMemberNotFound), "got: %v", err)
}

func TestStore_GetAuctionReturnsIsolatedCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	seedAuction(t, store, "a1", 50)

	first, err := store.GetAuction(ctx, "a1")
	require.NoError(t, err)
	first.CurrentPrice = 999
	first.Closed = true

	second, err := store.GetAuction(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, 50.0, second.CurrentPrice)
	require.False(t, second.Closed)

	_, err = store.GetAuction(ctx, "missing")
	require.True(t, errors.Is(err, domain.ErrAuctionNotFound), "got: %v", err)
}

func TestStore_AddBid(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	alice := seedMember(t, store, "alice")
	bob := seedMember(t, store, "bob")
	seedAuction(t, store, "a1", 50)

	require.NoError(t, store.AddBid(ctx, "a1", newBid("b1", alice, 60, testTime)))
	require.NoError(t, store.AddBid(ctx, "a1", newBid("b2", bob, 70, testTime.Add(time.Second))))

	auction, err := store.GetAuction(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, auction.Bids, 2)
	// Arrival order is preserved.
	require.Equal(t, "b1", auction.Bids[0].ID)
	require.Equal(t, "b2", auction.Bids[1].ID)
	require.Equal(t, "a1", auction.Bids[0].AuctionID)
}

func TestStore_AddBidErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	alice := seedMember(t, store, "alice")

	err := store.AddBid(ctx, "missing", newBid("b1", alice, 60, testTime))
	require.True(t, errors.Is(err, domain.ErrAuctionNotFound), "got: %v", err)

	require.NoError(t, store.AddAuction(ctx, &domain.Auction{
		ID:           "a1",
		Title:        "auction a1",
		StartPrice:   50,
		CurrentPrice: 50,
		StartTime:    testTime.Add(-2 * time.Hour),
		EndTime:      testTime.Add(-time.Hour),
		Closed:       true,
		ClosedAt:     testTime,
		CreatedAt:    testTime,
		UpdatedAt:    testTime,
	}))

	err = store.AddBid(ctx, "a1", newBid("b1", alice, 60, testTime))
	require.True(t, errors.Is(err, domain.ErrAuctionClosed), "got: %v", err)
}

func TestStore_WorkingSetInvisibleUntilCommit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	alice := seedMember(t, store, "alice")
	seedAuction(t, store, "a1", 50)
	require.NoError(t, store.AddBid(ctx, "a1", newBid("b1", alice, 60, testTime)))

	session, err := store.ListAuctions(ctx)
	require.NoError(t, err)
	require.Len(t, session, 1)

	working := session[0]
	working.Bids[0].State = domain.BidAccepted
	working.ActiveBid = working.Bids[0]
	working.CurrentPrice = 60

	// Not committed yet: readers still see the old state.
	stored, err := store.GetAuction(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, 50.0, stored.CurrentPrice)
	require.Equal(t, domain.BidPending, stored.Bids[0].State)
	require.Nil(t, stored.ActiveBid)

	require.NoError(t, store.SaveChanges(ctx))

	stored, err = store.GetAuction(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, 60.0, stored.CurrentPrice)
	require.Equal(t, domain.BidAccepted, stored.Bids[0].State)
	require.NotNil(t, stored.ActiveBid)
	require.Equal(t, "b1", stored.ActiveBid.ID)
	require.Equal(t, 1, store.CommitCount())
}

func TestStore_AbandonedWorkingSetLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	alice := seedMember(t, store, "alice")
	seedAuction(t, store, "a1", 50)
	require.NoError(t, store.AddBid(ctx, "a1", newBid("b1", alice, 60, testTime)))

	session, err := store.ListAuctions(ctx)
	require.NoError(t, err)
	session[0].CurrentPrice = 999
	session[0].Bids[0].State = domain.BidDeclined

	// A fresh list discards the abandoned working set.
	fresh, err := store.ListAuctions(ctx)
	require.NoError(t, err)
	require.Equal(t, 50.0, fresh[0].CurrentPrice)
	require.Equal(t, domain.BidPending, fresh[0].Bids[0].State)
	require.Equal(t, 0, store.CommitCount())
}

func TestStore_CommitKeepsBidsAddedMeanwhile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	alice := seedMember(t, store, "alice")
	bob := seedMember(t, store, "bob")
	seedAuction(t, store, "a1", 50)
	require.NoError(t, store.AddBid(ctx, "a1", newBid("b1", alice, 60, testTime)))

	session, err := store.ListAuctions(ctx)
	require.NoError(t, err)
	session[0].Bids[0].State = domain.BidAccepted
	session[0].ActiveBid = session[0].Bids[0]
	session[0].CurrentPrice = 60

	// A bid lands through the API while the settlement cycle is running.
	require.NoError(t, store.AddBid(ctx, "a1", newBid("b2", bob, 80, testTime.Add(time.Minute))))

	require.NoError(t, store.SaveChanges(ctx))

	stored, err := store.GetAuction(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, stored.Bids, 2)
	require.Equal(t, 60.0, stored.CurrentPrice)
	require.Equal(t, domain.BidAccepted, stored.Bids[0].State)
	require.Equal(t, domain.BidPending, stored.Bids[1].State)
}

func TestStore_ListKeepsInsertionOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	seedAuction(t, store, "a2", 10)
	seedAuction(t, store, "a1", 20)
	seedAuction(t, store, "a3", 30)

	auctions, err := store.ListAuctions(ctx)
	require.NoError(t, err)
	require.Len(t, auctions, 3)
	require.Equal(t, "a2", auctions[0].ID)
	require.Equal(t, "a1", auctions[1].ID)
	require.Equal(t, "a3", auctions[2].ID)
}
