package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"auction-settlement/internal/domain"
)

func TestCloseDueAuctions_WinnerFromActiveBid(t *testing.T) {
	t.Parallel()

	bob := testMember("bob")
	active := acceptedBid("b1", bob, 70, testTime.Add(-2*time.Hour))
	auction := withActiveBid(openAuction("a1", 50, testTime.Add(-time.Hour), active), active)

	repo := &fakeRepo{auctions: []*domain.Auction{auction}}
	sink := &recordingSink{repo: repo}
	engine := newTestEngine(repo, sink)

	require.NoError(t, engine.CloseDueAuctions(context.Background(), testTime))

	require.True(t, auction.Closed)
	require.Equal(t, testTime, auction.ClosedAt)
	require.Equal(t, bob, auction.Winner)
	require.Equal(t, 70.0, auction.CurrentPrice)

	require.Len(t, sink.calls, 1)
	require.Equal(t, "closed", sink.calls[0].kind)
	require.True(t, sink.calls[0].successful)
	require.Equal(t, "bob", sink.calls[0].winnerID)
}

func TestCloseDueAuctions_NoBidsClosesUnsuccessful(t *testing.T) {
	t.Parallel()

	auction := openAuction("a1", 50, testTime.Add(-time.Hour))

	repo := &fakeRepo{auctions: []*domain.Auction{auction}}
	sink := &recordingSink{repo: repo}
	engine := newTestEngine(repo, sink)

	require.NoError(t, engine.CloseDueAuctions(context.Background(), testTime))

	require.True(t, auction.Closed)
	require.Nil(t, auction.Winner)
	require.Equal(t, 50.0, auction.CurrentPrice)
	require.Len(t, sink.calls, 1)
	require.False(t, sink.calls[0].successful)
}

func TestCloseDueAuctions_AllDeclinedClosesLikeNoBids(t *testing.T) {
	t.Parallel()

	declined := pendingBid("b1", testMember("alice"), 40, testTime.Add(-2*time.Hour))
	declined.State = domain.BidDeclined
	auction := openAuction("a1", 50, testTime.Add(-time.Hour), declined)

	repo := &fakeRepo{auctions: []*domain.Auction{auction}}
	sink := &recordingSink{repo: repo}
	engine := newTestEngine(repo, sink)

	require.NoError(t, engine.CloseDueAuctions(context.Background(), testTime))

	require.True(t, auction.Closed)
	require.Nil(t, auction.Winner)
	require.Len(t, sink.calls, 1)
	require.False(t, sink.calls[0].successful)
}

func TestCloseDueAuctions_Skips(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		auction func() *domain.Auction
	}{
		{
			name: "end_time_in_future",
			auction: func() *domain.Auction {
				return openAuction("a1", 50, testTime.Add(time.Hour))
			},
		},
		{
			name: "already_closed",
			auction: func() *domain.Auction {
				a := openAuction("a1", 50, testTime.Add(-time.Hour))
				a.Closed = true
				a.ClosedAt = testTime.Add(-30 * time.Minute)
				return a
			},
		},
		{
			name: "pending_bids_defer_close",
			auction: func() *domain.Auction {
				return openAuction("a1", 50, testTime.Add(-time.Hour),
					pendingBid("b1", testMember("alice"), 60, testTime.Add(-2*time.Hour)))
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			auction := tc.auction()
			wasClosed := auction.Closed

			repo := &fakeRepo{auctions: []*domain.Auction{auction}}
			sink := &recordingSink{repo: repo}
			engine := newTestEngine(repo, sink)

			require.NoError(t, engine.CloseDueAuctions(context.Background(), testTime))

			require.Equal(t, wasClosed, auction.Closed)
			require.Nil(t, auction.Winner)
			require.Empty(t, sink.calls)
			require.Equal(t, 0, repo.commits)
		})
	}
}

func TestCloseDueAuctions_EndTimeEqualToNowIsDue(t *testing.T) {
	t.Parallel()

	auction := openAuction("a1", 50, testTime)

	repo := &fakeRepo{auctions: []*domain.Auction{auction}}
	sink := &recordingSink{repo: repo}
	engine := newTestEngine(repo, sink)

	require.NoError(t, engine.CloseDueAuctions(context.Background(), testTime))
	require.True(t, auction.Closed)
}

func TestCloseDueAuctions_CommitPrecedesNotification(t *testing.T) {
	t.Parallel()

	a1 := openAuction("a1", 50, testTime.Add(-time.Hour))
	a2 := openAuction("a2", 80, testTime.Add(-time.Minute))

	repo := &fakeRepo{auctions: []*domain.Auction{a1, a2}}
	sink := &recordingSink{repo: repo}
	engine := newTestEngine(repo, sink)

	require.NoError(t, engine.CloseDueAuctions(context.Background(), testTime))

	// One commit per closed auction, and each notification fires only
	// after its auction's commit.
	require.Equal(t, 2, repo.commits)
	require.Len(t, sink.calls, 2)
	require.Equal(t, 1, sink.calls[0].commits)
	require.Equal(t, 2, sink.calls[1].commits)
}

func TestCloseDueAuctions_Failures(t *testing.T) {
	t.Parallel()

	t.Run("commit_error_stops_before_notification", func(t *testing.T) {
		t.Parallel()

		auction := openAuction("a1", 50, testTime.Add(-time.Hour))
		repo := &fakeRepo{auctions: []*domain.Auction{auction}, saveErr: errors.New("deadlock")}
		sink := &recordingSink{repo: repo}
		engine := newTestEngine(repo, sink)

		err := engine.CloseDueAuctions(context.Background(), testTime)
		require.Error(t, err)
		require.Contains(t, err.Error(), "commit auction a1")
		require.Empty(t, sink.calls)
	})

	t.Run("sink_error_propagates", func(t *testing.T) {
		t.Parallel()

		auction := openAuction("a1", 50, testTime.Add(-time.Hour))
		repo := &fakeRepo{auctions: []*domain.Auction{auction}}
		sink := &recordingSink{repo: repo, err: errors.New("broker down")}
		engine := newTestEngine(repo, sink)

		require.Error(t, engine.CloseDueAuctions(context.Background(), testTime))

		// The close itself committed; only the notification failed.
		require.Equal(t, 1, repo.commits)
		require.True(t, auction.Closed)
	})

	t.Run("list_error", func(t *testing.T) {
		t.Parallel()

		repo := &fakeRepo{listErr: errors.New("connection refused")}
		engine := newTestEngine(repo, &recordingSink{repo: repo})

		err := engine.CloseDueAuctions(context.Background(), testTime)
		require.Error(t, err)
		require.Contains(t, err.Error(), "list auctions")
	})
}
