package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"auction-settlement/internal/domain"
)

// Repository implements domain.AuctionStore on MySQL. ListAuctions loads the
// whole auction graph and remembers the loaded aggregates together with a
// snapshot of their persisted fields; SaveChanges diffs the aggregates
// against the snapshots and writes the changed rows back in one transaction.
type Repository struct {
	db *sql.DB

	mu     sync.Mutex
	loaded map[string]*trackedAuction
}

type trackedAuction struct {
	auction  *domain.Auction
	snapshot auctionSnapshot
	bidState map[string]domain.BidState
}

type auctionSnapshot struct {
	currentPrice float64
	activeBidID  string
	closed       bool
	closedAt     time.Time
	winnerID     string
	updatedAt    time.Time
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		db:     db,
		loaded: make(map[string]*trackedAuction),
	}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS members (
        id           VARCHAR(64) PRIMARY KEY,
        display_name VARCHAR(255) NOT NULL,
        created_at   DATETIME(6) NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS auctions (
        id            VARCHAR(64) PRIMARY KEY,
        title         VARCHAR(255) NOT NULL,
        seller_id     VARCHAR(64) NOT NULL,
        start_price   DOUBLE NOT NULL,
        current_price DOUBLE NOT NULL,
        start_time    DATETIME(6) NOT NULL,
        end_time      DATETIME(6) NOT NULL,
        active_bid_id VARCHAR(64),
        closed        TINYINT(1) NOT NULL DEFAULT 0,
        closed_at     DATETIME(6),
        winner_id     VARCHAR(64),
        created_at    DATETIME(6) NOT NULL,
        updated_at    DATETIME(6) NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS bids (
        seq        BIGINT AUTO_INCREMENT PRIMARY KEY,
        id         VARCHAR(64) NOT NULL UNIQUE,
        auction_id VARCHAR(64) NOT NULL,
        bidder_id  VARCHAR(64) NOT NULL,
        amount     DOUBLE NOT NULL,
        placed_at  DATETIME(6) NOT NULL,
        state      TINYINT NOT NULL DEFAULT 0,
        INDEX idx_bids_auction (auction_id)
    )`,
}

// EnsureSchema creates the members, auctions and bids tables when missing.
// The bids table keeps a global AUTO_INCREMENT sequence so arrival order
// survives reloads.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (r *Repository) AddMember(ctx context.Context, member *domain.Member) error {
	query := `
        INSERT INTO members (id, display_name, created_at)
        VALUES (?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		member.ID, member.DisplayName, member.CreatedAt)
	if err != nil {
		return fmt.Errorf("add member %s: %w", member.ID, err)
	}
	return nil
}

func (r *Repository) AddAuction(ctx context.Context, auction *domain.Auction) error {
	query := `
        INSERT INTO auctions (id, title, seller_id, start_price, current_price,
                              start_time, end_time, closed, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	var sellerID string
	if auction.Seller != nil {
		sellerID = auction.Seller.ID
	}
	_, err := r.db.ExecContext(ctx, query,
		auction.ID, auction.Title, sellerID,
		auction.StartPrice, auction.CurrentPrice,
		auction.StartTime, auction.EndTime,
		auction.Closed, auction.CreatedAt, auction.UpdatedAt)
	if err != nil {
		return fmt.Errorf("add auction %s: %w", auction.ID, err)
	}
	return nil
}

func (r *Repository) AddBid(ctx context.Context, auctionID string, bid *domain.Bid) error {
	var closed bool
	err := r.db.QueryRowContext(ctx,
		`SELECT closed FROM auctions WHERE id = ?`, auctionID).Scan(&closed)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("add bid to auction %s: %w", auctionID, domain.ErrAuctionNotFound)
	}
	if err != nil {
		return fmt.Errorf("add bid to auction %s: %w", auctionID, err)
	}
	if closed {
		return fmt.Errorf("add bid to auction %s: %w", auctionID, domain.ErrAuctionClosed)
	}

	query := `
        INSERT INTO bids (id, auction_id, bidder_id, amount, placed_at, state)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	var bidderID string
	if bid.Bidder != nil {
		bidderID = bid.Bidder.ID
	}
	_, err = r.db.ExecContext(ctx, query,
		bid.ID, auctionID, bidderID, bid.Amount, bid.PlacedAt, int(bid.State))
	if err != nil {
		return fmt.Errorf("add bid %s: %w", bid.ID, err)
	}
	return nil
}

func (r *Repository) GetMember(ctx context.Context, memberID string) (*domain.Member, error) {
	query := `SELECT id, display_name, created_at FROM members WHERE id = ?`

	var member domain.Member
	err := r.db.QueryRowContext(ctx, query, memberID).Scan(
		&member.ID, &member.DisplayName, &member.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get member %s: %w", memberID, domain.ErrMemberNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get member %s: %w", memberID, err)
	}
	return &member, nil
}

// GetAuction loads one auction with its bids. The returned aggregate is a
// read snapshot and is not tracked for SaveChanges.
func (r *Repository) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	members, err := r.loadMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("get auction %s: %w", auctionID, err)
	}

	query := `
        SELECT id, title, seller_id, start_price, current_price,
               start_time, end_time, active_bid_id, closed, closed_at, winner_id,
               created_at, updated_at
        FROM auctions WHERE id = ?
    `
	auction, activeBidID, err := scanAuction(r.db.QueryRowContext(ctx, query, auctionID), members)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get auction %s: %w", auctionID, domain.ErrAuctionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get auction %s: %w", auctionID, err)
	}

	if err := r.loadBids(ctx, map[string]*domain.Auction{auction.ID: auction},
		map[string]string{auction.ID: activeBidID}, members); err != nil {
		return nil, fmt.Errorf("get auction %s: %w", auctionID, err)
	}
	return auction, nil
}

// ListAuctions loads every auction with its bids in arrival order and makes
// the result the current working set for SaveChanges.
func (r *Repository) ListAuctions(ctx context.Context) ([]*domain.Auction, error) {
	members, err := r.loadMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}

	query := `
        SELECT id, title, seller_id, start_price, current_price,
               start_time, end_time, active_bid_id, closed, closed_at, winner_id,
               created_at, updated_at
        FROM auctions ORDER BY created_at ASC, id ASC
    `
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	defer rows.Close()

	var auctions []*domain.Auction
	byID := make(map[string]*domain.Auction)
	activeBidIDs := make(map[string]string)
	for rows.Next() {
		auction, activeBidID, err := scanAuction(rows, members)
		if err != nil {
			return nil, fmt.Errorf("list auctions: %w", err)
		}
		auctions = append(auctions, auction)
		byID[auction.ID] = auction
		activeBidIDs[auction.ID] = activeBidID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}

	if err := r.loadBids(ctx, byID, activeBidIDs, members); err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = make(map[string]*trackedAuction, len(auctions))
	for _, auction := range auctions {
		r.loaded[auction.ID] = track(auction)
	}
	return auctions, nil
}

// SaveChanges writes every auction and bid mutated since ListAuctions back in
// a single transaction, then refreshes the snapshots.
func (r *Repository) SaveChanges(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save changes: begin: %w", err)
	}

	for id, tracked := range r.loaded {
		if err := writeBack(ctx, tx, tracked); err != nil {
			tx.Rollback()
			return fmt.Errorf("save changes: auction %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save changes: commit: %w", err)
	}

	for _, tracked := range r.loaded {
		*tracked = *track(tracked.auction)
	}
	return nil
}

func writeBack(ctx context.Context, tx *sql.Tx, tracked *trackedAuction) error {
	auction := tracked.auction
	current := snapshot(auction)
	if current != tracked.snapshot {
		query := `
            UPDATE auctions
            SET current_price = ?, active_bid_id = ?, closed = ?, closed_at = ?,
                winner_id = ?, updated_at = ?
            WHERE id = ?
        `
		_, err := tx.ExecContext(ctx, query,
			current.currentPrice, nullString(current.activeBidID),
			current.closed, nullTime(current.closedAt),
			nullString(current.winnerID), current.updatedAt, auction.ID)
		if err != nil {
			return err
		}
	}

	for _, bid := range auction.Bids {
		if bid.State == tracked.bidState[bid.ID] {
			continue
		}
		query := `UPDATE bids SET state = ? WHERE id = ?`
		if _, err := tx.ExecContext(ctx, query, int(bid.State), bid.ID); err != nil {
			return fmt.Errorf("bid %s: %w", bid.ID, err)
		}
	}
	return nil
}

func track(auction *domain.Auction) *trackedAuction {
	states := make(map[string]domain.BidState, len(auction.Bids))
	for _, bid := range auction.Bids {
		states[bid.ID] = bid.State
	}
	return &trackedAuction{
		auction:  auction,
		snapshot: snapshot(auction),
		bidState: states,
	}
}

func snapshot(auction *domain.Auction) auctionSnapshot {
	s := auctionSnapshot{
		currentPrice: auction.CurrentPrice,
		closed:       auction.Closed,
		closedAt:     auction.ClosedAt,
		updatedAt:    auction.UpdatedAt,
	}
	if auction.ActiveBid != nil {
		s.activeBidID = auction.ActiveBid.ID
	}
	if auction.Winner != nil {
		s.winnerID = auction.Winner.ID
	}
	return s
}

func (r *Repository) loadMembers(ctx context.Context) (map[string]*domain.Member, error) {
	query := `SELECT id, display_name, created_at FROM members`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make(map[string]*domain.Member)
	for rows.Next() {
		var member domain.Member
		if err := rows.Scan(&member.ID, &member.DisplayName, &member.CreatedAt); err != nil {
			return nil, err
		}
		members[member.ID] = &member
	}
	return members, rows.Err()
}

// loadBids attaches bids to the given auctions. The global seq order keeps
// each auction's bid slice in arrival order.
func (r *Repository) loadBids(ctx context.Context, auctions map[string]*domain.Auction,
	activeBidIDs map[string]string, members map[string]*domain.Member) error {
	query := `
        SELECT id, auction_id, bidder_id, amount, placed_at, state
        FROM bids ORDER BY seq ASC
    `
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var bid domain.Bid
		var bidderID string
		var state int
		if err := rows.Scan(&bid.ID, &bid.AuctionID, &bidderID,
			&bid.Amount, &bid.PlacedAt, &state); err != nil {
			return err
		}
		auction, ok := auctions[bid.AuctionID]
		if !ok {
			continue
		}
		bid.State = domain.BidState(state)
		bid.Bidder = members[bidderID]
		auction.Bids = append(auction.Bids, &bid)
		if activeBidIDs[auction.ID] == bid.ID {
			auction.ActiveBid = auction.Bids[len(auction.Bids)-1]
		}
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner, members map[string]*domain.Member) (*domain.Auction, string, error) {
	var auction domain.Auction
	var sellerID string
	var activeBidID, winnerID sql.NullString
	var closedAt sql.NullTime

	err := row.Scan(&auction.ID, &auction.Title, &sellerID,
		&auction.StartPrice, &auction.CurrentPrice,
		&auction.StartTime, &auction.EndTime,
		&activeBidID, &auction.Closed, &closedAt, &winnerID,
		&auction.CreatedAt, &auction.UpdatedAt)
	if err != nil {
		return nil, "", err
	}

	auction.Seller = members[sellerID]
	if closedAt.Valid {
		auction.ClosedAt = closedAt.Time
	}
	if winnerID.Valid {
		auction.Winner = members[winnerID.String]
	}
	return &auction, activeBidID.String, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
