package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"
	"auction-settlement/pkg/utils"
)

// AuctionHandler exposes members, auctions and bids over HTTP. It writes
// straight to the store; resolution and closing stay with the settlement
// worker, so a freshly placed bid is always pending.
type AuctionHandler struct {
	store domain.AuctionStore
	log   logger.Logger
}

func NewAuctionHandler(store domain.AuctionStore, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		store: store,
		log:   log,
	}
}

type CreateMemberRequest struct {
	DisplayName string `json:"display_name"`
}

type MemberResponse struct {
	MemberID    string    `json:"member_id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateAuctionRequest struct {
	Title      string    `json:"title"`
	SellerID   string    `json:"seller_id"`
	StartPrice float64   `json:"start_price"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
}

type AuctionResponse struct {
	AuctionID    string        `json:"auction_id"`
	Title        string        `json:"title"`
	SellerID     string        `json:"seller_id"`
	StartPrice   float64       `json:"start_price"`
	CurrentPrice float64       `json:"current_price"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Closed       bool          `json:"closed"`
	ClosedAt     *time.Time    `json:"closed_at,omitempty"`
	WinnerID     string        `json:"winner_id,omitempty"`
	Bids         []BidResponse `json:"bids,omitempty"`
}

type PlaceBidRequest struct {
	MemberID string  `json:"member_id"`
	Amount   float64 `json:"amount"`
}

type BidResponse struct {
	BidID    string    `json:"bid_id"`
	MemberID string    `json:"member_id"`
	Amount   float64   `json:"amount"`
	PlacedAt time.Time `json:"placed_at"`
	State    string    `json:"state"`
}

func (h *AuctionHandler) CreateMember(c echo.Context) error {
	var req CreateMemberRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error("Failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if req.DisplayName == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Display name required"})
	}

	member := &domain.Member{
		ID:          utils.GenerateID("member"),
		DisplayName: req.DisplayName,
		CreatedAt:   time.Now().UTC(),
	}

	if err := h.store.AddMember(c.Request().Context(), member); err != nil {
		h.log.Error("Failed to create member", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create member"})
	}

	h.log.Info("Member created", "member_id", member.ID)
	return c.JSON(http.StatusCreated, MemberResponse{
		MemberID:    member.ID,
		DisplayName: member.DisplayName,
		CreatedAt:   member.CreatedAt,
	})
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error("Failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	// Validation
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Title required"})
	}

	if req.StartPrice <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Start price must be positive"})
	}

	if !req.EndTime.After(req.StartTime) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "End time must be after start time"})
	}

	seller, err := h.store.GetMember(c.Request().Context(), req.SellerID)
	if errors.Is(err, domain.ErrMemberNotFound) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unknown seller"})
	}
	if err != nil {
		h.log.Error("Failed to load seller", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create auction"})
	}

	now := time.Now().UTC()
	auction := &domain.Auction{
		ID:           utils.GenerateID("auction"),
		Title:        req.Title,
		Seller:       seller,
		StartPrice:   req.StartPrice,
		CurrentPrice: req.StartPrice,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.store.AddAuction(c.Request().Context(), auction); err != nil {
		h.log.Error("Failed to create auction", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create auction"})
	}

	h.log.Info("Auction created", "auction_id", auction.ID, "end_time", auction.EndTime)
	return c.JSON(http.StatusCreated, toAuctionResponse(auction, false))
}

func (h *AuctionHandler) GetAuction(c echo.Context) error {
	auctionID := c.Param("id")

	auction, err := h.store.GetAuction(c.Request().Context(), auctionID)
	if errors.Is(err, domain.ErrAuctionNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Auction not found"})
	}
	if err != nil {
		h.log.Error("Failed to load auction", "auction_id", auctionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load auction"})
	}

	return c.JSON(http.StatusOK, toAuctionResponse(auction, true))
}

func (h *AuctionHandler) ListAuctions(c echo.Context) error {
	auctions, err := h.store.ListAuctions(c.Request().Context())
	if err != nil {
		h.log.Error("Failed to list auctions", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list auctions"})
	}

	response := make([]AuctionResponse, 0, len(auctions))
	for _, auction := range auctions {
		response = append(response, toAuctionResponse(auction, false))
	}
	return c.JSON(http.StatusOK, response)
}

func (h *AuctionHandler) PlaceBid(c echo.Context) error {
	auctionID := c.Param("id")

	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error("Failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if req.Amount <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Amount must be positive"})
	}

	member, err := h.store.GetMember(c.Request().Context(), req.MemberID)
	if errors.Is(err, domain.ErrMemberNotFound) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unknown member"})
	}
	if err != nil {
		h.log.Error("Failed to load member", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to place bid"})
	}

	bid := &domain.Bid{
		ID:       utils.GenerateID("bid"),
		Bidder:   member,
		Amount:   req.Amount,
		PlacedAt: time.Now().UTC(),
		State:    domain.BidPending,
	}

	err = h.store.AddBid(c.Request().Context(), auctionID, bid)
	if errors.Is(err, domain.ErrAuctionNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Auction not found"})
	}
	if errors.Is(err, domain.ErrAuctionClosed) {
		return c.JSON(http.StatusConflict, map[string]string{"error": "Auction already closed"})
	}
	if err != nil {
		h.log.Error("Failed to place bid", "auction_id", auctionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to place bid"})
	}

	h.log.Info("Bid placed", "bid_id", bid.ID, "auction_id", auctionID, "amount", bid.Amount)
	return c.JSON(http.StatusCreated, toBidResponse(bid))
}

func toAuctionResponse(auction *domain.Auction, withBids bool) AuctionResponse {
	resp := AuctionResponse{
		AuctionID:    auction.ID,
		Title:        auction.Title,
		StartPrice:   auction.StartPrice,
		CurrentPrice: auction.CurrentPrice,
		StartTime:    auction.StartTime,
		EndTime:      auction.EndTime,
		Closed:       auction.Closed,
	}
	if auction.Seller != nil {
		resp.SellerID = auction.Seller.ID
	}
	if auction.Closed {
		closedAt := auction.ClosedAt
		resp.ClosedAt = &closedAt
	}
	if auction.Winner != nil {
		resp.WinnerID = auction.Winner.ID
	}
	if withBids {
		resp.Bids = make([]BidResponse, 0, len(auction.Bids))
		for _, bid := range auction.Bids {
			resp.Bids = append(resp.Bids, toBidResponse(bid))
		}
	}
	return resp
}

func toBidResponse(bid *domain.Bid) BidResponse {
	resp := BidResponse{
		BidID:    bid.ID,
		Amount:   bid.Amount,
		PlacedAt: bid.PlacedAt,
		State:    bid.State.String(),
	}
	if bid.Bidder != nil {
		resp.MemberID = bid.Bidder.ID
	}
	return resp
}
