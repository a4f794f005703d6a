package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"auction-settlement/internal/domain"
)

// eventsChannel carries every settlement notification as one JSON document
// per message.
const eventsChannel = "auction_events"

// EventPublisher implements domain.EventSink by publishing each notification
// to the shared Redis channel. Publishing is synchronous; a failed publish
// surfaces to the settlement engine and aborts the cycle.
type EventPublisher struct {
	client *redis.Client
}

func NewEventPublisher(client *redis.Client) *EventPublisher {
	return &EventPublisher{client: client}
}

func (p *EventPublisher) OnBidAccepted(ctx context.Context, auction *domain.Auction, bid *domain.Bid) error {
	return p.publish(ctx, domain.NewBidAcceptedEvent(auction, bid))
}

func (p *EventPublisher) OnBidDeclined(ctx context.Context, auction *domain.Auction, bid *domain.Bid) error {
	return p.publish(ctx, domain.NewBidDeclinedEvent(auction, bid))
}

func (p *EventPublisher) OnAuctionClosed(ctx context.Context, auction *domain.Auction, successful bool) error {
	return p.publish(ctx, domain.NewAuctionClosedEvent(auction, successful))
}

func (p *EventPublisher) publish(ctx context.Context, event *domain.AuctionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	if err := p.client.Publish(ctx, eventsChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	return nil
}
