package services

import (
	"context"
	"fmt"

	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"
)

// EventRelay forwards published settlement events to every live connection
// watching the affected auction. After an auction closes, its connections are
// shut down: there is nothing left to watch.
type EventRelay struct {
	broadcaster domain.AuctionBroadcaster
	log         logger.Logger
}

func NewEventRelay(broadcaster domain.AuctionBroadcaster, log logger.Logger) *EventRelay {
	return &EventRelay{
		broadcaster: broadcaster,
		log:         log,
	}
}

// Start consumes the subscriber's event stream until the context is
// cancelled.
func (r *EventRelay) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	r.log.Info("Starting event relay")
	return subscriber.Subscribe(ctx, r.handleEvent)
}

func (r *EventRelay) handleEvent(event *domain.AuctionEvent) error {
	switch event.Type {
	case domain.EventBidAccepted, domain.EventBidDeclined:
		return r.broadcaster.BroadcastToAuction(event.AuctionID, event)
	case domain.EventAuctionClosed:
		if err := r.broadcaster.BroadcastToAuction(event.AuctionID, event); err != nil {
			return err
		}
		return r.broadcaster.CloseAuctionConnections(event.AuctionID)
	default:
		return fmt.Errorf("unknown settlement event type %q", event.Type)
	}
}
