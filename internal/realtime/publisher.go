// Package realtime publishes side-channel events consumed by the websocket gateway.
package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stagecall/pkg/pubsub"
)

const EventPostViewsUpdated = "post-views-updated"

// Event is the realtime envelope.
type Event struct {
	Type        string    `json:"type"`
	CommunityID string    `json:"chatRoomId"`
	OccurredAt  time.Time `json:"occurredAt"`
}

type Publisher struct {
	pub     pubsub.MessagePublisher
	timeout time.Duration
	now     func() time.Time
}

func NewPublisher(pub pubsub.MessagePublisher) (*Publisher, error) {
	if pub == nil {
		return nil, errors.New("realtime publisher is required")
	}
	return &Publisher{pub: pub, timeout: pubsub.DefaultPublishTimeout, now: time.Now}, nil
}

// PostViewsUpdated tells connected clients of the community to refresh viewed-by lists.
func (p *Publisher) PostViewsUpdated(ctx context.Context, communityID uuid.UUID) error {
	event := Event{
		Type:        EventPostViewsUpdated,
		CommunityID: communityID.String(),
		OccurredAt:  p.now().UTC(),
	}
	_, err := pubsub.PublishJSON(ctx, p.pub, event, map[string]string{
		"event_type":   EventPostViewsUpdated,
		"community_id": event.CommunityID,
	}, p.timeout)
	return err
}
