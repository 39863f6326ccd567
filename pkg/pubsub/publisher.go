package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
)

// DefaultPublishTimeout bounds a single publish round trip.
const DefaultPublishTimeout = 15 * time.Second

// PublishResult is the server acknowledgement for a published message.
type PublishResult interface {
	Get(ctx context.Context) (string, error)
}

// MessagePublisher is the narrow publishing surface used by producers. Tests
// substitute fakes for the Pub/Sub topic handle.
type MessagePublisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) PublishResult
}

// NewMessagePublisher adapts a Pub/Sub v2 publisher handle. It returns nil for a nil handle.
func NewMessagePublisher(p *pubsub.Publisher) MessagePublisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

type gcpPublisher struct {
	*pubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *pubsub.Message) PublishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*pubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}

// PublishJSON marshals payload, publishes it with the given attributes and waits
// for the server id. A non-positive timeout falls back to DefaultPublishTimeout.
func PublishJSON(ctx context.Context, pub MessagePublisher, payload any, attrs map[string]string, timeout time.Duration) (string, error) {
	if pub == nil {
		return "", errors.New("publisher is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}

	publishCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := pub.Publish(publishCtx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if res == nil {
		return "", errors.New("publish returned nil result")
	}
	serverID, err := res.Get(publishCtx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return serverID, nil
}
