package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stagecall/pkg/pubsub"
)

type stubPublisher struct {
	msgs []*gcppubsub.Message
	err  error
}

func (s *stubPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) pubsub.PublishResult {
	s.msgs = append(s.msgs, msg)
	return stubResult{err: s.err}
}

type stubResult struct {
	err error
}

func (r stubResult) Get(context.Context) (string, error) {
	return "srv", r.err
}

func TestPostViewsUpdated(t *testing.T) {
	stub := &stubPublisher{}
	p, err := NewPublisher(stub)
	require.NoError(t, err)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }
	communityID := uuid.New()

	require.NoError(t, p.PostViewsUpdated(context.Background(), communityID))
	require.Len(t, stub.msgs, 1)
	assert.Equal(t, EventPostViewsUpdated, stub.msgs[0].Attributes["event_type"])

	var event Event
	require.NoError(t, json.Unmarshal(stub.msgs[0].Data, &event))
	assert.Equal(t, communityID.String(), event.CommunityID)
	assert.True(t, fixed.Equal(event.OccurredAt))
}

func TestPostViewsUpdatedReturnsPublishError(t *testing.T) {
	p, err := NewPublisher(&stubPublisher{err: errors.New("topic missing")})
	require.NoError(t, err)
	require.Error(t, p.PostViewsUpdated(context.Background(), uuid.New()))
}
