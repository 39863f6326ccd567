package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stagecall/internal/notifications"
	"github.com/angelmondragon/stagecall/pkg/enums"
	pkgerrors "github.com/angelmondragon/stagecall/pkg/errors"
	"github.com/angelmondragon/stagecall/pkg/logger"
	"github.com/angelmondragon/stagecall/pkg/pubsub"
)

type stubPublisher struct {
	mu   sync.Mutex
	msgs []*gcppubsub.Message
	err  error
}

func (s *stubPublisher) Publish(_ context.Context, msg *gcppubsub.Message) pubsub.PublishResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return stubResult{id: "srv-1", err: s.err}
}

func (s *stubPublisher) last(t *testing.T) *gcppubsub.Message {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.msgs)
	return s.msgs[len(s.msgs)-1]
}

type stubResult struct {
	id  string
	err error
}

func (r stubResult) Get(context.Context) (string, error) { return r.id, r.err }

type fakeGuard struct {
	seen     map[uuid.UUID]bool
	err      error
	released []uuid.UUID
}

func (f *fakeGuard) Delete(_ context.Context, consumer string, jobID uuid.UUID) error {
	delete(f.seen, jobID)
	f.released = append(f.released, jobID)
	return nil
}

func (f *fakeGuard) CheckAndMarkProcessed(_ context.Context, consumer string, jobID uuid.UUID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = map[uuid.UUID]bool{}
	}
	already := f.seen[jobID]
	f.seen[jobID] = true
	return already, nil
}

type deliveryCall struct {
	userIDs []uuid.UUID
	kind    enums.NotificationKind
	jc      notifications.JobContext
}

type fakeDeliveries struct {
	calls []deliveryCall
}

func (f *fakeDeliveries) DeliverToUsers(_ context.Context, userIDs []uuid.UUID, kind enums.NotificationKind, jc notifications.JobContext) notifications.Summary {
	f.calls = append(f.calls, deliveryCall{userIDs: userIDs, kind: kind, jc: jc})
	return notifications.Summary{Sent: len(userIDs)}
}

type fakeTopics struct {
	applied []enums.TopicAction
	synced  [][]uuid.UUID
	purged  [][]string
	err     error
}

func (f *fakeTopics) Apply(_ context.Context, _, _ uuid.UUID, action enums.TopicAction) error {
	f.applied = append(f.applied, action)
	return f.err
}

func (f *fakeTopics) SyncForUsers(_ context.Context, userIDs []uuid.UUID) error {
	f.synced = append(f.synced, userIDs)
	return f.err
}

func (f *fakeTopics) PurgeTokensFromAllTopics(_ context.Context, tokens []string) error {
	f.purged = append(f.purged, tokens)
	return f.err
}

type fakeReminders struct {
	adjusted []uuid.UUID
}

func (f *fakeReminders) AdjustTimer(_ context.Context, communityID uuid.UUID) error {
	f.adjusted = append(f.adjusted, communityID)
	return nil
}

type receiverFunc func(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error

func (r receiverFunc) Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error {
	return r(ctx, f)
}

type consumerFixture struct {
	pub        *stubPublisher
	publisher  *Publisher
	consumer   *Consumer
	guard      *fakeGuard
	deliveries *fakeDeliveries
	topics     *fakeTopics
	reminders  *fakeReminders
}

func newConsumerFixture(t *testing.T) *consumerFixture {
	t.Helper()
	f := &consumerFixture{
		pub:        &stubPublisher{},
		guard:      &fakeGuard{},
		deliveries: &fakeDeliveries{},
		topics:     &fakeTopics{},
		reminders:  &fakeReminders{},
	}
	var err error
	f.publisher, err = NewPublisher(f.pub, time.Second)
	require.NoError(t, err)
	f.consumer, err = NewConsumer(ConsumerParams{
		Subscription: receiverFunc(func(context.Context, func(context.Context, *gcppubsub.Message)) error { return nil }),
		Idempotency:  f.guard,
		Deliveries:   f.deliveries,
		Topics:       f.topics,
		Reminders:    f.reminders,
		Logger:       logger.Nop(),
	})
	require.NoError(t, err)
	return f
}

func TestPublishDeliveryEnvelope(t *testing.T) {
	f := newConsumerFixture(t)
	communityID := uuid.New()
	userID := uuid.New()

	jobID, err := f.publisher.PublishDelivery(context.Background(), []uuid.UUID{userID}, enums.NotificationKindPostCreated, notifications.ForCommunity(communityID))
	require.NoError(t, err)

	msg := f.pub.last(t)
	assert.Equal(t, string(enums.JobTypeSendNotification), msg.Attributes[AttrJobType])
	assert.Equal(t, jobID, msg.Attributes[AttrJobID])

	var envelope Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &envelope))
	assert.Equal(t, jobID, envelope.JobID.String())

	var raw map[string]any
	require.NoError(t, json.Unmarshal(envelope.Data, &raw))
	assert.Equal(t, string(enums.NotificationKindPostCreated), raw["kind"])
	assert.Equal(t, communityID.String(), raw["context"].(map[string]any)["chatRoomId"])
}

func TestPublishRejectsInvalidJobs(t *testing.T) {
	f := newConsumerFixture(t)

	_, err := f.publisher.PublishDelivery(context.Background(), nil, enums.NotificationKindPostCreated, notifications.JobContext{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.publisher.PublishTopicChange(context.Background(), uuid.New(), uuid.New(), enums.TopicAction("toggle"))
	require.Error(t, err)

	_, err = f.publisher.PublishPurgeTokens(context.Background(), []string{""})
	require.Error(t, err)
	assert.Empty(t, f.pub.msgs)
}

func TestPublishSurfacesTransportError(t *testing.T) {
	f := newConsumerFixture(t)
	f.pub.err = errors.New("unavailable")

	_, err := f.publisher.PublishReminderAdjust(context.Background(), uuid.New())
	require.Error(t, err)
}

func TestConsumerDispatchesEveryJobType(t *testing.T) {
	f := newConsumerFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	communityID := uuid.New()

	_, err := f.publisher.PublishDelivery(ctx, []uuid.UUID{userID}, enums.NotificationKindReminderForPostCreation, notifications.ForCommunity(communityID))
	require.NoError(t, err)
	assert.True(t, f.consumer.process(ctx, f.pub.last(t)).ack)

	_, err = f.publisher.PublishTopicChange(ctx, userID, communityID, enums.TopicActionAdd)
	require.NoError(t, err)
	assert.True(t, f.consumer.process(ctx, f.pub.last(t)).ack)

	_, err = f.publisher.PublishTopicChange(ctx, userID, communityID, enums.TopicActionRemove)
	require.NoError(t, err)
	assert.True(t, f.consumer.process(ctx, f.pub.last(t)).ack)

	_, err = f.publisher.PublishTopicSync(ctx, []uuid.UUID{userID})
	require.NoError(t, err)
	assert.True(t, f.consumer.process(ctx, f.pub.last(t)).ack)

	_, err = f.publisher.PublishPurgeTokens(ctx, []string{"tok-1", "tok-2"})
	require.NoError(t, err)
	assert.True(t, f.consumer.process(ctx, f.pub.last(t)).ack)

	_, err = f.publisher.PublishReminderAdjust(ctx, communityID)
	require.NoError(t, err)
	assert.True(t, f.consumer.process(ctx, f.pub.last(t)).ack)

	require.Len(t, f.deliveries.calls, 1)
	call := f.deliveries.calls[0]
	assert.Equal(t, []uuid.UUID{userID}, call.userIDs)
	assert.Equal(t, enums.NotificationKindReminderForPostCreation, call.kind)
	require.NotNil(t, call.jc.CommunityID)
	assert.Equal(t, communityID, *call.jc.CommunityID)

	assert.Equal(t, []enums.TopicAction{enums.TopicActionAdd, enums.TopicActionRemove}, f.topics.applied)
	assert.Equal(t, [][]uuid.UUID{{userID}}, f.topics.synced)
	assert.Equal(t, [][]string{{"tok-1", "tok-2"}}, f.topics.purged)
	assert.Equal(t, []uuid.UUID{communityID}, f.reminders.adjusted)
}

func TestConsumerSkipsRedeliveredJob(t *testing.T) {
	f := newConsumerFixture(t)
	ctx := context.Background()

	_, err := f.publisher.PublishTopicSync(ctx, []uuid.UUID{uuid.New()})
	require.NoError(t, err)
	msg := f.pub.last(t)

	assert.True(t, f.consumer.process(ctx, msg).ack)
	assert.True(t, f.consumer.process(ctx, msg).ack)
	assert.Len(t, f.topics.synced, 1)
}

func TestConsumerNacksWhenIdempotencyUnavailable(t *testing.T) {
	f := newConsumerFixture(t)
	f.guard.err = errors.New("redis down")
	ctx := context.Background()

	_, err := f.publisher.PublishTopicSync(ctx, []uuid.UUID{uuid.New()})
	require.NoError(t, err)

	result := f.consumer.process(ctx, f.pub.last(t))
	assert.True(t, result.nack)
	assert.Empty(t, f.topics.synced)
}

func TestConsumerReleasesJobWhenShuttingDown(t *testing.T) {
	f := newConsumerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	jobID, err := f.publisher.PublishTopicSync(ctx, []uuid.UUID{uuid.New()})
	require.NoError(t, err)
	msg := f.pub.last(t)
	cancel()

	result := f.consumer.process(ctx, msg)
	assert.True(t, result.nack)
	require.Len(t, f.guard.released, 1)
	assert.Equal(t, jobID, f.guard.released[0].String())
	assert.Empty(t, f.topics.synced)

	// another replica picks it up
	assert.True(t, f.consumer.process(context.Background(), msg).ack)
	assert.Len(t, f.topics.synced, 1)
}

func TestConsumerAcksFailedHandler(t *testing.T) {
	f := newConsumerFixture(t)
	f.topics.err = errors.New("provider down")
	ctx := context.Background()

	_, err := f.publisher.PublishTopicChange(ctx, uuid.New(), uuid.New(), enums.TopicActionAdd)
	require.NoError(t, err)

	result := f.consumer.process(ctx, f.pub.last(t))
	assert.True(t, result.ack)
	assert.False(t, result.nack)
}

func TestConsumerAcksMalformedMessages(t *testing.T) {
	f := newConsumerFixture(t)
	ctx := context.Background()

	cases := map[string][]byte{
		"not json":       []byte("{"),
		"missing job id": []byte(`{"type":"sync-topics","data":{"userIds":["` + uuid.NewString() + `"]}}`),
		"unknown type":   mustEnvelope(t, "shuffle", map[string]any{}),
		"invalid kind":   mustEnvelope(t, enums.JobTypeSendNotification, map[string]any{"userIds": []string{uuid.NewString()}, "kind": "nope"}),
		"empty users":    mustEnvelope(t, enums.JobTypeSyncTopics, map[string]any{"userIds": []string{}}),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			result := f.consumer.process(ctx, &gcppubsub.Message{ID: name, Data: data})
			assert.True(t, result.ack)
		})
	}
	assert.Empty(t, f.deliveries.calls)
	assert.Empty(t, f.topics.synced)
}

func TestConsumerRunAcksThroughReceive(t *testing.T) {
	f := newConsumerFixture(t)
	ctx := context.Background()

	_, err := f.publisher.PublishReminderAdjust(ctx, uuid.New())
	require.NoError(t, err)
	msg := f.pub.last(t)

	f.consumer.subscription = receiverFunc(func(ctx context.Context, handle func(context.Context, *gcppubsub.Message)) error {
		handle(ctx, msg)
		return nil
	})
	require.NoError(t, f.consumer.Run(ctx))
	assert.Len(t, f.reminders.adjusted, 1)
}

func TestNewConsumerRequiresDependencies(t *testing.T) {
	_, err := NewConsumer(ConsumerParams{Logger: logger.Nop()})
	require.Error(t, err)
}

func mustEnvelope(t *testing.T, jobType enums.JobType, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	out, err := json.Marshal(Envelope{JobID: uuid.New(), Type: jobType, CreatedAt: time.Now(), Data: raw})
	require.NoError(t, err)
	return out
}
