package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stagecall/internal/notifications"
	"github.com/angelmondragon/stagecall/pkg/enums"
	"github.com/angelmondragon/stagecall/pkg/pubsub"
)

// Publisher appends jobs to the notification work queue.
type Publisher struct {
	pub     pubsub.MessagePublisher
	timeout time.Duration
	now     func() time.Time
}

func NewPublisher(pub pubsub.MessagePublisher, timeout time.Duration) (*Publisher, error) {
	if pub == nil {
		return nil, errors.New("queue publisher is required")
	}
	return &Publisher{pub: pub, timeout: timeout, now: time.Now}, nil
}

func (p *Publisher) PublishDelivery(ctx context.Context, userIDs []uuid.UUID, kind enums.NotificationKind, jc notifications.JobContext) (string, error) {
	return p.publish(ctx, enums.JobTypeSendNotification, DeliverNotificationJob{UserIDs: userIDs, Kind: kind, Context: jc})
}

func (p *Publisher) PublishTopicChange(ctx context.Context, userID, communityID uuid.UUID, action enums.TopicAction) (string, error) {
	if !action.IsValid() {
		return "", fmt.Errorf("invalid topic action %q", action)
	}
	return p.publish(ctx, action.JobType(), TopicChangeJob{UserID: userID, CommunityID: communityID, Action: action})
}

func (p *Publisher) PublishTopicSync(ctx context.Context, userIDs []uuid.UUID) (string, error) {
	return p.publish(ctx, enums.JobTypeSyncTopics, TopicSyncJob{UserIDs: userIDs})
}

func (p *Publisher) PublishPurgeTokens(ctx context.Context, tokens []string) (string, error) {
	return p.publish(ctx, enums.JobTypePurgeDeviceTokens, PurgeTokensJob{Tokens: tokens})
}

func (p *Publisher) PublishReminderAdjust(ctx context.Context, communityID uuid.UUID) (string, error) {
	return p.publish(ctx, enums.JobTypeAdjustReminder, ReminderAdjustJob{CommunityID: communityID})
}

// publish validates job, wraps it in an Envelope and returns the job id.
func (p *Publisher) publish(ctx context.Context, jobType enums.JobType, job any) (string, error) {
	if err := check(job); err != nil {
		return "", err
	}
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal %s job: %w", jobType, err)
	}
	envelope := Envelope{
		JobID:     uuid.New(),
		Type:      jobType,
		CreatedAt: p.now().UTC(),
		Data:      data,
	}
	jobID := envelope.JobID.String()
	_, err = pubsub.PublishJSON(ctx, p.pub, envelope, map[string]string{
		AttrJobType: string(jobType),
		AttrJobID:   jobID,
	}, p.timeout)
	if err != nil {
		return "", fmt.Errorf("publish %s job: %w", jobType, err)
	}
	return jobID, nil
}
