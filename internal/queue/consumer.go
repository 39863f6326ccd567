package queue

import (
	"context"
	"encoding/json"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/stagecall/internal/notifications"
	"github.com/angelmondragon/stagecall/pkg/enums"
	pkgerrors "github.com/angelmondragon/stagecall/pkg/errors"
	"github.com/angelmondragon/stagecall/pkg/logger"
)

const consumerName = "notification-jobs"

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type processedGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, jobID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, jobID uuid.UUID) error
}

// DeliveryHandler runs the delivery pipeline for a batch of users.
type DeliveryHandler interface {
	DeliverToUsers(ctx context.Context, userIDs []uuid.UUID, kind enums.NotificationKind, jc notifications.JobContext) notifications.Summary
}

// TopicHandler applies topic membership jobs.
type TopicHandler interface {
	Apply(ctx context.Context, userID, communityID uuid.UUID, action enums.TopicAction) error
	SyncForUsers(ctx context.Context, userIDs []uuid.UUID) error
	PurgeTokensFromAllTopics(ctx context.Context, tokens []string) error
}

type ReminderHandler interface {
	AdjustTimer(ctx context.Context, communityID uuid.UUID) error
}

type ConsumerParams struct {
	Subscription receiver
	Idempotency  processedGuard
	Deliveries   DeliveryHandler
	Topics       TopicHandler
	Reminders    ReminderHandler
	Logger       *logger.Logger
}

type handlerFunc func(ctx context.Context, data json.RawMessage) error

// Consumer drains the notification work queue and dispatches each job by type.
type Consumer struct {
	subscription receiver
	idempotency  processedGuard
	handlers     map[enums.JobType]handlerFunc
	logg         *logger.Logger
}

func NewConsumer(p ConsumerParams) (*Consumer, error) {
	if p.Subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if p.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if p.Deliveries == nil {
		return nil, fmt.Errorf("delivery handler required")
	}
	if p.Topics == nil {
		return nil, fmt.Errorf("topic handler required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	c := &Consumer{
		subscription: p.Subscription,
		idempotency:  p.Idempotency,
		logg:         p.Logger,
	}
	c.handlers = map[enums.JobType]handlerFunc{
		enums.JobTypeSendNotification:  c.deliver(p.Deliveries),
		enums.JobTypeAddToTopic:        c.changeTopic(p.Topics),
		enums.JobTypeRemoveFromTopic:   c.changeTopic(p.Topics),
		enums.JobTypeSyncTopics:        c.syncTopics(p.Topics),
		enums.JobTypePurgeDeviceTokens: c.purgeTokens(p.Topics),
	}
	if p.Reminders != nil {
		c.handlers[enums.JobTypeAdjustReminder] = c.adjustReminder(p.Reminders)
	}
	return c, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	jobType := msg.Attributes[AttrJobType]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"job_type":   jobType,
	})

	var envelope Envelope
	if err := decode(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode job envelope", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithJobID(logCtx, envelope.JobID.String())

	handle, ok := c.handlers[envelope.Type]
	if !ok {
		c.logg.Warn(logCtx, "skipping unhandled job type")
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, consumerName, envelope.JobID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "job already processed")
		return processResult{ack: true}
	}
	if ctx.Err() != nil {
		// shutting down before the handler started: hand the job to another replica
		if err := c.idempotency.Delete(context.WithoutCancel(ctx), consumerName, envelope.JobID); err != nil {
			c.logg.Error(logCtx, "failed to release job marker", err)
		}
		return processResult{nack: true}
	}

	if err := handle(logCtx, envelope.Data); err != nil {
		c.logg.Error(c.logg.WithFields(logCtx, pkgerrors.Describe(err).Fields()), "job failed", err)
	}
	return processResult{ack: true}
}

func (c *Consumer) deliver(h DeliveryHandler) handlerFunc {
	return func(ctx context.Context, data json.RawMessage) error {
		var job DeliverNotificationJob
		if err := decode(data, &job); err != nil {
			return err
		}
		if _, err := enums.ParseNotificationKind(string(job.Kind)); err != nil {
			return err
		}
		summary := h.DeliverToUsers(ctx, job.UserIDs, job.Kind, job.Context)
		c.logg.Info(c.logg.WithFields(ctx, map[string]any{
			"kind":    string(job.Kind),
			"sent":    summary.Sent,
			"denied":  summary.Denied,
			"skipped": summary.Skipped,
			"failed":  summary.Failed,
		}), "delivery job finished")
		return nil
	}
}

func (c *Consumer) changeTopic(h TopicHandler) handlerFunc {
	return func(ctx context.Context, data json.RawMessage) error {
		var job TopicChangeJob
		if err := decode(data, &job); err != nil {
			return err
		}
		return h.Apply(ctx, job.UserID, job.CommunityID, job.Action)
	}
}

func (c *Consumer) syncTopics(h TopicHandler) handlerFunc {
	return func(ctx context.Context, data json.RawMessage) error {
		var job TopicSyncJob
		if err := decode(data, &job); err != nil {
			return err
		}
		return h.SyncForUsers(ctx, job.UserIDs)
	}
}

func (c *Consumer) purgeTokens(h TopicHandler) handlerFunc {
	return func(ctx context.Context, data json.RawMessage) error {
		var job PurgeTokensJob
		if err := decode(data, &job); err != nil {
			return err
		}
		return h.PurgeTokensFromAllTopics(ctx, job.Tokens)
	}
}

func (c *Consumer) adjustReminder(h ReminderHandler) handlerFunc {
	return func(ctx context.Context, data json.RawMessage) error {
		var job ReminderAdjustJob
		if err := decode(data, &job); err != nil {
			return err
		}
		return h.AdjustTimer(ctx, job.CommunityID)
	}
}
