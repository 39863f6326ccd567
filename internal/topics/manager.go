package topics

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/stagecall/internal/memberships"
	"github.com/angelmondragon/stagecall/pkg/db/models"
	"github.com/angelmondragon/stagecall/pkg/enums"
	"github.com/angelmondragon/stagecall/pkg/logger"
	"github.com/angelmondragon/stagecall/pkg/metrics"
	"github.com/angelmondragon/stagecall/pkg/pagination"
	"github.com/angelmondragon/stagecall/pkg/push"
)

// PurgePageSize is the number of communities scanned by PurgeTokensFromAllTopics.
// Communities beyond the first page keep stale subscriptions until the provider
// expires the tokens.
const PurgePageSize = pagination.MaxLimit

type membershipReader interface {
	AllForUser(ctx context.Context, userID uuid.UUID) ([]memberships.Membership, error)
	ListCommunities(ctx context.Context, limit int) ([]models.Community, error)
}

type tokenSource interface {
	ActiveTokens(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// ChangePublisher queues a topic membership change for background processing.
type ChangePublisher interface {
	PublishTopicChange(ctx context.Context, userID, communityID uuid.UUID, action enums.TopicAction) (string, error)
}

// ManagerParams groups the dependencies of the topic manager.
type ManagerParams struct {
	Memberships membershipReader
	Devices     tokenSource
	Provider    push.Provider
	Namer       Namer
	Queue       ChangePublisher
	Metrics     *metrics.DeliveryMetrics
	Logger      *logger.Logger
}

// Manager keeps device subscriptions to community topics in line with
// membership state.
type Manager struct {
	members  membershipReader
	devices  tokenSource
	provider push.Provider
	namer    Namer
	queue    ChangePublisher
	metrics  *metrics.DeliveryMetrics
	logg     *logger.Logger
}

func NewManager(params ManagerParams) (*Manager, error) {
	switch {
	case params.Memberships == nil:
		return nil, errors.New("membership reader is required")
	case params.Devices == nil:
		return nil, errors.New("device token source is required")
	case params.Provider == nil:
		return nil, errors.New("push provider is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	}
	namer := params.Namer
	if namer == (Namer{}) {
		namer = NewNamer("", "")
	}
	return &Manager{
		members:  params.Memberships,
		devices:  params.Devices,
		provider: params.Provider,
		namer:    namer,
		queue:    params.Queue,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// Subscribe adds every active token of the user to the community topic.
// Users without devices are a no-op.
func (m *Manager) Subscribe(ctx context.Context, userID, communityID uuid.UUID) error {
	tokens, err := m.devices.ActiveTokens(ctx, userID)
	if err != nil {
		return fmt.Errorf("load device tokens: %w", err)
	}
	return m.apply(ctx, tokens, communityID, enums.TopicActionAdd)
}

// Unsubscribe removes every active token of the user from the community topic.
func (m *Manager) Unsubscribe(ctx context.Context, userID, communityID uuid.UUID) error {
	tokens, err := m.devices.ActiveTokens(ctx, userID)
	if err != nil {
		return fmt.Errorf("load device tokens: %w", err)
	}
	return m.apply(ctx, tokens, communityID, enums.TopicActionRemove)
}

// Apply runs a queued topic change.
func (m *Manager) Apply(ctx context.Context, userID, communityID uuid.UUID, action enums.TopicAction) error {
	if action == enums.TopicActionRemove {
		return m.Unsubscribe(ctx, userID, communityID)
	}
	return m.Subscribe(ctx, userID, communityID)
}

// SyncForUser recomputes the on-topic state of every membership of the user.
// A provider failure on one community is logged and the loop moves on; only
// failures to read local state are returned.
func (m *Manager) SyncForUser(ctx context.Context, userID uuid.UUID) error {
	logCtx := m.logg.WithUserID(ctx, userID.String())
	tokens, err := m.devices.ActiveTokens(ctx, userID)
	if err != nil {
		return fmt.Errorf("load device tokens: %w", err)
	}
	if len(tokens) == 0 {
		m.logg.Debug(logCtx, "topic sync skipped, no active devices")
		return nil
	}
	rows, err := m.members.AllForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load memberships: %w", err)
	}

	for _, row := range rows {
		action := enums.TopicActionRemove
		if row.MicLevel.IsOnTopic() {
			action = enums.TopicActionAdd
		}
		if err := m.apply(ctx, tokens, row.CommunityID, action); err != nil {
			m.logg.Error(m.logg.WithCommunityID(logCtx, row.CommunityID.String()), "topic sync failed for community", err)
		}
	}
	return nil
}

// SyncForUsers runs SyncForUser for each user and combines the failures.
func (m *Manager) SyncForUsers(ctx context.Context, userIDs []uuid.UUID) error {
	var errs error
	for _, userID := range userIDs {
		if err := m.SyncForUser(ctx, userID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("user %s: %w", userID, err))
		}
	}
	return errs
}

// PurgeTokensFromAllTopics unsubscribes tokens from the topics of the first
// PurgePageSize communities. It is best effort: provider failures are logged.
func (m *Manager) PurgeTokensFromAllTopics(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	communities, err := m.members.ListCommunities(ctx, PurgePageSize)
	if err != nil {
		return fmt.Errorf("list communities: %w", err)
	}
	if len(communities) >= PurgePageSize {
		m.logg.Warn(m.logg.WithField(ctx, "communities", len(communities)), "token purge limited to the first page of communities")
	}
	for _, community := range communities {
		if err := m.apply(ctx, tokens, community.ID, enums.TopicActionRemove); err != nil {
			m.logg.Error(m.logg.WithCommunityID(ctx, community.ID.String()), "token purge failed for community", err)
		}
	}
	return nil
}

// EnqueueChange queues a subscribe or unsubscribe for the consumer. Failures
// are logged and never returned to the caller.
func (m *Manager) EnqueueChange(ctx context.Context, userID, communityID uuid.UUID, action enums.TopicAction) {
	logCtx := m.logg.WithFields(ctx, map[string]any{
		"user_id":      userID.String(),
		"community_id": communityID.String(),
		"action":       string(action),
	})
	if m.queue == nil {
		m.logg.Warn(logCtx, "topic change dropped, no queue configured")
		return
	}
	jobID, err := m.queue.PublishTopicChange(ctx, userID, communityID, action)
	if err != nil {
		m.logg.Error(logCtx, "failed to enqueue topic change", err)
		return
	}
	m.logg.Debug(m.logg.WithJobID(logCtx, jobID), "topic change enqueued")
}

func (m *Manager) apply(ctx context.Context, tokens []string, communityID uuid.UUID, action enums.TopicAction) error {
	if len(tokens) == 0 {
		return nil
	}
	topic := m.namer.Topic(communityID)
	var err error
	if action == enums.TopicActionRemove {
		err = m.provider.UnsubscribeTopic(ctx, tokens, topic)
	} else {
		err = m.provider.SubscribeTopic(ctx, tokens, topic)
	}
	m.metrics.IncTopicOperation(string(action), err)
	if err != nil {
		return fmt.Errorf("%s %s: %w", action, topic, err)
	}
	return nil
}
