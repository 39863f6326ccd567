package notifications

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/angelmondragon/stagecall/internal/preferences"
	"github.com/angelmondragon/stagecall/pkg/db/models"
	"github.com/angelmondragon/stagecall/pkg/enums"
	"github.com/angelmondragon/stagecall/pkg/logger"
)

type audienceReader interface {
	OptedInUsers(ctx context.Context, communityID uuid.UUID, toggle preferences.Toggle, excluded []uuid.UUID) ([]uuid.UUID, error)
}

type fanOut interface {
	EnqueueFanOut(ctx context.Context, userIDs []uuid.UUID, kind enums.NotificationKind, jc JobContext)
}

type directDelivery interface {
	DeliverToUser(ctx context.Context, userID uuid.UUID, kind enums.NotificationKind, jc JobContext) error
}

// Notifier is the entry point used by feature code: it picks the audience of
// an event and routes it to direct delivery or the work queue.
type Notifier struct {
	audience audienceReader
	queue    fanOut
	direct   directDelivery
	logg     *logger.Logger
}

func NewNotifier(audience audienceReader, queue fanOut, direct directDelivery, logg *logger.Logger) (*Notifier, error) {
	switch {
	case audience == nil:
		return nil, errors.New("audience reader is required")
	case queue == nil:
		return nil, errors.New("fan-out queue is required")
	case direct == nil:
		return nil, errors.New("direct delivery is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &Notifier{audience: audience, queue: queue, direct: direct, logg: logg}, nil
}

// PostCreatedAudience lists members opted in to new post alerts, minus the author.
func (n *Notifier) PostCreatedAudience(ctx context.Context, communityID, authorID uuid.UUID) ([]uuid.UUID, error) {
	return n.audience.OptedInUsers(ctx, communityID, preferences.PostCreated, []uuid.UUID{authorID})
}

// CommentCreatedAudience lists members opted in to comment alerts, minus the author.
func (n *Notifier) CommentCreatedAudience(ctx context.Context, communityID, authorID uuid.UUID) ([]uuid.UUID, error) {
	return n.audience.OptedInUsers(ctx, communityID, preferences.AllComments, []uuid.UUID{authorID})
}

// NotifyPostCreated fans a new post out to its audience.
func (n *Notifier) NotifyPostCreated(ctx context.Context, post models.Post) error {
	userIDs, err := n.PostCreatedAudience(ctx, post.CommunityID, post.UserID)
	if err != nil {
		return err
	}
	jc := ForCommunity(post.CommunityID).WithPost(post.ID).WithActor(post.UserID)
	n.queue.EnqueueFanOut(ctx, userIDs, enums.NotificationKindPostCreated, jc)
	return nil
}

// NotifyCommentCreated fans a new comment out to its audience.
func (n *Notifier) NotifyCommentCreated(ctx context.Context, comment models.Comment) error {
	userIDs, err := n.CommentCreatedAudience(ctx, comment.CommunityID, comment.UserID)
	if err != nil {
		return err
	}
	jc := ForCommunity(comment.CommunityID).
		WithPost(comment.PostID).
		WithComment(comment.ID).
		WithActor(comment.UserID)
	n.queue.EnqueueFanOut(ctx, userIDs, enums.NotificationKindAllComments, jc)
	return nil
}

// NotifyReactionAdded tells the comment owner directly, then fans out to the
// rest of the opted-in community when the reaction carries a notification symbol.
func (n *Notifier) NotifyReactionAdded(ctx context.Context, communityID uuid.UUID, reaction models.UserReaction, comment models.Comment) error {
	jc := ForCommunity(communityID).WithReaction(reaction.ID).WithActor(reaction.UserID)
	if err := n.direct.DeliverToUser(ctx, comment.UserID, enums.NotificationKindReactionAdded, jc); err != nil {
		n.logg.Warn(n.logg.WithField(n.logg.WithUserID(ctx, comment.UserID.String()), "reason", err.Error()),
			"reaction notification to comment owner not delivered")
	}

	if reaction.NotificationSymbol == nil || *reaction.NotificationSymbol == "" {
		return nil
	}
	userIDs, err := n.audience.OptedInUsers(ctx, communityID, preferences.ReactionNotification,
		[]uuid.UUID{reaction.UserID, comment.UserID})
	if err != nil {
		return err
	}
	n.queue.EnqueueFanOut(ctx, userIDs, enums.NotificationKindReactionAddedOthers, jc.WithComment(comment.ID))
	return nil
}

// NotifySelectedAsNextSpeaker delivers straight to the next speaker. when is
// the human readable slot start.
func (n *Notifier) NotifySelectedAsNextSpeaker(ctx context.Context, communityID, nextSpeakerID, selectedBy uuid.UUID, when string) error {
	jc := ForCommunity(communityID).WithActor(selectedBy).WithTime(when)
	return n.direct.DeliverToUser(ctx, nextSpeakerID, enums.NotificationKindSelectedAsNextSpeaker, jc)
}
