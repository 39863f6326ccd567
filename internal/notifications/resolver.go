package notifications

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stagecall/internal/memberships"
	"github.com/angelmondragon/stagecall/internal/repo"
	"github.com/angelmondragon/stagecall/pkg/db/models"
	"github.com/angelmondragon/stagecall/pkg/enums"
)

// EntityResolver loads the entities referenced by a job context.
type EntityResolver interface {
	Resolve(ctx context.Context, kind enums.NotificationKind, jc JobContext) (BuildInput, error)
}

type membershipReader interface {
	PreviousSpeaker(ctx context.Context, communityID uuid.UUID) (uuid.UUID, error)
	FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	FindCommunity(ctx context.Context, communityID uuid.UUID) (*models.Community, error)
}

// GormResolver resolves job contexts against the relational store. Ids that
// do not match a row resolve to nil and are reported by the payload builder.
type GormResolver struct {
	repo.Base
	members membershipReader
}

// NewGormResolver binds the resolver to db and the membership read model.
func NewGormResolver(db *gorm.DB, members membershipReader) (*GormResolver, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if members == nil {
		return nil, errors.New("membership reader is required")
	}
	return &GormResolver{Base: repo.NewBase(db), members: members}, nil
}

func (r *GormResolver) Resolve(ctx context.Context, kind enums.NotificationKind, jc JobContext) (BuildInput, error) {
	in := BuildInput{Kind: kind, Time: jc.Time, Metadata: jc.Metadata}

	if jc.CommunityID != nil {
		community, err := r.members.FindCommunity(ctx, *jc.CommunityID)
		if err != nil {
			return BuildInput{}, err
		}
		if community != nil {
			in.Community = summarize(community)
		}
	}

	var err error
	if jc.PostID != nil {
		if in.Post, err = findByID[models.Post](ctx, r.DB(ctx), *jc.PostID); err != nil {
			return BuildInput{}, err
		}
	}
	if jc.CommentID != nil {
		if in.Comment, err = findByID[models.Comment](ctx, r.DB(ctx), *jc.CommentID); err != nil {
			return BuildInput{}, err
		}
	}
	if jc.ReactionID != nil {
		if in.Reaction, err = findByID[models.UserReaction](ctx, r.DB(ctx), *jc.ReactionID); err != nil {
			return BuildInput{}, err
		}
	}
	if jc.MessageID != nil {
		if in.Message, err = findByID[models.ChatMessage](ctx, r.DB(ctx), *jc.MessageID); err != nil {
			return BuildInput{}, err
		}
	}

	actorID, err := r.actorFor(ctx, kind, jc, in)
	if err != nil {
		return BuildInput{}, err
	}
	if actorID != uuid.Nil {
		if in.Actor, err = r.members.FindUser(ctx, actorID); err != nil {
			return BuildInput{}, err
		}
	}
	return in, nil
}

// actorFor picks who the notification is attributed to. A speaker selection
// without an explicit actor is attributed to the previous speaker; a missing
// audit record is an error.
func (r *GormResolver) actorFor(ctx context.Context, kind enums.NotificationKind, jc JobContext, in BuildInput) (uuid.UUID, error) {
	if jc.ActorID != nil {
		return *jc.ActorID, nil
	}
	switch kind {
	case enums.NotificationKindSelectedAsSpeaker:
		if jc.CommunityID == nil {
			return uuid.Nil, missing("community")
		}
		return r.members.PreviousSpeaker(ctx, *jc.CommunityID)
	case enums.NotificationKindDirectMessage, enums.NotificationKindCommunityAnnouncement:
		if in.Message != nil {
			return in.Message.SenderID, nil
		}
	case enums.NotificationKindReactionAdded, enums.NotificationKindReactionAddedOthers:
		if in.Reaction != nil {
			return in.Reaction.UserID, nil
		}
	case enums.NotificationKindAllComments, enums.NotificationKindTaggedInComment:
		if in.Comment != nil {
			return in.Comment.UserID, nil
		}
	case enums.NotificationKindTaggedInPost, enums.NotificationKindPostCreated:
		if in.Post != nil {
			return in.Post.UserID, nil
		}
	}
	return uuid.Nil, nil
}

func summarize(c *models.Community) *CommunitySummary {
	out := &CommunitySummary{ID: c.ID.String(), Name: c.Name}
	switch {
	case c.NotificationImage != nil && *c.NotificationImage != "":
		out.Image = *c.NotificationImage
	case c.Image != nil:
		out.Image = *c.Image
	}
	return out
}

func findByID[T any](ctx context.Context, db *gorm.DB, id uuid.UUID) (*T, error) {
	var row T
	err := db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

var _ membershipReader = (*memberships.Repository)(nil)
