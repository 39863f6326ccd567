package memberships

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stagecall/internal/repo"
	"github.com/angelmondragon/stagecall/pkg/db/models"
	"github.com/angelmondragon/stagecall/pkg/enums"
	"github.com/angelmondragon/stagecall/pkg/pagination"
)

// AuditActionSpeakerSelected marks an audit entry written when the mic changes hands.
const AuditActionSpeakerSelected = "speaker_selected"

// ErrNoPreviousSpeaker is returned when a community has no speaker hand-off on record.
var ErrNoPreviousSpeaker = errors.New("no previous speaker in audit history")

// Repository reads community participation state owned by the chat-room services.
type Repository struct {
	repo.Base
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) (*Repository, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	return &Repository{Base: repo.NewBase(db)}, nil
}

// ParticipationLevel returns the user's mic level, or MicLevelNone when the user is not a member.
func (r *Repository) ParticipationLevel(ctx context.Context, userID, communityID uuid.UUID) (enums.MicLevel, error) {
	var row models.CommunityMembership
	err := r.DB(ctx).
		Where("user_id = ? AND community_id = ?", userID, communityID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return enums.MicLevelNone, nil
	}
	if err != nil {
		return "", err
	}
	return row.MicLevel, nil
}

// AllForUser lists every community membership of the user.
func (r *Repository) AllForUser(ctx context.Context, userID uuid.UUID) ([]Membership, error) {
	var rows []models.CommunityMembership
	err := r.DB(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return membershipsFromModels(rows), nil
}

// CurrentSpeaker returns the member on mic with a slot end, or nil when the mic is free.
func (r *Repository) CurrentSpeaker(ctx context.Context, communityID uuid.UUID) (*Speaker, error) {
	var row models.CommunityMembership
	err := r.DB(ctx).
		Where("community_id = ? AND mic_level = ? AND ending_at IS NOT NULL", communityID, enums.MicLevelSpeaker).
		Order("ending_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return speakerFromModel(row), nil
}

// HasLivePost reports whether the community already has a post on stage.
func (r *Repository) HasLivePost(ctx context.Context, communityID uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.Post{}).
		Where("community_id = ? AND is_live = ?", communityID, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListCommunities returns a single page of communities ordered by creation.
func (r *Repository) ListCommunities(ctx context.Context, limit int) ([]models.Community, error) {
	var rows []models.Community
	err := r.DB(ctx).
		Order("created_at ASC, id ASC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CommunitiesWithSpeaker pages through communities that currently have a timed speaker.
func (r *Repository) CommunitiesWithSpeaker(ctx context.Context, params pagination.Params) ([]uuid.UUID, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	query := r.DB(ctx).
		Where("mic_level = ? AND ending_at IS NOT NULL", enums.MicLevelSpeaker)

	var rows []models.CommunityMembership
	if err := pagination.Keyset(query, cursor, params.Limit).Find(&rows).Error; err != nil {
		return nil, "", err
	}

	page, next := pagination.Trim(rows, params.Limit, func(row models.CommunityMembership) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	ids := make([]uuid.UUID, 0, len(page))
	for _, row := range page {
		ids = append(ids, row.CommunityID)
	}
	return ids, next, nil
}

// HasActiveLeague reports whether a league is running for the community at now.
func (r *Repository) HasActiveLeague(ctx context.Context, communityID uuid.UUID, now time.Time) (bool, error) {
	now = now.UTC()
	var count int64
	err := r.DB(ctx).
		Model(&models.League{}).
		Where("community_id = ? AND starts_at <= ? AND ends_at > ?", communityID, now, now).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// PreviousSpeaker returns the user recorded by the latest speaker hand-off.
func (r *Repository) PreviousSpeaker(ctx context.Context, communityID uuid.UUID) (uuid.UUID, error) {
	var row models.AuditEntry
	err := r.DB(ctx).
		Where("community_id = ? AND action = ?", communityID, AuditActionSpeakerSelected).
		Order("created_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, ErrNoPreviousSpeaker
	}
	if err != nil {
		return uuid.Nil, err
	}
	return row.UserID, nil
}

// FindUser loads a user profile. It returns nil without error when the user does not exist.
func (r *Repository) FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.DB(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindCommunity loads a community. It returns nil without error when it does not exist.
func (r *Repository) FindCommunity(ctx context.Context, communityID uuid.UUID) (*models.Community, error) {
	var community models.Community
	err := r.DB(ctx).Where("id = ?", communityID).First(&community).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &community, nil
}
