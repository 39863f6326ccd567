package preferences

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/stagecall/internal/repo"
	"github.com/angelmondragon/stagecall/pkg/db"
	"github.com/angelmondragon/stagecall/pkg/db/models"
	"github.com/angelmondragon/stagecall/pkg/enums"
	pkgerrors "github.com/angelmondragon/stagecall/pkg/errors"
)

// Repository persists notification preferences.
type Repository struct {
	repo.Base
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(conn *gorm.DB) (*Repository, error) {
	if conn == nil {
		return nil, errors.New("db is required")
	}
	return &Repository{Base: repo.NewBase(conn)}, nil
}

// Find returns the stored record or nil when the member has none.
func (r *Repository) Find(ctx context.Context, userID, communityID uuid.UUID) (*models.NotificationPreference, error) {
	var pref models.NotificationPreference
	err := r.DB(ctx).
		Where("user_id = ? AND community_id = ?", userID, communityID).
		First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

// CreateIfAbsent inserts pref unless a record already exists for the pair. It
// reports whether this call created the row.
func (r *Repository) CreateIfAbsent(ctx context.Context, pref *models.NotificationPreference) (bool, error) {
	if pref == nil {
		return false, errors.New("preference is required")
	}
	if pref.ID == uuid.Nil {
		pref.ID = uuid.New()
	}
	res := r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "community_id"}},
			DoNothing: true,
		}).
		Create(pref)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Save writes every toggle of pref. A second row for the same member maps to CodeConflict.
func (r *Repository) Save(ctx context.Context, pref *models.NotificationPreference) error {
	err := r.DB(ctx).Save(pref).Error
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "preference already exists for member")
	}
	return err
}

// OptedInUsers lists non-banned members of the community whose toggle allows
// the notification. Members without a record count as opted in.
func (r *Repository) OptedInUsers(ctx context.Context, communityID uuid.UUID, toggle Toggle, excluded []uuid.UUID) ([]uuid.UUID, error) {
	if toggle.Column == "" {
		return nil, errors.New("toggle column is required")
	}

	query := r.DB(ctx).
		Table("community_memberships AS cm").
		Joins("LEFT JOIN notification_preferences AS np ON np.user_id = cm.user_id AND np.community_id = cm.community_id").
		Where("cm.community_id = ? AND cm.mic_level <> ?", communityID, enums.MicLevelBanned).
		Where(fmt.Sprintf("COALESCE(np.%s, ?) = ?", toggle.Column), true, true)
	if len(excluded) > 0 {
		query = query.Where("cm.user_id NOT IN ?", excluded)
	}

	var ids []uuid.UUID
	if err := query.Order("cm.created_at ASC").Pluck("cm.user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
