package devices

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stagecall/internal/repo"
	"github.com/angelmondragon/stagecall/pkg/db/models"
)

// Repository reads device registrations and nulls dead push tokens.
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

// DevicesForUser returns active devices that still carry a token.
func (r *Repository) DevicesForUser(ctx context.Context, userID uuid.UUID) ([]models.UserDevice, error) {
	var rows []models.UserDevice
	err := r.DB(ctx).
		Where("user_id = ? AND active = ? AND device_token IS NOT NULL AND device_token <> ''", userID, true).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ActiveTokens returns the push tokens of DevicesForUser, deduplicated in
// registration order.
func (r *Repository) ActiveTokens(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := r.DevicesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(rows))
	tokens := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.Token == nil {
			continue
		}
		if _, ok := seen[*row.Token]; ok {
			continue
		}
		seen[*row.Token] = struct{}{}
		tokens = append(tokens, *row.Token)
	}
	return tokens, nil
}

// NullTokens clears every registration holding one of tokens. Rows are never
// deleted and a nulled token stays null.
func (r *Repository) NullTokens(ctx context.Context, tokens []string) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	res := r.DB(ctx).
		Model(&models.UserDevice{}).
		Where("device_token IN ?", tokens).
		Update("device_token", gorm.Expr("NULL"))
	return res.RowsAffected, res.Error
}
