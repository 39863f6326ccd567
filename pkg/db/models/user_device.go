package models

import (
	"time"

	"github.com/google/uuid"
)

// UserDevice is a physical device registered for push delivery.
// Token is nulled once the provider reports it permanently invalid and is never reused.
type UserDevice struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Token     *string   `gorm:"column:device_token;type:text"`
	Platform  string    `gorm:"column:platform;type:text;not null;default:'ios'"`
	Active    bool      `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
