package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stagecall/pkg/enums"
)

// Community is a chat room that hosts speakers, posts and members.
type Community struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name              string    `gorm:"column:name;not null"`
	Image             *string   `gorm:"column:image"`
	NotificationImage *string   `gorm:"column:notification_image"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}

// CommunityMembership maps a user into a community with a mic level.
// EndingAt is populated while the member holds the speaker slot.
type CommunityMembership struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	CommunityID uuid.UUID      `gorm:"column:community_id;type:uuid;not null;index"`
	UserID      uuid.UUID      `gorm:"column:user_id;type:uuid;not null;index"`
	MicLevel    enums.MicLevel `gorm:"column:mic_level;type:text;not null"`
	EndingAt    *time.Time     `gorm:"column:ending_at"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// League is a weekly contest attached to a community.
type League struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CommunityID uuid.UUID `gorm:"column:community_id;type:uuid;not null;index"`
	Name        string    `gorm:"column:name;not null"`
	StartsAt    time.Time `gorm:"column:starts_at;not null"`
	EndsAt      time.Time `gorm:"column:ends_at;not null"`
}

// AuditEntry records speaker hand-offs inside a community.
type AuditEntry struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CommunityID uuid.UUID `gorm:"column:community_id;type:uuid;not null;index"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	Action      string    `gorm:"column:action;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
