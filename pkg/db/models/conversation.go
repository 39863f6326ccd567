package models

import (
	"time"

	"github.com/google/uuid"
)

// Post is a speaker's contribution; IsLive marks the post currently on stage.
type Post struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CommunityID uuid.UUID `gorm:"column:community_id;type:uuid;not null;index"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	Title       *string   `gorm:"column:title"`
	Text        string    `gorm:"column:text;not null"`
	IsLive      bool      `gorm:"column:is_live;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

type Comment struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	PostID      uuid.UUID `gorm:"column:post_id;type:uuid;not null;index"`
	CommunityID uuid.UUID `gorm:"column:community_id;type:uuid;not null"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	Text        string    `gorm:"column:text;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// UserReaction is a reaction left on a comment. NotificationSymbol is set for
// reactions that are broadcast to the rest of the community.
type UserReaction struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CommentID          uuid.UUID `gorm:"column:comment_id;type:uuid;not null;index"`
	UserID             uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	Symbol             string    `gorm:"column:symbol;not null"`
	NotificationSymbol *string   `gorm:"column:notification_symbol"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
}

// ChatMessage covers both direct messages and community announcements.
type ChatMessage struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	SenderID    uuid.UUID  `gorm:"column:sender_id;type:uuid;not null"`
	CommunityID *uuid.UUID `gorm:"column:community_id;type:uuid"`
	Text        string     `gorm:"column:text;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}
