package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationPreference holds a member's push toggles for a single community.
// At most one row exists per (user_id, community_id).
type NotificationPreference struct {
	ID                     uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID                 uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:notification_preferences_user_community_key"`
	CommunityID            uuid.UUID `gorm:"column:community_id;type:uuid;not null;uniqueIndex:notification_preferences_user_community_key"`
	TaggedInPost           bool      `gorm:"column:tagged_in_post;not null;default:true"`
	TaggedInComment        bool      `gorm:"column:tagged_in_comment;not null;default:true"`
	PostCreated            bool      `gorm:"column:post_created;not null;default:true"`
	SelectedAsSpeaker      bool      `gorm:"column:selected_as_speaker;not null;default:true"`
	SelectedAsNextSpeaker  bool      `gorm:"column:selected_as_next_speaker;not null;default:true"`
	AllComments            bool      `gorm:"column:all_comments;not null;default:true"`
	ShowInViewedBy         bool      `gorm:"column:show_in_viewed_by;not null;default:true"`
	ReactionNotification   bool      `gorm:"column:reaction_notification;not null;default:true"`
	CommunityAnnouncements bool      `gorm:"column:community_announcements;not null;default:true"`
	CreatedAt              time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
