package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the read-model of a platform profile used to address and attribute notifications.
type User struct {
	ID                          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Username                    *string   `gorm:"column:username"`
	FirstName                   *string   `gorm:"column:first_name"`
	Email                       *string   `gorm:"column:email"`
	EmailOptIn                  bool      `gorm:"column:email_opt_in;not null;default:false"`
	PublicAddress               *string   `gorm:"column:public_address"`
	ProfilePicture              *string   `gorm:"column:profile_picture"`
	DirectMessagesNotifications bool      `gorm:"column:direct_messages_notifications;not null;default:true"`
	CreatedAt                   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// DisplayName picks the friendliest identifier available: first name, username, email, then wallet address.
func (u User) DisplayName() string {
	for _, candidate := range []*string{u.FirstName, u.Username, u.Email, u.PublicAddress} {
		if candidate != nil && *candidate != "" {
			return *candidate
		}
	}
	return ""
}
